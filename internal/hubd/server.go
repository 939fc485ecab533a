// Package hubd serves the model hub wire surface from a local directory
// tree, for offline development and tests.
package hubd

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/hubkit/internal/logger"
)

type Server struct {
	store *Store
	token string
	log   logger.Logger
}

// NewServer wraps a store. A non-empty token makes every route except the
// health check require it as a bearer token.
func NewServer(store *Store, token string, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{store: store, token: token, log: log}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)

	// repo administration
	e.POST("/api/repos/create", s.handleCreateRepo)
	e.DELETE("/api/repos/delete", s.handleDeleteRepo)

	// metadata
	e.GET("/api/models/:ns/:name", s.handleRepoInfo)
	e.GET("/api/models/:ns/:name/revision/:rev", s.handleRepoInfo)

	// file transfer
	e.GET("/:ns/:name/resolve/:rev/*", s.handleResolve)
	e.POST("/api/models/:ns/:name/upload/:rev/*", s.handleUpload)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return writeJSON(c, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateRepo(c *echo.Context) error {
	if !s.authorized(c) {
		return writeError(c, http.StatusUnauthorized, "invalid or missing token")
	}
	req, err := decodeJSON[createRepoRequest](c.Request().Body)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err.Error())
	}
	if err := s.store.CreateRepo(req.Name, req.Private); err != nil {
		return writeStoreError(c, err)
	}
	s.log.Info("repo created", "repo", req.Name, "private", req.Private)
	return writeJSON(c, http.StatusOK, createRepoResponse{Name: req.Name, URL: "/" + req.Name})
}

func (s *Server) handleDeleteRepo(c *echo.Context) error {
	if !s.authorized(c) {
		return writeError(c, http.StatusUnauthorized, "invalid or missing token")
	}
	req, err := decodeJSON[deleteRepoRequest](c.Request().Body)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err.Error())
	}
	if err := s.store.DeleteRepo(req.Name); err != nil {
		return writeStoreError(c, err)
	}
	s.log.Info("repo deleted", "repo", req.Name)
	return writeJSON(c, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleRepoInfo(c *echo.Context) error {
	if !s.authorized(c) {
		return writeError(c, http.StatusUnauthorized, "invalid or missing token")
	}
	repoID := c.Param("ns") + "/" + c.Param("name")
	rec, err := s.store.RepoInfo(repoID, c.Param("rev"))
	if err != nil {
		return writeStoreError(c, err)
	}
	resp := repoInfoResponse{
		ID:        rec.ID,
		SHA:       rec.Commit,
		Private:   rec.Private,
		CreatedAt: rec.CreatedAt,
		Siblings:  make([]sibling, 0, len(rec.Files)),
	}
	for _, f := range rec.Files {
		resp.Siblings = append(resp.Siblings, sibling{Rfilename: f.Path, Size: f.Size})
	}
	return writeJSON(c, http.StatusOK, resp)
}

func (s *Server) handleResolve(c *echo.Context) error {
	if !s.authorized(c) {
		return writeError(c, http.StatusUnauthorized, "invalid or missing token")
	}
	repoID := c.Param("ns") + "/" + c.Param("name")
	p, err := s.store.Resolve(repoID, c.Param("rev"), c.Param("*"))
	if err != nil {
		return writeStoreError(c, err)
	}
	// ServeFile gets Range handling right, which download resume needs.
	http.ServeFile(c.Response(), c.Request(), p)
	return nil
}

func (s *Server) handleUpload(c *echo.Context) error {
	if !s.authorized(c) {
		return writeError(c, http.StatusUnauthorized, "invalid or missing token")
	}
	repoID := c.Param("ns") + "/" + c.Param("name")
	pathInRepo := c.Param("*")
	n, commit, err := s.store.Put(repoID, c.Param("rev"), pathInRepo, c.Request().Body)
	if err != nil {
		return writeStoreError(c, err)
	}
	s.log.Info("file uploaded",
		"repo", repoID,
		"path", pathInRepo,
		"size", n,
		"message", c.QueryParam("message"))
	return writeJSON(c, http.StatusOK, uploadResponse{Path: pathInRepo, Size: n, Commit: commit})
}

func (s *Server) authorized(c *echo.Context) bool {
	if s.token == "" {
		return true
	}
	auth := c.Request().Header.Get("Authorization")
	return subtle.ConstantTimeCompare([]byte(auth), []byte("Bearer "+s.token)) == 1
}

type createRepoRequest struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Private bool   `json:"private"`
}

type createRepoResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type deleteRepoRequest struct {
	Name string `json:"name"`
}

type sibling struct {
	Rfilename string `json:"rfilename"`
	Size      int64  `json:"size,omitempty"`
}

type repoInfoResponse struct {
	ID        string    `json:"id"`
	SHA       string    `json:"sha,omitempty"`
	Private   bool      `json:"private"`
	CreatedAt time.Time `json:"createdAt"`
	Siblings  []sibling `json:"siblings"`
}

type uploadResponse struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Commit string `json:"commit"`
}

func writeStoreError(c *echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrRepoExists):
		return writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, ErrRepoNotFound), errors.Is(err, ErrFileNotFound):
		return writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrBadPath):
		return writeError(c, http.StatusBadRequest, err.Error())
	default:
		return writeError(c, http.StatusInternalServerError, err.Error())
	}
}

func writeError(c *echo.Context, status int, msg string) error {
	return writeJSON(c, status, map[string]string{"error": msg})
}

func writeJSON(c *echo.Context, status int, v any) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	res.WriteHeader(status)
	return json.NewEncoder(res).Encode(v)
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
