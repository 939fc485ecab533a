package hub

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/samcharles93/hubkit/pkg/pretrained"
)

var (
	// ErrRepoNotFound, ErrFileNotFound and ErrOffline all match
	// pretrained.ErrEntryNotFound: an entry that does not exist, or cannot
	// exist locally with network access disabled, reads as the no-config
	// state to the loader.
	ErrRepoNotFound = fmt.Errorf("hub: repository not found: %w", pretrained.ErrEntryNotFound)
	ErrFileNotFound = fmt.Errorf("hub: file not found: %w", pretrained.ErrEntryNotFound)
	ErrOffline      = fmt.Errorf("hub: not cached and network access disabled: %w", pretrained.ErrEntryNotFound)

	ErrUnauthorized  = errors.New("hub: unauthorized")
	ErrRateLimited   = errors.New("hub: rate limited")
	ErrInvalidRepoID = errors.New("hub: invalid repository id")
)

// maxErrorBody caps how much of an error response is kept for diagnostics.
const maxErrorBody = 2048

// StatusError reports a non-2xx hub response. It unwraps to one of the
// package sentinels when the status code maps to one.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string

	sentinel error
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("hub: %s %s: status %d", e.Method, e.URL, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *StatusError) Unwrap() error { return e.sentinel }

// responseError consumes and closes resp.Body and maps the status code to a
// sentinel-wrapped StatusError. notFound names the sentinel for 404, which
// depends on what was being asked for.
func responseError(resp *http.Response, notFound error) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()

	var sentinel error
	switch resp.StatusCode {
	case http.StatusNotFound:
		sentinel = notFound
	case http.StatusUnauthorized, http.StatusForbidden:
		sentinel = ErrUnauthorized
	case http.StatusTooManyRequests:
		sentinel = ErrRateLimited
	}
	return &StatusError{
		Method:   resp.Request.Method,
		URL:      resp.Request.URL.String(),
		Code:     resp.StatusCode,
		Body:     strings.TrimSpace(string(body)),
		sentinel: sentinel,
	}
}

// ValidateRepoID enforces the namespace/name repository id shape.
func ValidateRepoID(id string) error {
	ns, name, ok := strings.Cut(id, "/")
	if !ok || ns == "" || name == "" {
		return fmt.Errorf("%w: %q (want namespace/name)", ErrInvalidRepoID, id)
	}
	for _, part := range []string{ns, name} {
		if strings.ContainsAny(part, "/\\") || !validRepoPart(part) {
			return fmt.Errorf("%w: %q", ErrInvalidRepoID, id)
		}
	}
	return nil
}

func validRepoPart(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}
