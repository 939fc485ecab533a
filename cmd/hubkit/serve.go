package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/hubkit/internal/hubd"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		root        string
		serveToken  string
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve a local hub from a directory tree",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:9876",
				Destination: &addr,
			},
			&cli.StringFlag{
				Name:        "root",
				Usage:       "directory to store repositories in",
				Destination: &root,
			},
			&cli.StringFlag{
				Name:        "serve-token",
				Usage:       "bearer token clients must present",
				Destination: &serveToken,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := loadConfig()
			applyConfig(cmd, cfg)
			if cfg.ServerAddress != "" && !cmd.IsSet("addr") {
				addr = cfg.ServerAddress
			}
			if cfg.ServerRoot != "" && !cmd.IsSet("root") {
				root = cfg.ServerRoot
			}
			if root == "" {
				root = defaultStoreRoot()
			}
			log := buildLog()
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := hubd.NewStore(root)
			if err != nil {
				return err
			}
			server := hubd.NewServer(store, serveToken, log)
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting hub server", "address", addr, "root", store.Root())
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}

func defaultStoreRoot() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "hubd-data"
	}
	return filepath.Join(dir, "hubkit", "hubd")
}
