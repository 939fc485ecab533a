package main

import (
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/hubkit/internal/logger"
	"github.com/samcharles93/hubkit/pkg/hub"
)

var (
	endpoint  string
	token     string
	cacheDir  string
	logLevel  string
	logFormat string
	cfgFile   string
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "endpoint",
			Usage:       "hub endpoint URL",
			Destination: &endpoint,
		},
		&cli.StringFlag{
			Name:        "token",
			Usage:       "access token for authenticated requests",
			Destination: &token,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config file",
			Destination: &cfgFile,
		},
	}
}

func cacheDirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "cache-dir",
		Usage:       "download cache directory",
		Destination: &cacheDir,
	}
}

func buildLog() logger.Logger {
	level := logger.ParseLevel(logLevel)
	if logFormat == "json" {
		return logger.JSON(os.Stderr, level)
	}
	return logger.Pretty(os.Stderr, level)
}

func buildClient() *hub.Client {
	opts := []hub.ClientOption{
		hub.WithLogger(buildLog().Slog()),
	}
	if endpoint != "" {
		opts = append(opts, hub.WithBaseURL(endpoint))
	}
	if token != "" {
		opts = append(opts, hub.WithToken(token))
	}
	if cacheDir != "" {
		opts = append(opts, hub.WithCacheDir(cacheDir))
	}
	return hub.NewClient(opts...)
}

// cacheRootDir resolves the cache root the way the client would, honoring
// the --cache-dir flag first.
func cacheRootDir() (string, error) {
	if cacheDir != "" {
		return cacheDir, nil
	}
	return hub.CacheRoot()
}
