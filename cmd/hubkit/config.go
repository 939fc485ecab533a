package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/hubkit/pkg/hub"
)

// Config represents the hubkit configuration file
// (~/.config/hubkit/config.yaml). Flags beat environment variables beat
// this file.
type Config struct {
	Endpoint  string `yaml:"endpoint"`
	Token     string `yaml:"token"`
	CacheDir  string `yaml:"cache_dir"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
	ServerRoot    string `yaml:"server_root"`
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "hubkit", "config.yaml")
}

// loadConfig reads the config file. Returns a zero Config if the file
// doesn't exist or doesn't parse.
func loadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}

// applyConfig fills in global settings from the config file when the
// corresponding CLI flag was not explicitly set. Endpoint, token and cache
// dir also yield to their environment variables; the cache dir watches both
// HF_HUB_CACHE and HF_HOME, since either resolves the cache root.
func applyConfig(c *cli.Command, cfg Config) {
	if cfg.Endpoint != "" && !c.IsSet("endpoint") && os.Getenv(hub.EnvEndpoint) == "" {
		endpoint = cfg.Endpoint
	}
	if cfg.Token != "" && !c.IsSet("token") && os.Getenv(hub.EnvToken) == "" {
		token = cfg.Token
	}
	if cfg.CacheDir != "" && !c.IsSet("cache-dir") && os.Getenv(hub.EnvHubCache) == "" && os.Getenv(hub.EnvHome) == "" {
		cacheDir = cfg.CacheDir
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}
