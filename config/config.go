// Package config reads the server's environment-driven startup
// configuration directly from process environment variables, with no
// config file and nothing read back after startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"laughprop/dispatcher"
)

// UpstreamMode selects how the image dispatcher's upstream pool is built.
type UpstreamMode string

const (
	UpstreamLocal  UpstreamMode = "local"
	UpstreamRemote UpstreamMode = "remote"
)

// Config is the server's full startup configuration, read once from the
// environment.
type Config struct {
	Port          int
	UpstreamMode  UpstreamMode
	UpstreamAddrs []dispatcher.Address
	LogLevel      string
	SentryDSN     string
	DevMode       bool

	TextModel      string
	DepthModel     string
	Sampler        string
	PlaceholderDir string
	ScriptDir      string
}

// Load reads PORT_BACKEND, UPSTREAM_MODE, UPSTREAM_HOSTS, LOG_LEVEL,
// SENTRY_DSN, DEV_MODE, TEXT_MODEL, DEPTH_MODEL, SAMPLER, PLACEHOLDER_DIR
// and SCRIPT_DIR from the environment. Everything past PORT_BACKEND has a
// usable default, so a bare-minimum deployment only needs the one.
func Load() (*Config, error) {
	portStr, err := requireEnv("PORT_BACKEND")
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT_BACKEND %q: %w", portStr, err)
	}

	mode := UpstreamMode(orDefault(os.Getenv("UPSTREAM_MODE"), string(UpstreamLocal)))
	var addrs []dispatcher.Address
	switch mode {
	case UpstreamLocal:
		addrs = []dispatcher.Address{{Host: "127.0.0.1", Port: port + 1}}
	case UpstreamRemote:
		hosts, err := requireEnv("UPSTREAM_HOSTS")
		if err != nil {
			return nil, err
		}
		addrs, err = parseHosts(hosts)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("invalid UPSTREAM_MODE %q: must be %q or %q", mode, UpstreamLocal, UpstreamRemote)
	}

	return &Config{
		Port:          port,
		UpstreamMode:  mode,
		UpstreamAddrs: addrs,
		LogLevel:      orDefault(os.Getenv("LOG_LEVEL"), "info"),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
		DevMode:       os.Getenv("DEV_MODE") == "true",

		TextModel:      orDefault(os.Getenv("TEXT_MODEL"), "sd-v1-5"),
		DepthModel:     orDefault(os.Getenv("DEPTH_MODEL"), "stable-diffusion-2-depth"),
		Sampler:        orDefault(os.Getenv("SAMPLER"), "Euler a"),
		PlaceholderDir: os.Getenv("PLACEHOLDER_DIR"),
		ScriptDir:      os.Getenv("SCRIPT_DIR"),
	}, nil
}

func parseHosts(csv string) ([]dispatcher.Address, error) {
	parts := strings.Split(csv, ",")
	addrs := make([]dispatcher.Address, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		host, portStr, ok := strings.Cut(p, ":")
		if !ok {
			return nil, fmt.Errorf("invalid UPSTREAM_HOSTS entry %q: expected host:port", p)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid UPSTREAM_HOSTS entry %q: %w", p, err)
		}
		addrs = append(addrs, dispatcher.Address{Host: host, Port: port})
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("UPSTREAM_HOSTS did not contain any host:port entries")
	}
	return addrs, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func requireEnv(name string) (string, error) {
	v := os.Getenv(name)
	if v == "" {
		return "", fmt.Errorf("missing required environment variable %s", name)
	}
	return v, nil
}
