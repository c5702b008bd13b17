package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
)

// ReservedPaths are served by fixed HTTP routes and cannot host the stream.
var ReservedPaths = []string{"/", "/robots", "/version"}

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.ShutdownTimeout < 0 {
		return errors.New("server.shutdown_timeout must be >= 0")
	}

	if c.Store.Path == "" {
		return errors.New("store.path is required")
	}

	if err := validateStreamPath(c.Stream.Path); err != nil {
		return err
	}
	if c.Stream.Interval <= 0 {
		return fmt.Errorf("stream.interval must be > 0, got %v", c.Stream.Interval)
	}
	if c.Stream.WriteTimeout <= 0 {
		return fmt.Errorf("stream.write_timeout must be > 0, got %v", c.Stream.WriteTimeout)
	}
	if c.Stream.ReadLimit < 0 {
		return errors.New("stream.read_limit must be >= 0")
	}

	for i, o := range c.CORS.AllowedOrigins {
		if strings.TrimSpace(o) == "" {
			return fmt.Errorf("cors.allowed_origins[%d] is empty", i)
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return errors.New("logging rotation limits must be >= 0")
	}

	return nil
}

// validateStreamPath rejects paths that would collide with a fixed route or
// be read as a ServeMux wildcard.
func validateStreamPath(p string) error {
	if !strings.HasPrefix(p, "/") {
		return fmt.Errorf("stream.path must start with /, got %q", p)
	}
	if strings.ContainsAny(p, "{} \t") {
		return fmt.Errorf("stream.path must not contain wildcards or spaces, got %q", p)
	}
	if slices.Contains(ReservedPaths, path.Clean(p)) {
		return fmt.Errorf("stream.path %q collides with a fixed route", p)
	}
	return nil
}
