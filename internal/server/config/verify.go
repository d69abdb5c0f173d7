// Package config defines the server configuration structure.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	// ErrInvalidPort is returned when server.port is outside 1..65535.
	ErrInvalidPort = errors.New("config: server.port must be between 1 and 65535")

	// ErrMissingTLSFile is returned when tls.cert_file or tls.key_file is empty.
	ErrMissingTLSFile = errors.New("config: tls.cert_file and tls.key_file are required")

	// ErrInvalidRoot is returned when static.root is not a readable directory.
	ErrInvalidRoot = errors.New("config: static.root must be a readable directory")
)

// Verify validates the configuration.
//
// It checks that the TLS files and the document root exist; whether the
// key pair actually matches is checked when it is loaded.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyTLS(&cfg.TLS); err != nil {
		return err
	}
	if err := verifyStatic(&cfg.Static); err != nil {
		return err
	}
	if err := verifyLog(&cfg.Log); err != nil {
		return err
	}
	if cfg.Metrics.Addr != "" && cfg.Metrics.Addr == cfg.ListenAddr() {
		return fmt.Errorf("config: metrics.addr %q collides with the TLS listener", cfg.Metrics.Addr)
	}
	return nil
}

func verifyServer(cfg *ServerSection) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, cfg.Port)
	}
	if cfg.ReadHeaderTimeout < 0 || cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 || cfg.IdleTimeout < 0 {
		return errors.New("config: server timeouts must not be negative")
	}
	if cfg.MaxHeaderBytes < 0 {
		return errors.New("config: server.max_header_bytes must not be negative")
	}
	if cfg.RateLimit < 0 || cfg.RateBurst < 0 {
		return errors.New("config: server.rate_limit and server.rate_burst must not be negative")
	}
	return nil
}

func verifyTLS(cfg *TLSSection) error {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return ErrMissingTLSFile
	}
	for _, f := range []string{cfg.CertFile, cfg.KeyFile} {
		fi, err := os.Stat(f)
		if err != nil {
			return fmt.Errorf("config: tls file: %w", err)
		}
		if fi.IsDir() {
			return fmt.Errorf("config: tls file %s is a directory", f)
		}
	}
	switch cfg.MinVersion {
	case "1.2", "1.3":
	default:
		return fmt.Errorf("config: tls.min_version must be 1.2 or 1.3, got %q", cfg.MinVersion)
	}
	return nil
}

func verifyStatic(cfg *StaticSection) error {
	if cfg.Root == "" {
		return fmt.Errorf("%w: static.root is empty", ErrInvalidRoot)
	}
	fi, err := os.Stat(cfg.Root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, cfg.Root)
	}
	d, err := os.Open(cfg.Root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	defer d.Close()
	if _, err := d.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}

	for _, name := range cfg.IndexFiles {
		if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
			return fmt.Errorf("config: invalid static.index_files entry %q", name)
		}
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: unknown log.level %q", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "", "json", "text", "console":
	default:
		return fmt.Errorf("config: unknown log.format %q", cfg.Format)
	}
	return nil
}
