// Package config defines the server configuration structure.
package config

import (
	"net"
	"strconv"
	"time"
)

// ServerConfig is the root configuration for tlsdir.
//
// It is built once at startup and never mutated afterwards.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server" yaml:"server"`
	TLS     TLSSection     `koanf:"tls" yaml:"tls"`
	Static  StaticSection  `koanf:"static" yaml:"static"`
	Metrics MetricsSection `koanf:"metrics" yaml:"metrics"`
	Log     LogSection     `koanf:"log" yaml:"log"`
}

// ServerSection configures the listening socket and connection limits.
type ServerSection struct {
	// Bind is the interface address; empty means all interfaces.
	Bind string `koanf:"bind" yaml:"bind"`
	Port int    `koanf:"port" yaml:"port"`

	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" yaml:"read_header_timeout"`
	ReadTimeout       time.Duration `koanf:"read_timeout" yaml:"read_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout" yaml:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout" yaml:"idle_timeout"`
	MaxHeaderBytes    int           `koanf:"max_header_bytes" yaml:"max_header_bytes"`

	// RateLimit is the per-client request rate (requests/second). 0 disables it.
	RateLimit int `koanf:"rate_limit" yaml:"rate_limit"`
	// RateBurst defaults to RateLimit when 0.
	RateBurst int `koanf:"rate_burst" yaml:"rate_burst"`

	// ShutdownTimeout bounds connection draining on SIGINT/SIGTERM.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// TLSSection configures the server certificate.
type TLSSection struct {
	CertFile   string `koanf:"cert_file" yaml:"cert_file"`
	KeyFile    string `koanf:"key_file" yaml:"key_file"`
	MinVersion string `koanf:"min_version" yaml:"min_version"`
	// Reload watches CertFile and KeyFile and swaps the key pair on change.
	Reload bool `koanf:"reload" yaml:"reload"`
}

// StaticSection configures the document root.
type StaticSection struct {
	Root       string   `koanf:"root" yaml:"root"`
	IndexFiles []string `koanf:"index_files" yaml:"index_files"`
	Listing    bool     `koanf:"listing" yaml:"listing"`
	ETag       bool     `koanf:"etag" yaml:"etag"`
}

// MetricsSection configures the optional Prometheus listener.
type MetricsSection struct {
	// Addr is a plain HTTP address serving /metrics. Empty disables it.
	Addr string `koanf:"addr" yaml:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
	Access bool   `koanf:"access" yaml:"access"`
}

// ListenAddr returns the host:port the TLS listener binds to.
func (c *ServerConfig) ListenAddr() string {
	return net.JoinHostPort(c.Server.Bind, strconv.Itoa(c.Server.Port))
}
