// Package config defines the server configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultBind              = ""
	DefaultPort              = 443
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20
	DefaultShutdownTimeout   = 30 * time.Second

	DefaultCertFile      = "fullchain.pem"
	DefaultKeyFile       = "privkey.pem"
	DefaultTLSMinVersion = "1.2"

	DefaultRoot = "public"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// DefaultIndexFiles are tried in order when a directory is requested.
var DefaultIndexFiles = []string{"index.html", "index.htm"}

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Bind:              DefaultBind,
			Port:              DefaultPort,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
			IdleTimeout:       DefaultIdleTimeout,
			MaxHeaderBytes:    DefaultMaxHeaderBytes,
			ShutdownTimeout:   DefaultShutdownTimeout,
		},
		TLS: TLSSection{
			CertFile:   DefaultCertFile,
			KeyFile:    DefaultKeyFile,
			MinVersion: DefaultTLSMinVersion,
			Reload:     true,
		},
		Static: StaticSection{
			Root:       DefaultRoot,
			IndexFiles: append([]string(nil), DefaultIndexFiles...),
			Listing:    true,
			ETag:       true,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
			Access: true,
		},
	}
}
