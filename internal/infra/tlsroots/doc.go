// Package tlsroots provides TLS certificate management for tlsdir.
//
// This package handles TLS certificate loading and management:
//
//   - watcher.go: server key pair loading and hot reload via fsnotify
//   - server.go: server-side tls.Config with modern defaults
//   - roots.go: system and custom CA pools for the probe client
package tlsroots
