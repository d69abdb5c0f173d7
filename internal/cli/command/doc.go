// Package command provides the tlsdir command-line interface.
//
// This package defines all commands using urfave/cli/v2:
//
//   - root.go: the application, running serve by default
//   - serve.go: the HTTPS file server
//   - probe.go: handshake and request against a running server
//   - config.go: effective configuration display and validation
//   - version.go: build information
//
// Commands write results to the application's Writer and logs to its
// ErrWriter, so they can be driven from tests.
package command
