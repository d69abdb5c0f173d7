// Package connection dials a running tlsdir server over HTTPS and reports
// what the handshake and a single request negotiated. It backs the
// `tlsdir probe` command.
package connection
