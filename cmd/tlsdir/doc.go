// Package main provides the entry point for tlsdir.
//
// tlsdir serves a directory tree read-only over HTTPS:
//
//   - GET and HEAD only, everything else answers 501
//   - index files, directory listings, conditional and range requests
//   - certificate hot reload and optional Prometheus metrics
//
// Usage:
//
//	tlsdir --cert fullchain.pem --key privkey.pem --root ./public --port 8443
//	tlsdir probe --addr localhost:8443 --ca fullchain.pem
//	tlsdir config show --config /etc/tlsdir/tlsdir.yaml
package main
