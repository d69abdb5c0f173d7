// Package buildinfo exposes version information for tlsdir.
//
// Version, Commit and BuildTime are injected at link time:
//
//	go build -ldflags "-X github.com/yndnr/tlsdir/internal/infra/buildinfo.Version=v1.0.0"
//
// When they are left at their defaults, Get falls back to the module
// and VCS data recorded by the Go toolchain.
package buildinfo
