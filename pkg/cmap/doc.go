// Package cmap provides a string-keyed concurrent map split into shards.
//
// Each shard has its own RWMutex, so lookups for different keys rarely
// contend. tlsdir uses it for per-client state touched on every request,
// such as rate limiters keyed by client IP.
//
// Usage:
//
//	m := cmap.New[*clientLimiter]()
//	lim, _ := m.GetOrCreate(ip, newLimiter)
//	m.DeleteFunc(func(ip string, l *clientLimiter) bool { return l.idle() })
package cmap
