// Package httpserver provides the HTTPS server for tlsdir.
//
// It uses the standard library net/http:
//
//   - Server: binds the listener, serves TLS from a tls.Config and shuts
//     down gracefully
//   - NewRouter: the middleware chain in front of the file handler
//     (Recover, RequestID, AccessLog, Metrics, RateLimit, Methods)
//   - NewMetricsRouter: /metrics and /healthz for the optional plain-HTTP
//     metrics listener
//
// Handshake failures reported by net/http are routed to the structured
// logger at debug level and counted through Config.OnHandshakeError.
package httpserver
