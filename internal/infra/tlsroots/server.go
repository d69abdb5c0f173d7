package tlsroots

import (
	"crypto/tls"
	"fmt"
)

// serverCipherSuites are the TLS 1.2 suites offered by the server: ECDHE key
// exchange with AEAD ciphers only. TLS 1.3 suites are not configurable.
var serverCipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
}

// ParseMinVersion converts "1.2" or "1.3" into a tls version constant.
func ParseMinVersion(v string) (uint16, error) {
	switch v {
	case "1.2", "":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("tlsroots: unsupported minimum TLS version %q", v)
	}
}

// ServerTLSConfig returns the server-side TLS configuration. Certificates
// are obtained through getCert on every handshake so that a reloaded key
// pair is picked up without restarting the listener.
func ServerTLSConfig(getCert func(*tls.ClientHelloInfo) (*tls.Certificate, error), minVersion uint16) *tls.Config {
	return &tls.Config{
		GetCertificate:   getCert,
		MinVersion:       minVersion,
		CipherSuites:     serverCipherSuites,
		CurvePreferences: []tls.CurveID{tls.X25519, tls.CurveP256},
	}
}
