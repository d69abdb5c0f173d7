package connection

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a probe when the caller sets none.
const DefaultTimeout = 10 * time.Second

// ErrNoPeerCertificate is returned when the server presented no certificate.
var ErrNoPeerCertificate = errors.New("connection: server presented no certificate")

// ProbeConfig describes one probe.
type ProbeConfig struct {
	// Addr is host:port or an https:// URL.
	Addr string

	// Path is requested after the handshake. Defaults to "/".
	Path string

	// TLS is the client configuration (roots, server name, verification).
	TLS *tls.Config

	Timeout time.Duration
}

// ProbeResult is what a probe observed.
type ProbeResult struct {
	URL         string        `json:"url" yaml:"url"`
	TLSVersion  string        `json:"tls_version" yaml:"tls_version"`
	CipherSuite string        `json:"cipher_suite" yaml:"cipher_suite"`
	ALPN        string        `json:"alpn" yaml:"alpn"`
	Verified    bool          `json:"verified" yaml:"verified"`
	Subject     string        `json:"subject" yaml:"subject"`
	Issuer      string        `json:"issuer" yaml:"issuer"`
	DNSNames    []string      `json:"dns_names" yaml:"dns_names"`
	NotAfter    time.Time     `json:"not_after" yaml:"not_after"`
	Status      int           `json:"status" yaml:"status"`
	ContentType string        `json:"content_type" yaml:"content_type"`
	Bytes       int64         `json:"bytes" yaml:"bytes"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
}

// OK reports whether the response status is 2xx or 3xx.
func (r *ProbeResult) OK() bool {
	return r.Status >= 200 && r.Status < 400
}

// Probe performs a TLS handshake and a GET request against cfg.Addr.
func Probe(ctx context.Context, cfg ProbeConfig) (*ProbeResult, error) {
	target, err := probeURL(cfg.Addr, cfg.Path)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	tlsCfg := cfg.TLS
	if tlsCfg == nil {
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	transport := &http.Transport{
		TLSClientConfig:     tlsCfg,
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: timeout,
		DisableKeepAlives:   true,
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Timeout:   timeout,
		Transport: transport,
		// report redirects instead of following them
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", target, err)
	}
	defer resp.Body.Close()

	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	result := &ProbeResult{
		URL:         target,
		Verified:    !tlsCfg.InsecureSkipVerify,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Bytes:       n,
		Duration:    time.Since(start).Round(time.Millisecond),
	}

	state := resp.TLS
	if state == nil {
		return nil, fmt.Errorf("probe %s: response was not received over TLS", target)
	}
	result.TLSVersion = tls.VersionName(state.Version)
	result.CipherSuite = tls.CipherSuiteName(state.CipherSuite)
	result.ALPN = state.NegotiatedProtocol
	if result.ALPN == "" {
		result.ALPN = "http/1.1"
	}

	if len(state.PeerCertificates) == 0 {
		return result, ErrNoPeerCertificate
	}
	leaf := state.PeerCertificates[0]
	result.Subject = leaf.Subject.String()
	result.Issuer = leaf.Issuer.String()
	result.DNSNames = leaf.DNSNames
	result.NotAfter = leaf.NotAfter

	return result, nil
}

// probeURL builds the request URL from an address and a path.
func probeURL(addr, path string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", errors.New("connection: empty address")
	}
	if strings.HasPrefix(addr, "http://") {
		return "", fmt.Errorf("connection: %s is not an https address", addr)
	}
	addr = strings.TrimPrefix(addr, "https://")
	addr = strings.TrimSuffix(addr, "/")

	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(strings.Trim(addr, "[]"), "443")
	}

	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "https://" + addr + path, nil
}
