package connection

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestProbeURL(t *testing.T) {
	tests := []struct {
		addr, path string
		want       string
		wantErr    bool
	}{
		{"localhost:8443", "", "https://localhost:8443/", false},
		{"localhost", "/a/b.txt", "https://localhost:443/a/b.txt", false},
		{"https://example.com:9443/", "x", "https://example.com:9443/x", false},
		{"::1", "/", "https://[::1]:443/", false},
		{"[::1]:8443", "/", "https://[::1]:8443/", false},
		{"http://example.com", "/", "", true},
		{"", "/", "", true},
	}
	for _, tt := range tests {
		got, err := probeURL(tt.addr, tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("probeURL(%q, %q) error = %v, wantErr %v", tt.addr, tt.path, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("probeURL(%q, %q) = %q, want %q", tt.addr, tt.path, got, tt.want)
		}
	}
}

func newTLSServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "hello")
	}))
	srv.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	srv.StartTLS()
	t.Cleanup(srv.Close)
	return srv
}

func TestProbe(t *testing.T) {
	srv := newTLSServer(t)
	addr := strings.TrimPrefix(srv.URL, "https://")

	tlsCfg := srv.Client().Transport.(*http.Transport).TLSClientConfig.Clone()

	res, err := Probe(context.Background(), ProbeConfig{Addr: addr, Path: "/a", TLS: tlsCfg, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}

	if !res.OK() || res.Status != http.StatusOK {
		t.Errorf("Status = %d", res.Status)
	}
	if res.Bytes != 5 {
		t.Errorf("Bytes = %d, want 5", res.Bytes)
	}
	if !strings.HasPrefix(res.TLSVersion, "TLS 1.") {
		t.Errorf("TLSVersion = %q", res.TLSVersion)
	}
	if res.CipherSuite == "" || res.Subject == "" || res.NotAfter.IsZero() {
		t.Errorf("incomplete result: %+v", res)
	}
	if !res.Verified {
		t.Error("Verified should be true with a trusted root")
	}
}

func TestProbe_NotFound(t *testing.T) {
	srv := newTLSServer(t)
	tlsCfg := srv.Client().Transport.(*http.Transport).TLSClientConfig.Clone()

	res, err := Probe(context.Background(), ProbeConfig{Addr: srv.URL, Path: "/missing", TLS: tlsCfg})
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if res.OK() {
		t.Errorf("OK() = true for status %d", res.Status)
	}
}

func TestProbe_UntrustedCertificate(t *testing.T) {
	srv := newTLSServer(t)

	_, err := Probe(context.Background(), ProbeConfig{
		Addr: srv.URL,
		TLS:  &tls.Config{MinVersion: tls.VersionTLS12},
	})
	if err == nil {
		t.Fatal("Probe() should fail against an untrusted certificate")
	}
}

func TestProbe_Insecure(t *testing.T) {
	srv := newTLSServer(t)

	res, err := Probe(context.Background(), ProbeConfig{
		Addr: srv.URL,
		TLS:  &tls.Config{InsecureSkipVerify: true},
	})
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if res.Verified {
		t.Error("Verified should be false when verification is skipped")
	}
}

func TestProbe_PlainHTTPServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := Probe(context.Background(), ProbeConfig{
		Addr:    strings.TrimPrefix(srv.URL, "http://"),
		TLS:     &tls.Config{InsecureSkipVerify: true},
		Timeout: 2 * time.Second,
	})
	if err == nil {
		t.Error("Probe() should fail against a plain HTTP server")
	}
}
