package command

import (
	"bufio"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/tlsdir/internal/infra/shutdown"
	"github.com/yndnr/tlsdir/internal/infra/tlsroots/tlstest"
	"github.com/yndnr/tlsdir/internal/server/config"
	"github.com/yndnr/tlsdir/internal/telemetry/logger"
)

type runningServer struct {
	addr   string
	kp     *tlstest.KeyPair
	stdout *syncBuffer
	stderr *syncBuffer
	sh     *shutdown.Handler
	done   chan error
}

// stop triggers shutdown and returns runServer's result.
func (s *runningServer) stop(t *testing.T) error {
	t.Helper()
	s.sh.Trigger()
	select {
	case err := <-s.done:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
		return nil
	}
}

func (s *runningServer) client() *http.Client {
	return &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: s.kp.Pool(), MinVersion: tls.VersionTLS12},
		},
	}
}

func testServerConfig(t *testing.T) (*config.ServerConfig, *tlstest.KeyPair) {
	t.Helper()
	root, kp := testFiles(t)

	cfg := config.Default()
	cfg.Server.Bind = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.TLS.CertFile = kp.CertFile
	cfg.TLS.KeyFile = kp.KeyFile
	cfg.Static.Root = root
	return cfg, kp
}

func startServer(t *testing.T, cfg *config.ServerConfig, kp *tlstest.KeyPair, configFile string) *runningServer {
	t.Helper()

	s := &runningServer{
		kp:     kp,
		stdout: &syncBuffer{},
		stderr: &syncBuffer{},
		sh:     shutdown.NewHandler(cfg.Server.ShutdownTimeout),
		done:   make(chan error, 1),
	}
	go func() {
		s.done <- runServer(cfg, serveOptions{
			Stdout:     s.stdout,
			Stderr:     s.stderr,
			ConfigFile: configFile,
			Shutdown:   s.sh,
		})
	}()

	const prefix = "Starting HTTPS server on "
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case err := <-s.done:
			t.Fatalf("runServer() returned early: %v\n%s", err, s.stderr.String())
		default:
		}
		if line := firstLine(s.stdout.String()); strings.HasPrefix(line, prefix) {
			s.addr = strings.TrimSuffix(strings.TrimPrefix(line, prefix), "...")
			return s
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no startup line; stderr:\n%s", s.stderr.String())
	return nil
}

func firstLine(s string) string {
	line, _, found := strings.Cut(s, "\n")
	if !found {
		return ""
	}
	return line
}

// logEntry returns the first JSON log entry with the given message.
func logEntry(logs, msg string) map[string]any {
	sc := bufio.NewScanner(strings.NewReader(logs))
	for sc.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			continue
		}
		if entry["msg"] == msg {
			return entry
		}
	}
	return nil
}

func TestRunServer(t *testing.T) {
	cfg, kp := testServerConfig(t)
	s := startServer(t, cfg, kp, "")

	if _, _, err := net.SplitHostPort(s.addr); err != nil {
		t.Fatalf("startup line address %q: %v", s.addr, err)
	}
	if strings.Contains(s.stdout.String(), `"level"`) {
		t.Error("structured logs must not go to stdout")
	}

	client := s.client()
	resp, err := client.Get("https://" + s.addr + "/")
	if err != nil {
		t.Fatalf("GET / error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "<h1>tlsdir</h1>" {
		t.Errorf("GET / = %d %q", resp.StatusCode, body)
	}

	resp, err = client.Get("https://" + s.addr + "/docs/a.txt")
	if err != nil {
		t.Fatalf("GET /docs/a.txt error = %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "hello" {
		t.Errorf("body = %q, want hello", body)
	}

	if err := s.stop(t); err != nil {
		t.Errorf("runServer() error = %v", err)
	}
	if logEntry(s.stderr.String(), "server stopped gracefully") == nil {
		t.Errorf("missing shutdown log:\n%s", s.stderr.String())
	}
	if !strings.Contains(s.stderr.String(), "/docs/a.txt") {
		t.Errorf("access log missing:\n%s", s.stderr.String())
	}

	if _, err := client.Get("https://" + s.addr + "/"); err == nil {
		t.Error("server should not accept requests after shutdown")
	}
}

func TestRunServer_MetricsListener(t *testing.T) {
	cfg, kp := testServerConfig(t)
	cfg.Metrics.Addr = "127.0.0.1:0"
	s := startServer(t, cfg, kp, "")
	defer s.stop(t)

	// generate a request so the request counter exists
	resp, err := s.client().Get("https://" + s.addr + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	entry := logEntry(s.stderr.String(), "metrics server listening")
	if entry == nil {
		t.Fatalf("no metrics listener log:\n%s", s.stderr.String())
	}
	maddr, _ := entry["addr"].(string)

	resp, err = http.Get("http://" + maddr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	for _, want := range []string{
		"tlsdir_http_requests_total",
		"tlsdir_build_info",
		"tlsdir_tls_certificate_not_after_seconds",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %s", want)
		}
	}

	// the TLS listener never serves metrics
	resp, err = s.client().Get("https://" + s.addr + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET https /metrics = %d, want 404", resp.StatusCode)
	}
}

func TestRunServer_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	cfg, _ := testServerConfig(t)
	cfg.Server.Port = ln.Addr().(*net.TCPAddr).Port

	var stdout, stderr syncBuffer
	err = runServer(cfg, serveOptions{Stdout: &stdout, Stderr: &stderr})
	if err == nil || !strings.Contains(err.Error(), "listen") {
		t.Errorf("runServer() error = %v, want listen error", err)
	}
	if stdout.String() != "" {
		t.Errorf("stdout = %q, want no startup line", stdout.String())
	}
}

func TestRunServer_MismatchedKeyPair(t *testing.T) {
	cfg, _ := testServerConfig(t)
	other := tlstest.WriteKeyPair(t, t.TempDir())
	cfg.TLS.KeyFile = other.KeyFile

	var stdout, stderr syncBuffer
	err := runServer(cfg, serveOptions{Stdout: &stdout, Stderr: &stderr})
	if err == nil || !strings.Contains(err.Error(), "load certificate") {
		t.Errorf("runServer() error = %v, want load certificate error", err)
	}
}

func TestRunServer_MissingRoot(t *testing.T) {
	cfg, _ := testServerConfig(t)
	cfg.Static.Root = filepath.Join(t.TempDir(), "missing")

	var stdout, stderr syncBuffer
	err := runServer(cfg, serveOptions{Stdout: &stdout, Stderr: &stderr})
	if err == nil || !strings.Contains(err.Error(), "document root") {
		t.Errorf("runServer() error = %v, want document root error", err)
	}
}

func TestRunServer_ConfigReload(t *testing.T) {
	cfg, kp := testServerConfig(t)
	cfg.Log.Level = "info"
	defer logger.SetLevel("info")

	path := filepath.Join(t.TempDir(), "tlsdir.yaml")
	write := func(level string) {
		content := "server:\n  bind: 127.0.0.1\n  port: 8443\n" +
			"tls:\n  cert_file: " + kp.CertFile + "\n  key_file: " + kp.KeyFile + "\n" +
			"static:\n  root: " + cfg.Static.Root + "\n" +
			"log:\n  level: " + level + "\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("info")

	s := startServer(t, cfg, kp, path)
	defer s.stop(t)

	write("error")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if logger.GetLevel() == "error" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("log level = %q after reload, want error\n%s", logger.GetLevel(), s.stderr.String())
}

func TestProbeCommand(t *testing.T) {
	cfg, kp := testServerConfig(t)
	s := startServer(t, cfg, kp, "")
	defer s.stop(t)

	var stdout, stderr syncBuffer
	app := testApp(&stdout, &stderr)

	err := app.Run([]string{"tlsdir", "probe", "--addr", s.addr, "--ca", kp.CertFile, "--path", "/docs/a.txt"})
	if err != nil {
		t.Fatalf("probe error = %v", err)
	}

	out := stdout.String()
	for _, want := range []string{"tls_version", "TLS 1.", "cipher_suite", "status", "200", "CN=localhost"} {
		if !strings.Contains(out, want) {
			t.Errorf("probe output missing %q:\n%s", want, out)
		}
	}
}

func TestProbeCommand_NotFound(t *testing.T) {
	cfg, kp := testServerConfig(t)
	s := startServer(t, cfg, kp, "")
	defer s.stop(t)

	var stdout, stderr syncBuffer
	app := testApp(&stdout, &stderr)

	err := app.Run([]string{"tlsdir", "probe", "--addr", s.addr, "--ca", kp.CertFile, "--path", "/missing", "-o", "json"})
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("probe error = %v, want ErrUnexpectedStatus", err)
	}

	var res map[string]any
	if err := json.Unmarshal([]byte(stdout.String()), &res); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if res["status"] != float64(404) {
		t.Errorf("status = %v, want 404", res["status"])
	}
}

func TestProbeCommand_Untrusted(t *testing.T) {
	cfg, kp := testServerConfig(t)
	s := startServer(t, cfg, kp, "")
	defer s.stop(t)

	var stdout, stderr syncBuffer
	app := testApp(&stdout, &stderr)

	if err := app.Run([]string{"tlsdir", "probe", "--addr", s.addr}); err == nil {
		t.Error("probe should fail without trusting the self-signed certificate")
	}

	if err := app.Run([]string{"tlsdir", "probe", "--addr", s.addr, "--insecure"}); err != nil {
		t.Errorf("probe --insecure error = %v", err)
	}
}

func TestCAPool(t *testing.T) {
	dir := t.TempDir()
	kp := tlstest.WriteKeyPair(t, dir)

	if _, err := caPool([]string{kp.CertFile}); err != nil {
		t.Errorf("caPool(file) error = %v", err)
	}
	if _, err := caPool([]string{dir}); err != nil {
		t.Errorf("caPool(dir) error = %v", err)
	}
	if _, err := caPool([]string{t.TempDir()}); err == nil {
		t.Error("caPool(empty dir) should fail")
	}
	if _, err := caPool([]string{filepath.Join(dir, "missing.pem")}); err == nil {
		t.Error("caPool(missing) should fail")
	}
}
