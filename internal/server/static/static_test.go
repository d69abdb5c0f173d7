package static

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"testing/fstest"
	"time"
)

func TestContentType(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"index.html", "text/html"},
		{"a/b.txt", "text/plain"},
		{"style.css", "text/css"},
		{"logo.png", "image/png"},
		{"data.unknownext", "application/octet-stream"},
		{"Makefile", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ContentType(tt.name)
			if !strings.HasPrefix(got, tt.want) {
				t.Errorf("ContentType(%q) = %q, want prefix %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/", "/"},
		{"", "/"},
		{"a/b", "/a/b"},
		{"/a/b/", "/a/b"},
		{"/../../etc/passwd", "/etc/passwd"},
		{"/a/../../b", "/b"},
		{"//a//b", "/a/b"},
		{"/a/./b", "/a/b"},
	}
	for _, tt := range tests {
		if got := CleanPath(tt.in); got != tt.want {
			t.Errorf("CleanPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestETag(t *testing.T) {
	mod := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	fsys := fstest.MapFS{
		"a.txt": {Data: []byte("hello"), ModTime: mod},
		"b.txt": {Data: []byte("hello"), ModTime: mod},
		"c.txt": {Data: []byte("hello"), ModTime: mod.Add(time.Second)},
	}
	stat := func(name string) fs.FileInfo {
		fi, err := fs.Stat(fsys, name)
		if err != nil {
			t.Fatal(err)
		}
		return fi
	}

	a := ETag("/a.txt", stat("a.txt"))
	if !strings.HasPrefix(a, `W/"`) || !strings.HasSuffix(a, `"`) {
		t.Errorf("ETag() = %q, want weak validator", a)
	}
	if a != ETag("/a.txt", stat("a.txt")) {
		t.Error("ETag() should be stable")
	}
	if a == ETag("/b.txt", stat("b.txt")) {
		t.Error("ETag() should depend on the path")
	}
	if a == ETag("/a.txt", stat("c.txt")) {
		t.Error("ETag() should depend on the modification time")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fs.ErrNotExist, http.StatusNotFound},
		{ErrOutsideRoot, http.StatusNotFound},
		{&fs.PathError{Op: "open", Path: "x", Err: fs.ErrPermission}, http.StatusForbidden},
		{ErrInvalidPath, http.StatusBadRequest},
		{classify(&fs.PathError{Op: "openat", Path: "a\x00b", Err: syscall.EINVAL}), http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestHTMLLister(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"b.txt":        "b",
		"A.txt":        "a",
		"c d.txt":      "c",
		"<x>.txt":      "x",
		"sub/keep.txt": "k",
	})
	if err := os.Symlink("b.txt", filepath.Join(dir, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := (HTMLLister{}).RenderListing(&buf, "/docs/", entries); err != nil {
		t.Fatalf("RenderListing() error = %v", err)
	}
	body := buf.String()

	if !strings.Contains(body, "Directory listing for /docs/") {
		t.Error("missing title")
	}
	for _, want := range []string{
		`<a href="sub/">sub/</a>`,
		`<a href="link">link@</a>`,
		`<a href="c%20d.txt">c d.txt</a>`,
		`&lt;x&gt;.txt`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("listing missing %s\n%s", want, body)
		}
	}
	if strings.Contains(body, "<x>") {
		t.Error("names must be HTML escaped")
	}

	// case-insensitive order: <x>, A, b, c d, link, sub
	order := []string{"&lt;x&gt;.txt", "A.txt", "b.txt", "c d.txt", "link@", "sub/"}
	last := -1
	for _, name := range order {
		i := strings.Index(body, ">"+name+"<")
		if i < 0 {
			t.Fatalf("entry %q not found", name)
		}
		if i < last {
			t.Errorf("entry %q out of order", name)
		}
		last = i
	}
}

func TestFS_MapFS(t *testing.T) {
	fsys := fstest.MapFS{
		"index.html": {Data: []byte("<h1>hi</h1>")},
		"a/b.txt":    {Data: []byte("hello")},
	}
	r := NewFS(fsys)

	res, err := r.Resolve("/a/b.txt")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	defer res.Close()
	if res.IsDir() || res.Path != "/a/b.txt" {
		t.Errorf("Resolve() = %+v", res)
	}

	content, err := res.Content()
	if err != nil {
		t.Fatalf("Content() error = %v", err)
	}
	data, _ := io.ReadAll(content)
	if string(data) != "hello" {
		t.Errorf("content = %q", data)
	}

	dir, err := r.Resolve("/a/")
	if err != nil {
		t.Fatalf("Resolve(dir) error = %v", err)
	}
	defer dir.Close()
	entries, err := dir.ReadDir()
	if err != nil || len(entries) != 1 {
		t.Errorf("ReadDir() = %v, %v", entries, err)
	}

	if _, err := r.Resolve("/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Resolve(missing) error = %v, want not exist", err)
	}
}

func TestOpenRoot_Missing(t *testing.T) {
	if _, err := OpenRoot(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("OpenRoot() expected error for missing directory")
	}
}

func TestOpenRoot_SymlinkEscape(t *testing.T) {
	outside := t.TempDir()
	writeTree(t, outside, map[string]string{"secret.txt": "secret"})

	root := t.TempDir()
	if err := os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(root, "escape.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "outdir")); err != nil {
		t.Fatal(err)
	}

	r, err := OpenRoot(root)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	for _, p := range []string{"/escape.txt", "/outdir/secret.txt"} {
		if _, err := r.Resolve(p); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("Resolve(%q) error = %v, want not exist", p, err)
		}
	}
}

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}
