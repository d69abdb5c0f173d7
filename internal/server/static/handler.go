package static

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/yndnr/tlsdir/internal/telemetry/logger"
)

// Config configures a Handler.
type Config struct {
	// IndexFiles are tried in order when a directory is requested.
	IndexFiles []string

	// Listing enables directory listings for directories without an index.
	Listing bool

	// ETag enables weak ETags on file responses.
	ETag bool

	// Lister renders listings. Defaults to HTMLLister.
	Lister Lister
}

// Handler serves files from a Resolver.
type Handler struct {
	resolver Resolver
	lister   Lister
	index    []string
	listing  bool
	etag     bool
}

// NewHandler creates a file handler.
func NewHandler(resolver Resolver, cfg Config) *Handler {
	lister := cfg.Lister
	if lister == nil {
		lister = HTMLLister{}
	}
	return &Handler{
		resolver: resolver,
		lister:   lister,
		index:    append([]string(nil), cfg.IndexFiles...),
		listing:  cfg.Listing,
		etag:     cfg.ETag,
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upath := r.URL.Path
	res, err := h.resolver.Resolve(upath)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer res.Close()

	if !res.IsDir() {
		// a file never has children
		if strings.HasSuffix(upath, "/") {
			writeError(w, r, http.StatusNotFound)
			return
		}
		h.serveFile(w, r, res)
		return
	}

	if !strings.HasSuffix(upath, "/") {
		target := &url.URL{Path: res.Path + "/", RawQuery: r.URL.RawQuery}
		http.Redirect(w, r, target.String(), http.StatusMovedPermanently)
		return
	}

	for _, name := range h.index {
		idx, err := h.resolver.Resolve(path.Join(res.Path, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if idx.IsDir() {
			idx.Close()
			continue
		}
		defer idx.Close()
		h.serveFile(w, r, idx)
		return
	}

	if !h.listing {
		writeError(w, r, http.StatusNotFound)
		return
	}
	h.serveListing(w, r, res)
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, res *Resource) {
	if !res.Info.Mode().IsRegular() {
		writeError(w, r, http.StatusNotFound)
		return
	}

	content, err := res.Content()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", ContentType(res.Path))
	if h.etag {
		hdr.Set("ETag", ETag(res.Path, res.Info))
	}
	http.ServeContent(w, r, path.Base(res.Path), res.Info.ModTime(), content)
}

func (h *Handler) serveListing(w http.ResponseWriter, r *http.Request, res *Resource) {
	entries, err := res.ReadDir()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	displayPath := res.Path
	if displayPath != "/" {
		displayPath += "/"
	}

	var buf bytes.Buffer
	if err := h.lister.RenderListing(&buf, displayPath, entries); err != nil {
		h.fail(w, r, err)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "text/html; charset=utf-8")
	hdr.Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(buf.Bytes())
	}
}

// fail maps a filesystem error to a status code.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusFor(err)
	if code == http.StatusInternalServerError {
		logger.L(r.Context()).Error("serve file failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, r, code)
}

// StatusFor returns the HTTP status for a resolve or read error.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, fs.ErrPermission):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

const errorPage = `<!DOCTYPE html>
<html>
<head><title>%[1]d %[2]s</title></head>
<body>
<h1>%[1]d %[2]s</h1>
</body>
</html>
`

func writeError(w http.ResponseWriter, r *http.Request, code int) {
	body := fmt.Sprintf(errorPage, code, http.StatusText(code))

	hdr := w.Header()
	hdr.Del("ETag")
	hdr.Del("Last-Modified")
	hdr.Set("Content-Type", "text/html; charset=utf-8")
	hdr.Set("Content-Length", strconv.Itoa(len(body)))
	hdr.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		w.Write([]byte(body))
	}
}
