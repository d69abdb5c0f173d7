package static

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"syscall"
)

// ErrOutsideRoot is returned when a name resolves outside the document
// root. It matches fs.ErrNotExist so callers treat it as a missing file.
var ErrOutsideRoot = fmt.Errorf("static: path escapes document root: %w", fs.ErrNotExist)

// ErrInvalidPath is returned for URL paths no file name can have, such as
// paths containing a NUL byte.
var ErrInvalidPath = errors.New("static: invalid path")

// ErrNotSeekable is returned when a regular file cannot seek, which
// http.ServeContent needs for ranges and sizing.
var ErrNotSeekable = errors.New("static: file does not support seeking")

// Resource is a resolved URL path.
type Resource struct {
	// Path is the cleaned, slash-rooted URL path.
	Path string
	Info fs.FileInfo
	File fs.File
}

// IsDir reports whether the resource is a directory.
func (r *Resource) IsDir() bool {
	return r.Info.IsDir()
}

// Content returns the file body for serving.
func (r *Resource) Content() (io.ReadSeeker, error) {
	rs, ok := r.File.(io.ReadSeeker)
	if !ok {
		return nil, fmt.Errorf("%s: %w", r.Path, ErrNotSeekable)
	}
	return rs, nil
}

// ReadDir returns all entries of a directory resource.
func (r *Resource) ReadDir() ([]fs.DirEntry, error) {
	d, ok := r.File.(fs.ReadDirFile)
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: r.Path, Err: fs.ErrInvalid}
	}
	return d.ReadDir(-1)
}

// Close releases the underlying file.
func (r *Resource) Close() error {
	return r.File.Close()
}

// Resolver maps URL paths to resources.
type Resolver interface {
	Resolve(urlPath string) (*Resource, error)
}

// FS resolves URL paths against an fs.FS.
type FS struct {
	fsys  fs.FS
	close func() error
}

// NewFS returns a resolver over fsys.
func NewFS(fsys fs.FS) *FS {
	return &FS{fsys: fsys}
}

// OpenRoot returns a resolver confined to dir.
func OpenRoot(dir string) (*FS, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open document root: %w", err)
	}
	return &FS{fsys: root.FS(), close: root.Close}, nil
}

// Close releases the document root, if any.
func (f *FS) Close() error {
	if f.close == nil {
		return nil
	}
	return f.close()
}

// Resolve implements Resolver.
func (f *FS) Resolve(urlPath string) (*Resource, error) {
	if strings.IndexByte(urlPath, 0) >= 0 {
		return nil, ErrInvalidPath
	}

	clean := CleanPath(urlPath)
	name := strings.TrimPrefix(clean, "/")
	if name == "" {
		name = "."
	}

	file, err := f.fsys.Open(name)
	if err != nil {
		return nil, classify(err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, classify(err)
	}

	return &Resource{Path: clean, Info: info, File: file}, nil
}

// CleanPath roots p at "/" and removes dot segments. ".." above the root
// collapses to the root.
func CleanPath(p string) string {
	if p == "" || p[0] != '/' {
		p = "/" + p
	}
	return path.Clean(p)
}

// classify folds the errors os.Root reports for names it refuses into
// ErrOutsideRoot, and names the kernel rejects into ErrInvalidPath.
func classify(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return err
	case errors.Is(err, syscall.EINVAL):
		return fmt.Errorf("%w: %v", ErrInvalidPath, err)
	case errors.Is(err, fs.ErrInvalid), isEscape(err):
		return fmt.Errorf("%w: %v", ErrOutsideRoot, err)
	}
	return err
}

// os.Root does not export its escape error.
func isEscape(err error) bool {
	var pe *fs.PathError
	if !errors.As(err, &pe) {
		return false
	}
	return strings.Contains(pe.Err.Error(), "escapes from parent")
}
