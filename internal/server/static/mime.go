package static

import (
	"mime"
	"path"
	"strings"
)

const defaultContentType = "application/octet-stream"

// Go's built-in table is small and the system tables are not always
// installed, so common text types are pinned here.
var fallbackTypes = map[string]string{
	".txt":  "text/plain; charset=utf-8",
	".text": "text/plain; charset=utf-8",
	".md":   "text/markdown; charset=utf-8",
	".csv":  "text/csv; charset=utf-8",
	".ico":  "image/vnd.microsoft.icon",
	".map":  "application/json",
	".pem":  "application/x-pem-file",
	".gz":   "application/gzip",
	".zip":  "application/zip",
	".tar":  "application/x-tar",
	".mp4":  "video/mp4",
	".woff": "font/woff",
	".ttf":  "font/ttf",
}

// ContentType returns the media type for a file name based on its
// extension, or application/octet-stream when the extension is unknown.
func ContentType(name string) string {
	ext := path.Ext(name)
	if ext == "" {
		return defaultContentType
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	if ct, ok := fallbackTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return defaultContentType
}
