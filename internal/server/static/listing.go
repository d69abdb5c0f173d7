package static

import (
	"html/template"
	"io"
	"io/fs"
	"net/url"
	"sort"
	"strings"
)

// Lister renders a directory listing.
type Lister interface {
	RenderListing(w io.Writer, urlPath string, entries []fs.DirEntry) error
}

var listingTmpl = template.Must(template.New("listing").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Directory listing for {{.Path}}</title>
</head>
<body>
<h1>Directory listing for {{.Path}}</h1>
<hr>
<ul>
{{- range .Entries}}
<li><a href="{{.Href}}">{{.Name}}</a></li>
{{- end}}
</ul>
<hr>
</body>
</html>
`))

type listingEntry struct {
	Name string
	Href string
}

// HTMLLister renders listings as a plain HTML page.
type HTMLLister struct{}

// RenderListing implements Lister. Entries are sorted case-insensitively;
// directories get a trailing "/" and symlinks a trailing "@".
func (HTMLLister) RenderListing(w io.Writer, urlPath string, entries []fs.DirEntry) error {
	sorted := make([]fs.DirEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].Name()) < strings.ToLower(sorted[j].Name())
	})

	items := make([]listingEntry, 0, len(sorted))
	for _, e := range sorted {
		name, link := e.Name(), e.Name()
		switch {
		case e.IsDir():
			name += "/"
			link += "/"
		case e.Type()&fs.ModeSymlink != 0:
			name += "@"
		}
		items = append(items, listingEntry{
			Name: name,
			Href: (&url.URL{Path: link}).String(),
		})
	}

	return listingTmpl.Execute(w, struct {
		Path    string
		Entries []listingEntry
	}{urlPath, items})
}
