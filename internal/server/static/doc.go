// Package static serves a directory tree over HTTP.
//
// The handler is split along two seams so each rule can be tested on its
// own:
//
//   - Resolver maps a cleaned URL path to a Resource. FS implements it over
//     an fs.FS; OpenRoot confines it to a directory with os.Root so that
//     neither ".." nor symlinks can reach outside the document root.
//   - Lister renders a directory listing. HTMLLister produces a plain HTML
//     page in the style of classic file servers.
//
// Handler glues them together: it redirects directory URLs to their
// slash-terminated form, serves index files, falls back to listings, and
// hands regular files to http.ServeContent for conditional and range
// requests.
package static
