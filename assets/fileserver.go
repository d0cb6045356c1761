package assets

import (
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileServer serves the files in dir like http.FileServer, but answers with
// the precompressed name.gz sibling when one exists and the client accepts
// gzip. Directories are never listed.
func FileServer(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Accept-Encoding")

		name := path.Clean("/" + r.URL.Path)
		if !strings.HasSuffix(name, ".gz") && acceptsGzip(r) {
			if f, err := os.Open(filepath.Join(dir, filepath.FromSlash(name)+".gz")); err == nil {
				defer f.Close()
				if stat, err := f.Stat(); err == nil && stat.Mode().IsRegular() {
					if ctype := mime.TypeByExtension(path.Ext(name)); ctype != "" {
						w.Header().Set("Content-Type", ctype)
					}
					w.Header().Set("Content-Encoding", "gzip")
					http.ServeContent(w, r, name, stat.ModTime(), f)
					return
				}
			}
		}

		if stat, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name))); err == nil && stat.IsDir() {
			http.NotFound(w, r)
			return
		}

		files.ServeHTTP(w, r)
	})
}

func acceptsGzip(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.TrimSpace(coding) != "gzip" {
			continue
		}
		return strings.ReplaceAll(params, " ", "") != "q=0"
	}
	return false
}
