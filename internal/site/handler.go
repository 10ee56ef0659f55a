package site

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileHandler serves a built site directory. Requests for files that do not
// exist, and for directories without an index.html, get the site's 404.html
// with status 404. Directory listings are never served.
func FileHandler(siteDir string) http.Handler {
	files := http.FileServer(http.Dir(siteDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := path.Clean("/" + r.URL.Path)
		target := filepath.Join(siteDir, filepath.FromSlash(strings.TrimPrefix(p, "/")))
		info, err := os.Stat(target)
		if err == nil && info.IsDir() {
			_, err = os.Stat(filepath.Join(target, "index.html"))
		}
		if err != nil {
			notFound(w, siteDir)
			return
		}
		files.ServeHTTP(w, r)
	})
}

func notFound(w http.ResponseWriter, siteDir string) {
	page, err := os.ReadFile(filepath.Join(siteDir, "404.html"))
	if err != nil {
		http.NotFound(w, nil)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write(page)
}
