package site

import (
	"path"
	"strings"
)

// pageRoute is where one source page lands in the built site.
type pageRoute struct {
	Src  string // docs-relative source, e.g. "stocks/ibm.md"
	File string // site-relative output file, e.g. "stocks/ibm/index.html"
	URL  string // absolute URL, e.g. "/stocks/ibm/"
}

// routeFor maps a docs-relative .md path to its output file and URL.
// asIndex marks README.md pages promoted to their directory index.
func routeFor(src string, useDirURLs, asIndex bool) pageRoute {
	dir, base := path.Split(src)
	stem := strings.TrimSuffix(base, ".md")

	if stem == "index" || asIndex {
		return pageRoute{Src: src, File: dir + "index.html", URL: "/" + dir}
	}
	if useDirURLs {
		return pageRoute{Src: src, File: dir + stem + "/index.html", URL: "/" + dir + stem + "/"}
	}
	return pageRoute{Src: src, File: dir + stem + ".html", URL: "/" + dir + stem + ".html"}
}

// buildRoutes computes routes for every page. README.md becomes the
// directory index unless an index.md exists alongside it.
func buildRoutes(srcs []string, useDirURLs bool) map[string]pageRoute {
	hasIndex := make(map[string]bool)
	for _, s := range srcs {
		if path.Base(s) == "index.md" {
			hasIndex[path.Dir(s)] = true
		}
	}
	out := make(map[string]pageRoute, len(srcs))
	for _, s := range srcs {
		asIndex := path.Base(s) == "README.md" && !hasIndex[path.Dir(s)]
		out[s] = routeFor(s, useDirURLs, asIndex)
	}
	return out
}

// splitFragment separates "page.md#anchor" into "page.md" and "#anchor".
func splitFragment(dest string) (string, string) {
	if i := strings.Index(dest, "#"); i >= 0 {
		return dest[:i], dest[i:]
	}
	return dest, ""
}

// isExternal reports whether dest is a URL with a scheme or protocol-relative.
func isExternal(dest string) bool {
	return strings.Contains(dest, "://") || strings.HasPrefix(dest, "//") ||
		strings.HasPrefix(dest, "mailto:") || strings.HasPrefix(dest, "tel:")
}
