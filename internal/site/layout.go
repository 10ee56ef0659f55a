package site

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"path"
	"sort"
	"strings"
)

//go:embed templates/page.html templates/marketnotes.css
var templateFS embed.FS

const stylesheetPath = "assets/marketnotes.css"

type navEntry struct {
	Title    string
	URL      string
	Active   bool
	Children []navEntry
}

type pageData struct {
	SiteName   string
	Title      string
	Nav        []navEntry
	TOC        []Heading
	Content    template.HTML
	LiveReload bool
}

func loadLayout() (*template.Template, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/page.html")
	if err != nil {
		return nil, fmt.Errorf("site: parse layout: %w", err)
	}
	return tmpl, nil
}

func defaultStylesheet() ([]byte, error) {
	return templateFS.ReadFile("templates/marketnotes.css")
}

func executeLayout(tmpl *template.Template, data pageData) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "page.html", data); err != nil {
		return nil, fmt.Errorf("site: execute layout: %w", err)
	}
	return buf.Bytes(), nil
}

// explicitNav converts configured entries, resolving .md paths to page URLs.
// Entries pointing at missing pages keep their title without a link.
func explicitNav(items []NavItem, routes map[string]pageRoute) ([]navEntry, []string) {
	var (
		out     []navEntry
		missing []string
	)
	for _, item := range items {
		e := navEntry{Title: item.Title}
		switch {
		case item.Path == "":
		case isExternal(item.Path) || strings.HasPrefix(item.Path, "/"):
			e.URL = item.Path
		default:
			p, frag := splitFragment(item.Path)
			if r, ok := routes[path.Clean(p)]; ok {
				e.URL = r.URL + frag
				if e.Title == "" {
					e.Title = titleFromPath(r.Src)
				}
			} else {
				missing = append(missing, item.Path)
			}
		}
		if len(item.Children) > 0 {
			children, m := explicitNav(item.Children, routes)
			e.Children = children
			missing = append(missing, m...)
		}
		out = append(out, e)
	}
	return out, missing
}

type navDir struct {
	name  string
	pages []string
	dirs  map[string]*navDir
}

// autoNav derives navigation from the directory layout. Directory indexes
// become the section link; the root index is listed first.
func autoNav(routes map[string]pageRoute, titles map[string]string) []navEntry {
	root := &navDir{dirs: map[string]*navDir{}}
	for src := range routes {
		node := root
		dir := path.Dir(src)
		if dir != "." {
			for _, part := range strings.Split(dir, "/") {
				child, ok := node.dirs[part]
				if !ok {
					child = &navDir{name: part, dirs: map[string]*navDir{}}
					node.dirs[part] = child
				}
				node = child
			}
		}
		node.pages = append(node.pages, src)
	}
	return root.entries(routes, titles, true)
}

func (d *navDir) entries(routes map[string]pageRoute, titles map[string]string, isRoot bool) []navEntry {
	var (
		out   []navEntry
		index string
	)
	pages := make([]string, 0, len(d.pages))
	for _, src := range d.pages {
		if isDirIndex(routes[src]) {
			index = src
			continue
		}
		pages = append(pages, src)
	}
	sort.Slice(pages, func(i, j int) bool {
		ti, tj := strings.ToLower(titles[pages[i]]), strings.ToLower(titles[pages[j]])
		if ti != tj {
			return ti < tj
		}
		return pages[i] < pages[j]
	})

	if isRoot && index != "" {
		out = append(out, navEntry{Title: titles[index], URL: routes[index].URL})
	}
	for _, src := range pages {
		out = append(out, navEntry{Title: titles[src], URL: routes[src].URL})
	}

	names := make([]string, 0, len(d.dirs))
	for name := range d.dirs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sub := d.dirs[name]
		section := navEntry{Title: humanize(name), Children: sub.entries(routes, titles, false)}
		if idx := sub.indexPage(routes); idx != "" {
			section.URL = routes[idx].URL
			if t := titles[idx]; t != "" {
				section.Title = t
			}
		}
		out = append(out, section)
	}
	return out
}

func (d *navDir) indexPage(routes map[string]pageRoute) string {
	for _, src := range d.pages {
		if isDirIndex(routes[src]) {
			return src
		}
	}
	return ""
}

func isDirIndex(r pageRoute) bool {
	return r.Src != "" && path.Base(r.File) == "index.html" && path.Dir(r.File) == path.Dir(r.Src)
}

// markActive returns a copy of entries with the entry for url flagged.
func markActive(entries []navEntry, url string) []navEntry {
	out := make([]navEntry, len(entries))
	for i, e := range entries {
		e.Active = e.URL != "" && e.URL == url
		if len(e.Children) > 0 {
			e.Children = markActive(e.Children, url)
		}
		out[i] = e
	}
	return out
}

// titleFromPath derives a display title for pages without a heading.
func titleFromPath(src string) string {
	stem := strings.TrimSuffix(path.Base(src), ".md")
	if stem == "index" || stem == "README" {
		dir := path.Dir(src)
		if dir == "." {
			return "Home"
		}
		stem = path.Base(dir)
	}
	return humanize(stem)
}

func humanize(name string) string {
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
