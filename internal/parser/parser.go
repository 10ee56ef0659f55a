// Package parser extracts frontmatter, links, and tags from Markdown pages.
package parser

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/adrg/frontmatter"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	mdLinkRe   = regexp.MustCompile(`\]\(<?([^)<>\s]+?\.md)(?:#[^)>\s]*)?>?\)`)
)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	// Links are wikilink targets, relative to the docs root.
	Links []string
	// Refs are relative Markdown link destinations ending in .md.
	Refs  []string
	Tags  []string
	Title string
	Draft bool
}

// Parse extracts frontmatter, body, links, and tags from raw Markdown bytes.
func Parse(data []byte) (*Result, error) {
	fm, body := splitFrontmatter(data)

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       extractLinks(body),
		Refs:        extractRefs(body),
		Tags:        extractTags(body, fm),
		Title:       deriveTitle(fm, body),
		Draft:       isDraft(fm),
	}, nil
}

// Targets resolves Links and Refs to docs-root-relative page paths for a page
// located at from. Results are deduplicated and keep first-seen order.
func (r *Result) Targets(from string) []string {
	seen := make(map[string]struct{}, len(r.Links)+len(r.Refs))
	var out []string
	add := func(p string) {
		if p == "" || p == from {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, l := range r.Links {
		add(WikiTarget(l))
	}
	for _, ref := range r.Refs {
		add(ResolveRef(from, ref))
	}
	return out
}

// WikiTarget maps a wikilink target to a page path: "folder/note" becomes
// "folder/note.md". Fragments are dropped.
func WikiTarget(target string) string {
	if i := strings.Index(target, "#"); i >= 0 {
		target = target[:i]
	}
	target = strings.TrimSpace(strings.TrimPrefix(target, "/"))
	if target == "" {
		return ""
	}
	if !strings.HasSuffix(target, ".md") {
		target += ".md"
	}
	return path.Clean(target)
}

// ResolveRef resolves a relative Markdown link from the page at from.
// It returns "" for references that leave the docs root.
func ResolveRef(from, ref string) string {
	if i := strings.Index(ref, "#"); i >= 0 {
		ref = ref[:i]
	}
	if ref == "" {
		return ""
	}
	var p string
	if strings.HasPrefix(ref, "/") {
		p = path.Clean(strings.TrimPrefix(ref, "/"))
	} else {
		p = path.Join(path.Dir(from), ref)
	}
	if p == ".." || strings.HasPrefix(p, "../") {
		return ""
	}
	return p
}

// RewriteWikilinks turns [[Target]] and [[Target|Alias]] into standard
// Markdown links pointing at Target.md, so the renderer can map them like any
// other page link.
func RewriteWikilinks(body string) string {
	return wikilinkRe.ReplaceAllStringFunc(body, func(m string) string {
		raw := m[2 : len(m)-2]
		target, label := raw, ""
		if i := strings.Index(raw, "|"); i >= 0 {
			target, label = raw[:i], raw[i+1:]
		}
		target = strings.TrimSpace(target)
		label = strings.TrimSpace(label)
		if target == "" {
			return m
		}
		fragment := ""
		if i := strings.Index(target, "#"); i >= 0 {
			target, fragment = target[:i], target[i:]
		}
		if label == "" {
			label = target
		}
		if label == "" {
			label = strings.TrimPrefix(fragment, "#")
		}
		dest := ""
		if target != "" {
			dest = "/" + WikiTarget(target)
		}
		return fmt.Sprintf("[%s](<%s%s>)", label, dest, fragment)
	})
}

// splitFrontmatter separates frontmatter (YAML, TOML or JSON) from the
// Markdown body. Missing or invalid frontmatter yields a nil map and the
// whole input as body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	var fm map[string]any
	rest, err := frontmatter.Parse(bytes.NewReader(data), &fm)
	if err != nil || len(fm) == 0 {
		if err == nil && len(rest) != len(data) {
			// Empty frontmatter block: keep the body without delimiters.
			return nil, strings.TrimLeft(string(rest), "\n\r")
		}
		return nil, string(data)
	}
	return normalizeMap(fm), strings.TrimLeft(string(rest), "\n\r")
}

// normalizeMap converts nested map[interface{}]interface{} values produced by
// the YAML decoder into map[string]any so frontmatter can be JSON encoded.
func normalizeMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalizeValue(val)
		}
		return m
	case map[string]any:
		return normalizeMap(t)
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeValue(val)
		}
		return out
	default:
		return v
	}
}

// extractLinks returns deduplicated wikilink targets, normalising aliases.
func extractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		raw := m[1]
		// [[Target|Alias]] → Target.
		target := raw
		if i := strings.Index(raw, "|"); i >= 0 {
			target = raw[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// extractRefs returns deduplicated relative .md link destinations.
// Absolute URLs are ignored.
func extractRefs(body string) []string {
	matches := mdLinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		ref := m[1]
		if strings.Contains(ref, "://") {
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}

// extractTags collects #tags from body and from the frontmatter "tags" field.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if fm != nil {
		switch v := fm["tags"].(type) {
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		case string:
			for _, s := range strings.Split(v, ",") {
				add(s)
			}
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if fm != nil {
		if s, ok := fm["title"].(string); ok && s != "" {
			return s
		}
	}
	inFence := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if !inFence && strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

func isDraft(fm map[string]any) bool {
	if fm == nil {
		return false
	}
	b, _ := fm["draft"].(bool)
	return b
}
