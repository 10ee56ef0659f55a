// Package site renders the Markdown docs tree into a static HTML site.
package site

// Options configures a Builder.
type Options struct {
	Name             string
	DocsDir          string
	SiteDir          string
	UseDirectoryURLs bool
	Nav              []NavItem
	Markdown         MarkdownOptions
	// Clean empties SiteDir before building.
	Clean bool
	// LiveReload injects the preview server's reload snippet into every page.
	LiveReload bool
}

// NavItem is one explicit navigation entry. Path is a docs-relative .md file
// or an absolute URL; entries with Children and no Path render as sections.
type NavItem struct {
	Title    string    `yaml:"title"`
	Path     string    `yaml:"path"`
	Children []NavItem `yaml:"children"`
}

// MarkdownOptions selects goldmark extensions and renderer flags.
type MarkdownOptions struct {
	Extensions []string `yaml:"extensions"`
	HardWraps  bool     `yaml:"hard_wraps"`
	SafeMode   bool     `yaml:"safe_mode"`
}
