package site

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	mdparser "github.com/starford/marketnotes/internal/parser"
)

var extensionRegistry = map[string]goldmark.Extender{
	"gfm":           extension.GFM,
	"table":         extension.Table,
	"tables":        extension.Table,
	"strikethrough": extension.Strikethrough,
	"linkify":       extension.Linkify,
	"autolink":      extension.Linkify,
	"tasklist":      extension.TaskList,
	"definition":    extension.DefinitionList,
	"footnote":      extension.Footnote,
}

// LinkResolver rewrites a link destination found on the page at from.
// ok is false when dest points at a page that does not exist.
type LinkResolver func(from, dest string) (rewritten string, ok bool)

// Heading is one entry of a page's table of contents.
type Heading struct {
	Level int
	ID    string
	Title string
}

// Rendered is the output of rendering one page body.
type Rendered struct {
	HTML       []byte
	Text       string
	TOC        []Heading
	Unresolved []string
}

var (
	pageKey       = parser.NewContextKey()
	resolverKey   = parser.NewContextKey()
	unresolvedKey = parser.NewContextKey()
)

// Renderer converts Markdown bodies to HTML with a shared goldmark engine.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer builds a goldmark engine from opts. Unknown extension names
// are ignored; an empty list selects GFM, linkify and tasklist.
func NewRenderer(opts MarkdownOptions) *Renderer {
	parserOptions := []parser.Option{
		parser.WithAutoHeadingID(),
		parser.WithASTTransformers(util.Prioritized(linkTransformer{}, 100)),
	}

	var rendererOptions []renderer.Option
	if opts.HardWraps {
		rendererOptions = append(rendererOptions, html.WithHardWraps())
	}
	if !opts.SafeMode {
		rendererOptions = append(rendererOptions, html.WithUnsafe())
	}

	engineOptions := []goldmark.Option{
		goldmark.WithParserOptions(parserOptions...),
		goldmark.WithExtensions(collectExtensions(opts.Extensions)...),
	}
	if len(rendererOptions) > 0 {
		engineOptions = append(engineOptions, goldmark.WithRendererOptions(rendererOptions...))
	}
	return &Renderer{md: goldmark.New(engineOptions...)}
}

// Render converts the Markdown body of the page at from. Wikilinks are
// rewritten to regular links first; resolve maps every link destination.
func (r *Renderer) Render(from string, body []byte, resolve LinkResolver) (*Rendered, error) {
	src := []byte(mdparser.RewriteWikilinks(string(body)))

	var unresolved []string
	pc := parser.NewContext()
	pc.Set(pageKey, from)
	pc.Set(resolverKey, resolve)
	pc.Set(unresolvedKey, &unresolved)

	doc := r.md.Parser().Parse(text.NewReader(src), parser.WithContext(pc))

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, src, doc); err != nil {
		return nil, fmt.Errorf("site: render %s: %w", from, err)
	}

	return &Rendered{
		HTML:       buf.Bytes(),
		Text:       plainText(doc, src),
		TOC:        headings(doc, src),
		Unresolved: unresolved,
	}, nil
}

// linkTransformer rewrites link and image destinations through the page's
// LinkResolver stored in the parser context.
type linkTransformer struct{}

func (linkTransformer) Transform(doc *ast.Document, _ text.Reader, pc parser.Context) {
	resolve, _ := pc.Get(resolverKey).(LinkResolver)
	if resolve == nil {
		return
	}
	from, _ := pc.Get(pageKey).(string)
	unresolved, _ := pc.Get(unresolvedKey).(*[]string)

	rewrite := func(dest []byte) []byte {
		out, ok := resolve(from, string(dest))
		if !ok && unresolved != nil {
			*unresolved = append(*unresolved, string(dest))
		}
		return []byte(out)
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Link:
			v.Destination = rewrite(v.Destination)
		case *ast.Image:
			v.Destination = rewrite(v.Destination)
		}
		return ast.WalkContinue, nil
	})
}

// routeResolver returns a LinkResolver that maps .md links to page URLs and
// other relative links to root-absolute asset paths.
func routeResolver(routes map[string]pageRoute) LinkResolver {
	return func(from, dest string) (string, bool) {
		if dest == "" || strings.HasPrefix(dest, "#") || isExternal(dest) {
			return dest, true
		}
		p, frag := splitFragment(dest)
		if unescaped, err := url.PathUnescape(p); err == nil {
			p = unescaped
		}
		if !strings.HasSuffix(p, ".md") {
			if strings.HasPrefix(p, "/") {
				return dest, true
			}
			return "/" + path.Join(path.Dir(from), p) + frag, true
		}
		target := mdparser.ResolveRef(from, p)
		route, ok := routes[target]
		if !ok {
			return dest, false
		}
		return route.URL + frag, true
	}
}

func collectExtensions(names []string) []goldmark.Extender {
	if len(names) == 0 {
		return []goldmark.Extender{extension.GFM, extension.Linkify, extension.TaskList}
	}
	var out []goldmark.Extender
	seen := map[string]struct{}{}
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		ext, ok := extensionRegistry[key]
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ext)
	}
	return out
}

// plainText flattens the document into searchable text, one line per block.
func plainText(doc ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch v := n.(type) {
		case *ast.Text:
			if entering {
				sb.Write(v.Segment.Value(src))
				if v.SoftLineBreak() || v.HardLineBreak() {
					sb.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				sb.Write(v.Value)
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					sb.Write(seg.Value(src))
				}
			}
			return ast.WalkSkipChildren, nil
		default:
			if !entering && n.Type() == ast.TypeBlock && sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
				sb.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

// headings collects h2–h4 headings with their generated IDs.
func headings(doc ast.Node, src []byte) []Heading {
	var out []Heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		h, ok := n.(*ast.Heading)
		if !ok || !entering {
			return ast.WalkContinue, nil
		}
		if h.Level < 2 || h.Level > 4 {
			return ast.WalkSkipChildren, nil
		}
		var id string
		if raw, ok := h.AttributeString("id"); ok {
			if b, ok := raw.([]byte); ok {
				id = string(b)
			}
		}
		out = append(out, Heading{Level: h.Level, ID: id, Title: inlineText(h, src)})
		return ast.WalkSkipChildren, nil
	})
	return out
}

func inlineText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := c.(type) {
		case *ast.Text:
			sb.Write(v.Segment.Value(src))
		case *ast.String:
			sb.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
