package parser

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntags:\n  - go\n  - markets\n---\n# Hello\nBody text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if len(r.Tags) < 2 || r.Tags[0] != "go" || r.Tags[1] != "markets" {
		t.Errorf("tags = %v, want [go markets]", r.Tags)
	}
	if !strings.HasPrefix(r.Body, "# Hello") || strings.Contains(r.Body, "title:") {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	input := []byte("# Just a heading\nSome text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	input := []byte("---\n: invalid: yaml: {{{\n---\nBody\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter on invalid YAML")
	}
	if r.Body != string(input) {
		t.Errorf("body = %q, want whole input", r.Body)
	}
}

func TestParse_DraftFlag(t *testing.T) {
	r, _ := Parse([]byte("---\ntitle: WIP\ndraft: true\n---\ntext\n"))
	if !r.Draft {
		t.Error("expected draft page")
	}
	r, _ = Parse([]byte("---\ntitle: Done\n---\ntext\n"))
	if r.Draft {
		t.Error("page without draft key should not be a draft")
	}
}

func TestParse_NestedFrontmatterIsJSONEncodable(t *testing.T) {
	r, _ := Parse([]byte("---\ntitle: Nested\nsource:\n  api: alphavantage\n  symbol: IBM\n---\nbody\n"))
	if r.Frontmatter == nil {
		t.Fatal("expected frontmatter")
	}
	if _, err := json.Marshal(r.Frontmatter); err != nil {
		t.Fatalf("frontmatter not JSON encodable: %v", err)
	}
	src, ok := r.Frontmatter["source"].(map[string]any)
	if !ok || src["symbol"] != "IBM" {
		t.Errorf("source = %#v", r.Frontmatter["source"])
	}
}

func TestExtractLinks_Basic(t *testing.T) {
	body := "See [[Note A]] and [[Note B|alias]].\nAlso [[Note A]] again."
	links := extractLinks(body)
	if len(links) != 2 {
		t.Fatalf("len(links) = %d, want 2", len(links))
	}
	if links[0] != "Note A" || links[1] != "Note B" {
		t.Errorf("links = %v", links)
	}
}

func TestExtractLinks_EmptyTarget(t *testing.T) {
	links := extractLinks("see [[ ]] and [[|alias]]")
	if len(links) != 0 {
		t.Errorf("expected no links, got %v", links)
	}
}

func TestExtractRefs(t *testing.T) {
	body := "Read [setup](guide/setup.md#install), [home](../index.md) and [site](https://example.com/x.md)."
	refs := extractRefs(body)
	if len(refs) != 2 || refs[0] != "guide/setup.md" || refs[1] != "../index.md" {
		t.Errorf("refs = %v", refs)
	}
}

func TestTargets_ResolvesRelativeToPage(t *testing.T) {
	r, _ := Parse([]byte("[[stocks/IBM]] and [up](../index.md) and [sib](news.md) and [out](../../x.md)"))
	got := r.Targets("notes/today.md")
	want := []string{"stocks/IBM.md", "index.md", "notes/news.md"}
	if len(got) != len(want) {
		t.Fatalf("targets = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("targets[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRewriteWikilinks(t *testing.T) {
	got := RewriteWikilinks("See [[stocks/IBM]] and [[Market Notes|notes]] or [[IBM#Volume]].")
	for _, want := range []string{
		"[stocks/IBM](</stocks/IBM.md>)",
		"[notes](</Market Notes.md>)",
		"[IBM](</IBM.md#Volume>)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}

func TestExtractTags_InlineAndFrontmatter(t *testing.T) {
	fm := map[string]any{
		"tags": []any{"alpha"},
	}
	body := "Some text #beta and #alpha again."
	tags := extractTags(body, fm)
	if len(tags) != 2 || tags[0] != "alpha" || tags[1] != "beta" {
		t.Errorf("tags = %v, want [alpha beta]", tags)
	}
}

func TestExtractTags_CommaSeparatedFrontmatter(t *testing.T) {
	tags := extractTags("", map[string]any{"tags": "stocks, news"})
	if len(tags) != 2 || tags[0] != "stocks" || tags[1] != "news" {
		t.Errorf("tags = %v", tags)
	}
}

func TestDeriveTitle_FrontmatterOverH1(t *testing.T) {
	fm := map[string]any{"title": "FM Title"}
	title := deriveTitle(fm, "# H1 Title\ntext")
	if title != "FM Title" {
		t.Errorf("title = %q, want %q", title, "FM Title")
	}
}

func TestDeriveTitle_H1Fallback(t *testing.T) {
	title := deriveTitle(nil, "some text\n# My Heading\nmore")
	if title != "My Heading" {
		t.Errorf("title = %q, want %q", title, "My Heading")
	}
}

func TestDeriveTitle_IgnoresFencedComments(t *testing.T) {
	title := deriveTitle(nil, "```python\n# fetch prices\n```\n# Real Title\n")
	if title != "Real Title" {
		t.Errorf("title = %q, want %q", title, "Real Title")
	}
}
