package mcpserver

const pageFormatURI = "marketnotes://page-format"

// PageFormat describes how docs pages are written and how the site builder
// interprets them. Served as a resource so tool callers can read pages with
// the same conventions the builder applies.
const PageFormat = `# marketnotes page format

Pages are Markdown files under the docs directory. Paths use forward slashes
and end in .md.

## Frontmatter

Optional YAML block at the very top of the file:

` + "```" + `markdown
---
title: IBM daily volume     # overrides the first H1 as the page title
tags: [stocks, nyse]        # merged with inline #hashtags
draft: true                 # page is indexed but left out of the built site
---
` + "```" + `

## Titles

Without a title field the first ` + "`# heading`" + ` is used, then the file name.

## Links

- ` + "`[text](other.md)`" + ` and ` + "`[text](../dir/page.md#section)`" + ` are rewritten to the
  built page URL. Links that match no page are reported as unresolved.
- ` + "`[[stocks/ibm]]`" + ` and ` + "`[[stocks/ibm|IBM]]`" + ` link to stocks/ibm.md.
- Non-Markdown files (images, CSV, JSON) are copied to the site unchanged and
  can be linked relatively.

## Index pages

index.md is the directory landing page. README.md takes that role when the
directory has no index.md.
`
