// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enml converts ENML (Evernote Markup Language) note bodies into
// XWiki 2.1 syntax. The transformer never fails a note: unparseable markup
// degrades to a plain-text rendition rather than dropping content.
// See docs/ARCHITECTURE § Conversion.
package enml

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/pdiddy/enwiki/pkg/types"
)

// Result is the outcome of transforming one note body.
type Result struct {
	// Content is the XWiki 2.1 markup.
	Content string

	// DownloadedImages lists attachments materialized during the walk from
	// data URIs and external image URLs, in discovery order.
	DownloadedImages []types.Attachment
}

// Transformer converts note bodies. A nil Fetcher disables external image
// downloads; externally-referenced images are then emitted as plain
// image-URL references.
type Transformer struct {
	Fetcher ImageFetcher
}

var (
	xmlDeclPattern  = regexp.MustCompile(`<\?xml[^?]*\?>`)
	doctypePattern  = regexp.MustCompile(`<!DOCTYPE[^>]*>`)
	excessNewlines  = regexp.MustCompile(`\n{3,}`)
	tagPattern      = regexp.MustCompile(`<[^>]+>`)
	selfClosedENTag = regexp.MustCompile(`<(en-media|en-todo|en-crypt)((?:[^>"']|"[^"]*"|'[^']*')*?)/>`)
)

// Transform converts a note's ENML content. Malformed markup falls back to
// tag stripping so the note's text always survives.
func (t *Transformer) Transform(note *types.Note) Result {
	content := note.Content
	if strings.TrimSpace(content) == "" {
		return Result{}
	}

	content = xmlDeclPattern.ReplaceAllString(content, "")
	content = doctypePattern.ReplaceAllString(content, "")
	// The HTML5 parser ignores self-closing syntax on unknown elements,
	// which would make an <en-media/> swallow its trailing siblings.
	content = selfClosedENTag.ReplaceAllString(content, "<$1$2></$1>")
	content = strings.TrimSpace(content)

	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return Result{Content: StripTags(content)}
	}

	w := &walker{
		index:   NewAttachmentIndex(note.Attachments),
		fetcher: t.Fetcher,
	}
	w.processNode(findContentRoot(root))

	out := excessNewlines.ReplaceAllString(w.buf.String(), "\n\n")
	return Result{
		Content:          strings.TrimSpace(out),
		DownloadedImages: w.downloaded,
	}
}

// StripTags removes all markup and returns the bare text. This is the
// transformer's last-resort rendition for markup the parser cannot handle.
func StripTags(markup string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(markup, ""))
}

// findContentRoot locates the en-note element, falling back to body, then
// the document root.
func findContentRoot(root *html.Node) *html.Node {
	if n := findElement(root, "en-note"); n != nil {
		return n
	}
	if n := findElement(root, "body"); n != nil {
		return n
	}
	return root
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

// attr returns the named attribute's value, matching case-insensitively.
// Export markup is inconsistent about attribute capitalization.
func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

// flattenText concatenates all descendant text of n.
func flattenText(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return b.String()
}

// walker holds the traversal state for one note body: the output buffer, the
// active list-marker stack, and the accumulating table grid.
type walker struct {
	buf        strings.Builder
	listStack  []string
	inTable    bool
	tableRows  [][]string
	currentRow []string

	index      *AttachmentIndex
	fetcher    ImageFetcher
	downloaded []types.Attachment
}

func (w *walker) processChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.processNode(c)
	}
}

func (w *walker) processNode(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.buf.WriteString(n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.DocumentNode:
		w.processChildren(n)
		return
	}

	switch tag := n.Data; tag {
	case "b", "strong":
		w.inline(n, "**")
	case "i", "em":
		w.inline(n, "//")
	case "u":
		w.inline(n, "__")
	case "s", "strike", "del":
		w.inline(n, "--")
	case "a":
		w.link(n)
	case "en-media":
		w.media(n)
	case "img":
		w.image(n)
	case "br":
		w.buf.WriteString("\n")
	case "en-todo":
		w.todo(n)
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level, _ := strconv.Atoi(tag[1:])
		w.heading(n, level)
	case "ul":
		w.list(n, false)
	case "ol":
		w.list(n, true)
	case "li":
		w.listItem(n)
	case "hr":
		w.buf.WriteString("\n----\n")
	case "p", "div":
		w.block(n)
	case "table":
		w.table(n)
	case "tr":
		w.tableRow(n)
	case "td":
		w.tableCell(n, false)
	case "th":
		w.tableCell(n, true)
	case "blockquote":
		w.blockquote(n)
	case "code", "pre":
		w.code(n)
	case "en-crypt":
		w.encrypted()
	case "span":
		w.span(n)
	default:
		// Forward-compatible default: flatten unknown tags.
		w.processChildren(n)
	}
}

// inline wraps the element's flattened children in a symmetric delimiter.
func (w *walker) inline(n *html.Node, delim string) {
	w.buf.WriteString(delim)
	w.processChildren(n)
	w.buf.WriteString(delim)
}

func (w *walker) link(n *html.Node) {
	href := attr(n, "href")
	text := flattenText(n)

	switch {
	case href == "":
		w.buf.WriteString(text)
	case text != "" && text != href:
		w.buf.WriteString("[[" + text + ">>" + href + "]]")
	default:
		w.buf.WriteString("[[" + href + "]]")
	}
}

func (w *walker) heading(n *html.Node, level int) {
	marker := strings.Repeat("=", level)
	w.buf.WriteString("\n" + marker + " ")
	w.buf.WriteString(flattenText(n))
	w.buf.WriteString(" " + marker + "\n")
}

func (w *walker) list(n *html.Node, ordered bool) {
	marker := "*"
	if ordered {
		marker = "1."
	}
	w.listStack = append(w.listStack, marker)

	w.buf.WriteString("\n")
	w.processChildren(n)

	w.listStack = w.listStack[:len(w.listStack)-1]
	if len(w.listStack) == 0 {
		w.buf.WriteString("\n")
	}
}

func (w *walker) listItem(n *html.Node) {
	if len(w.listStack) > 0 {
		w.buf.WriteString(strings.Join(w.listStack, "") + " ")
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		// A nested list starts its own block on a fresh line.
		if c.Type == html.ElementNode && (c.Data == "ul" || c.Data == "ol") {
			w.buf.WriteString("\n")
		}
		w.processNode(c)
	}

	w.buf.WriteString("\n")
}

func (w *walker) block(n *html.Node) {
	if out := w.buf.String(); out != "" && !strings.HasSuffix(out, "\n") {
		w.buf.WriteString("\n")
	}
	w.processChildren(n)
	w.buf.WriteString("\n")
}

func (w *walker) table(n *html.Node) {
	w.inTable = true
	w.tableRows = nil

	// Descend through header/body/footer grouping wrappers transparently.
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "thead" || c.Data == "tbody" || c.Data == "tfoot") {
			for row := c.FirstChild; row != nil; row = row.NextSibling {
				w.processNode(row)
			}
			continue
		}
		w.processNode(c)
	}

	w.buf.WriteString("\n")
	for _, row := range w.tableRows {
		w.buf.WriteString("|")
		w.buf.WriteString(strings.Join(row, "|"))
		w.buf.WriteString("\n")
	}
	w.buf.WriteString("\n")

	w.inTable = false
	w.tableRows = nil
}

func (w *walker) tableRow(n *html.Node) {
	if !w.inTable {
		w.processChildren(n)
		return
	}
	w.currentRow = nil
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.processNode(c)
	}
	if len(w.currentRow) > 0 {
		w.tableRows = append(w.tableRows, w.currentRow)
	}
	w.currentRow = nil
}

// tableCell flattens the cell to text. Nested tables inside a cell
// contribute their plain text to the parent cell rather than being dropped.
func (w *walker) tableCell(n *html.Node, header bool) {
	text := flattenText(n)
	if !w.inTable {
		w.buf.WriteString(text)
		return
	}
	if header {
		text = "=" + text
	}
	w.currentRow = append(w.currentRow, text)
}

func (w *walker) blockquote(n *html.Node) {
	lines := strings.Split(flattenText(n), "\n")

	w.buf.WriteString("\n")
	for _, line := range lines {
		w.buf.WriteString("> " + line + "\n")
	}
	w.buf.WriteString("\n")
}

func (w *walker) code(n *html.Node) {
	text := flattenText(n)

	if n.Data == "pre" || strings.Contains(text, "\n") {
		w.buf.WriteString("\n{{code}}\n")
		w.buf.WriteString(text)
		w.buf.WriteString("\n{{/code}}\n")
	} else {
		w.buf.WriteString("###" + text + "###")
	}
}

func (w *walker) todo(n *html.Node) {
	if attr(n, "checked") == "true" {
		w.buf.WriteString("[x] ")
	} else {
		w.buf.WriteString("[ ] ")
	}
	w.processChildren(n)
}

func (w *walker) encrypted() {
	w.buf.WriteString("\n{{warning}}\n")
	w.buf.WriteString("This content was encrypted in Evernote and cannot be converted.\n")
	w.buf.WriteString("{{/warning}}\n")
}

// span inspects inline style hints and wraps accordingly. Styles with no
// recognized hint emit no wrapper.
func (w *walker) span(n *html.Node) {
	style := attr(n, "style")

	prefix, suffix := "", ""
	if strings.Contains(style, "font-weight") &&
		(strings.Contains(style, "bold") || strings.Contains(style, "700") ||
			strings.Contains(style, "800") || strings.Contains(style, "900")) {
		prefix += "**"
		suffix = "**" + suffix
	}
	if strings.Contains(style, "font-style") && strings.Contains(style, "italic") {
		prefix += "//"
		suffix = "//" + suffix
	}
	if strings.Contains(style, "text-decoration") {
		if strings.Contains(style, "underline") {
			prefix += "__"
			suffix = "__" + suffix
		}
		if strings.Contains(style, "line-through") {
			prefix += "--"
			suffix = "--" + suffix
		}
	}

	w.buf.WriteString(prefix)
	w.processChildren(n)
	w.buf.WriteString(suffix)
}

// media resolves an <en-media> content-hash reference against the note's
// bundled attachments.
func (w *walker) media(n *html.Node) {
	hash := attr(n, "hash")
	if hash == "" {
		w.processChildren(n)
		return
	}

	att := w.index.Resolve(hash)
	switch {
	case att == nil:
		short := hash
		if len(short) > 8 {
			short = short[:8]
		}
		w.buf.WriteString("[Missing attachment: " + short + "...]")
	case att.IsImage():
		w.buf.WriteString("[[image:" + att.Filename + "]]")
	default:
		w.buf.WriteString("[[" + att.Filename + ">>attach:" + att.Filename + "]]")
	}

	w.processChildren(n)
}

// image handles <img> tags: inline data URIs are decoded into attachments,
// external URLs are downloaded when a fetcher is configured, and everything
// else degrades to a reference by URL. No branch here can fail the note.
func (w *walker) image(n *html.Node) {
	src := attr(n, "src")
	alt := attr(n, "alt")

	switch {
	case strings.HasPrefix(src, "data:"):
		att, err := decodeDataURI(src)
		if err != nil {
			if alt == "" {
				alt = "embedded data"
			}
			w.buf.WriteString("[Image: " + alt + "]")
			return
		}
		w.downloaded = append(w.downloaded, *att)
		w.buf.WriteString("[[image:" + att.Filename + "]]")

	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		if w.fetcher == nil {
			w.buf.WriteString("[[image:" + src + "]]")
			return
		}
		att, err := w.fetcher.FetchImage(src)
		if err != nil {
			// Degrade to an external reference; never abort the note.
			w.buf.WriteString("[[image:" + src + "]]")
			w.buf.WriteString(" //(external image)//")
			return
		}
		att.Filename = w.index.UniqueFilename(att.Filename, att.Hash)
		w.downloaded = append(w.downloaded, *att)
		w.buf.WriteString("[[image:" + att.Filename + "]]")

	case src != "":
		w.buf.WriteString("[[image:" + src + "]]")
	}
}
