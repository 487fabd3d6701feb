package extract

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Elements whose subtree never contains article content.
var boilerplate = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Nav:      true,
	atom.Aside:    true,
	atom.Form:     true,
	atom.Iframe:   true,
	atom.Svg:      true,
	atom.Template: true,
}

// Page chrome, skipped only when the content root is the whole body.
// Inside <article> or <main> a header usually holds the title.
var pageChrome = map[atom.Atom]bool{
	atom.Header: true,
	atom.Footer: true,
}

// Elements whose text is collected as one block each.
var contentBlocks = map[atom.Atom]bool{
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.P:          true,
	atom.Li:         true,
	atom.Blockquote: true,
	atom.Pre:        true,
}

func parseHTML(body []byte) (*html.Node, error) {
	return html.Parse(bytes.NewReader(body))
}

// PageMetadata is the low-fidelity description of a page.
type PageMetadata struct {
	Title       string
	Description string
}

// Empty reports whether no usable metadata was found.
func (m PageMetadata) Empty() bool {
	return m.Title == "" && m.Description == ""
}

// pageMetadata reads Open Graph tags, falling back to <title> and meta description.
func pageMetadata(doc *html.Node) PageMetadata {
	var meta PageMetadata
	var title, description string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if title == "" {
					title = collapseWhitespace(nodeText(n))
				}
			case atom.Meta:
				key := attr(n, "property")
				if key == "" {
					key = attr(n, "name")
				}
				content := collapseWhitespace(attr(n, "content"))
				switch strings.ToLower(key) {
				case "og:title":
					meta.Title = content
				case "og:description":
					meta.Description = content
				case "description":
					description = content
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if meta.Title == "" {
		meta.Title = title
	}
	if meta.Description == "" {
		meta.Description = description
	}
	return meta
}

// readableText collects heading, paragraph and list text from the best
// content root, one collapsed block per line.
func readableText(doc *html.Node) string {
	root := findFirst(doc, atom.Article)
	if root == nil {
		root = findFirst(doc, atom.Main)
	}
	if root == nil {
		root = findFirst(doc, atom.Body)
	}
	if root == nil {
		root = doc
	}

	skipChrome := root.DataAtom != atom.Article && root.DataAtom != atom.Main

	var blocks []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if boilerplate[n.DataAtom] || (skipChrome && pageChrome[n.DataAtom]) {
				return
			}
			if contentBlocks[n.DataAtom] {
				if text := collapseWhitespace(nodeText(n)); text != "" {
					blocks = append(blocks, text)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return strings.Join(blocks, "\n")
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

// nodeText concatenates descendant text, skipping boilerplate subtrees.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			if boilerplate[n.DataAtom] {
				return
			}
			if n.DataAtom == atom.Br {
				sb.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
