package html5

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func newElement(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     attrs,
	}
}

func newText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// newRaw makes node which is written out as is, without escaping.
func newRaw(s string) *html.Node {
	return &html.Node{Type: html.RawNode, Data: s}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

// classAttr returns "class" attribute for non-empty names, nothing when
// there are none.
func classAttr(names ...string) []html.Attribute {
	var keep []string
	for _, n := range names {
		if len(n) > 0 {
			keep = append(keep, n)
		}
	}
	if len(keep) == 0 {
		return nil
	}
	return []html.Attribute{attr("class", strings.Join(keep, " "))}
}

func appendNewline(parent *html.Node) {
	parent.AppendChild(newText("\n"))
}

// renderChildren serializes children of n.
func renderChildren(n *html.Node) (string, error) {
	var sb strings.Builder
	for c := range n.ChildNodes() {
		if err := html.Render(&sb, c); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}
