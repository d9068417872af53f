// Package jsontree renders document model as simplified JSON structure:
// an array per section holding element kinds with their text.
package jsontree

import (
	"bytes"
	"encoding/json"
	"fmt"

	"docx2html/docx"
)

// Node is a single element of a section.
type Node struct {
	Type string  `json:"type"`
	Text *string `json:"text,omitempty"`
}

// Build converts sections into nodes without serializing them.
func Build(sections []docx.Section) [][]Node {
	out := make([][]Node, 0, len(sections))
	for i := range sections {
		nodes := make([]Node, 0, len(sections[i].Elements))
		for _, e := range sections[i].Elements {
			nodes = append(nodes, node(e))
		}
		out = append(out, nodes)
	}
	return out
}

func node(e docx.Element) Node {
	n := Node{Type: docx.Kind(e)}
	var text string
	switch v := e.(type) {
	case *docx.Paragraph:
		text = docx.RunsText(v.Runs)
	case *docx.Heading:
		text = docx.RunsText(v.Runs)
	case *docx.Footnote:
		text = docx.RunsText(v.Runs)
	case *docx.Endnote:
		text = docx.RunsText(v.Runs)
	case *docx.PlainText:
		text = v.Text.Text
	case *docx.ListItem:
		text = v.Text.Text
	case *docx.Link:
		text = v.Text
	default:
		return n
	}
	n.Text = &text
	return n
}

// DefaultIndent is used when Transform is called with empty indent.
const DefaultIndent = "    "

// Transform returns pretty printed JSON. HTML characters and unicode are not
// escaped.
func Transform(sections []docx.Section, indent string) ([]byte, error) {
	if len(indent) == 0 {
		indent = DefaultIndent
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(Build(sections)); err != nil {
		return nil, fmt.Errorf("unable to encode document tree: %w", err)
	}
	return buf.Bytes(), nil
}
