// Package docx provides document model of a word processing document and
// reads it from OOXML (.docx) container.
package docx

import "strings"

// PageType identifies header or footer variant.
type PageType int

const (
	PageFirst   PageType = 1
	PageDefault PageType = 2
	PageEven    PageType = 3
)

// Document is a parsed container.
type Document struct {
	// Path is location of the container, image references are resolved
	// against it.
	Path       string
	Sections   []Section
	Properties CoreProperties
	Styles     map[string]Style
}

// CoreProperties are taken from docProps/core.xml.
type CoreProperties struct {
	Title      string
	Subject    string
	Creator    string
	Identifier string
	Language   string
}

// Style is a definition from styles.xml.
type Style struct {
	ID      string
	Name    string
	Type    string
	BasedOn string
}

// Section is an ordered sequence of elements with optional headers and
// footers.
type Section struct {
	Elements []Element
	Headers  []HeaderFooter
	Footers  []HeaderFooter
}

// HasContent reports whether section body, headers or footers have any
// element.
func (s *Section) HasContent() bool {
	if len(s.Elements) > 0 {
		return true
	}
	for _, hf := range s.Headers {
		if len(hf.Elements) > 0 {
			return true
		}
	}
	for _, hf := range s.Footers {
		if len(hf.Elements) > 0 {
			return true
		}
	}
	return false
}

type HeaderFooter struct {
	PageType PageType
	Elements []Element
}

// Element is a closed set of block level shapes. Only types from this package
// implement it.
type Element interface {
	element()
}

// Run is a closed set of inline shapes: styled text or nested inline element.
type Run interface {
	run()
}

// Format is a set of inline formatting flags. Values are comparable, runs
// with equal formats can be merged.
type Format struct {
	Bold         bool
	Italic       bool
	Strike       bool
	DoubleStrike bool
	Superscript  bool
	Subscript    bool
	SmallCaps    bool
	AllCaps      bool
	// Underline kind, "" when absent.
	Underline string
	// Color is foreground color as written in the source ("FF0000", "auto").
	Color string
	// Background is shading fill color.
	Background string
	// Highlight is named highlight color ("yellow").
	Highlight string
}

// TextRun is a styled text span.
type TextRun struct {
	Text   string
	Format Format
}

// Paragraph is a run container with paragraph style.
type Paragraph struct {
	StyleID string
	Runs    []Run
}

// PlainText is a standalone text block.
type PlainText struct {
	Text TextRun
}

// Heading is a title paragraph, Depth 0 is document title.
type Heading struct {
	Depth   int
	StyleID string
	Runs    []Run
}

type Table struct {
	StyleID string
	Rows    []Row
}

type Row struct {
	Cells []Cell
}

type Cell struct {
	// Span is number of grid columns cell occupies, at least 1.
	Span     int
	StyleID  string
	Elements []Element
}

// ListItem is a numbered paragraph without paragraph style.
type ListItem struct {
	Depth   int
	StyleID string
	Text    TextRun
}

// Footnote carries the note content at the place of reference.
type Footnote struct {
	Runs []Run
}

// Endnote carries the note content at the place of reference.
type Endnote struct {
	Runs []Run
}

type Link struct {
	Source string
	Text   string
}

// Image references picture in the container by internal path. Width and
// Height are in pixels, 0 when unknown.
type Image struct {
	Source string
	Name   string
	Width  int
	Height int
}

type LineBreak struct{}

func (*Paragraph) element() {}
func (*PlainText) element() {}
func (*Heading) element()   {}
func (*Table) element()     {}
func (*ListItem) element()  {}
func (*Footnote) element()  {}
func (*Endnote) element()   {}
func (*Link) element()      {}
func (*Image) element()     {}
func (*LineBreak) element() {}

func (*TextRun) run()  {}
func (*Link) run()     {}
func (*Image) run()    {}
func (*Footnote) run() {}
func (*Endnote) run()  {}

// Kind returns stable element kind name used in reports and JSON output.
func Kind(e Element) string {
	switch e.(type) {
	case *Paragraph:
		return "paragraph"
	case *PlainText:
		return "text"
	case *Heading:
		return "heading"
	case *Table:
		return "table"
	case *ListItem:
		return "list_item"
	case *Footnote:
		return "footnote"
	case *Endnote:
		return "endnote"
	case *Link:
		return "link"
	case *Image:
		return "image"
	case *LineBreak:
		return "line_break"
	}
	return "unknown"
}

// StyleIDs returns style ids used by element including nested table content,
// without duplicates in order of appearance.
func StyleIDs(e Element) []string {
	var ids []string
	add := func(id string) {
		if len(id) == 0 {
			return
		}
		for _, v := range ids {
			if v == id {
				return
			}
		}
		ids = append(ids, id)
	}
	var walk func(Element)
	walk = func(e Element) {
		switch v := e.(type) {
		case *Paragraph:
			add(v.StyleID)
		case *Heading:
			add(v.StyleID)
		case *ListItem:
			add(v.StyleID)
		case *Table:
			add(v.StyleID)
			for _, row := range v.Rows {
				for _, cell := range row.Cells {
					add(cell.StyleID)
					for _, ce := range cell.Elements {
						walk(ce)
					}
				}
			}
		}
	}
	walk(e)
	return ids
}

// RunsText concatenates text of text runs and links.
func RunsText(runs []Run) string {
	var sb strings.Builder
	for _, r := range runs {
		switch v := r.(type) {
		case *TextRun:
			sb.WriteString(v.Text)
		case *Link:
			sb.WriteString(v.Text)
		}
	}
	return sb.String()
}
