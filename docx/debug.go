package docx

import (
	"fmt"
	"sort"

	"github.com/maruel/natural"

	"docx2html/utils/debug"
)

type treeWriter struct {
	*debug.TreeWriter
}

// String returns a readable tree of the parsed document for debug reports.
func (d *Document) String() string {
	if d == nil {
		return "<nil Document>"
	}
	return treeWriter{debug.NewTreeWriter()}.document(d).String()
}

func (tw treeWriter) document(d *Document) treeWriter {
	tw.Line(0, "Document path=%q", d.Path)
	tw.Line(1, "Properties title=%q creator=%q subject=%q identifier=%q language=%q",
		d.Properties.Title, d.Properties.Creator, d.Properties.Subject, d.Properties.Identifier, d.Properties.Language)

	if len(d.Styles) > 0 {
		ids := make([]string, 0, len(d.Styles))
		for id := range d.Styles {
			ids = append(ids, id)
		}
		sort.Sort(natural.StringSlice(ids))
		tw.Line(1, "Styles: %d", len(ids))
		for _, id := range ids {
			s := d.Styles[id]
			tw.Line(2, "Style id=%q name=%q type=%q basedOn=%q", s.ID, s.Name, s.Type, s.BasedOn)
		}
	}

	for i := range d.Sections {
		tw.section(1, &d.Sections[i], i)
	}
	return tw
}

func (tw treeWriter) section(depth int, s *Section, idx int) {
	tw.Line(depth, "Section[%d] elements=%d", idx, len(s.Elements))
	for _, hf := range s.Headers {
		tw.Line(depth+1, "Header pageType=%d", hf.PageType)
		tw.elements(depth+2, hf.Elements)
	}
	tw.elements(depth+1, s.Elements)
	for _, hf := range s.Footers {
		tw.Line(depth+1, "Footer pageType=%d", hf.PageType)
		tw.elements(depth+2, hf.Elements)
	}
}

func (tw treeWriter) elements(depth int, elements []Element) {
	for _, e := range elements {
		tw.element(depth, e)
	}
}

func (tw treeWriter) element(depth int, e Element) {
	switch v := e.(type) {
	case *Paragraph:
		tw.Line(depth, "Paragraph style=%q", v.StyleID)
		tw.runs(depth+1, v.Runs)
	case *PlainText:
		tw.textRun(depth, &v.Text)
	case *Heading:
		tw.Line(depth, "Heading depth=%d style=%q", v.Depth, v.StyleID)
		tw.runs(depth+1, v.Runs)
	case *Table:
		tw.Line(depth, "Table style=%q rows=%d", v.StyleID, len(v.Rows))
		for i, row := range v.Rows {
			tw.Line(depth+1, "Row[%d] cells=%d", i, len(row.Cells))
			for j, cell := range row.Cells {
				tw.Line(depth+2, "Cell[%d] span=%d style=%q", j, cell.Span, cell.StyleID)
				tw.elements(depth+3, cell.Elements)
			}
		}
	case *ListItem:
		tw.Line(depth, "ListItem depth=%d style=%q", v.Depth, v.StyleID)
		tw.textRun(depth+1, &v.Text)
	case *Footnote:
		tw.Line(depth, "Footnote")
		tw.runs(depth+1, v.Runs)
	case *Endnote:
		tw.Line(depth, "Endnote")
		tw.runs(depth+1, v.Runs)
	case *Link:
		tw.Line(depth, "Link source=%q text=%q", v.Source, v.Text)
	case *Image:
		tw.Line(depth, "Image source=%q name=%q size=%dx%d", v.Source, v.Name, v.Width, v.Height)
	case *LineBreak:
		tw.Line(depth, "LineBreak")
	default:
		tw.Line(depth, "Unknown %T", e)
	}
}

func (tw treeWriter) runs(depth int, runs []Run) {
	for _, r := range runs {
		switch v := r.(type) {
		case *TextRun:
			tw.textRun(depth, v)
		case Element:
			tw.element(depth, v)
		default:
			tw.Line(depth, "Unknown run %T", r)
		}
	}
}

func (tw treeWriter) textRun(depth int, r *TextRun) {
	if f := formatString(r.Format); len(f) > 0 {
		tw.TextBlock(depth, "Text["+f+"]", r.Text)
		return
	}
	tw.TextBlock(depth, "Text", r.Text)
}

func formatString(f Format) string {
	if f == (Format{}) {
		return ""
	}
	return fmt.Sprintf("%+v", f)
}
