package html5

import (
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"docx2html/docx"
)

// Reserved paragraph styles marking annotation rows of a table.
const (
	StyleTableNote     = "TableNote"
	StyleTableFootnote = "TableFootnote"
)

// annotation is a table row which is moved to the table footer.
type annotation struct {
	footnote   bool
	paragraphs []*docx.Paragraph
}

// annotationRow reports whether row consists of a single cell holding only
// TableNote/TableFootnote paragraphs with some content. Row is a footnote
// when any of its paragraphs is TableFootnote.
func annotationRow(row *docx.Row) (annotation, bool) {
	if len(row.Cells) != 1 || len(row.Cells[0].Elements) == 0 {
		return annotation{}, false
	}
	var a annotation
	for _, e := range row.Cells[0].Elements {
		p, ok := e.(*docx.Paragraph)
		if !ok {
			return annotation{}, false
		}
		switch p.StyleID {
		case StyleTableFootnote:
			a.footnote = true
		case StyleTableNote:
		default:
			return annotation{}, false
		}
		if len(p.Runs) > 0 {
			a.paragraphs = append(a.paragraphs, p)
		}
	}
	return a, len(a.paragraphs) > 0
}

func rowSpan(row *docx.Row) int {
	span := 0
	for _, c := range row.Cells {
		span += max(c.Span, 1)
	}
	return span
}

func (rc *renderContext) appendTable(parent *html.Node, t *docx.Table) {
	table := newElement(atom.Table, classAttr(rc.styleClasses(t.StyleID)...)...)
	tbody := newElement(atom.Tbody)
	table.AppendChild(tbody)

	var notes, footnotes []annotation
	width := 1
	for i := range t.Rows {
		row := &t.Rows[i]
		if a, ok := annotationRow(row); ok {
			if a.footnote {
				footnotes = append(footnotes, a)
			} else {
				notes = append(notes, a)
			}
			continue
		}
		width = max(width, rowSpan(row))

		tr := newElement(atom.Tr)
		for j := range row.Cells {
			tr.AppendChild(rc.cellNode(&row.Cells[j]))
		}
		tbody.AppendChild(tr)
	}

	if len(notes)+len(footnotes) > 0 {
		rc.log.Debug("Table annotations", zap.String("style", t.StyleID), zap.Int("notes", len(notes)), zap.Int("footnotes", len(footnotes)))
		tfoot := newElement(atom.Tfoot)
		for _, a := range notes {
			tfoot.AppendChild(rc.annotationNode(a, "table-note", width))
		}
		for _, a := range footnotes {
			tfoot.AppendChild(rc.annotationNode(a, "table-footnote", width))
		}
		table.AppendChild(tfoot)
	}
	parent.AppendChild(table)
}

func (rc *renderContext) cellNode(cell *docx.Cell) *html.Node {
	var attrs []html.Attribute
	if cell.Span > 1 {
		attrs = append(attrs, attr("colspan", strconv.Itoa(cell.Span)))
	}
	attrs = append(attrs, classAttr(rc.styleClasses(cell.StyleID)...)...)
	td := newElement(atom.Td, attrs...)

	for _, e := range cell.Elements {
		switch v := e.(type) {
		case *docx.Paragraph:
			if len(v.StyleID) == 0 {
				rc.appendRuns(td, v.Runs)
				continue
			}
			span := newElement(atom.Span, classAttr(rc.styleClasses(v.StyleID)...)...)
			rc.appendRuns(span, v.Runs)
			td.AppendChild(span)
		case *docx.PlainText:
			td.AppendChild(newText(v.Text.Text))
		default:
			rc.appendElement(td, e)
		}
	}
	return td
}

func (rc *renderContext) annotationNode(a annotation, class string, width int) *html.Node {
	tr := newElement(atom.Tr)
	td := newElement(atom.Td, append([]html.Attribute{attr("colspan", strconv.Itoa(width))}, classAttr(class)...)...)
	for _, p := range a.paragraphs {
		pn := newElement(atom.P, classAttr(rc.styleClasses(p.StyleID)...)...)
		rc.appendRuns(pn, p.Runs)
		td.AppendChild(pn)
	}
	tr.AppendChild(td)
	return tr
}
