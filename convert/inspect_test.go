package convert

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"docx2html/css"
	"docx2html/docx"
	"docx2html/stylemap"
)

func para(style, text string) *docx.Paragraph {
	return &docx.Paragraph{StyleID: style, Runs: []docx.Run{&docx.TextRun{Text: text}}}
}

func inspectSample() *docx.Document {
	return &docx.Document{
		Path: "sample.docx",
		Sections: []docx.Section{
			{Elements: []docx.Element{
				para("ListParagraph", "one"),
				para("ListParagraph", "two"),
				para("", "plain"),
				&docx.Heading{Depth: 1, StyleID: "Heading1", Runs: []docx.Run{&docx.TextRun{Text: "Chapter"}}},
				&docx.Table{StyleID: "Grid", Rows: []docx.Row{
					{Cells: []docx.Cell{{Span: 1, Elements: []docx.Element{para("TableNote", "note")}}}},
				}},
			}},
			{Elements: []docx.Element{
				para("Quote", strings.Repeat("q", 150)),
			}},
		},
	}
}

func runInspect(t *testing.T, doc *docx.Document, opts inspectOptions) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, inspectDocument(doc, opts, &buf))
	return buf.String()
}

func assertOrder(t *testing.T, out string, parts ...string) {
	t.Helper()
	pos := -1
	for _, p := range parts {
		idx := strings.Index(out, p)
		require.GreaterOrEqual(t, idx, 0, "missing %q", p)
		assert.Greater(t, idx, pos, "%q is out of order", p)
		pos = idx
	}
}

func TestInspectDocument_Summary(t *testing.T) {
	out := runInspect(t, inspectSample(), inspectOptions{})

	assert.Contains(t, out, "Total sections: 2\n")
	assert.Contains(t, out, "Total elements: 6\n")
	assertOrder(t, out, "Element types:", "paragraph", "heading", "table", "Style ids:")
	assertOrder(t, out, "Style ids:", "ListParagraph", "Grid", "Heading1", "Quote", "TableNote")
	assert.Regexp(t, `ListParagraph\s+2\s+paragraph\n`, out)
	assert.Regexp(t, `TableNote\s+1\s+table\n`, out)
	assert.NotContains(t, out, "first occurrence")
}

func TestInspectDocument_NoStyles(t *testing.T) {
	doc := &docx.Document{Sections: []docx.Section{{Elements: []docx.Element{para("", "x"), &docx.LineBreak{}}}}}
	out := runInspect(t, doc, inspectOptions{detailed: true})

	assert.Contains(t, out, "No style ids found in document.")
	assert.Regexp(t, `line_break\s+1\n`, out)
	assert.NotContains(t, out, "first occurrence")
}

func TestInspectDocument_Detailed(t *testing.T) {
	out := runInspect(t, inspectSample(), inspectOptions{detailed: true})

	assert.Contains(t, out, "Style ID: Grid\n    Element type: table\n    Section: 0, Element: 4\n    Preview: note\n")
	assert.Contains(t, out, "Style ID: Quote\n    Element type: paragraph\n    Section: 1, Element: 0\n")
	assert.Contains(t, out, "Preview: "+strings.Repeat("q", previewLimit)+"...\n")
	assert.Contains(t, out, "Style ID: ListParagraph\n    Element type: paragraph\n    Section: 0, Element: 0\n    Preview: one\n")
}

func TestInspectDocument_Stylesheet(t *testing.T) {
	sheet := css.Parse([]byte(`.list-paragraph { margin: 0 } blockquote.quote, .heading1 { color: red }`), zaptest.NewLogger(t))
	styles := stylemap.New(map[string]stylemap.Entry{
		"Quote": {ConvertTo: stylemap.ConvertToBlockquote, ClassName: "quote"},
	})

	out := runInspect(t, inspectSample(), inspectOptions{stylesheet: sheet, styles: styles})
	assert.Contains(t, out, "Classes missing from stylesheet:\n  .grid\n  .table-note\n")
	assert.NotContains(t, out, "  .quote\n")

	sheet = css.Parse([]byte(`.grid, .table-note, .list-paragraph, .heading1, .quote {}`), zaptest.NewLogger(t))
	out = runInspect(t, inspectSample(), inspectOptions{stylesheet: sheet, styles: styles})
	assert.Contains(t, out, "Stylesheet defines all 5 classes used by document.")
}

func TestInspectDocument_Export(t *testing.T) {
	name := filepath.Join(t.TempDir(), "styles.yaml")
	out := runInspect(t, inspectSample(), inspectOptions{export: name})
	assert.Contains(t, out, "Style map template exported to: "+name)

	data, err := os.ReadFile(name)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "# Used 2 time(s) in: paragraph\n")
	assertOrder(t, text, "Grid:", "Heading1:", "ListParagraph:", "Quote:", "TableNote:")

	// template is accepted as style map
	m, err := stylemap.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, 5, m.Len())

	e, ok := m.Lookup("ListParagraph")
	require.True(t, ok)
	assert.Equal(t, stylemap.Entry{ConvertTo: stylemap.ConvertToList, ClassName: "list-paragraph", ListType: stylemap.ListTypeUl}, e)

	e, _ = m.Lookup("Quote")
	assert.Equal(t, stylemap.Entry{ConvertTo: stylemap.ConvertToBlockquote, ClassName: "quote"}, e)

	e, _ = m.Lookup("Heading1")
	assert.Equal(t, stylemap.Entry{ClassName: "heading1"}, e)
}

func TestInspectDocument_ExportEmpty(t *testing.T) {
	name := filepath.Join(t.TempDir(), "styles.yaml")
	runInspect(t, &docx.Document{}, inspectOptions{export: name})

	data, err := os.ReadFile(name)
	require.NoError(t, err)
	m, err := stylemap.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestInspectDocument_ExportError(t *testing.T) {
	var buf bytes.Buffer
	err := inspectDocument(inspectSample(), inspectOptions{export: filepath.Join(t.TempDir(), "missing", "styles.yaml")}, &buf)
	require.Error(t, err)
	assert.Empty(t, buf.String())
}

func TestSuggestMapping(t *testing.T) {
	tests := []struct {
		id       string
		expected suggestion
	}{
		{"Normal", suggestion{className: "normal"}},
		{"ListParagraph", suggestion{convertTo: stylemap.ConvertToList, className: "list-paragraph", listType: "ul"}},
		{"ListBullet2", suggestion{convertTo: stylemap.ConvertToList, className: "list-bullet2", listType: "ul"}},
		{"ListNumber", suggestion{convertTo: stylemap.ConvertToList, className: "list-number", listType: "ol"}},
		{"IntenseQuote", suggestion{convertTo: stylemap.ConvertToBlockquote, className: "intense-quote"}},
		{"Title", suggestion{className: "title"}},
		{"ListHeading", suggestion{className: "list-heading", listType: "ul"}},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.expected, suggestMapping(tt.id))
		})
	}
}
