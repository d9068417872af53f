// Package html5 renders document model into HTML5 markup.
package html5

import (
	"fmt"
	"html/template"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"docx2html/docx"
	"docx2html/stylemap"
)

const (
	defaultTitle    = "Document"
	defaultLanguage = "en"
)

// ImageExtractor turns image reference into path usable in src attribute,
// empty string when image cannot be extracted.
type ImageExtractor interface {
	Extract(ref string) string
}

// Renderer holds immutable rendering configuration. It is safe to call
// Transform concurrently for different documents.
type Renderer struct {
	styles     *stylemap.Map
	rules      *stylemap.Rules
	images     ImageExtractor
	title      string
	lang       string
	stylesheet string
	log        *zap.Logger
}

type Option func(*Renderer)

func WithRules(rules *stylemap.Rules) Option {
	return func(r *Renderer) { r.rules = rules }
}

func WithImages(images ImageExtractor) Option {
	return func(r *Renderer) { r.images = images }
}

// WithTitle sets document title, empty title keeps default.
func WithTitle(title string) Option {
	return func(r *Renderer) {
		if len(title) > 0 {
			r.title = title
		}
	}
}

// WithLanguage sets html lang attribute, empty value keeps default.
func WithLanguage(lang string) Option {
	return func(r *Renderer) {
		if len(lang) > 0 {
			r.lang = lang
		}
	}
}

// WithStylesheet embeds css into document head.
func WithStylesheet(css string) Option {
	return func(r *Renderer) { r.stylesheet = css }
}

func WithLogger(log *zap.Logger) Option {
	return func(r *Renderer) {
		if log != nil {
			r.log = log
		}
	}
}

// New creates renderer for the style map, nil map renders every style with
// defaults.
func New(styles *stylemap.Map, opts ...Option) *Renderer {
	r := &Renderer{
		styles: styles,
		title:  defaultTitle,
		lang:   defaultLanguage,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// renderContext keeps state of a single Transform call.
type renderContext struct {
	*Renderer
	footnotes noteList
	endnotes  noteList
}

func (r *Renderer) newContext() *renderContext {
	return &renderContext{
		Renderer:  r,
		footnotes: newFootnotes(),
		endnotes:  newEndnotes(),
	}
}

func hasContent(sections []docx.Section) bool {
	for i := range sections {
		if sections[i].HasContent() {
			return true
		}
	}
	return false
}

// Transform renders complete HTML document. Result is empty when there is
// nothing to render in any section.
func (r *Renderer) Transform(sections []docx.Section) (string, error) {
	if !hasContent(sections) {
		return "", nil
	}
	rc := r.newContext()

	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	appendNewline(doc)

	root := newElement(atom.Html, attr("lang", r.lang))
	doc.AppendChild(root)
	appendNewline(root)

	head := newElement(atom.Head)
	appendNewline(head)
	head.AppendChild(newElement(atom.Meta, attr("charset", "UTF-8")))
	appendNewline(head)
	head.AppendChild(newElement(atom.Meta, attr("name", "viewport"), attr("content", "width=device-width, initial-scale=1.0")))
	appendNewline(head)
	title := newElement(atom.Title)
	title.AppendChild(newText(r.title))
	head.AppendChild(title)
	appendNewline(head)
	if len(strings.TrimSpace(r.stylesheet)) > 0 {
		style := newElement(atom.Style)
		style.AppendChild(newText("\n" + strings.TrimSpace(r.stylesheet) + "\n"))
		head.AppendChild(style)
		appendNewline(head)
	}
	root.AppendChild(head)
	appendNewline(root)

	body := newElement(atom.Body)
	appendNewline(body)
	rc.appendBody(body, sections)
	root.AppendChild(body)
	appendNewline(root)

	var sb strings.Builder
	if err := html.Render(&sb, doc); err != nil {
		return "", fmt.Errorf("unable to serialize document: %w", err)
	}
	sb.WriteString("\n")
	return sb.String(), nil
}

// Fragment renders body content only, without document scaffolding. Notes
// are still appended.
func (r *Renderer) Fragment(sections []docx.Section) (string, error) {
	if !hasContent(sections) {
		return "", nil
	}
	rc := r.newContext()
	holder := newElement(atom.Body)
	rc.appendBody(holder, sections)
	out, err := renderChildren(holder)
	if err != nil {
		return "", fmt.Errorf("unable to serialize fragment: %w", err)
	}
	return out, nil
}

func (rc *renderContext) appendBody(body *html.Node, sections []docx.Section) {
	for i := range sections {
		rc.appendSection(body, &sections[i])
	}
	appendNotesSection(body, &rc.footnotes)
	appendNotesSection(body, &rc.endnotes)
}

func (rc *renderContext) appendSection(parent *html.Node, s *docx.Section) {
	for _, hf := range s.Headers {
		rc.appendHeaderFooter(parent, atom.Header, hf)
	}

	for i := 0; i < len(s.Elements); {
		if p, ok := s.Elements[i].(*docx.Paragraph); ok && rc.styles.IsList(p.StyleID) {
			var group []*docx.Paragraph
			for ; i < len(s.Elements); i++ {
				p, ok := s.Elements[i].(*docx.Paragraph)
				if !ok || !rc.styles.IsList(p.StyleID) {
					break
				}
				group = append(group, p)
			}
			rc.appendList(parent, group)
			appendNewline(parent)
			continue
		}
		if _, ok := s.Elements[i].(*docx.ListItem); ok {
			var group []*docx.ListItem
			for ; i < len(s.Elements); i++ {
				item, ok := s.Elements[i].(*docx.ListItem)
				if !ok {
					break
				}
				group = append(group, item)
			}
			rc.appendListItems(parent, group)
			appendNewline(parent)
			continue
		}
		rc.appendElement(parent, s.Elements[i])
		appendNewline(parent)
		i++
	}

	for _, hf := range s.Footers {
		rc.appendHeaderFooter(parent, atom.Footer, hf)
	}
}

func pageTypeName(t docx.PageType) string {
	switch t {
	case docx.PageFirst:
		return "first-page"
	case docx.PageDefault:
		return "default"
	case docx.PageEven:
		return "even-page"
	}
	return "unknown"
}

// appendHeaderFooter writes header or footer container, its elements are not
// grouped into lists.
func (rc *renderContext) appendHeaderFooter(parent *html.Node, a atom.Atom, hf docx.HeaderFooter) {
	container := newElement(a, classAttr(a.String()+"-"+pageTypeName(hf.PageType))...)
	appendNewline(container)
	for _, e := range hf.Elements {
		rc.appendElement(container, e)
		appendNewline(container)
	}
	parent.AppendChild(container)
	appendNewline(parent)
}

func (rc *renderContext) appendElement(parent *html.Node, e docx.Element) {
	switch v := e.(type) {
	case *docx.Paragraph:
		rc.appendParagraph(parent, v)
	case *docx.PlainText:
		p := newElement(atom.P)
		rc.appendFormattedText(p, v.Text.Text, v.Text.Format)
		parent.AppendChild(p)
	case *docx.Heading:
		rc.appendHeading(parent, v)
	case *docx.Table:
		if rc.applyRule(parent, stylemap.KindTables, v.StyleID, tableText(v), func(holder *html.Node) {
			rc.appendTable(holder, v)
		}) {
			return
		}
		rc.appendTable(parent, v)
	case *docx.ListItem:
		rc.appendListItems(parent, []*docx.ListItem{v})
	case *docx.Footnote:
		rc.appendNoteRef(parent, &rc.footnotes, v.Runs)
	case *docx.Endnote:
		rc.appendNoteRef(parent, &rc.endnotes, v.Runs)
	case *docx.Link:
		rc.appendLink(parent, v)
	case *docx.Image:
		rc.appendImage(parent, v)
	case *docx.LineBreak:
		parent.AppendChild(newElement(atom.Br))
	default:
		rc.log.Debug("Skipping unsupported element", zap.String("kind", docx.Kind(e)))
	}
}

func (rc *renderContext) appendParagraph(parent *html.Node, p *docx.Paragraph) {
	if rc.applyRule(parent, stylemap.KindParagraphs, p.StyleID, docx.RunsText(p.Runs), func(holder *html.Node) {
		rc.appendRuns(holder, p.Runs)
	}) {
		return
	}

	if entry, ok := rc.styles.Lookup(p.StyleID); ok {
		var a atom.Atom
		switch entry.ConvertTo {
		case stylemap.ConvertToBlockquote:
			a = atom.Blockquote
		case stylemap.ConvertToDiv:
			a = atom.Div
		case stylemap.ConvertToHeading:
			a = headingAtom(entry.HeadingLevel())
		}
		if a != 0 {
			rc.log.Debug("Paragraph converted", zap.String("style", p.StyleID), zap.Stringer("to", entry.ConvertTo))
			n := newElement(a, classAttr(entry.ClassName)...)
			rc.appendRuns(n, p.Runs)
			parent.AppendChild(n)
			return
		}
	}

	n := newElement(atom.P, classAttr(rc.styleClasses(p.StyleID)...)...)
	rc.appendRuns(n, p.Runs)
	parent.AppendChild(n)
}

var headingAtoms = [...]atom.Atom{atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6}

func headingAtom(level int) atom.Atom {
	return headingAtoms[min(max(level, 1), 6)-1]
}

// headingText is plain text of the heading text runs, formatting is not kept.
func headingText(h *docx.Heading) string {
	var sb strings.Builder
	for _, r := range h.Runs {
		if t, ok := r.(*docx.TextRun); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

func (rc *renderContext) appendHeading(parent *html.Node, h *docx.Heading) {
	text := headingText(h)
	if rc.applyRule(parent, stylemap.KindHeadings, h.StyleID, text, func(holder *html.Node) {
		holder.AppendChild(newText(text))
	}) {
		return
	}
	n := newElement(headingAtom(h.Depth), classAttr(rc.styleClasses(h.StyleID)...)...)
	n.AppendChild(newText(text))
	parent.AppendChild(n)
}

// tableText is plain text of all table paragraphs separated by spaces.
func tableText(t *docx.Table) string {
	var parts []string
	for _, row := range t.Rows {
		for _, cell := range row.Cells {
			for _, e := range cell.Elements {
				var s string
				switch v := e.(type) {
				case *docx.Paragraph:
					s = docx.RunsText(v.Runs)
				case *docx.PlainText:
					s = v.Text.Text
				}
				if len(s) > 0 {
					parts = append(parts, s)
				}
			}
		}
	}
	return strings.Join(parts, " ")
}

// applyRule renders element with custom rule registered for its style.
// Default rendering produced by render is given to the rule as HTML. It
// returns false when there is no rule or rule failed, in the latter case
// notes registered while rendering are discarded so default rendering can
// register them again.
func (rc *renderContext) applyRule(parent *html.Node, kind stylemap.Kind, styleID, text string, render func(holder *html.Node)) bool {
	rule, ok := rc.rules.For(kind, styleID)
	if !ok {
		return false
	}
	fn, en := len(rc.footnotes.bodies), len(rc.endnotes.bodies)

	holder := newElement(atom.Div)
	render(holder)
	content, err := renderChildren(holder)
	var out string
	if err == nil {
		out, err = rule(stylemap.RuleInput{StyleID: styleID, Text: text, HTML: template.HTML(content)})
	}
	if err != nil {
		rc.log.Warn("Custom rule failed, using default rendering",
			zap.String("kind", string(kind)), zap.String("style", styleID), zap.Error(err))
		rc.footnotes.bodies = rc.footnotes.bodies[:fn]
		rc.endnotes.bodies = rc.endnotes.bodies[:en]
		return false
	}
	rc.log.Debug("Custom rule applied", zap.String("kind", string(kind)), zap.String("style", styleID), zap.Int("length", len(out)))
	parent.AppendChild(newRaw(out))
	return true
}

