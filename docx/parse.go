package docx

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"docx2html/archive"
)

// Source gives access to parts of a document container.
type Source interface {
	ReadEntry(container, internal string) ([]byte, error)
	MainPart(container string) (string, error)
	PartRelationships(container, part string) (map[string]archive.Relationship, error)
}

// Default part names used when main part relationships do not name them.
const (
	defaultCorePart      = "docProps/core.xml"
	defaultStylesPart    = "word/styles.xml"
	defaultFootnotesPart = "word/footnotes.xml"
	defaultEndnotesPart  = "word/endnotes.xml"
)

// emuPerPixel converts DrawingML extents (English Metric Units) to pixels at
// 96 DPI.
const emuPerPixel = 9525

type reader struct {
	src       Source
	path      string
	log       *zap.Logger
	styles    map[string]Style
	footnotes map[string][]Run
	endnotes  map[string][]Run
	parts     map[string][]Element
}

// part is a parsed container part with its relationships.
type part struct {
	name string
	rels map[string]archive.Relationship
}

// Open reads document from container at path. Parsing is best effort:
// unexpected markup is logged and skipped, only container level problems
// (missing main part, broken XML) are reported as errors.
func Open(ctx context.Context, src Source, path string, log *zap.Logger) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r := &reader{
		src:   src,
		path:  path,
		log:   log,
		parts: make(map[string][]Element),
	}

	mainName, err := src.MainPart(path)
	if err != nil {
		return nil, fmt.Errorf("unable to locate main document part: %w", err)
	}
	mainPart, err := r.openPart(mainName)
	if err != nil {
		return nil, err
	}

	root, err := r.readXML(mainName)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("main document part %q is missing", mainName)
	}
	if root.Tag != "document" {
		return nil, fmt.Errorf("unexpected root element %q in %q", root.Tag, mainName)
	}
	body := root.SelectElement("body")
	if body == nil {
		return nil, fmt.Errorf("document part %q has no body", mainName)
	}

	doc := &Document{Path: path}

	if doc.Properties, err = r.coreProperties(); err != nil {
		return nil, err
	}
	if r.styles, err = r.parseStyles(mainPart.target(archive.RelTypeStyles, defaultStylesPart)); err != nil {
		return nil, err
	}
	doc.Styles = r.styles
	if r.footnotes, err = r.parseNotes(mainPart.target(archive.RelTypeFootnotes, defaultFootnotesPart), "footnote"); err != nil {
		return nil, err
	}
	if r.endnotes, err = r.parseNotes(mainPart.target(archive.RelTypeEndnotes, defaultEndnotesPart), "endnote"); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc.Sections = r.parseBody(body, mainPart)
	return doc, nil
}

// target returns target of the first internal relationship of type relType
// or dflt.
func (p *part) target(relType, dflt string) string {
	for _, rel := range p.rels {
		if rel.Type == relType && !rel.External {
			return rel.Target
		}
	}
	return dflt
}

func (r *reader) openPart(name string) (*part, error) {
	rels, err := r.src.PartRelationships(r.path, name)
	if err != nil {
		return nil, fmt.Errorf("unable to read relationships of %q: %w", name, err)
	}
	return &part{name: name, rels: rels}, nil
}

// readXML parses container part, returns nil root when part does not exist.
func (r *reader) readXML(name string) (*etree.Element, error) {
	data, err := r.src.ReadEntry(r.path, name)
	if err != nil {
		return nil, fmt.Errorf("unable to read %q: %w", name, err)
	}
	if data == nil {
		return nil, nil
	}

	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		Permissive:    true,
	}
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("unable to parse %q: %w", name, err)
	}
	return doc.Root(), nil
}

func (r *reader) coreProperties() (CoreProperties, error) {
	var props CoreProperties

	pkg, err := r.openPart("")
	if err != nil {
		return props, err
	}
	root, err := r.readXML(pkg.target(archive.RelTypeCoreProperties, defaultCorePart))
	if err != nil || root == nil {
		return props, err
	}

	for _, child := range root.ChildElements() {
		value := strings.TrimSpace(child.Text())
		switch child.Tag {
		case "title":
			props.Title = value
		case "subject":
			props.Subject = value
		case "creator":
			props.Creator = value
		case "identifier":
			props.Identifier = value
		case "language":
			props.Language = value
		}
	}
	return props, nil
}

func (r *reader) parseStyles(name string) (map[string]Style, error) {
	styles := make(map[string]Style)

	root, err := r.readXML(name)
	if err != nil || root == nil {
		return styles, err
	}

	for _, el := range root.SelectElements("style") {
		s := Style{
			ID:      el.SelectAttrValue("styleId", ""),
			Type:    el.SelectAttrValue("type", ""),
			Name:    val(el.SelectElement("name")),
			BasedOn: val(el.SelectElement("basedOn")),
		}
		if len(s.ID) == 0 {
			continue
		}
		styles[s.ID] = s
	}
	return styles, nil
}

// parseNotes reads footnotes or endnotes part into runs keyed by note id.
// Paragraphs of a note are joined with a space, separator notes are skipped.
func (r *reader) parseNotes(name, tag string) (map[string][]Run, error) {
	notes := make(map[string][]Run)

	root, err := r.readXML(name)
	if err != nil || root == nil {
		return notes, err
	}
	p, err := r.openPart(name)
	if err != nil {
		return nil, err
	}

	for _, el := range root.SelectElements(tag) {
		id := el.SelectAttrValue("id", "")
		switch el.SelectAttrValue("type", "normal") {
		case "separator", "continuationSeparator", "continuationNotice":
			continue
		}
		if id == "0" || id == "-1" {
			continue
		}

		var runs []Run
		for _, para := range el.FindElements(".//p") {
			var content []Run
			r.parseRunContainer(para, p, &content)
			if len(content) == 0 {
				continue
			}
			if len(runs) > 0 {
				runs = append(runs, &TextRun{Text: " "})
			}
			runs = append(runs, content...)
		}
		notes[id] = runs
	}
	return notes, nil
}

func (r *reader) parseBody(body *etree.Element, p *part) []Section {
	var (
		sections []Section
		cur      Section
	)

	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		for _, child := range el.ChildElements() {
			switch child.Tag {
			case "p":
				cur.Elements = append(cur.Elements, r.parseParagraph(child, p))
				if sectPr := descend(child, "pPr", "sectPr"); sectPr != nil {
					r.sectionProperties(&cur, sectPr, p)
					sections = append(sections, cur)
					cur = Section{}
				}
			case "tbl":
				cur.Elements = append(cur.Elements, r.parseTable(child, p))
			case "sdt":
				if content := child.SelectElement("sdtContent"); content != nil {
					walk(content)
				}
			case "customXml", "ins", "moveTo":
				walk(child)
			case "sectPr":
				r.sectionProperties(&cur, child, p)
			case "bookmarkStart", "bookmarkEnd", "proofErr", "permStart", "permEnd",
				"commentRangeStart", "commentRangeEnd", "del", "moveFrom":
			default:
				r.log.Debug("Unexpected tag in body, ignoring", zap.String("parent", el.Tag), zap.String("tag", child.Tag))
			}
		}
	}
	walk(body)

	if cur.HasContent() || len(sections) == 0 {
		sections = append(sections, cur)
	}
	return sections
}

// parseBlocks reads block level content of table cells, headers and footers.
func (r *reader) parseBlocks(el *etree.Element, p *part) []Element {
	var elements []Element
	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "p":
			elements = append(elements, r.parseParagraph(child, p))
		case "tbl":
			elements = append(elements, r.parseTable(child, p))
		case "sdt":
			if content := child.SelectElement("sdtContent"); content != nil {
				elements = append(elements, r.parseBlocks(content, p)...)
			}
		case "customXml", "ins", "moveTo":
			elements = append(elements, r.parseBlocks(child, p)...)
		case "tcPr", "bookmarkStart", "bookmarkEnd", "proofErr", "permStart", "permEnd",
			"commentRangeStart", "commentRangeEnd", "del", "moveFrom":
		default:
			r.log.Debug("Unexpected block tag, ignoring", zap.String("parent", el.Tag), zap.String("tag", child.Tag))
		}
	}
	return elements
}

func (r *reader) sectionProperties(sec *Section, sectPr *etree.Element, p *part) {
	for _, child := range sectPr.ChildElements() {
		var headers bool
		switch child.Tag {
		case "headerReference":
			headers = true
		case "footerReference":
		default:
			continue
		}

		rel, ok := p.rels[child.SelectAttrValue("id", "")]
		if !ok || rel.External {
			r.log.Warn("Unresolved header/footer reference, ignoring", zap.String("tag", child.Tag), zap.String("id", child.SelectAttrValue("id", "")))
			continue
		}
		hf := HeaderFooter{
			PageType: parsePageType(child.SelectAttrValue("type", "")),
			Elements: r.headerFooter(rel.Target),
		}
		if headers {
			sec.Headers = append(sec.Headers, hf)
		} else {
			sec.Footers = append(sec.Footers, hf)
		}
	}
}

func parsePageType(s string) PageType {
	switch s {
	case "first":
		return PageFirst
	case "even":
		return PageEven
	default:
		return PageDefault
	}
}

func (r *reader) headerFooter(name string) []Element {
	if elements, ok := r.parts[name]; ok {
		return elements
	}

	var elements []Element
	root, err := r.readXML(name)
	if err != nil {
		r.log.Warn("Unable to read header/footer, ignoring", zap.String("part", name), zap.Error(err))
	}
	if root != nil {
		if p, err := r.openPart(name); err != nil {
			r.log.Warn("Unable to read header/footer relationships, ignoring", zap.String("part", name), zap.Error(err))
		} else {
			elements = r.parseBlocks(root, p)
		}
	}
	r.parts[name] = elements
	return elements
}

func (r *reader) parseTable(el *etree.Element, p *part) *Table {
	t := &Table{StyleID: val(descend(el, "tblPr", "tblStyle"))}

	var rows func(el *etree.Element)
	rows = func(el *etree.Element) {
		for _, child := range el.ChildElements() {
			switch child.Tag {
			case "tr":
				t.Rows = append(t.Rows, r.parseRow(child, p))
			case "sdt":
				if content := child.SelectElement("sdtContent"); content != nil {
					rows(content)
				}
			case "customXml", "ins":
				rows(child)
			}
		}
	}
	rows(el)
	return t
}

func (r *reader) parseRow(el *etree.Element, p *part) Row {
	var row Row

	var cells func(el *etree.Element)
	cells = func(el *etree.Element) {
		for _, child := range el.ChildElements() {
			switch child.Tag {
			case "tc":
				cell := Cell{Span: 1}
				if span, err := strconv.Atoi(val(descend(child, "tcPr", "gridSpan"))); err == nil && span > 1 {
					cell.Span = span
				}
				cell.Elements = r.parseBlocks(child, p)
				row.Cells = append(row.Cells, cell)
			case "sdt":
				if content := child.SelectElement("sdtContent"); content != nil {
					cells(content)
				}
			case "customXml":
				cells(child)
			}
		}
	}
	cells(el)
	return row
}

var headingStyleName = regexp.MustCompile(`^heading\s*([0-9])$`)

// headingDepth detects heading paragraph styles by style name ("heading 1",
// "Title") falling back to style id ("Heading1").
func (r *reader) headingDepth(styleID string) (int, bool) {
	if len(styleID) == 0 {
		return 0, false
	}
	for _, name := range []string{r.styles[styleID].Name, styleID} {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "title" {
			return 0, true
		}
		if m := headingStyleName.FindStringSubmatch(name); m != nil {
			depth, _ := strconv.Atoi(m[1])
			return depth, true
		}
	}
	return 0, false
}

func (r *reader) parseParagraph(el *etree.Element, p *part) Element {
	var (
		styleID  string
		numbered bool
		ilvl     int
	)
	if pPr := el.SelectElement("pPr"); pPr != nil {
		styleID = val(pPr.SelectElement("pStyle"))
		if numPr := pPr.SelectElement("numPr"); numPr != nil {
			// numId 0 removes numbering inherited from style
			numbered = val(numPr.SelectElement("numId")) != "0"
			ilvl, _ = strconv.Atoi(val(numPr.SelectElement("ilvl")))
		}
	}

	var runs []Run
	r.parseRunContainer(el, p, &runs)

	if depth, ok := r.headingDepth(styleID); ok {
		return &Heading{Depth: depth, StyleID: styleID, Runs: runs}
	}
	if numbered && len(styleID) == 0 {
		return &ListItem{Depth: max(ilvl, 0) + 1, Text: flattenRuns(runs)}
	}
	if len(runs) == 0 && len(styleID) == 0 {
		return &LineBreak{}
	}
	return &Paragraph{StyleID: styleID, Runs: runs}
}

// flattenRuns collapses runs into a single text run keeping format of the
// first text run.
func flattenRuns(runs []Run) TextRun {
	res := TextRun{Text: RunsText(runs)}
	for _, run := range runs {
		if tr, ok := run.(*TextRun); ok {
			res.Format = tr.Format
			break
		}
	}
	return res
}

// parseRunContainer collects runs of paragraph like elements: paragraphs,
// hyperlinks, smart tags, inline content controls and inserted text.
func (r *reader) parseRunContainer(el *etree.Element, p *part, out *[]Run) {
	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "r":
			r.parseRun(child, p, out)
		case "hyperlink":
			r.parseHyperlink(child, p, out)
		case "sdt":
			if content := child.SelectElement("sdtContent"); content != nil {
				r.parseRunContainer(content, p, out)
			}
		case "ins", "smartTag", "fldSimple", "customXml", "moveTo", "dir", "bdo":
			r.parseRunContainer(child, p, out)
		case "pPr", "del", "moveFrom", "bookmarkStart", "bookmarkEnd", "proofErr",
			"commentRangeStart", "commentRangeEnd", "permStart", "permEnd",
			"oMath", "oMathPara":
		default:
			r.log.Debug("Unexpected inline tag, ignoring", zap.String("parent", el.Tag), zap.String("tag", child.Tag))
		}
	}
}

func (r *reader) parseHyperlink(el *etree.Element, p *part, out *[]Run) {
	var inner []Run
	r.parseRunContainer(el, p, &inner)

	var source string
	if id := el.SelectAttrValue("id", ""); len(id) > 0 {
		if rel, ok := p.rels[id]; ok {
			source = rel.Target
		} else {
			r.log.Warn("Unresolved hyperlink relationship", zap.String("id", id))
		}
	}
	if anchor := el.SelectAttrValue("anchor", ""); len(anchor) > 0 {
		source += "#" + anchor
	}

	if len(source) == 0 {
		*out = append(*out, inner...)
		return
	}
	*out = append(*out, &Link{Source: source, Text: RunsText(inner)})
}

func (r *reader) parseRun(el *etree.Element, p *part, out *[]Run) {
	format := parseFormat(el.SelectElement("rPr"))

	var sb strings.Builder
	flush := func() {
		if sb.Len() > 0 {
			*out = append(*out, &TextRun{Text: sb.String(), Format: format})
			sb.Reset()
		}
	}

	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "t":
			sb.WriteString(child.Text())
		case "tab", "ptab":
			sb.WriteByte('\t')
		case "br":
			switch child.SelectAttrValue("type", "") {
			case "page", "column":
			default:
				sb.WriteByte('\n')
			}
		case "cr":
			sb.WriteByte('\n')
		case "noBreakHyphen":
			sb.WriteString("\u2011")
		case "softHyphen":
			sb.WriteString("\u00ad")
		case "drawing":
			flush()
			if img := r.parseDrawing(child, p); img != nil {
				*out = append(*out, img)
			}
		case "pict", "object":
			flush()
			if img := r.parseVML(child, p); img != nil {
				*out = append(*out, img)
			}
		case "AlternateContent":
			flush()
			if img := r.parseAlternateContent(child, p); img != nil {
				*out = append(*out, img)
			}
		case "footnoteReference":
			flush()
			r.noteReference(child, r.footnotes, out, func(runs []Run) Run { return &Footnote{Runs: runs} })
		case "endnoteReference":
			flush()
			r.noteReference(child, r.endnotes, out, func(runs []Run) Run { return &Endnote{Runs: runs} })
		case "rPr", "footnoteRef", "endnoteRef", "separator", "continuationSeparator",
			"lastRenderedPageBreak", "fldChar", "instrText", "delText", "commentReference",
			"annotationRef", "sym":
		default:
			r.log.Debug("Unexpected run tag, ignoring", zap.String("tag", child.Tag))
		}
	}
	flush()
}

func (r *reader) noteReference(el *etree.Element, notes map[string][]Run, out *[]Run, mk func([]Run) Run) {
	id := el.SelectAttrValue("id", "")
	runs, ok := notes[id]
	if !ok {
		r.log.Warn("Reference to missing note, ignoring", zap.String("tag", el.Tag), zap.String("id", id))
		return
	}
	*out = append(*out, mk(runs))
}

func (r *reader) imageSource(id string, p *part) string {
	if len(id) == 0 {
		return ""
	}
	rel, ok := p.rels[id]
	if !ok {
		r.log.Warn("Unresolved image relationship", zap.String("part", p.name), zap.String("id", id))
		return ""
	}
	return rel.Target
}

func (r *reader) parseDrawing(el *etree.Element, p *part) *Image {
	blip := el.FindElement(".//blip")
	if blip == nil {
		r.log.Debug("Drawing without picture, ignoring")
		return nil
	}
	src := r.imageSource(blip.SelectAttrValue("embed", ""), p)
	if len(src) == 0 {
		src = r.imageSource(blip.SelectAttrValue("link", ""), p)
	}
	if len(src) == 0 {
		return nil
	}

	img := &Image{Source: src}
	if docPr := el.FindElement(".//docPr"); docPr != nil {
		for _, key := range []string{"descr", "title", "name"} {
			if v := docPr.SelectAttrValue(key, ""); len(v) > 0 {
				img.Name = v
				break
			}
		}
	}
	if extent := el.FindElement(".//extent"); extent != nil {
		img.Width = emuToPixels(extent.SelectAttrValue("cx", ""))
		img.Height = emuToPixels(extent.SelectAttrValue("cy", ""))
	}
	return img
}

func emuToPixels(s string) int {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0
	}
	return int(math.Round(float64(v) / emuPerPixel))
}

func (r *reader) parseVML(el *etree.Element, p *part) *Image {
	data := el.FindElement(".//imagedata")
	if data == nil {
		return nil
	}
	src := r.imageSource(data.SelectAttrValue("id", ""), p)
	if len(src) == 0 {
		return nil
	}

	img := &Image{Source: src, Name: data.SelectAttrValue("title", "")}
	if shape := el.FindElement(".//shape"); shape != nil {
		if len(img.Name) == 0 {
			img.Name = shape.SelectAttrValue("alt", "")
		}
		img.Width, img.Height = vmlSize(shape.SelectAttrValue("style", ""))
	}
	return img
}

// vmlSize extracts width and height (in pixels) from VML shape style.
func vmlSize(style string) (width, height int) {
	for decl := range strings.SplitSeq(style, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(name) {
		case "width":
			width = cssLengthToPixels(value)
		case "height":
			height = cssLengthToPixels(value)
		}
	}
	return width, height
}

func cssLengthToPixels(s string) int {
	s = strings.TrimSpace(s)
	factor := 1.0
	switch {
	case strings.HasSuffix(s, "pt"):
		factor, s = 96.0/72.0, strings.TrimSuffix(s, "pt")
	case strings.HasSuffix(s, "in"):
		factor, s = 96.0, strings.TrimSuffix(s, "in")
	case strings.HasSuffix(s, "px"):
		s = strings.TrimSuffix(s, "px")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0
	}
	return int(math.Round(v * factor))
}

// parseAlternateContent prefers DrawingML choice and falls back to VML.
func (r *reader) parseAlternateContent(el *etree.Element, p *part) *Image {
	if drawing := el.FindElement(".//drawing"); drawing != nil {
		if img := r.parseDrawing(drawing, p); img != nil {
			return img
		}
	}
	return r.parseVML(el, p)
}

// parseFormat reads run properties.
func parseFormat(rPr *etree.Element) Format {
	var f Format
	if rPr == nil {
		return f
	}
	for _, child := range rPr.ChildElements() {
		switch child.Tag {
		case "b":
			f.Bold = isOn(child)
		case "i":
			f.Italic = isOn(child)
		case "strike":
			f.Strike = isOn(child)
		case "dstrike":
			f.DoubleStrike = isOn(child)
		case "smallCaps":
			f.SmallCaps = isOn(child)
		case "caps":
			f.AllCaps = isOn(child)
		case "vertAlign":
			switch val(child) {
			case "superscript":
				f.Superscript = true
			case "subscript":
				f.Subscript = true
			}
		case "u":
			switch v := val(child); v {
			case "none":
			case "":
				f.Underline = "single"
			default:
				f.Underline = v
			}
		case "color":
			if v := val(child); v != "auto" {
				f.Color = v
			}
		case "shd":
			if v := child.SelectAttrValue("fill", ""); v != "auto" {
				f.Background = v
			}
		case "highlight":
			if v := val(child); v != "none" {
				f.Highlight = v
			}
		}
	}
	return f
}

// isOn interprets OOXML toggle property.
func isOn(el *etree.Element) bool {
	switch val(el) {
	case "0", "false", "off":
		return false
	}
	return true
}

// val returns "val" attribute of possibly nil element.
func val(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return el.SelectAttrValue("val", "")
}

// descend walks through first child elements with given tags.
func descend(el *etree.Element, tags ...string) *etree.Element {
	for _, tag := range tags {
		if el == nil {
			return nil
		}
		el = el.SelectElement(tag)
	}
	return el
}
