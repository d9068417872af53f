package html5

import (
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"docx2html/docx"
)

// appendRuns writes inline content. Adjacent text runs with identical
// formatting are merged so that "3" + "5" in bold becomes single
// <strong>35</strong>.
func (rc *renderContext) appendRuns(parent *html.Node, runs []docx.Run) {
	var (
		pending strings.Builder
		format  docx.Format
		open    bool
	)
	flush := func() {
		if open {
			rc.appendFormattedText(parent, pending.String(), format)
			pending.Reset()
			open = false
		}
	}

	for _, r := range runs {
		switch v := r.(type) {
		case *docx.TextRun:
			if open && v.Format != format {
				flush()
			}
			format, open = v.Format, true
			pending.WriteString(v.Text)
		case *docx.Link:
			flush()
			rc.appendLink(parent, v)
		case *docx.Image:
			flush()
			rc.appendImage(parent, v)
		case *docx.Footnote:
			flush()
			rc.appendNoteRef(parent, &rc.footnotes, v.Runs)
		case *docx.Endnote:
			flush()
			rc.appendNoteRef(parent, &rc.endnotes, v.Runs)
		default:
			rc.log.Debug("Skipping unsupported inline run", zap.Any("run", r))
		}
	}
	flush()
}

// appendFormattedText wraps text into formatting elements, innermost first:
// sup/sub, strike, strong, em, u, caps, color, background, highlight. Line
// breaks inside text become <br/>.
func (rc *renderContext) appendFormattedText(parent *html.Node, text string, f docx.Format) {
	if len(text) == 0 {
		return
	}

	var nodes []*html.Node
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			nodes = append(nodes, newElement(atom.Br))
		}
		if len(line) > 0 {
			nodes = append(nodes, newText(line))
		}
	}

	wrap := func(a atom.Atom, attrs ...html.Attribute) {
		w := newElement(a, attrs...)
		for _, n := range nodes {
			w.AppendChild(n)
		}
		nodes = []*html.Node{w}
	}

	switch {
	case f.Superscript:
		wrap(atom.Sup)
	case f.Subscript:
		wrap(atom.Sub)
	}
	switch {
	case f.Strike:
		wrap(atom.S)
	case f.DoubleStrike:
		wrap(atom.S, classAttr("double-strike")...)
	}
	if f.Bold {
		wrap(atom.Strong)
	}
	if f.Italic {
		wrap(atom.Em)
	}
	if len(f.Underline) > 0 && f.Underline != "none" {
		wrap(atom.U)
	}
	switch {
	case f.SmallCaps:
		wrap(atom.Span, classAttr("small-caps")...)
	case f.AllCaps:
		wrap(atom.Span, classAttr("all-caps")...)
	}
	if c, ok := textColor(f.Color); ok {
		wrap(atom.Span, attr("style", "color: #"+c+";"))
	}
	if c, ok := hexColor(f.Background); ok {
		wrap(atom.Mark, attr("style", "background-color: #"+c+";"))
	}
	if len(f.Highlight) > 0 {
		wrap(atom.Mark, classAttr("highlight-"+f.Highlight)...)
	}

	for _, n := range nodes {
		parent.AppendChild(n)
	}
}

func (rc *renderContext) appendLink(parent *html.Node, link *docx.Link) {
	attrs := []html.Attribute{attr("href", link.Source)}
	if isExternal(link.Source) {
		attrs = append(attrs, attr("rel", "noopener noreferrer"))
	}
	a := newElement(atom.A, attrs...)
	text := link.Text
	if len(text) == 0 {
		text = link.Source
	}
	a.AppendChild(newText(text))
	parent.AppendChild(a)
}

func isExternal(href string) bool {
	h := strings.ToLower(href)
	return strings.HasPrefix(h, "http://") || strings.HasPrefix(h, "https://")
}

func (rc *renderContext) appendImage(parent *html.Node, img *docx.Image) {
	src := img.Source
	if rc.images != nil && len(img.Source) > 0 {
		if out := rc.images.Extract(img.Source); len(out) > 0 {
			src = out
		} else {
			rc.log.Debug("Image is not extracted, keeping original reference", zap.String("source", img.Source))
		}
	}
	attrs := []html.Attribute{attr("src", src), attr("alt", img.Name)}
	if img.Width > 0 {
		attrs = append(attrs, attr("width", strconv.Itoa(img.Width)))
	}
	if img.Height > 0 {
		attrs = append(attrs, attr("height", strconv.Itoa(img.Height)))
	}
	parent.AppendChild(newElement(atom.Img, attrs...))
}
