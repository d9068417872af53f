package html5

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"docx2html/docx"
)

// noteList collects rendered note bodies in order of reference, note number
// is position in the list plus one.
type noteList struct {
	kind    string // "footnote" or "endnote"
	prefix  string // anchor prefix: "fn" or "en"
	heading string
	bodies  []string
}

func newFootnotes() noteList {
	return noteList{kind: "footnote", prefix: "fn", heading: "Footnotes"}
}

func newEndnotes() noteList {
	return noteList{kind: "endnote", prefix: "en", heading: "Endnotes"}
}

var (
	reNoteLead  = regexp.MustCompile(`^[.\s]+`)
	reNoteTrail = regexp.MustCompile(`[.\s]+$`)
)

// appendNoteRef registers note and writes numbered reference to it. The slot
// is taken before note content is rendered so notes referenced from inside
// the note are numbered after it.
func (rc *renderContext) appendNoteRef(parent *html.Node, notes *noteList, runs []docx.Run) {
	notes.bodies = append(notes.bodies, "")
	idx := len(notes.bodies) - 1
	notes.bodies[idx] = rc.noteBody(runs)
	n := strconv.Itoa(idx + 1)

	sup := newElement(atom.Sup, classAttr(notes.kind+"-ref")...)
	a := newElement(atom.A, attr("href", "#"+notes.prefix+n), attr("id", notes.prefix+"ref"+n))
	a.AppendChild(newText("[" + n + "]"))
	sup.AppendChild(a)
	parent.AppendChild(sup)
}

// noteBody renders note content with inline formatting. Leading and trailing
// dots and spaces are dropped.
func (rc *renderContext) noteBody(runs []docx.Run) string {
	holder := newElement(atom.Div)
	rc.appendRuns(holder, runs)
	body, err := renderChildren(holder)
	if err != nil {
		rc.log.Warn("Unable to render note content", zap.Error(err))
		return ""
	}
	body = strings.TrimSpace(body)
	body = reNoteLead.ReplaceAllString(body, "")
	return reNoteTrail.ReplaceAllString(body, "")
}

// appendNotesSection writes collected notes after horizontal rule, nothing
// when there are no notes.
func appendNotesSection(parent *html.Node, notes *noteList) {
	if len(notes.bodies) == 0 {
		return
	}
	parent.AppendChild(newElement(atom.Hr))
	appendNewline(parent)

	section := newElement(atom.Section, classAttr(notes.kind+"s")...)
	h2 := newElement(atom.H2)
	h2.AppendChild(newText(notes.heading))
	section.AppendChild(h2)

	ol := newElement(atom.Ol)
	for i, body := range notes.bodies {
		n := strconv.Itoa(i + 1)
		li := newElement(atom.Li, attr("id", notes.prefix+n))
		li.AppendChild(newRaw(body))
		li.AppendChild(newText(" "))
		back := newElement(atom.A, attr("href", "#"+notes.prefix+"ref"+n))
		back.AppendChild(newText("↩"))
		li.AppendChild(back)
		ol.AppendChild(li)
	}
	section.AppendChild(ol)
	parent.AppendChild(section)
	appendNewline(parent)
}
