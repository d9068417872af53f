package html5

import (
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"docx2html/docx"
	"docx2html/stylemap"
)

// listBuilder reconstructs nested lists from a flat run of list paragraphs.
// Nesting level comes from the style id numeric suffix ("ListParagraph2" is
// level 2) or from depth of numbered paragraphs. Item which is followed by a deeper one hosts the nested
// container.
type listBuilder struct {
	rc     *renderContext
	parent *html.Node
	// open containers, open[i] is container of level i+1
	open []*html.Node
	// last item written at each open level, nil when level has none yet
	items []*html.Node
}

func (lb *listBuilder) add(p *docx.Paragraph) {
	level := stylemap.Level(p.StyleID)
	entry, _ := lb.rc.styles.ListEntry(p.StyleID)

	li := newElement(atom.Li, classAttr(NormalizeStyleID(p.StyleID))...)
	lb.rc.appendRuns(li, p.Runs)
	lb.push(li, level, entry.ListType, entry.ClassName)

	lb.rc.log.Debug("List item", zap.String("style", p.StyleID), zap.Int("level", level), zap.Stringer("type", entry.ListType))
}

// addItem writes numbered paragraph, its depth is the nesting level.
func (lb *listBuilder) addItem(item *docx.ListItem) {
	li := newElement(atom.Li, classAttr(lb.rc.styleClasses(item.StyleID)...)...)
	lb.rc.appendFormattedText(li, item.Text.Text, item.Text.Format)
	lb.push(li, max(item.Depth, 1), stylemap.ListTypeUl, "")
}

// push places li at level, opening containers down to it. Containers deeper
// than level are closed.
func (lb *listBuilder) push(li *html.Node, level int, t stylemap.ListType, class string) {
	if len(lb.open) > level {
		lb.open, lb.items = lb.open[:level], lb.items[:level]
	}
	for len(lb.open) < level {
		container := newElement(listAtom(t))
		depth := len(lb.open)
		switch {
		case depth == 0:
			container.Attr = classAttr(class)
			lb.parent.AppendChild(container)
		case lb.items[depth-1] != nil:
			lb.items[depth-1].AppendChild(container)
		default:
			// level jump without item to host it
			lb.open[depth-1].AppendChild(container)
		}
		lb.open = append(lb.open, container)
		lb.items = append(lb.items, nil)
	}
	lb.open[level-1].AppendChild(li)
	lb.items[level-1] = li
}

func listAtom(t stylemap.ListType) atom.Atom {
	if t == stylemap.ListTypeOl {
		return atom.Ol
	}
	return atom.Ul
}

// appendList writes consecutive list paragraphs as nested lists.
func (rc *renderContext) appendList(parent *html.Node, items []*docx.Paragraph) {
	lb := &listBuilder{rc: rc, parent: parent}
	for _, p := range items {
		lb.add(p)
	}
}

// appendListItems writes consecutive numbered paragraphs as nested unordered
// lists.
func (rc *renderContext) appendListItems(parent *html.Node, items []*docx.ListItem) {
	lb := &listBuilder{rc: rc, parent: parent}
	for _, item := range items {
		lb.addItem(item)
	}
}
