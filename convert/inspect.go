package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/maruel/natural"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"

	"docx2html/archive"
	"docx2html/convert/html5"
	"docx2html/css"
	"docx2html/docx"
	"docx2html/state"
	"docx2html/stylemap"
	"docx2html/utils/debug"
)

// previewLimit is a number of characters shown for style first occurrence.
const previewLimit = 100

type inspectOptions struct {
	detailed bool
	// export is a name of YAML style map template to produce.
	export string
	// stylesheet when not nil is checked for classes rendering would produce.
	stylesheet *css.Stylesheet
	styles     *stylemap.Map
}

// Inspect reports style ids and element kinds used by a document.
func Inspect(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("inspect")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input document has been specified")
	}
	if cmd.Args().Len() > 1 {
		log.Warn("Malformed command line, too many sources", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	document, err := isDocumentFile(src)
	if err != nil {
		return fmt.Errorf("unable to check file type: %w", err)
	}
	if !document {
		return fmt.Errorf("input was not recognized as DOCX document (%s)", src)
	}

	if err := env.LoadDocumentSettings(cmd.String("style-map")); err != nil {
		return err
	}

	opts := inspectOptions{
		detailed: cmd.Bool("detailed"),
		export:   cmd.String("export"),
		styles:   env.StyleMap,
	}
	if name := cmd.String("css"); len(name) > 0 {
		data, err := os.ReadFile(name)
		if err != nil {
			return fmt.Errorf("unable to read stylesheet: %w", err)
		}
		opts.stylesheet = css.Parse(data, log.Named("css"))
	}

	container := archive.NewContainer()
	defer container.Close()

	doc, err := docx.Open(ctx, container, src, log.Named("docx"))
	if err != nil {
		return fmt.Errorf("unable to read document (%s): %w", filepath.Base(src), err)
	}

	w := cmd.Root().Writer
	if w == nil {
		w = os.Stdout
	}
	return inspectDocument(doc, opts, w)
}

// styleUsage is accumulated per style id.
type styleUsage struct {
	id    string
	count int
	kinds []string
	// first occurrence
	section, element int
	kind             string
	preview          string
}

type inspection struct {
	sections int
	elements int
	kinds    map[string]int
	styles   map[string]*styleUsage
}

func collectUsage(doc *docx.Document) *inspection {
	in := &inspection{
		sections: len(doc.Sections),
		kinds:    make(map[string]int),
		styles:   make(map[string]*styleUsage),
	}
	for si := range doc.Sections {
		for ei, e := range doc.Sections[si].Elements {
			in.elements++
			kind := docx.Kind(e)
			in.kinds[kind]++

			for _, id := range docx.StyleIDs(e) {
				u, ok := in.styles[id]
				if !ok {
					u = &styleUsage{id: id, section: si, element: ei, kind: kind, preview: elementPreview(e)}
					in.styles[id] = u
				}
				u.count++
				if !containsString(u.kinds, kind) {
					u.kinds = append(u.kinds, kind)
				}
			}
		}
	}
	return in
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// elementPreview returns element text, table cell texts are joined with
// spaces.
func elementPreview(e docx.Element) string {
	switch v := e.(type) {
	case *docx.Paragraph:
		return docx.RunsText(v.Runs)
	case *docx.Heading:
		return docx.RunsText(v.Runs)
	case *docx.PlainText:
		return v.Text.Text
	case *docx.ListItem:
		return v.Text.Text
	case *docx.Link:
		return v.Text
	case *docx.Table:
		var parts []string
		for _, row := range v.Rows {
			for _, cell := range row.Cells {
				for _, ce := range cell.Elements {
					if s := elementPreview(ce); len(s) > 0 {
						parts = append(parts, s)
					}
				}
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}

// byCount sorts style usage by count descending, ties in natural order of ids.
func (in *inspection) byCount() []*styleUsage {
	list := make([]*styleUsage, 0, len(in.styles))
	for _, u := range in.styles {
		list = append(list, u)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return natural.Less(list[i].id, list[j].id)
	})
	return list
}

func (in *inspection) byID() []*styleUsage {
	list := in.byCount()
	sort.Slice(list, func(i, j int) bool {
		return natural.Less(list[i].id, list[j].id)
	})
	return list
}

func inspectDocument(doc *docx.Document, opts inspectOptions, w io.Writer) error {
	in := collectUsage(doc)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Inspecting DOCX document: %s\n\n", doc.Path)
	fmt.Fprintf(&buf, "Document summary:\n  Total sections: %d\n  Total elements: %d\n\n", in.sections, in.elements)

	buf.WriteString("Element types:\n")
	kinds := make([]string, 0, len(in.kinds))
	for k := range in.kinds {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if in.kinds[kinds[i]] != in.kinds[kinds[j]] {
			return in.kinds[kinds[i]] > in.kinds[kinds[j]]
		}
		return natural.Less(kinds[i], kinds[j])
	})
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  TYPE\tCOUNT")
	for _, k := range kinds {
		fmt.Fprintf(tw, "  %s\t%d\n", k, in.kinds[k])
	}
	tw.Flush()
	buf.WriteString("\n")

	usage := in.byCount()
	if len(usage) == 0 {
		buf.WriteString("No style ids found in document.\n")
	} else {
		buf.WriteString("Style ids:\n")
		tw = tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  STYLE ID\tCOUNT\tUSED IN")
		for _, u := range usage {
			fmt.Fprintf(tw, "  %s\t%d\t%s\n", u.id, u.count, strings.Join(u.kinds, ", "))
		}
		tw.Flush()
	}

	if opts.detailed && len(usage) > 0 {
		buf.WriteString("\nStyle id details (first occurrence):\n")
		for _, u := range usage {
			fmt.Fprintf(&buf, "\n  Style ID: %s\n    Element type: %s\n    Section: %d, Element: %d\n", u.id, u.kind, u.section, u.element)
			if len(u.preview) > 0 {
				fmt.Fprintf(&buf, "    Preview: %s\n", debug.Truncate(u.preview, previewLimit))
			}
		}
	}

	if opts.stylesheet != nil {
		var classes []string
		for _, u := range in.byID() {
			classes = append(classes, html5.StyleClasses(opts.styles, u.id)...)
		}
		missing := opts.stylesheet.Missing(classes)
		buf.WriteString("\n")
		if len(missing) == 0 {
			fmt.Fprintf(&buf, "Stylesheet defines all %d classes used by document.\n", len(uniqueStrings(classes)))
		} else {
			buf.WriteString("Classes missing from stylesheet:\n")
			for _, c := range missing {
				fmt.Fprintf(&buf, "  .%s\n", c)
			}
		}
	}

	if len(opts.export) > 0 {
		data, err := styleMapTemplate(in.byID())
		if err != nil {
			return fmt.Errorf("unable to prepare style map template: %w", err)
		}
		if err := os.WriteFile(opts.export, data, 0644); err != nil {
			return fmt.Errorf("unable to write style map template: %w", err)
		}
		fmt.Fprintf(&buf, "\nStyle map template exported to: %s\n", opts.export)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

func uniqueStrings(list []string) []string {
	var out []string
	for _, s := range list {
		if !containsString(out, s) {
			out = append(out, s)
		}
	}
	return out
}

var (
	reListStyle   = regexp.MustCompile(`(?i)list|bullet|number`)
	reBulletStyle = regexp.MustCompile(`(?i)bullet`)
	reNumberStyle = regexp.MustCompile(`(?i)number`)
	reQuoteStyle  = regexp.MustCompile(`(?i)quote`)
	reTitleStyle  = regexp.MustCompile(`(?i)heading|title`)
)

// suggestion is a style map entry guessed from style id.
type suggestion struct {
	convertTo stylemap.ConvertTo
	className string
	listType  string
}

func suggestMapping(id string) suggestion {
	s := suggestion{className: html5.NormalizeStyleID(id)}
	if reListStyle.MatchString(id) {
		s.convertTo = stylemap.ConvertToList
		switch {
		case reBulletStyle.MatchString(id):
			s.listType = stylemap.ListTypeUl.String()
		case reNumberStyle.MatchString(id):
			s.listType = stylemap.ListTypeOl.String()
		default:
			s.listType = stylemap.ListTypeUl.String()
		}
	}
	if reQuoteStyle.MatchString(id) {
		s.convertTo = stylemap.ConvertToBlockquote
	}
	// headings are semantic already
	if reTitleStyle.MatchString(id) {
		s.convertTo = stylemap.ConvertToNone
	}
	return s
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

// styleMapTemplate produces style map document accepted by stylemap.Parse
// with usage comments.
func styleMapTemplate(usage []*styleUsage) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, u := range usage {
		s := suggestMapping(u.id)

		entry := &yaml.Node{Kind: yaml.MappingNode}
		if s.convertTo != stylemap.ConvertToNone {
			entry.Content = append(entry.Content, scalar("convertTo"), scalar(s.convertTo.String()))
		}
		entry.Content = append(entry.Content, scalar("className"), scalar(s.className))
		if len(s.listType) > 0 {
			entry.Content = append(entry.Content, scalar("listType"), scalar(s.listType))
		}

		key := scalar(u.id)
		key.HeadComment = "Used " + strconv.Itoa(u.count) + " time(s) in: " + strings.Join(u.kinds, ", ")
		root.Content = append(root.Content, key, entry)
	}
	doc := &yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: "Style map generated by inspection, customize entries for your conversion needs",
		Content:     []*yaml.Node{root},
	}
	if len(usage) == 0 {
		root.Style = yaml.FlowStyle
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
