package stylemap

import (
	"bytes"
	"fmt"
	"html/template"

	sprig "github.com/go-task/slim-sprig/v3"
)

// Kind names group of elements rule applies to.
type Kind string

const (
	KindParagraphs Kind = "paragraphs"
	KindTables     Kind = "tables"
	KindHeadings   Kind = "headings"
)

// UnmarshalText implements the text unmarshaller method rejecting unknown kinds.
func (k *Kind) UnmarshalText(text []byte) error {
	switch v := Kind(text); v {
	case KindParagraphs, KindTables, KindHeadings:
		*k = v
		return nil
	}
	return fmt.Errorf("invalid rule kind %q, must be one of [%s, %s, %s]", string(text), KindParagraphs, KindTables, KindHeadings)
}

// RuleInput is what custom rule gets to work with.
type RuleInput struct {
	StyleID string
	// Text is plain text of the element.
	Text string
	// HTML is element content rendered with default inline formatting.
	HTML template.HTML
}

// Rule produces replacement markup for an element.
type Rule func(in RuleInput) (string, error)

// Rules is a registry of custom rendering overrides keyed by element kind and
// style id. It is immutable during rendering and safe on nil *Rules.
type Rules struct {
	rules map[Kind]map[string]Rule
}

func NewRules() *Rules {
	return &Rules{rules: make(map[Kind]map[string]Rule)}
}

func (r *Rules) Register(kind Kind, styleID string, rule Rule) {
	byStyle, ok := r.rules[kind]
	if !ok {
		byStyle = make(map[string]Rule)
		r.rules[kind] = byStyle
	}
	byStyle[styleID] = rule
}

// RegisterTemplate compiles html/template text (with slim-sprig functions) into
// a rule. Template is executed with RuleInput.
func (r *Rules) RegisterTemplate(kind Kind, styleID, text string) error {
	tmpl, err := template.New(string(kind) + "/" + styleID).Funcs(sprig.FuncMap()).Parse(text)
	if err != nil {
		return fmt.Errorf("unable to parse rule template for %s %q: %w", kind, styleID, err)
	}
	r.Register(kind, styleID, func(in RuleInput) (string, error) {
		buf := new(bytes.Buffer)
		if err := tmpl.Execute(buf, in); err != nil {
			return "", err
		}
		return buf.String(), nil
	})
	return nil
}

// For returns rule registered for the kind and style id.
func (r *Rules) For(kind Kind, styleID string) (Rule, bool) {
	if r == nil {
		return nil, false
	}
	rule, ok := r.rules[kind][styleID]
	return rule, ok
}

func (r *Rules) Len() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, byStyle := range r.rules {
		n += len(byStyle)
	}
	return n
}
