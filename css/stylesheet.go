// Package css inspects stylesheets supplied for generated documents.
package css

import (
	"bytes"
	"errors"
	"io"
	"sort"

	"github.com/maruel/natural"
	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Stylesheet keeps class selectors defined by a stylesheet.
type Stylesheet struct {
	// Classes maps class name to the number of rulesets using it in
	// selectors.
	Classes map[string]int
	// Rules is a number of rulesets including nested into at-rules.
	Rules int
}

// Parse scans CSS text and collects class selectors. Parsing errors are
// logged and skipped.
func Parse(data []byte, log *zap.Logger) *Stylesheet {
	if log == nil {
		log = zap.NewNop()
	}
	sheet := &Stylesheet{Classes: make(map[string]int)}

	parser := css.NewParser(parse.NewInput(bytes.NewReader(data)), false)
	for {
		gt, _, _ := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			// end of input or error
			if err := parser.Err(); err != nil && !errors.Is(err, io.EOF) {
				log.Debug("CSS parse error, ignoring the rest of stylesheet", zap.Error(err))
			}
			return sheet
		case css.BeginRulesetGrammar, css.QualifiedRuleGrammar:
			sheet.Rules++
			for _, class := range selectorClasses(parser.Values()) {
				sheet.Classes[class]++
			}
		}
	}
}

// selectorClasses returns class names mentioned in selector tokens.
func selectorClasses(tokens []css.Token) []string {
	var classes []string
	seen := make(map[string]bool)
	for i := 0; i+1 < len(tokens); i++ {
		if tokens[i].TokenType != css.DelimToken || !bytes.Equal(tokens[i].Data, []byte(".")) {
			continue
		}
		if next := tokens[i+1]; next.TokenType == css.IdentToken {
			name := string(next.Data)
			if !seen[name] {
				seen[name] = true
				classes = append(classes, name)
			}
			i++
		}
	}
	return classes
}

// Has reports whether any selector uses class.
func (s *Stylesheet) Has(class string) bool {
	if s == nil {
		return false
	}
	return s.Classes[class] > 0
}

// Missing returns classes not defined by stylesheet in natural order without
// duplicates.
func (s *Stylesheet) Missing(classes []string) []string {
	seen := make(map[string]bool)
	var res []string
	for _, c := range classes {
		if len(c) == 0 || seen[c] || s.Has(c) {
			continue
		}
		seen[c] = true
		res = append(res, c)
	}
	sort.Sort(natural.StringSlice(res))
	return res
}

// Names returns defined classes in natural order.
func (s *Stylesheet) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Classes))
	for c := range s.Classes {
		names = append(names, c)
	}
	sort.Sort(natural.StringSlice(names))
	return names
}
