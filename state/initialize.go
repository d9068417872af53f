package state

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"docx2html/stylemap"
)

// newLocalEnv creates a new LocalEnv instance with default values
func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		start:    time.Now(),
		StyleMap: stylemap.New(nil),
		Rules:    stylemap.NewRules(),
		Log:      zap.NewNop(),
	}
}

// LoadDocumentSettings prepares style map, rendering rules and stylesheet
// from configuration. Style map file given on command line (if any) is
// applied last and overrides configured entries.
func (e *LocalEnv) LoadDocumentSettings(styleMapPath string) error {
	if e.Cfg == nil {
		return fmt.Errorf("configuration is not loaded")
	}
	doc := &e.Cfg.Document

	m, err := doc.StyleMap()
	if err != nil {
		return fmt.Errorf("unable to prepare style map: %w", err)
	}
	if len(styleMapPath) > 0 {
		loaded, err := stylemap.Load(styleMapPath)
		if err != nil {
			return fmt.Errorf("unable to load style map: %w", err)
		}
		m.Merge(loaded)
	}
	e.StyleMap = m

	if e.Rules, err = doc.TransformationRules(); err != nil {
		return fmt.Errorf("unable to prepare rendering rules: %w", err)
	}

	e.Stylesheet = nil
	if len(doc.StylesheetPath) > 0 {
		data, err := os.ReadFile(doc.StylesheetPath)
		if err != nil {
			return fmt.Errorf("unable to read stylesheet from %q: %w", doc.StylesheetPath, err)
		}
		e.Stylesheet = data
	}

	e.Log.Debug("Document settings loaded",
		zap.Int("styles", e.StyleMap.Len()), zap.Int("rules", e.Rules.Len()), zap.Int("stylesheet", len(e.Stylesheet)))
	return nil
}
