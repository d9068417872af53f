// Package stylemap maps document style identifiers to output semantics and
// keeps custom rendering rules.
package stylemap

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/maruel/natural"
	yaml "gopkg.in/yaml.v3"
)

// Entry is output configuration for a single style id.
type Entry struct {
	ConvertTo ConvertTo `yaml:"convertTo,omitempty"`
	ClassName string    `yaml:"className,omitempty"`
	ListType  ListType  `yaml:"listType,omitempty"`
	// Level is used by heading conversion only.
	Level int `yaml:"level,omitempty"`
}

// HeadingLevel returns heading level for heading conversion: 2 when not set,
// clamped to 1..6 otherwise.
func (e Entry) HeadingLevel() int {
	if e.Level == 0 {
		return 2
	}
	return min(max(e.Level, 1), 6)
}

// Map is immutable during rendering, all lookups are safe on nil *Map.
type Map struct {
	entries map[string]Entry
}

func New(entries map[string]Entry) *Map {
	if entries == nil {
		entries = make(map[string]Entry)
	}
	return &Map{entries: entries}
}

func (m *Map) Add(id string, e Entry) {
	m.entries[id] = e
}

// Merge copies all entries from other map replacing existing ones.
func (m *Map) Merge(other *Map) {
	if other == nil {
		return
	}
	maps.Copy(m.entries, other.entries)
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// IDs returns mapped style ids in natural order.
func (m *Map) IDs() []string {
	if m == nil {
		return nil
	}
	ids := slices.Collect(maps.Keys(m.entries))
	sort.Sort(natural.StringSlice(ids))
	return ids
}

func (m *Map) Lookup(id string) (Entry, bool) {
	if m == nil {
		return Entry{}, false
	}
	e, ok := m.entries[id]
	return e, ok
}

// ClassName returns configured class name for the style or empty string.
func (m *Map) ClassName(id string) string {
	e, _ := m.Lookup(id)
	return e.ClassName
}

// IsList reports whether paragraphs with this style are list items: either
// style itself or its base (see BaseID) is mapped to list.
func (m *Map) IsList(id string) bool {
	if e, ok := m.Lookup(id); ok && e.ConvertTo == ConvertToList {
		return true
	}
	if base := BaseID(id); base != id {
		if e, ok := m.Lookup(base); ok && e.ConvertTo == ConvertToList {
			return true
		}
	}
	return false
}

// ListEntry returns entry for the style, falling back to the entry of its
// base style when the style itself is not mapped.
func (m *Map) ListEntry(id string) (Entry, bool) {
	if e, ok := m.Lookup(id); ok {
		return e, true
	}
	return m.Lookup(BaseID(id))
}

// BaseID strips trailing digits from style id: "ListParagraph2" ->
// "ListParagraph". This is a naming heuristic, nothing guarantees that
// numeric suffix denotes list level rather than being part of unrelated style
// name.
func BaseID(id string) string {
	return strings.TrimRightFunc(id, isDigit)
}

// Level returns list nesting level encoded in the style id numeric suffix, 1
// when there is none. Levels below 1 are treated as 1.
func Level(id string) int {
	suffix := id[len(BaseID(id)):]
	if len(suffix) == 0 {
		return 1
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 1 {
		// overflow or zero
		return 1
	}
	return n
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

// Load reads style map from YAML (or JSON) file: mapping of style id to entry.
// Invalid convertTo or listType values and unknown entry fields are errors.
func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read style map: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("unable to load style map from %q: %w", path, err)
	}
	return m, nil
}

// Parse decodes style map document.
func Parse(data []byte) (*Map, error) {
	entries := make(map[string]Entry)

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&entries); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return New(entries), nil
}

// Dump serializes style map in the form accepted by Parse.
func Dump(m *Map) ([]byte, error) {
	if m == nil {
		return yaml.Marshal(map[string]Entry{})
	}
	return yaml.Marshal(m.entries)
}
