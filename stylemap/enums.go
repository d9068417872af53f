package stylemap

import (
	"fmt"
	"strings"
)

// ConvertTo specifies output semantics for a style. ConvertToNone means
// default rendering and is never written out.
type ConvertTo int

const (
	ConvertToNone ConvertTo = iota
	ConvertToList
	ConvertToBlockquote
	ConvertToDiv
	ConvertToHeading
)

var convertToNames = []string{"", "list", "blockquote", "div", "heading"}

func (c ConvertTo) String() string {
	if c < 0 || int(c) >= len(convertToNames) {
		return fmt.Sprintf("ConvertTo(%d)", c)
	}
	return convertToNames[c]
}

// ParseConvertTo converts a string to ConvertTo. Empty string and "none" mean
// no conversion.
func ParseConvertTo(name string) (ConvertTo, error) {
	if strings.EqualFold(name, "none") {
		return ConvertToNone, nil
	}
	for i, n := range convertToNames {
		if n == strings.ToLower(name) {
			return ConvertTo(i), nil
		}
	}
	return ConvertToNone, fmt.Errorf("invalid convertTo value %q, must be one of [%s]", name, strings.Join(convertToNames[1:], ", "))
}

// MarshalText implements the text marshaller method.
func (c ConvertTo) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements the text unmarshaller method.
func (c *ConvertTo) UnmarshalText(text []byte) error {
	v, err := ParseConvertTo(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ListType selects list container element.
type ListType int

const (
	ListTypeUl ListType = iota
	ListTypeOl
)

var listTypeNames = []string{"ul", "ol"}

func (l ListType) String() string {
	if l < 0 || int(l) >= len(listTypeNames) {
		return fmt.Sprintf("ListType(%d)", l)
	}
	return listTypeNames[l]
}

// ParseListType converts a string to ListType, empty string is "ul".
func ParseListType(name string) (ListType, error) {
	if name == "" {
		return ListTypeUl, nil
	}
	for i, n := range listTypeNames {
		if strings.EqualFold(n, name) {
			return ListType(i), nil
		}
	}
	return ListTypeUl, fmt.Errorf("invalid listType value %q, must be one of [%s]", name, strings.Join(listTypeNames, ", "))
}

// MarshalText implements the text marshaller method.
func (l ListType) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements the text unmarshaller method.
func (l *ListType) UnmarshalText(text []byte) error {
	v, err := ParseListType(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
