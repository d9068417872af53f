package html5

import (
	"regexp"
	"strings"

	"docx2html/stylemap"
)

var (
	reCamelBoundary = regexp.MustCompile(`([a-z])([A-Z])`)
	reNotClassChar  = regexp.MustCompile(`[^a-z0-9-]`)
	reDashes        = regexp.MustCompile(`-+`)
	reHexColor      = regexp.MustCompile(`^(?:[0-9a-f]{3}|[0-9a-f]{6})$`)
)

// NormalizeStyleID turns style id into class name: "ListParagraph" ->
// "list-paragraph", "Heading 1" -> "heading-1". Every element rendered with
// style carries this class.
func NormalizeStyleID(id string) string {
	s := reCamelBoundary.ReplaceAllString(id, "$1-$2")
	s = strings.ToLower(s)
	s = reNotClassChar.ReplaceAllString(s, "-")
	s = reDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// hexColor returns lowercase color without leading '#' when value is valid 3
// or 6 digit hex.
func hexColor(value string) (string, bool) {
	v := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), "#"))
	if !reHexColor.MatchString(v) {
		return "", false
	}
	return v, true
}

// textColor is hexColor which also drops black, it is default text color.
func textColor(value string) (string, bool) {
	v, ok := hexColor(value)
	if !ok || v == "000" || v == "000000" {
		return "", false
	}
	return v, true
}

// StyleClasses returns classes assigned to element with the style: mapped
// class name (if any) followed by normalized style id.
func StyleClasses(styles *stylemap.Map, styleID string) []string {
	if len(styleID) == 0 {
		return nil
	}
	if name := styles.ClassName(styleID); len(name) > 0 {
		return []string{name, NormalizeStyleID(styleID)}
	}
	return []string{NormalizeStyleID(styleID)}
}

func (rc *renderContext) styleClasses(styleID string) []string {
	return StyleClasses(rc.styles, styleID)
}
