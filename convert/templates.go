package convert

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"docx2html/config"
	"docx2html/docx"
)

// Values is a struct that holds variables we make available for template expansion
type Values struct {
	Context    string
	Title      string
	Subject    string
	Creator    string
	Language   string
	Identifier string
	Format     string
	SourceFile string
}

func expandTemplate(doc *docx.Document, srcName string, name config.TemplateFieldName, field string, format config.OutputFmt) (string, error) {
	funcMap := sprig.TxtFuncMap()

	tmpl, err := template.New(string(name)).Funcs(funcMap).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	values := Values{
		Context:    string(name),
		Title:      doc.Properties.Title,
		Subject:    doc.Properties.Subject,
		Creator:    doc.Properties.Creator,
		Language:   doc.Properties.Language,
		Identifier: doc.Properties.Identifier,
		Format:     format.String(),
		SourceFile: strings.TrimSuffix(filepath.Base(srcName), filepath.Ext(srcName)),
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}
