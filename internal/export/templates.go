package export

import (
	"bytes"
	"embed"
	"html/template"
	"time"
)

// SafeHTML marks rendered note content as trusted markup.
func SafeHTML(s string) template.HTML {
	return template.HTML(s)
}

//go:embed templates/*.html
var templateFS embed.FS

var noteTemplate = template.Must(
	template.New("note.html").Funcs(template.FuncMap{
		"formatDate": func(t time.Time) string { return t.UTC().Format("Jan 2, 2006 15:04 UTC") },
	}).ParseFS(templateFS, "templates/note.html"),
)

// TemplateData holds what the note template renders.
type TemplateData struct {
	Title       string
	Icon        string
	Breadcrumb  []string
	ContentHTML template.HTML
	UpdatedAt   time.Time
}

// RenderNoteHTML renders a standalone HTML page for one note.
func RenderNoteHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := noteTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
