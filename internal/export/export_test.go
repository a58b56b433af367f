package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"notebox/api/internal/notetree"
	"notebox/api/internal/store"
)

func TestContentToHTML(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "empty content",
			content: "  ",
			want:    nil,
		},
		{
			name:    "paragraph",
			content: `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"Hello world"}]}]}`,
			want:    []string{"<p>Hello world</p>"},
		},
		{
			name:    "heading level is clamped",
			content: `{"type":"doc","content":[{"type":"heading","attrs":{"level":9},"content":[{"type":"text","text":"Deep"}]}]}`,
			want:    []string{"<h6>Deep</h6>"},
		},
		{
			name:    "marks nest outside in",
			content: `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"both","marks":[{"type":"bold"},{"type":"italic"}]}]}]}`,
			want:    []string{"<strong><em>both</em></strong>"},
		},
		{
			name:    "text is escaped",
			content: `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"<script>x</script>"}]}]}`,
			want:    []string{"&lt;script&gt;x&lt;/script&gt;"},
		},
		{
			name:    "script links are dropped",
			content: `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"click","marks":[{"type":"link","attrs":{"href":"javascript:alert(1)"}}]}]}]}`,
			want:    []string{"<p>click</p>"},
		},
		{
			name:    "task items carry their state",
			content: `{"type":"doc","content":[{"type":"taskList","content":[{"type":"taskItem","attrs":{"checked":true},"content":[{"type":"paragraph","content":[{"type":"text","text":"done"}]}]}]}]}`,
			want:    []string{`<ul class="task-list">`, `<input type="checkbox" checked disabled>`},
		},
		{
			name:    "unknown callout falls back to info",
			content: `{"type":"doc","content":[{"type":"callout","attrs":{"type":"bogus"},"content":[{"type":"paragraph","content":[{"type":"text","text":"note"}]}]}]}`,
			want:    []string{`<div class="callout callout-info">`},
		},
		{
			name:    "code block keeps raw text",
			content: `{"type":"doc","content":[{"type":"codeBlock","content":[{"type":"text","text":"a < b","marks":[{"type":"bold"}]}]}]}`,
			want:    []string{"<pre><code>a &lt; b</code></pre>"},
		},
		{
			name:    "html passes through",
			content: "<p>legacy <b>html</b></p>",
			want:    []string{"<p>legacy <b>html</b></p>"},
		},
		{
			name:    "broken json is treated as html",
			content: "{not json",
			want:    []string{"{not json"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ContentToHTML(tt.content)
			if tt.want == nil && got != "" {
				t.Fatalf("expected empty output, got %q", got)
			}
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Fatalf("ContentToHTML() = %q, want substring %q", got, want)
				}
			}
		})
	}
}

func TestProseMirrorToHTMLRejectsNonObjects(t *testing.T) {
	if got := ProseMirrorToHTML(nil); got != "" {
		t.Fatalf("expected empty output for nil, got %q", got)
	}
	if got := ProseMirrorToHTML([]interface{}{"x"}); got != "" {
		t.Fatalf("expected empty output for slice, got %q", got)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Simple Title", "Simple-Title"},
		{"Title With Special!@#$%Chars", "Title-With-SpecialChars"},
		{"Заметка", "note"},
		{"   ", "note"},
		{"a-b_c", "a-b_c"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := sanitizeFilename(tt.input); got != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	got := percentEncodeForDataURL("<p>a b</p>é")
	want := "%3Cp%3Ea%20b%3C%2Fp%3E%C3%A9"
	if got != want {
		t.Fatalf("percentEncodeForDataURL() = %q, want %q", got, want)
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatPDF {
		t.Fatalf("expected pdf default, got %q %v", f, err)
	}
	if f, err := ParseFormat("docx"); err != nil || f != FormatDOCX {
		t.Fatalf("expected docx, got %q %v", f, err)
	}
	if _, err := ParseFormat("odt"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestRenderNoteHTML(t *testing.T) {
	html, err := RenderNoteHTML(TemplateData{
		Title:       "Plan <draft>",
		Icon:        "📄",
		Breadcrumb:  []string{"Work", "Q3"},
		ContentHTML: SafeHTML("<p>body</p>"),
		UpdatedAt:   time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("RenderNoteHTML() error = %v", err)
	}

	for _, want := range []string{
		"<title>Plan &lt;draft&gt;</title>",
		"<span>Work</span><span>Q3</span>",
		"<p>body</p>",
		"Mar 1, 2024 12:30 UTC",
		"📄",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered html missing %q", want)
		}
	}
}

type fakeNotes struct {
	ancestorPathFn func(ctx context.Context, id string) ([]store.Note, error)
}

func (f *fakeNotes) AncestorPath(ctx context.Context, id string) ([]store.Note, error) {
	return f.ancestorPathFn(ctx, id)
}

func pathOf(notes ...store.Note) *fakeNotes {
	return &fakeNotes{ancestorPathFn: func(context.Context, string) ([]store.Note, error) {
		return notes, nil
	}}
}

func TestExportHTMLIncludesBreadcrumb(t *testing.T) {
	svc := NewService(pathOf(
		store.Note{ID: "root", Title: "Projects"},
		store.Note{ID: "leaf", Title: "Launch plan", Content: `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"ship it"}]}]}`},
	), "")

	result, err := svc.Export(context.Background(), Request{NoteID: "leaf", Format: FormatHTML})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.Filename != "Launch-plan.html" || !strings.HasPrefix(result.MimeType, "text/html") {
		t.Fatalf("unexpected result metadata: %q %q", result.Filename, result.MimeType)
	}
	body := string(result.Data)
	if !strings.Contains(body, "<span>Projects</span>") || !strings.Contains(body, "<p>ship it</p>") {
		t.Fatalf("unexpected html body: %s", body)
	}
	if strings.Contains(body, "<span>Launch plan</span>") {
		t.Fatal("breadcrumb should not include the exported note")
	}
}

func TestExportMissingNote(t *testing.T) {
	svc := NewService(pathOf(), "")

	_, err := svc.Export(context.Background(), Request{NoteID: "gone", Format: FormatHTML})
	if !notetree.IsNotFound(err, notetree.EntityNote) {
		t.Fatalf("expected note not found, got %v", err)
	}
}

func TestExportDispatchesBinaryFormats(t *testing.T) {
	svc := NewService(pathOf(store.Note{ID: "n", Title: ""}), "")
	var gotTitle string
	svc.pdf = func(_ context.Context, html, title string) (*Result, error) {
		gotTitle = title
		if !strings.Contains(html, "Untitled") {
			t.Errorf("expected placeholder title in html")
		}
		return &Result{Filename: "x.pdf"}, nil
	}
	svc.docx = func(context.Context, string, string) (*Result, error) {
		return nil, ErrDOCXDependencyMissing
	}

	if _, err := svc.Export(context.Background(), Request{NoteID: "n", Format: FormatPDF}); err != nil {
		t.Fatalf("pdf export error = %v", err)
	}
	if gotTitle != "" {
		t.Fatalf("expected raw title passed through, got %q", gotTitle)
	}
	if _, err := svc.Export(context.Background(), Request{NoteID: "n", Format: FormatDOCX}); !errors.Is(err, ErrDOCXDependencyMissing) {
		t.Fatalf("expected ErrDOCXDependencyMissing, got %v", err)
	}
}

func TestChromePathExplicitMissing(t *testing.T) {
	_, err := chromePath("/definitely/not/a/browser")
	if !errors.Is(err, ErrPDFDependencyMissing) {
		t.Fatalf("expected ErrPDFDependencyMissing, got %v", err)
	}
}
