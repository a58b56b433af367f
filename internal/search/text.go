package search

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"notebox/api/internal/store"
)

// PlainText flattens editor content for indexing. Tiptap JSON documents are
// reduced to their text nodes; anything else is parsed as HTML and its text kept.
func PlainText(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") {
		var node proseNode
		if err := json.Unmarshal([]byte(trimmed), &node); err == nil {
			var b strings.Builder
			node.collect(&b)
			return strings.Join(strings.Fields(b.String()), " ")
		}
	}
	return strings.Join(strings.Fields(htmlText(trimmed)), " ")
}

type proseNode struct {
	Type    string      `json:"type"`
	Text    string      `json:"text"`
	Content []proseNode `json:"content"`
}

func (n proseNode) collect(b *strings.Builder) {
	if n.Text != "" {
		b.WriteString(n.Text)
	}
	for _, child := range n.Content {
		child.collect(b)
	}
	switch n.Type {
	case "paragraph", "heading", "listItem", "codeBlock", "blockquote", "hardBreak", "tableCell":
		b.WriteByte(' ')
	}
}

// htmlText returns the decoded text nodes of an HTML fragment, skipping
// script and style bodies.
func htmlText(s string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// Snippet returns at most max runes of text, cut on a word boundary.
func Snippet(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:max])
	if i := strings.LastIndex(cut, " "); i > max/2 {
		cut = cut[:i]
	}
	return cut + "…"
}

// RecordFromNote builds the index projection of a note.
func RecordFromNote(note store.Note) NoteRecord {
	return NoteRecord{
		ID:        note.ID,
		Title:     note.Title,
		Content:   PlainText(note.Content),
		ParentID:  note.ParentID,
		UpdatedAt: note.UpdatedAt.UnixMilli(),
	}
}

func recordFromSearchRow(row store.NoteSearchRecord) NoteRecord {
	return RecordFromNote(store.Note{
		ID:        row.ID,
		Title:     row.Title,
		Content:   row.Content,
		ParentID:  row.ParentID,
		UpdatedAt: row.UpdatedAt,
	})
}
