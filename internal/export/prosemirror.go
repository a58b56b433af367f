package export

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
)

var calloutTypes = map[string]bool{"info": true, "warning": true, "error": true, "success": true}

// ContentToHTML renders stored note content. Tiptap JSON documents are
// converted node by node; any other non-empty content is already HTML.
func ContentToHTML(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "{") {
		var doc map[string]interface{}
		if err := json.Unmarshal([]byte(trimmed), &doc); err == nil {
			return ProseMirrorToHTML(doc)
		}
	}
	return trimmed
}

// ProseMirrorToHTML converts a decoded ProseMirror document to HTML.
func ProseMirrorToHTML(doc interface{}) string {
	root, ok := doc.(map[string]interface{})
	if !ok {
		return ""
	}
	return renderNode(root)
}

func renderNode(node map[string]interface{}) string {
	nodeType, _ := node["type"].(string)
	content := node["content"]

	switch nodeType {
	case "":
		return ""
	case "doc":
		return renderContent(content)
	case "paragraph":
		return wrap("p", renderContent(content))
	case "heading":
		level := clamp(intAttr(node, "level", 1), 1, 6)
		return fmt.Sprintf("<h%d>%s</h%d>\n", level, renderContent(content), level)
	case "bulletList":
		return wrap("ul", "\n"+renderContent(content))
	case "orderedList":
		return wrap("ol", "\n"+renderContent(content))
	case "listItem":
		return wrap("li", renderContent(content))
	case "taskList":
		return fmt.Sprintf("<ul class=\"task-list\">\n%s</ul>\n", renderContent(content))
	case "taskItem":
		box := `<input type="checkbox" disabled>`
		if checked, _ := attr(node, "checked").(bool); checked {
			box = `<input type="checkbox" checked disabled>`
		}
		return fmt.Sprintf("<li>%s %s</li>\n", box, renderContent(content))
	case "blockquote":
		return wrap("blockquote", "\n"+renderContent(content))
	case "callout":
		kind, _ := attr(node, "type").(string)
		if !calloutTypes[kind] {
			kind = "info"
		}
		return fmt.Sprintf("<div class=\"callout callout-%s\">\n%s</div>\n", kind, renderContent(content))
	case "codeBlock":
		return fmt.Sprintf("<pre><code>%s</code></pre>\n", rawText(content))
	case "text":
		text, _ := node["text"].(string)
		marks, _ := node["marks"].([]interface{})
		return renderTextWithMarks(text, marks)
	case "image":
		src, _ := attr(node, "src").(string)
		alt, _ := attr(node, "alt").(string)
		if !safeURL(src) {
			return ""
		}
		return fmt.Sprintf("<img src=\"%s\" alt=\"%s\">\n", html.EscapeString(src), html.EscapeString(alt))
	case "hardBreak":
		return "<br>"
	case "table":
		return wrap("table", "\n"+renderContent(content))
	case "tableRow":
		return wrap("tr", "\n"+renderContent(content))
	case "tableCell":
		return wrap("td", renderContent(content))
	case "tableHeader":
		return wrap("th", renderContent(content))
	case "horizontalRule":
		return "<hr>\n"
	default:
		return renderContent(content)
	}
}

func wrap(tag, inner string) string {
	return "<" + tag + ">" + inner + "</" + tag + ">\n"
}

func renderContent(content interface{}) string {
	items, ok := content.([]interface{})
	if !ok {
		return ""
	}
	var result strings.Builder
	for _, item := range items {
		if node, ok := item.(map[string]interface{}); ok {
			result.WriteString(renderNode(node))
		}
	}
	return result.String()
}

// rawText concatenates escaped text children, ignoring marks.
func rawText(content interface{}) string {
	items, _ := content.([]interface{})
	var b strings.Builder
	for _, item := range items {
		if node, ok := item.(map[string]interface{}); ok {
			text, _ := node["text"].(string)
			b.WriteString(html.EscapeString(text))
		}
	}
	return b.String()
}

func renderTextWithMarks(text string, marks []interface{}) string {
	if text == "" {
		return ""
	}

	htmlText := html.EscapeString(text)
	for i := len(marks) - 1; i >= 0; i-- {
		mark, ok := marks[i].(map[string]interface{})
		if !ok {
			continue
		}
		markType, _ := mark["type"].(string)

		switch markType {
		case "bold":
			htmlText = "<strong>" + htmlText + "</strong>"
		case "italic":
			htmlText = "<em>" + htmlText + "</em>"
		case "code":
			htmlText = "<code>" + htmlText + "</code>"
		case "strike":
			htmlText = "<s>" + htmlText + "</s>"
		case "underline":
			htmlText = "<u>" + htmlText + "</u>"
		case "highlight":
			htmlText = "<mark>" + htmlText + "</mark>"
		case "link":
			href, _ := attr(mark, "href").(string)
			if !safeURL(href) {
				continue
			}
			htmlText = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(href), htmlText)
		}
	}
	return htmlText
}

func attr(node map[string]interface{}, key string) interface{} {
	attrs, _ := node["attrs"].(map[string]interface{})
	return attrs[key]
}

func intAttr(node map[string]interface{}, key string, fallback int) int {
	if v, ok := attr(node, key).(float64); ok {
		return int(v)
	}
	return fallback
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// safeURL rejects script URLs in links and images.
func safeURL(raw string) bool {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if lower == "" {
		return false
	}
	return !strings.HasPrefix(lower, "javascript:") && !strings.HasPrefix(lower, "vbscript:")
}
