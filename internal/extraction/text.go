package extraction

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// directTextFields are checked in order before falling back to flattening.
var directTextFields = []string{"text", "extracted_text", "content"}

// statusFields describe the request rather than the resume and are never
// flattened into display text.
var statusFields = []string{"success", "error", "errors", "status", "message", "detail"}

// ResolveText returns the display text of an extraction response: the first
// non-empty direct text field, otherwise the structured profile flattened
// into lines. HTML markup is reduced to its text. A response that reports a
// failure resolves to no text.
func ResolveText(raw map[string]any) string {
	if _, failed := ReportedFailure(raw); failed {
		return ""
	}
	for _, field := range directTextFields {
		if s, ok := raw[field].(string); ok && strings.TrimSpace(s) != "" {
			return normalizeText(s)
		}
	}
	return Flatten(raw)
}

// Flatten renders a structured extraction object as display text. Known
// sections come first in a fixed order; remaining keys follow alphabetically.
func Flatten(raw map[string]any) string {
	known := []struct {
		key   string
		title string
	}{
		{"personal_info", "Personal Information"},
		{"summary", "Summary"},
		{"skills", "Skills"},
		{"experience", "Experience"},
		{"education", "Education"},
		{"certifications", "Certifications"},
	}

	var sb strings.Builder
	seen := make(map[string]bool, len(known))
	for _, k := range known {
		seen[k.key] = true
		if v, ok := raw[k.key]; ok {
			writeSection(&sb, k.title, v)
		}
	}

	var rest []string
	for key := range raw {
		if !seen[key] && !isDirectField(key) && !isStatusField(key) {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		writeSection(&sb, titleCase(key), raw[key])
	}
	return strings.TrimSpace(sb.String())
}

// ReportedFailure returns the service's error message when raw signals a
// failed extraction with success=false or a non-empty error field.
func ReportedFailure(raw map[string]any) (string, bool) {
	msg := ""
	switch e := raw["error"].(type) {
	case string:
		msg = strings.TrimSpace(e)
	case map[string]any:
		if m, ok := e["message"].(string); ok {
			msg = strings.TrimSpace(m)
		}
		if msg == "" && len(e) > 0 {
			msg = "extraction service reported an error"
		}
	case bool:
		if e {
			msg = "extraction service reported an error"
		}
	}
	if ok, isBool := raw["success"].(bool); isBool && !ok && msg == "" {
		msg = "extraction service reported failure"
	}
	return msg, msg != ""
}

func writeSection(sb *strings.Builder, title string, v any) {
	lines := flattenValue(v)
	if len(lines) == 0 {
		return
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(title)
	sb.WriteString(":\n")
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
}

func flattenValue(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		s := normalizeText(val)
		if s == "" {
			return nil
		}
		return []string{s}
	case []any:
		var out []string
		for _, item := range val {
			switch it := item.(type) {
			case map[string]any:
				if line := joinObject(it); line != "" {
					out = append(out, "- "+line)
				}
			default:
				for _, l := range flattenValue(it) {
					out = append(out, "- "+l)
				}
			}
		}
		return out
	case map[string]any:
		keys := sortedKeys(val)
		var out []string
		for _, k := range keys {
			for _, l := range flattenValue(val[k]) {
				out = append(out, fmt.Sprintf("%s: %s", titleCase(k), l))
			}
		}
		return out
	default:
		return []string{fmt.Sprint(val)}
	}
}

// joinObject renders a list entry (a job, a degree) on one line.
func joinObject(obj map[string]any) string {
	var parts []string
	for _, k := range sortedKeys(obj) {
		for _, l := range flattenValue(obj[k]) {
			parts = append(parts, strings.TrimPrefix(l, "- "))
		}
	}
	return strings.Join(parts, " | ")
}

// normalizeText strips HTML markup when present and trims whitespace.
func normalizeText(s string) string {
	s = strings.TrimSpace(s)
	if !looksLikeHTML(s) {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	doc.Find("script, style").Remove()

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func looksLikeHTML(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "</") && strings.Contains(lower, "<") &&
		(strings.Contains(lower, "<p") || strings.Contains(lower, "<div") ||
			strings.Contains(lower, "<br") || strings.Contains(lower, "<li") ||
			strings.Contains(lower, "<html") || strings.Contains(lower, "<span"))
}

func isDirectField(key string) bool {
	return contains(directTextFields, key)
}

func isStatusField(key string) bool {
	return contains(statusFields, key)
}

func contains(list []string, key string) bool {
	for _, f := range list {
		if f == key {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func titleCase(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
