package genai

import (
	"encoding/json"
	"strings"
)

// RepairTruncatedJSON attempts to close an unterminated JSON document by
// scanning for open strings, arrays, and objects and appending the missing
// terminators. If that still doesn't parse, it trims back to the last
// complete key-value pair and tries again. Returns nil if unrepairable.
func RepairTruncatedJSON(text string) json.RawMessage {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if candidate := closeOpenStructures(text); json.Valid([]byte(candidate)) {
		return json.RawMessage(candidate)
	}

	// Trim trailing partial content after the last complete value, then
	// close whatever structure remains open.
	for _, end := range []string{`"}`, `"]`, `},`, `],`} {
		idx := strings.LastIndex(text, end)
		if idx <= 0 {
			continue
		}
		truncated := strings.TrimSuffix(text[:idx+len(end)], ",")
		if candidate := closeOpenStructures(truncated); json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate)
		}
	}
	return nil
}

// closeOpenStructures appends the terminators for any string, array, or
// object left open at the end of text.
func closeOpenStructures(text string) string {
	inString := false
	escapeNext := false
	var stack []byte

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if escapeNext {
			escapeNext = false
			continue
		}
		if ch == '\\' && inString {
			escapeNext = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case '{', '[':
			stack = append(stack, ch)
		case '}':
			if len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
		case ']':
			if len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(text)
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		switch stack[i] {
		case '{':
			b.WriteByte('}')
		case '[':
			b.WriteByte(']')
		}
	}
	return b.String()
}

// StripFences removes markdown code fences from model output. Search-grounded
// generation cannot force a JSON MIME type, so responses often arrive fenced.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
