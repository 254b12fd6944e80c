// Package tags extracts <name attr="v">content</name> directives from free-form
// model text. The scanner is tolerant: it never fails, an unclosed tag runs to
// the end of the input, and attributes it cannot read are dropped.
package tags

import (
	"regexp"
	"slices"
	"strings"
)

// SegmentKind distinguishes plain text from decoded tags.
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentTag
)

// Segment is one piece of parsed text. Text segments carry Text; tag segments
// carry Name, Attrs and Content.
type Segment struct {
	Kind    SegmentKind
	Text    string
	Name    string
	Attrs   map[string]string
	Content string
}

var attrPattern = regexp.MustCompile(`([^\s=/]+)="([^"]*)"`)

// Parse splits text into text and tag segments in document order. When names
// is non-empty, tags whose name is not listed are kept verbatim as a text
// segment of their own. Empty text segments are omitted.
func Parse(text string, names ...string) []Segment {
	var segs []Segment
	flush := func(s string) {
		if s != "" {
			segs = append(segs, Segment{Kind: SegmentText, Text: s})
		}
	}

	pos, textStart := 0, 0
	for pos < len(text) {
		lt := strings.IndexByte(text[pos:], '<')
		if lt < 0 {
			break
		}
		lt += pos

		nameEnd := lt + 1
		for nameEnd < len(text) && !isNameStop(text[nameEnd]) {
			nameEnd++
		}
		name := text[lt+1 : nameEnd]
		if name == "" {
			pos = lt + 1
			continue
		}
		gt := openTagEnd(text[nameEnd:])
		if gt < 0 {
			// No opening tag ends after this point, so nothing later can either.
			break
		}
		gt += nameEnd

		attrSpan := text[nameEnd:gt]
		var content string
		end := gt + 1
		if trimmed := strings.TrimRightFunc(attrSpan, isSpace); strings.HasSuffix(trimmed, "/") {
			attrSpan = strings.TrimSuffix(trimmed, "/")
		} else {
			closer := "</" + name + ">"
			if idx := strings.Index(text[end:], closer); idx >= 0 {
				content = text[end : end+idx]
				end += idx + len(closer)
			} else {
				content = text[end:]
				end = len(text)
			}
		}

		flush(text[textStart:lt])
		if len(names) > 0 && !slices.Contains(names, name) {
			segs = append(segs, Segment{Kind: SegmentText, Text: text[lt:end]})
		} else {
			segs = append(segs, Segment{
				Kind:    SegmentTag,
				Name:    name,
				Attrs:   parseAttrs(attrSpan),
				Content: content,
			})
		}
		pos, textStart = end, end
	}
	flush(text[textStart:])
	return segs
}

// First returns the first tag segment named name.
func First(segs []Segment, name string) (Segment, bool) {
	for _, s := range segs {
		if s.Kind == SegmentTag && s.Name == name {
			return s, true
		}
	}
	return Segment{}, false
}

// All returns every tag segment named name, in order.
func All(segs []Segment, name string) []Segment {
	var out []Segment
	for _, s := range segs {
		if s.Kind == SegmentTag && s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// Text concatenates the text of text segments and the content of tag
// segments.
func Text(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		if s.Kind == SegmentTag {
			b.WriteString(s.Content)
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

// openTagEnd returns the index of the '>' closing an opening tag, skipping
// any inside double quotes. With an unbalanced quote it falls back to the
// first '>'.
func openTagEnd(s string) int {
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case '>':
			if !inQuote {
				return i
			}
		}
	}
	return strings.IndexByte(s, '>')
}

func parseAttrs(span string) map[string]string {
	attrs := map[string]string{}
	for _, m := range attrPattern.FindAllStringSubmatch(span, -1) {
		attrs[m[1]] = m[2]
	}
	return attrs
}

func isNameStop(c byte) bool {
	return c == '>' || c == '/' || c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
