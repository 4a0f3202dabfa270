package llm

import "strings"

// Reasoning models wrap chain-of-thought in think tags. Users should never
// see that text, so it is removed both from full responses and, statefully,
// from streamed chunks that may split a tag across chunk boundaries.

const openMarker = "<think"

var openTags = []string{"<thinking>", "<think>"}

// StripThinking removes complete and unterminated think blocks from s.
func StripThinking(s string) string {
	f := newThinkFilter()
	out := f.feed(s)
	return strings.TrimSpace(out + f.flush())
}

// thinkFilter is a streaming filter that suppresses think blocks. Partial
// tags at a chunk boundary are carried over to the next feed call.
type thinkFilter struct {
	carry   string
	inThink bool
	tag     string // the open tag name currently being suppressed
}

func newThinkFilter() *thinkFilter {
	return &thinkFilter{}
}

// feed consumes a chunk and returns the text safe to emit so far.
func (f *thinkFilter) feed(chunk string) string {
	f.carry += chunk
	var out strings.Builder

	for {
		if f.inThink {
			closeTag := "</" + f.tag + ">"
			i := strings.Index(f.carry, closeTag)
			if i < 0 {
				f.carry = partialSuffix(f.carry, closeTag)
				return out.String()
			}
			f.carry = f.carry[i+len(closeTag):]
			f.inThink = false
			continue
		}

		i := strings.Index(f.carry, openMarker)
		if i < 0 {
			hold := len(partialSuffix(f.carry, openMarker))
			out.WriteString(f.carry[:len(f.carry)-hold])
			f.carry = f.carry[len(f.carry)-hold:]
			return out.String()
		}

		out.WriteString(f.carry[:i])
		rest := f.carry[i:]

		matched := false
		for _, tag := range openTags {
			if strings.HasPrefix(rest, tag) {
				f.inThink = true
				f.tag = strings.Trim(tag, "<>")
				f.carry = rest[len(tag):]
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		if len(rest) < len(openTags[0]) {
			// Could still become a tag once more bytes arrive.
			f.carry = rest
			return out.String()
		}

		// Looked like a tag but is not one; emit the bracket and move on.
		out.WriteString("<")
		f.carry = rest[1:]
	}
}

// flush returns any text still held back. An unterminated think block is
// dropped rather than leaked.
func (f *thinkFilter) flush() string {
	if f.inThink {
		f.carry = ""
		return ""
	}
	out := f.carry
	f.carry = ""
	return out
}

// partialSuffix returns the longest suffix of s that is a proper prefix of
// tag, i.e. the part that must be held back at a chunk boundary.
func partialSuffix(s, tag string) string {
	max := len(tag) - 1
	if max > len(s) {
		max = len(s)
	}
	for k := max; k > 0; k-- {
		if s[len(s)-k:] == tag[:k] {
			return s[len(s)-k:]
		}
	}
	return ""
}
