package router

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

const (
	// An @ starts a reference at the start of the text, after whitespace or
	// after one of these. In "a@b.com" it does not.
	openers = "([{<\"'`"
	// Stripped from a reference that did not match as a whole.
	trailing = ".,;:!?)]}>\"'`"
)

// Expand replaces every @id reference in text with the document content, in
// a single left to right pass. Inserted content is not scanned again.
func (r *Router) Expand(text string) string {
	if !strings.ContainsRune(text, '@') {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	prev := rune(-1)
	for i := 0; i < len(text); {
		c, size := utf8.DecodeRuneInString(text[i:])
		if c != '@' || !startsReference(prev) {
			b.WriteString(text[i : i+size])
			prev = c
			i += size
			continue
		}

		rest := text[i+1:]
		if strings.HasPrefix(rest, "@") {
			b.WriteByte('@')
			prev = '@'
			i += 2
			continue
		}

		n := strings.IndexFunc(rest, unicode.IsSpace)
		if n < 0 {
			n = len(rest)
		}
		if n == 0 {
			b.WriteByte('@')
			prev = '@'
			i++
			continue
		}

		run := rest[:n]
		b.WriteString(r.resolve(run))
		prev, _ = utf8.DecodeLastRuneInString(run)
		i += 1 + n
	}
	return b.String()
}

// Escape doubles every @ of text that would start a reference, so that
// Expand(Escape(text)) == text.
func Escape(text string) string {
	if !strings.ContainsRune(text, '@') {
		return text
	}
	var b strings.Builder
	b.Grow(len(text) + 8)
	prev := rune(-1)
	for i, c := range text {
		if c == '@' && startsReference(prev) {
			b.WriteByte('@')
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		b.WriteString(text[i : i+size])
		prev = c
	}
	return b.String()
}

// resolve returns the replacement for the reference "@" + run.
func (r *Router) resolve(run string) string {
	if doc, ok := r.docs.Lookup(run); ok {
		return doc.Content
	}

	id := strings.TrimRight(run, trailing)
	if id == "" {
		return "@" + run
	}
	suffix := run[len(id):]
	if suffix != "" {
		if doc, ok := r.docs.Lookup(id); ok {
			return doc.Content + suffix
		}
	}

	log.Debug().Str("id", id).Msg("document reference not found")
	return NotFound(id) + suffix
}

// NotFound is the placeholder that replaces a reference to a missing
// document.
func NotFound(id string) string {
	return fmt.Sprintf("[document '%s' not found]", id)
}

func startsReference(prev rune) bool {
	return prev < 0 || unicode.IsSpace(prev) || strings.ContainsRune(openers, prev)
}
