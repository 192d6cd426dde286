// Package render accumulates streamed message fragments and normalizes
// the accumulated text for display.
package render

import (
	"regexp"
	"strings"
)

// ScrollStep is the word-count modulus at which the view is asked to
// scroll while content is streaming in.
const ScrollStep = 5

var (
	linkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	boldRe = regexp.MustCompile(`\*\*([^*]+)\*\*`)
)

// Normalize converts accumulated raw text to its display form: markdown
// style links and bold runs are substituted first, then newlines become
// line breaks. It always operates on the whole text, so markers split
// across fragment boundaries still match once complete.
func Normalize(s string) string {
	s = linkRe.ReplaceAllString(s, `<a href="$2">$1</a>`)
	s = boldRe.ReplaceAllString(s, `<strong>$1</strong>`)
	s = strings.ReplaceAll(s, "\n", "<br/>")
	return s
}

// Buffer is the display buffer for one streaming message. Not safe for
// concurrent use; each receiver owns exactly one.
type Buffer struct {
	raw   strings.Builder
	words int
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append adds a fragment verbatim and reports whether the accumulated
// word count crossed a ScrollStep boundary with this fragment.
func (b *Buffer) Append(fragment string) bool {
	b.raw.WriteString(fragment)
	prev := b.words
	b.words = len(strings.Fields(b.raw.String()))
	return b.words/ScrollStep > prev/ScrollStep
}

func (b *Buffer) Raw() string {
	return b.raw.String()
}

// Display returns the normalized form of everything accumulated so far.
func (b *Buffer) Display() string {
	return Normalize(b.raw.String())
}

func (b *Buffer) Words() int {
	return b.words
}
