package render

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"newlines", "a\nb\nc", "a<br/>b<br/>c"},
		{"link", "see [docs](https://example.com) here", `see <a href="https://example.com">docs</a> here`},
		{"bold", "a **big** deal", "a <strong>big</strong> deal"},
		{"mixed", "**hi**\n[x](y)", "<strong>hi</strong><br/><a href=\"y\">x</a>"},
		{"unterminated bold untouched", "a **b", "a **b"},
		{"unterminated link untouched", "[text](no-close", "[text](no-close"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestBufferMarkersSpanFragments(t *testing.T) {
	b := NewBuffer()
	b.Append("click [he")
	b.Append("re](http://x)")
	if got := b.Display(); got != `click <a href="http://x">here</a>` {
		t.Fatalf("marker split across fragments not normalized: %q", got)
	}
	if got := b.Raw(); got != "click [here](http://x)" {
		t.Fatalf("raw buffer altered: %q", got)
	}
}

func TestBufferScrollBoundary(t *testing.T) {
	b := NewBuffer()

	// 4 words: no boundary yet.
	if b.Append("one two three four ") {
		t.Fatalf("scrolled before reaching %d words", ScrollStep)
	}
	// 5th word crosses the first boundary.
	if !b.Append("five ") {
		t.Fatalf("no scroll at word %d", ScrollStep)
	}
	// 6th word: same bucket, no scroll.
	if b.Append("six ") {
		t.Fatalf("scrolled off-boundary")
	}
	// Jumping 6..11 crosses the next boundary in one fragment.
	if !b.Append("seven eight nine ten eleven") {
		t.Fatalf("no scroll when a fragment jumps past a boundary")
	}
	if b.Words() != 11 {
		t.Fatalf("want 11 words, got %d", b.Words())
	}
}
