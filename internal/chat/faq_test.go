package chat

import (
	"math/rand"
	"testing"
)

func makeFAQs(n int) []FAQ {
	out := make([]FAQ, n)
	for i := range out {
		out[i] = FAQ{FAQID: string(rune('a' + i)), Question: "q"}
	}
	return out
}

func TestSampleFAQsNoReplacement(t *testing.T) {
	faqs := makeFAQs(10)
	rng := rand.New(rand.NewSource(1))

	got := SampleFAQs(faqs, 4, rng)
	if len(got) != 4 {
		t.Fatalf("want 4 faqs, got %d", len(got))
	}
	seen := map[string]bool{}
	for _, f := range got {
		if seen[f.FAQID] {
			t.Fatalf("faq %s drawn twice", f.FAQID)
		}
		seen[f.FAQID] = true
	}
}

func TestSampleFAQsDeterministicUnderSeed(t *testing.T) {
	faqs := makeFAQs(8)

	a := SampleFAQs(faqs, 4, rand.New(rand.NewSource(42)))
	b := SampleFAQs(faqs, 4, rand.New(rand.NewSource(42)))
	for i := range a {
		if a[i].FAQID != b[i].FAQID {
			t.Fatalf("same seed diverged at %d: %s vs %s", i, a[i].FAQID, b[i].FAQID)
		}
	}
}

func TestSampleFAQsShortPool(t *testing.T) {
	faqs := makeFAQs(2)
	got := SampleFAQs(faqs, 4, rand.New(rand.NewSource(7)))
	if len(got) != 2 {
		t.Fatalf("want whole pool when n exceeds it, got %d", len(got))
	}
	if got := SampleFAQs(nil, 4, rand.New(rand.NewSource(7))); got != nil {
		t.Fatalf("want nil for empty pool, got %v", got)
	}
}

func TestSampleFAQsDoesNotMutateInput(t *testing.T) {
	faqs := makeFAQs(6)
	orig := append([]FAQ(nil), faqs...)
	SampleFAQs(faqs, 3, rand.New(rand.NewSource(3)))
	for i := range faqs {
		if faqs[i].FAQID != orig[i].FAQID {
			t.Fatalf("input mutated at %d", i)
		}
	}
}
