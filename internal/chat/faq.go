package chat

import "math/rand"

// SuggestedFAQCount is how many FAQ suggestions are shown on an empty feed.
const SuggestedFAQCount = 4

// SampleFAQs draws up to n FAQs uniformly without replacement. The input
// slice is not modified. Pass a seeded rng for deterministic selection.
func SampleFAQs(faqs []FAQ, n int, rng *rand.Rand) []FAQ {
	if n <= 0 || len(faqs) == 0 {
		return nil
	}
	pool := append([]FAQ(nil), faqs...)
	if n > len(pool) {
		n = len(pool)
	}
	// Partial Fisher-Yates: the first n slots end up uniformly drawn.
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}
