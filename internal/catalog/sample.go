package catalog

import "math/rand/v2"

// Sample returns min(n, len(ids)) distinct elements of ids chosen uniformly
// without replacement. ids is not modified. Duplicate values in ids are
// collapsed first so the result never repeats a catalog number.
func Sample(rng *rand.Rand, ids []int, n int) []int {
	pool := dedupe(ids)
	if n > len(pool) {
		n = len(pool)
	}
	if n <= 0 {
		return nil
	}

	// Partial Fisher-Yates: the first n slots end up a uniform sample.
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n:n]
}

func dedupe(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
