// Package search stores text embeddings and ranks them by cosine
// similarity for a per-user semantic lookup over invoices and projects.
package search

import (
	"hash/fnv"
	"math"
)

// Dimensions matches the ada-002 vector size the schema was sized for.
const Dimensions = 1536

// Embed derives a deterministic, L2-normalized vector from text. It stands
// in for a remote embedding API: identical text always produces the
// identical vector, so self-similarity is exactly 1 and tests need no
// network.
func Embed(text string) []float64 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := float64(h.Sum64() % 1_000_000)

	vec := make([]float64, Dimensions)
	var norm float64
	for i := range vec {
		v := math.Mod(seed+float64(i), 1000)/1000 - 0.5
		vec[i] = v
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// Cosine is the similarity of two vectors. Inputs of different lengths or
// zero magnitude score 0.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
