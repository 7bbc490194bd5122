// Package rag retrieves historical crisis lessons similar to the current
// hospital situation and folds their outcomes into recommendation rationale.
// Embedding quality is not load-bearing here: the embedding only needs to be
// deterministic (same text, same vector) and approximately unit-length, so a
// hash-derived vector stands in for a real embedding model.
package rag

import (
	"crypto/sha256"
	"math"
)

// EmbeddingDim is the fixed dimensionality of every embedding vector.
const EmbeddingDim = 768

// Embed maps text to a deterministic, L2-normalized vector: the SHA-256
// digest is repeated to EmbeddingDim bytes, each byte scaled to [0,1] and
// centered at zero, then the whole vector normalized to unit length.
func Embed(text string) []float64 {
	digest := sha256.Sum256([]byte(text))

	vec := make([]float64, EmbeddingDim)
	for i := range vec {
		vec[i] = float64(digest[i%len(digest)])/255.0 - 0.5
	}

	norm := 0.0
	for _, v := range vec {
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

// cosineSimilarity returns the cosine of the angle between a and b, or 0 if
// either vector is zero-length or the lengths differ.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	dot, normA, normB := 0.0, 0.0, 0.0
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
