package services

import (
	"fmt"
	"math"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
)

// CosineSimilarity returns the cosine of the angle between a and b.
// Vectors of different lengths are a domain.ErrValidation error. Empty
// vectors and vectors with zero magnitude score 0.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: embedding length mismatch (%d vs %d)", domain.ErrValidation, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, nil
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	return cosine(dot, math.Sqrt(normA), math.Sqrt(normB)), nil
}

// magnitude returns the Euclidean length of v.
func magnitude(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// cosine is shared by CosineSimilarity and the indexed scan so both
// produce bit-identical scores.
func cosine(dot, magA, magB float64) float64 {
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (magA * magB)
}
