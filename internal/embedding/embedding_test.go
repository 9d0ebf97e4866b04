package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Embed_Deterministic(t *testing.T) {
	s := NewService()
	v1 := s.Embed("the quick brown fox")
	v2 := s.Embed("the quick brown fox")
	assert.Equal(t, v1, v2)
	assert.Len(t, v1, Dimensions)
}

func TestService_Embed_DifferentTextDiffers(t *testing.T) {
	s := NewService()
	v1 := s.Embed("Python is a great language")
	v2 := s.Embed("JavaScript is a great language")
	assert.NotEqual(t, v1, v2)
}

func TestService_Embed_L2Normalized(t *testing.T) {
	s := NewService()
	v := s.Embed("any non-empty text to embed")

	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	require.InDelta(t, 1.0, sumSq, 1e-6)
}

func TestService_Embed_Empty(t *testing.T) {
	s := NewService()
	v := s.Embed("")
	assert.Len(t, v, Dimensions)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestCosineSimilarity_IdenticalVectors(t *testing.T) {
	s := NewService()
	v := s.Embed("identical text")
	assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-6)
}

func TestCosineSimilarity_DifferentLengthsReturnsZero(t *testing.T) {
	assert.Zero(t, CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
}

func TestCosineSimilarity_Clipped(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{-1, 0}
	assert.Zero(t, CosineSimilarity(a, b))
}
