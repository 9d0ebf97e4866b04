package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreAgreement_IdenticalVectorsScoreOne(t *testing.T) {
	vectors := [][]float32{{1, 0}, {1, 0}, {1, 0}}
	result := scoreAgreement(vectors, []float64{1, 1, 1})

	assert.InDelta(t, 1.0, result.overall, 1e-9)
	for _, a := range result.individual {
		assert.InDelta(t, 1.0, a, 1e-9)
	}
}

func TestScoreAgreement_SingleReplyScoresOne(t *testing.T) {
	result := scoreAgreement([][]float32{{1, 0}}, []float64{1})
	assert.Equal(t, 1.0, result.overall)
	assert.Equal(t, []float64{1.0}, result.individual)
}

func TestScoreAgreement_OrthogonalVectorsScoreZero(t *testing.T) {
	result := scoreAgreement([][]float32{{1, 0}, {0, 1}}, []float64{1, 1})
	assert.InDelta(t, 0.0, result.overall, 1e-9)
}

func TestNormalizeWeights_SumsToOne(t *testing.T) {
	w := normalizeWeights([]float64{2, 2, 4}, 3)
	var sum float64
	for _, v := range w {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestNormalizeWeights_FallsBackToUniform(t *testing.T) {
	w := normalizeWeights(nil, 4)
	for _, v := range w {
		assert.InDelta(t, 0.25, v, 1e-9)
	}
}

func TestBestIndex_TieBrokenByLowerIndex(t *testing.T) {
	assert.Equal(t, 0, bestIndex([]float64{0.5, 0.5, 0.1}))
	assert.Equal(t, 1, bestIndex([]float64{0.1, 0.9, 0.2}))
}
