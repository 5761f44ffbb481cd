package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clusterWithOutlier() []DataPoint {
	data := make([]DataPoint, 0, 41)
	for i := 0; i < 40; i++ {
		d := float64(i%5) * 0.1
		data = append(data, DataPoint{Features: []float64{1.0 + d, 2.0 - d}})
	}
	return append(data, DataPoint{Features: []float64{10.0, 20.0}})
}

func TestIsolationForest_Basic(t *testing.T) {
	data := clusterWithOutlier()

	forest := NewIsolationForest(100, 64, DefaultSeed)
	require.NoError(t, forest.Fit(data))

	normal := forest.Predict(DataPoint{Features: []float64{1.1, 1.9}})
	outlier := forest.Predict(DataPoint{Features: []float64{10.0, 20.0}})

	assert.Greater(t, outlier.Score, normal.Score, "outlier should score higher")
	assert.Greater(t, outlier.Score, 0.6)
}

func TestIsolationForest_Deterministic(t *testing.T) {
	data := clusterWithOutlier()

	a := NewIsolationForest(50, 32, 7)
	b := NewIsolationForest(50, 32, 7)
	require.NoError(t, a.Fit(data))
	require.NoError(t, b.Fit(data))

	ra := a.BatchPredict(data)
	rb := b.BatchPredict(data)
	require.Len(t, ra, len(data))
	for i := range ra {
		assert.Equal(t, ra[i].Score, rb[i].Score, "row %d", i)
	}

	// Refitting the same forest reproduces the same scores.
	require.NoError(t, a.Fit(data))
	assert.Equal(t, ra[0].Score, a.Predict(data[0]).Score)
}

func TestIsolationForest_Untrained(t *testing.T) {
	forest := NewIsolationForest(10, 8, 1)
	assert.Equal(t, 0.5, forest.Predict(DataPoint{Features: []float64{1}}).Score)
}

func TestContaminationThreshold(t *testing.T) {
	scores := make([]float64, 100)
	for i := range scores {
		scores[i] = float64(i) / 100
	}

	threshold := ContaminationThreshold(scores, 0.07)
	flagged := 0
	for _, s := range scores {
		if s > threshold {
			flagged++
		}
	}
	assert.Equal(t, 7, flagged)
	// Position 0.93*99 = 92.07 between ranks 92 and 93.
	assert.InDelta(t, 0.9207, threshold, 1e-12)

	assert.InDelta(t, 2.5, ContaminationThreshold([]float64{4, 1, 3, 2}, 0.5), 1e-12)
	assert.InDelta(t, 3.7, ContaminationThreshold([]float64{1, 2, 3, 4}, 0.1), 1e-12)

	// Identical scores flag nothing.
	flat := []float64{0.4, 0.4, 0.4, 0.4}
	th := ContaminationThreshold(flat, 0.07)
	for _, s := range flat {
		assert.False(t, s > th)
	}
}
