package iforest

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/synguard/pkg/detectors"
)

func TestNewIsolationForest(t *testing.T) {
	tests := []struct {
		name       string
		opts       []Option
		wantNTrees int
	}{
		{
			name:       "default configuration",
			opts:       nil,
			wantNTrees: 100,
		},
		{
			name:       "custom trees",
			opts:       []Option{WithTrees(50)},
			wantNTrees: 50,
		},
		{
			name:       "multiple options",
			opts:       []Option{WithTrees(200), WithContamination(0.05), WithSeed(123)},
			wantNTrees: 200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.opts...)
			assert.Equal(t, tt.wantNTrees, f.nTrees)
		})
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		data    [][]float64
		wantErr bool
	}{
		{
			name:    "empty data",
			data:    [][]float64{},
			wantErr: true,
		},
		{
			name:    "single sample",
			data:    [][]float64{{1.0, 2.0, 3.0}},
			wantErr: true,
		},
		{
			name:    "zero contamination",
			opts:    []Option{WithContamination(0)},
			data:    generateTestData(20, 2),
			wantErr: true,
		},
		{
			name:    "normal data",
			data:    generateTestData(100, 5),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(append([]Option{WithTrees(10), WithSeed(42)}, tt.opts...)...)
			err := f.Fit(tt.data)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.True(t, f.trained)
				assert.Len(t, f.trees, f.nTrees)
			}
		})
	}
}

func TestFitIdenticalSamples(t *testing.T) {
	data := [][]float64{{7}, {7}, {7}}
	err := New().Fit(data)
	assert.ErrorIs(t, err, detectors.ErrInsufficientData)
}

func TestPredict(t *testing.T) {
	trainData := generateTestData(500, 5)
	f := New(WithTrees(50), WithSampleSize(100), WithSeed(42))
	require.NoError(t, f.Fit(trainData))

	t.Run("predict on normal data", func(t *testing.T) {
		testData := generateTestData(100, 5)
		scores, err := f.Predict(testData)

		require.NoError(t, err)
		assert.Len(t, scores, len(testData))

		for _, score := range scores {
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		}
	})

	t.Run("predict on anomalies", func(t *testing.T) {
		anomalies := [][]float64{
			{1000, 1000, 1000, 1000, 1000},
			{-500, -500, -500, -500, -500},
		}
		scores, err := f.Predict(anomalies)

		require.NoError(t, err)
		for _, score := range scores {
			assert.Greater(t, score, 0.4, "anomalies should have high scores")
		}
	})

	t.Run("predict before fit", func(t *testing.T) {
		untrained := New()
		_, err := untrained.Predict(trainData)
		assert.ErrorIs(t, err, detectors.ErrNotTrained)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := f.Predict([][]float64{{1, 2}})
		assert.Error(t, err)
	})
}

func TestClassifyVolumeSpike(t *testing.T) {
	var data [][]float64
	for i := 0; i < 50; i++ {
		data = append(data, []float64{1000 + float64(i%5)})
	}
	data = append(data, []float64{100000})

	labels, err := detectors.FitClassify(New(), data)
	require.NoError(t, err)
	assert.Equal(t, detectors.Outlier, labels[50])
}

func TestFitDeterministic(t *testing.T) {
	data := generateTestData(200, 3)

	a := New(WithTrees(20), WithSeed(9))
	b := New(WithTrees(20), WithSeed(9))
	require.NoError(t, a.Fit(data))
	require.NoError(t, b.Fit(data))

	sa, err := a.Predict(data)
	require.NoError(t, err)
	sb, err := b.Predict(data)
	require.NoError(t, err)
	assert.Equal(t, sa, sb)

	// refitting restarts from the seed
	require.NoError(t, a.Fit(data))
	again, err := a.Predict(data)
	require.NoError(t, err)
	assert.Equal(t, sa, again)
}

func TestThreshold(t *testing.T) {
	f := New()
	f.trained = true

	f.SetThreshold(0.7)
	assert.Equal(t, 0.7, f.Threshold())
}

func TestPercentile(t *testing.T) {
	assert.Equal(t, 0.0, percentile(nil, 50))
	assert.Equal(t, 3.0, percentile([]float64{5, 1, 3, 2, 4}, 50))
	assert.Equal(t, 5.0, percentile([]float64{5, 1, 3, 2, 4}, 100))
	assert.InDelta(t, 4.6, percentile([]float64{5, 1, 3, 2, 4}, 90), 1e-9)
	assert.Equal(t, 2.0, percentile([]float64{2, 2, 2}, 99.74))
}

func TestClassifyOutlierBound(t *testing.T) {
	tests := []struct {
		name          string
		contamination float64
		data          [][]float64
		wantMax       int
	}{
		{
			name:          "tied top scores are not flagged",
			contamination: 0.0026,
			data: func() [][]float64 {
				var data [][]float64
				for i := 0; i < 25; i++ {
					v := []float64{1000 + float64(i%5)}
					data = append(data, v, v)
				}
				return data
			}(),
			wantMax: 0,
		},
		{
			name:          "bounded by contamination",
			contamination: 0.1,
			data:          generateTestData(200, 3),
			wantMax:       20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(WithContamination(tt.contamination), WithTrees(50))
			labels, err := detectors.FitClassify(f, tt.data)
			require.NoError(t, err)

			var outliers int
			for _, l := range labels {
				if l == detectors.Outlier {
					outliers++
				}
			}
			assert.LessOrEqual(t, outliers, tt.wantMax)
		})
	}
}

func BenchmarkFit(b *testing.B) {
	data := generateTestData(10000, 10)
	f := New(WithTrees(100), WithSampleSize(256))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Fit(data)
	}
}

func BenchmarkPredict(b *testing.B) {
	trainData := generateTestData(5000, 10)
	testData := generateTestData(1000, 10)

	f := New(WithTrees(100), WithSampleSize(256))
	f.Fit(trainData)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Predict(testData)
	}
}

func generateTestData(n, features int) [][]float64 {
	data := make([][]float64, n)
	for i := 0; i < n; i++ {
		data[i] = make([]float64, features)
		for j := 0; j < features; j++ {
			data[i][j] = rand.NormFloat64()
		}
	}
	return data
}
