package pipeline

import (
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/synguard/pkg/config"
	"github.com/hed1ad/synguard/pkg/detectors"
	"github.com/hed1ad/synguard/pkg/detectors/iforest"
	"github.com/hed1ad/synguard/pkg/detectors/ocsvm"
	"github.com/hed1ad/synguard/pkg/features"
	"github.com/hed1ad/synguard/pkg/flow"
)

const spikeWindow = 25

// floodDataset builds 51 five-minute windows. Every window carries one
// record to 10.0.0.1 (code 0) and roughly 100 SYNs to 10.0.0.2 (code 1);
// the spike window carries 100x that.
func floodDataset() []flow.Record {
	var records []flow.Record
	for w := 0; w < 51; w++ {
		base := float64(w * 300)
		records = append(records, flow.Record{
			DstAddr: "10.0.0.1", SrcAddr: "192.168.1.1", DstPort: 22, Start: base, End: base,
		})

		n := 100 + w%5
		if w == spikeWindow {
			n = 10000
		}
		for i := 0; i < n; i++ {
			ts := base + 1 + float64(i%250)
			records = append(records, flow.Record{
				DstAddr: "10.0.0.2",
				SrcAddr: fmt.Sprintf("172.16.%d.%d", i/250, i%250),
				DstPort: 80,
				Start:   ts,
				End:     ts,
				SYN:     1,
			})
		}
	}
	return records
}

func newTestPipeline(opts ...Option) (*Pipeline, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return New(append([]Option{WithLogger(logger)}, opts...)...), hook
}

func TestRunFlagsVolumeSpike(t *testing.T) {
	p, hook := newTestPipeline()

	res, err := p.Run(floodDataset())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "ocsvm", res.Detector)
	require.Len(t, res.Matrix.Windows, 51)
	require.Len(t, res.Labels, 51)
	assert.Equal(t, []float64{10000}, res.Matrix.Rows[spikeWindow])

	assert.Equal(t, []int{spikeWindow}, res.AnomalousWindows)
	assert.True(t, res.IsAnomalous(spikeWindow))
	assert.False(t, res.IsAnomalous(0))

	require.Len(t, res.Anomalies, 10001)
	for i, a := range res.Anomalies {
		assert.Equal(t, spikeWindow, a.Window)
		if i > 0 {
			assert.LessOrEqual(t, res.Anomalies[i-1].Start, a.Start)
		}
	}

	require.NotEmpty(t, res.TopGroups)
	assert.Equal(t, spikeWindow, res.TopGroups[0].Window)
	assert.Equal(t, "10.0.0.2", res.TopGroups[0].DstAddr)
	assert.Equal(t, 10000, res.TopGroups[0].Packets)
	assert.Equal(t, 10000, res.TopGroups[0].UniqueSources)
	assert.Len(t, res.SynGroups, 51)
	assert.Len(t, res.TopGroups, 10)

	assert.Equal(t, res.PerMinute.Total(), res.PerFiveMinutes.Total())
	assert.Equal(t, 1, res.PerMinute.Resolution)
	assert.Equal(t, 5, res.PerFiveMinutes.Resolution)

	var sawClassified bool
	for _, e := range hook.AllEntries() {
		assert.Equal(t, res.RunID, e.Data["run_id"])
		if e.Message == "classified windows" {
			sawClassified = true
			assert.Equal(t, 1, e.Data["outlier_windows"])
		}
	}
	assert.True(t, sawClassified)
}

func TestRunDeterministic(t *testing.T) {
	records := floodDataset()
	p, _ := newTestPipeline()

	first, err := p.Run(records)
	require.NoError(t, err)
	second, err := p.Run(records)
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Labels, second.Labels)
	assert.Equal(t, first.SynGroups, second.SynGroups)
	assert.Equal(t, first.TopGroups, second.TopGroups)
	assert.Equal(t, first.PerMinute, second.PerMinute)
}

func TestRunDoesNotMutateInput(t *testing.T) {
	records := []flow.Record{
		{DstAddr: "b", Start: 900, SYN: 1},
		{DstAddr: "a", Start: 0, SYN: 1},
		{DstAddr: "b", Start: 10},
	}
	p, _ := newTestPipeline()
	_, _ = p.Run(records)

	assert.Equal(t, 900.0, records[0].Start)
	assert.Equal(t, "a", records[1].DstAddr)
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name    string
		records []flow.Record
		opts    []Option
		wantErr error
	}{
		{
			name:    "empty dataset",
			records: nil,
			wantErr: flow.ErrEmptyDataset,
		},
		{
			name: "single window",
			records: []flow.Record{
				{DstAddr: "destA", SrcAddr: "s1", DstPort: 80, Start: 0, SYN: 1},
				{DstAddr: "destA", SrcAddr: "s2", DstPort: 80, Start: 1, SYN: 1},
				{DstAddr: "destB", SrcAddr: "s1", DstPort: 80, Start: 200, SYN: 1},
			},
			wantErr: detectors.ErrInsufficientData,
		},
		{
			name: "identical windows",
			records: []flow.Record{
				{DstAddr: "a", Start: 0},
				{DstAddr: "b", Start: 1},
				{DstAddr: "a", Start: 300},
				{DstAddr: "b", Start: 301},
			},
			wantErr: detectors.ErrInsufficientData,
		},
		{
			name:    "invalid window size",
			records: []flow.Record{{DstAddr: "a"}},
			opts:    []Option{WithWindowSize(0)},
			wantErr: features.ErrInvalidWindowSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPipeline(tt.opts...)
			res, err := p.Run(tt.records)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, res)
		})
	}
}

func TestRunNoSynTraffic(t *testing.T) {
	var records []flow.Record
	for w := 0; w < 6; w++ {
		for i := 0; i <= w; i++ {
			records = append(records, flow.Record{DstAddr: fmt.Sprintf("10.0.0.%d", i), Start: float64(w*300 + i)})
		}
	}

	p, _ := newTestPipeline(WithDetector(ocsvm.New(ocsvm.WithNu(0.2))))
	res, err := p.Run(records)
	require.NoError(t, err)

	assert.Empty(t, res.SynGroups)
	assert.Empty(t, res.TopGroups)
	assert.Empty(t, res.PerMinute.Points)
}

func TestRunFillEmpty(t *testing.T) {
	records := []flow.Record{
		{DstAddr: "a", Start: 0},
		{DstAddr: "b", Start: 1},
		{DstAddr: "b", Start: 1200},
	}

	p, _ := newTestPipeline(WithFillEmpty(true), WithDetector(ocsvm.New(ocsvm.WithNu(0.5))))
	res, err := p.Run(records)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3, 4}, res.Matrix.Windows)
	assert.Len(t, res.Labels, 5)
}

func TestFromConfig(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Window.Size = time.Minute
	cfg.Window.Features = features.Volume
	cfg.Syn.TopK = 3

	logger, _ := test.NewNullLogger()
	p, err := FromConfig(cfg, logger)
	require.NoError(t, err)

	assert.Equal(t, time.Minute, p.windowSize)
	assert.Equal(t, features.Volume, p.extractor.Name())
	assert.Equal(t, 3, p.topK)
	assert.IsType(t, &ocsvm.OneClassSVM{}, p.detector)
}

func TestNewDetector(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.DetectorConfig)
		want    interface{}
		wantErr bool
	}{
		{name: "default ocsvm", mutate: func(*config.DetectorConfig) {}, want: &ocsvm.OneClassSVM{}},
		{name: "explicit gamma", mutate: func(c *config.DetectorConfig) { c.Gamma = "0.5" }, want: &ocsvm.OneClassSVM{}},
		{name: "iforest", mutate: func(c *config.DetectorConfig) { c.Algorithm = config.DetectorIForest }, want: &iforest.IsolationForest{}},
		{name: "unknown", mutate: func(c *config.DetectorConfig) { c.Algorithm = "lof" }, wantErr: true},
		{name: "bad gamma", mutate: func(c *config.DetectorConfig) { c.Gamma = "wide" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Default()
			require.NoError(t, err)
			tt.mutate(&cfg.Detector)

			d, err := NewDetector(cfg.Detector)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, d)
		})
	}
}

func BenchmarkRun(b *testing.B) {
	records := floodDataset()
	logger, _ := test.NewNullLogger()
	p := New(WithLogger(logger))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Run(records); err != nil {
			b.Fatal(err)
		}
	}
}
