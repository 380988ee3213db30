package features

import (
	"fmt"
	"sort"
)

// Extractor reduces the records of one window to a feature vector.
type Extractor interface {
	// Name identifies the feature set in configuration.
	Name() string

	// FeatureNames returns the names of extracted features.
	FeatureNames() []string

	// Extract converts a window to its feature vector.
	Extract(w Window, enc *Encoder) []float64
}

// Feature set names.
const (
	DestinationSum = "destination-sum"
	Volume         = "volume"
)

// NewExtractor returns the feature set registered under name.
func NewExtractor(name string) (Extractor, error) {
	switch name {
	case DestinationSum, "":
		return DestinationSumExtractor{}, nil
	case Volume:
		return VolumeExtractor{}, nil
	default:
		return nil, fmt.Errorf("unknown feature set %q", name)
	}
}

// ExtractorNames lists the registered feature sets.
func ExtractorNames() []string {
	return []string{DestinationSum, Volume}
}

// DestinationSumExtractor sums the encoded destination addresses of a window.
// It is a coarse proxy for how much and how varied the destination traffic is.
type DestinationSumExtractor struct{}

func (DestinationSumExtractor) Name() string { return DestinationSum }

func (DestinationSumExtractor) FeatureNames() []string {
	return []string{"destination_ip_encoded_sum"}
}

func (DestinationSumExtractor) Extract(w Window, enc *Encoder) []float64 {
	var sum float64
	for _, r := range w.Records {
		code, _ := enc.Encode(r.DstAddr)
		sum += float64(code)
	}
	return []float64{sum}
}

// VolumeExtractor describes a window by its traffic volume and spread.
type VolumeExtractor struct{}

func (VolumeExtractor) Name() string { return Volume }

func (VolumeExtractor) FeatureNames() []string {
	return []string{
		"record_count",
		"total_length",
		"distinct_destination_ports",
		"distinct_source_ips",
		"syn_count",
	}
}

func (VolumeExtractor) Extract(w Window, _ *Encoder) []float64 {
	var (
		length  int64
		synN    int
		ports   = make(map[uint16]struct{})
		sources = make(map[string]struct{})
	)
	for _, r := range w.Records {
		length += r.Length
		if r.IsSYN() {
			synN++
		}
		ports[r.DstPort] = struct{}{}
		sources[r.SrcAddr] = struct{}{}
	}

	return []float64{
		float64(len(w.Records)),
		float64(length),
		float64(len(ports)),
		float64(len(sources)),
		float64(synN),
	}
}

// Matrix is the per-window feature table, ordered by window index.
type Matrix struct {
	Windows []int
	Names   []string
	Rows    [][]float64
}

// Row returns the feature vector of window idx.
func (m *Matrix) Row(idx int) ([]float64, bool) {
	i := sort.SearchInts(m.Windows, idx)
	if i < len(m.Windows) && m.Windows[i] == idx {
		return m.Rows[i], true
	}
	return nil, false
}

// AggregateOption configures Aggregate.
type AggregateOption func(*aggregateConfig)

type aggregateConfig struct {
	fillEmpty bool
}

// WithFillEmpty makes Aggregate emit a zero vector for every window index
// between the first and last non-empty window.
func WithFillEmpty(fill bool) AggregateOption {
	return func(c *aggregateConfig) {
		c.fillEmpty = fill
	}
}

// Aggregate extracts one feature vector per window. By default only windows
// holding at least one record appear in the result.
func Aggregate(w *Windowed, enc *Encoder, ex Extractor, opts ...AggregateOption) *Matrix {
	var cfg aggregateConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Matrix{Names: ex.FeatureNames()}
	dim := len(m.Names)

	for _, win := range w.Windows() {
		if cfg.fillEmpty && len(m.Windows) > 0 {
			for gap := m.Windows[len(m.Windows)-1] + 1; gap < win.Index; gap++ {
				m.Windows = append(m.Windows, gap)
				m.Rows = append(m.Rows, make([]float64, dim))
			}
		}
		m.Windows = append(m.Windows, win.Index)
		m.Rows = append(m.Rows, ex.Extract(win, enc))
	}

	return m
}
