package pipeline

import (
	"github.com/hed1ad/synguard/pkg/detectors"
	"github.com/hed1ad/synguard/pkg/features"
	"github.com/hed1ad/synguard/pkg/flow"
	"github.com/hed1ad/synguard/pkg/synflood"
)

// Anomaly is a raw record that belongs to an outlier window.
type Anomaly struct {
	flow.Record
	Window int
}

// Result carries every artifact of one analysis run.
type Result struct {
	RunID    string
	Detector string

	Encoder  *features.Encoder
	Windowed *features.Windowed
	Matrix   *features.Matrix
	// Labels[i] classifies Matrix.Windows[i].
	Labels []detectors.Label

	// AnomalousWindows lists outlier window indices in ascending order.
	AnomalousWindows []int
	// Anomalies holds every record of an outlier window, sorted by start time.
	Anomalies []Anomaly

	// SynGroups is the full SYN grouping in key order; TopGroups is the ranked head.
	SynGroups []synflood.Group
	TopGroups []synflood.Group

	PerMinute      synflood.Series
	PerFiveMinutes synflood.Series
}

func (r *Result) collectAnomalies() {
	outliers := make(map[int]bool)
	for i, l := range r.Labels {
		if l == detectors.Outlier {
			idx := r.Matrix.Windows[i]
			outliers[idx] = true
			r.AnomalousWindows = append(r.AnomalousWindows, idx)
		}
	}

	for i, rec := range r.Windowed.Records {
		if w := r.Windowed.Index[i]; outliers[w] {
			r.Anomalies = append(r.Anomalies, Anomaly{Record: rec, Window: w})
		}
	}
}

// IsAnomalous reports whether window idx was classified outside the boundary.
func (r *Result) IsAnomalous(idx int) bool {
	for _, w := range r.AnomalousWindows {
		if w == idx {
			return true
		}
	}
	return false
}
