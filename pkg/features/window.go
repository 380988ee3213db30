package features

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/hed1ad/synguard/pkg/flow"
)

// DefaultWindowSize is the window duration used when none is configured.
const DefaultWindowSize = 300 * time.Second

// ErrInvalidWindowSize is returned for a non-positive window duration.
var ErrInvalidWindowSize = errors.New("window size must be positive")

// Windowed holds the records sorted by start timestamp together with the
// window index of each record.
type Windowed struct {
	// Origin is the earliest start timestamp in the dataset (t0).
	Origin float64
	// Size is the window duration in seconds.
	Size float64
	// Records are sorted ascending by Start; ties keep input order.
	Records []flow.Record
	// Index[i] is the window of Records[i].
	Index []int
}

// Window is the contiguous run of records that share a window index.
type Window struct {
	Index   int
	Records []flow.Record
	// Start and End are the min and max start timestamps of the window's records.
	Start float64
	End   float64
}

// Assign sorts a copy of records by start timestamp and assigns each record
// to window floor((start - t0) / size). The input slice is not modified.
func Assign(records []flow.Record, size time.Duration) (*Windowed, error) {
	if len(records) == 0 {
		return nil, flow.ErrEmptyDataset
	}
	if size <= 0 {
		return nil, ErrInvalidWindowSize
	}

	sorted := make([]flow.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	w := &Windowed{
		Origin:  sorted[0].Start,
		Size:    size.Seconds(),
		Records: sorted,
		Index:   make([]int, len(sorted)),
	}
	for i, r := range sorted {
		w.Index[i] = w.WindowOf(r.Start)
	}

	return w, nil
}

// WindowOf returns the window index of a timestamp.
func (w *Windowed) WindowOf(ts float64) int {
	return int(math.Floor((ts - w.Origin) / w.Size))
}

// Windows groups the sorted records by window index, in ascending order.
// Windows without records do not appear.
func (w *Windowed) Windows() []Window {
	var out []Window

	for lo := 0; lo < len(w.Records); {
		hi := lo + 1
		for hi < len(w.Records) && w.Index[hi] == w.Index[lo] {
			hi++
		}

		members := w.Records[lo:hi]
		out = append(out, Window{
			Index:   w.Index[lo],
			Records: members,
			Start:   members[0].Start,
			End:     members[len(members)-1].Start,
		})
		lo = hi
	}

	return out
}

// Bounds returns the start and end timestamps of each non-empty window.
func (w *Windowed) Bounds() map[int][2]float64 {
	bounds := make(map[int][2]float64)
	for _, win := range w.Windows() {
		bounds[win.Index] = [2]float64{win.Start, win.End}
	}
	return bounds
}
