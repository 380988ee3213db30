package synflood

import (
	"math"
	"sort"

	"github.com/hed1ad/synguard/pkg/features"
)

// Point is the number of SYN packets in one bucket.
type Point struct {
	// Minute is the elapsed time, in minutes since t0, at which the bucket starts.
	Minute int
	Count  int
}

// Series is a SYN packet count series at a fixed bucket width.
type Series struct {
	Resolution int // bucket width in minutes
	Points     []Point
}

// Bin counts SYN packets per bucket of resolution minutes, measured from the
// dataset origin. Counts are totals per bucket; empty buckets are omitted.
func Bin(w *features.Windowed, resolution int) Series {
	s := Series{Resolution: resolution}
	if resolution <= 0 {
		return s
	}

	counts := make(map[int]int)
	for _, r := range w.Records {
		if !r.IsSYN() {
			continue
		}
		minutes := (r.Start - w.Origin) / 60
		bucket := int(math.Floor(minutes / float64(resolution)))
		counts[bucket]++
	}

	buckets := make([]int, 0, len(counts))
	for b := range counts {
		buckets = append(buckets, b)
	}
	sort.Ints(buckets)

	for _, b := range buckets {
		s.Points = append(s.Points, Point{Minute: b * resolution, Count: counts[b]})
	}
	return s
}

// Total returns the sum of all bucket counts.
func (s Series) Total() int {
	var n int
	for _, p := range s.Points {
		n += p.Count
	}
	return n
}
