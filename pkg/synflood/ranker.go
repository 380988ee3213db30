// Package synflood ranks (window, destination, port) triples by their
// concentration of SYN-flagged packets.
package synflood

import (
	"sort"

	"github.com/hed1ad/synguard/pkg/features"
)

// DefaultTopK is the number of groups reported when none is configured.
const DefaultTopK = 10

// Key identifies one candidate flood target within a window.
type Key struct {
	Window  int
	DstAddr string
	DstPort uint16
}

// Less orders keys by window, then destination address, then port.
func (k Key) Less(o Key) bool {
	if k.Window != o.Window {
		return k.Window < o.Window
	}
	if k.DstAddr != o.DstAddr {
		return k.DstAddr < o.DstAddr
	}
	return k.DstPort < o.DstPort
}

// Group is the SYN statistic of one key.
type Group struct {
	Key
	Packets       int
	UniqueSources int
	// Start and End bound the whole window the group belongs to: the min and
	// max start timestamps over every record of that window, SYN or not.
	Start float64
	End   float64
}

// Groups collects the SYN-flagged records of w by key. The result is in key
// order; it is empty, not nil-with-error, when no SYN traffic exists.
func Groups(w *features.Windowed) []Group {
	type acc struct {
		packets int
		sources map[string]struct{}
	}
	groups := make(map[Key]*acc)

	for i, r := range w.Records {
		if !r.IsSYN() {
			continue
		}
		k := Key{Window: w.Index[i], DstAddr: r.DstAddr, DstPort: r.DstPort}
		a, ok := groups[k]
		if !ok {
			a = &acc{sources: make(map[string]struct{})}
			groups[k] = a
		}
		a.packets++
		a.sources[r.SrcAddr] = struct{}{}
	}

	bounds := w.Bounds()
	out := make([]Group, 0, len(groups))
	for k, a := range groups {
		b := bounds[k.Window]
		out = append(out, Group{
			Key:           k,
			Packets:       a.packets,
			UniqueSources: len(a.sources),
			Start:         b[0],
			End:           b[1],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.Less(out[j].Key)
	})

	return out
}

// Top returns the k groups with the most SYN packets. Equal counts keep their
// key order. k <= 0 returns every group ranked.
func Top(groups []Group, k int) []Group {
	ranked := make([]Group, len(groups))
	copy(ranked, groups)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Packets > ranked[j].Packets
	})

	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}
