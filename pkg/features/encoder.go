// Package features turns a flow record set into per-window feature vectors.
package features

import (
	"sort"

	"github.com/hed1ad/synguard/pkg/flow"
)

// Encoder is a bidirectional lookup between destination addresses and dense
// integer codes. Codes follow the lexicographic order of the distinct
// addresses, so the same dataset always yields the same table.
type Encoder struct {
	codes  map[string]int
	values []string
}

// NewEncoder builds the table from every destination address in records.
func NewEncoder(records []flow.Record) (*Encoder, error) {
	if len(records) == 0 {
		return nil, flow.ErrEmptyDataset
	}

	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[r.DstAddr] = struct{}{}
	}

	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)

	codes := make(map[string]int, len(values))
	for i, v := range values {
		codes[v] = i
	}

	return &Encoder{codes: codes, values: values}, nil
}

// Encode returns the code for addr.
func (e *Encoder) Encode(addr string) (int, bool) {
	code, ok := e.codes[addr]
	return code, ok
}

// Decode returns the address for code.
func (e *Encoder) Decode(code int) (string, bool) {
	if code < 0 || code >= len(e.values) {
		return "", false
	}
	return e.values[code], true
}

// Len returns the number of distinct addresses.
func (e *Encoder) Len() int {
	return len(e.values)
}
