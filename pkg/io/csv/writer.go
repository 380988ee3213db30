// Package csv writes analysis results as CSV files.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/hed1ad/synguard/pkg/flow"
	"github.com/hed1ad/synguard/pkg/synflood"
)

// Column headers of the exports.
var (
	AnomalyHeader = append(append([]string{}, flow.Columns...), "window")
	GroupHeader   = []string{"window", "destination_ip", "destination_port", "packet_count"}
	SeriesHeader  = []string{"resolution_minutes", "minute", "count"}
)

// Writer writes rows to a CSV file.
type Writer struct {
	file      *os.File
	writer    *csv.Writer
	hasHeader bool
}

// Option configures a CSV writer.
type Option func(*Writer)

// WithHeader controls whether a header row is written.
func WithHeader(has bool) Option {
	return func(w *Writer) {
		w.hasHeader = has
	}
}

// NewWriter creates filename, truncating it if it exists.
func NewWriter(filename string, opts ...Option) (*Writer, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	w := NewStreamWriter(file, opts...)
	w.file = file
	return w, nil
}

// NewStreamWriter creates a writer over an arbitrary io.Writer.
func NewStreamWriter(out io.Writer, opts ...Option) *Writer {
	w := &Writer{
		writer:    csv.NewWriter(out),
		hasHeader: true,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteAnomalies writes every record with the window it belongs to.
// windows[i] is the window index of records[i].
func (w *Writer) WriteAnomalies(records []flow.Record, windows []int) error {
	if len(records) != len(windows) {
		return fmt.Errorf("anomaly export: %d records but %d window indices", len(records), len(windows))
	}
	if err := w.header(AnomalyHeader); err != nil {
		return err
	}

	for i, r := range records {
		row := append(r.Fields(), strconv.Itoa(windows[i]))
		if err := w.writer.Write(row); err != nil {
			return err
		}
	}

	return w.flush()
}

// WriteGroups writes SYN groups in the order given.
func (w *Writer) WriteGroups(groups []synflood.Group) error {
	if err := w.header(GroupHeader); err != nil {
		return err
	}

	for _, g := range groups {
		row := []string{
			strconv.Itoa(g.Window),
			g.DstAddr,
			strconv.Itoa(int(g.DstPort)),
			strconv.Itoa(g.Packets),
		}
		if err := w.writer.Write(row); err != nil {
			return err
		}
	}

	return w.flush()
}

// WriteSeries writes the points of each series, one row per bucket.
func (w *Writer) WriteSeries(series ...synflood.Series) error {
	if err := w.header(SeriesHeader); err != nil {
		return err
	}

	for _, s := range series {
		res := strconv.Itoa(s.Resolution)
		for _, p := range s.Points {
			if err := w.writer.Write([]string{res, strconv.Itoa(p.Minute), strconv.Itoa(p.Count)}); err != nil {
				return err
			}
		}
	}

	return w.flush()
}

func (w *Writer) header(cols []string) error {
	if !w.hasHeader {
		return nil
	}
	return w.writer.Write(cols)
}

func (w *Writer) flush() error {
	w.writer.Flush()
	return w.writer.Error()
}

// Close flushes pending rows and closes the underlying file, if any.
func (w *Writer) Close() error {
	if err := w.flush(); err != nil {
		if w.file != nil {
			w.file.Close()
		}
		return err
	}
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}
