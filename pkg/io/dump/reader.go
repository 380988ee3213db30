// Package dump reads whitespace-delimited flow dumps, one record per line.
package dump

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hed1ad/synguard/pkg/flow"
)

// ParseError describes a malformed dump line.
type ParseError struct {
	Line  int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: field %s: %v", e.Line, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Reader reads flow records from a dump file.
type Reader struct {
	file    *os.File
	scanner *bufio.Scanner
	line    int
}

// Option configures a dump reader.
type Option func(*Reader)

// WithBufferSize sets the maximum line length the reader accepts.
func WithBufferSize(n int) Option {
	return func(r *Reader) {
		r.scanner.Buffer(make([]byte, 0, 64*1024), n)
	}
}

// NewReader opens filename for reading.
func NewReader(filename string, opts ...Option) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	r := newReader(file, opts...)
	r.file = file
	return r, nil
}

// NewStreamReader reads records from an already open stream.
func NewStreamReader(src io.Reader, opts ...Option) *Reader {
	return newReader(src, opts...)
}

func newReader(src io.Reader, opts ...Option) *Reader {
	r := &Reader{scanner: bufio.NewScanner(src)}
	r.scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read returns every record in file order. A single malformed line fails
// the whole read; blank lines are ignored.
func (r *Reader) Read() ([]flow.Record, error) {
	var records []flow.Record

	for r.scanner.Scan() {
		r.line++
		fields := strings.Fields(r.scanner.Text())
		if len(fields) == 0 {
			continue
		}

		rec, err := ParseFields(fields)
		if err != nil {
			if pe, ok := err.(*ParseError); ok {
				pe.Line = r.line
			}
			return nil, err
		}
		records = append(records, rec)
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", r.line+1, err)
	}

	return records, nil
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// ParseFields converts the 16 positional fields of one line into a record.
func ParseFields(fields []string) (flow.Record, error) {
	if len(fields) != flow.NumColumns {
		return flow.Record{}, &ParseError{
			Err: fmt.Errorf("expected %d fields, got %d", flow.NumColumns, len(fields)),
		}
	}

	var (
		rec = flow.Record{
			DstAddr:      fields[0],
			SrcAddr:      fields[1],
			Protocol:     fields[4],
			Ack:          fields[6],
			PacketNumber: fields[8],
			Flags:        fields[11],
			Counter1:     fields[12],
			Counter2:     fields[13],
			DataField:    fields[14],
			Direction:    fields[15],
		}
		err error
	)

	if rec.DstPort, err = parsePort(fields, 2); err != nil {
		return flow.Record{}, err
	}
	if rec.SrcPort, err = parsePort(fields, 3); err != nil {
		return flow.Record{}, err
	}
	if rec.Start, err = parseTimestamp(fields, 5); err != nil {
		return flow.Record{}, err
	}
	if rec.End, err = parseTimestamp(fields, 7); err != nil {
		return flow.Record{}, err
	}

	length, err := strconv.ParseInt(fields[9], 10, 64)
	if err != nil {
		return flow.Record{}, fieldError(9, err)
	}
	rec.Length = length

	syn, err := strconv.Atoi(fields[10])
	if err != nil {
		return flow.Record{}, fieldError(10, err)
	}
	rec.SYN = syn

	return rec, nil
}

func parsePort(fields []string, i int) (uint16, error) {
	v, err := strconv.ParseUint(fields[i], 10, 16)
	if err != nil {
		return 0, fieldError(i, err)
	}
	return uint16(v), nil
}

func parseTimestamp(fields []string, i int) (float64, error) {
	v, err := strconv.ParseFloat(fields[i], 64)
	if err != nil {
		return 0, fieldError(i, err)
	}
	return v, nil
}

func fieldError(i int, err error) *ParseError {
	// strconv errors repeat the input; keep only the reason.
	if ne, ok := err.(*strconv.NumError); ok {
		err = fmt.Errorf("%q: %w", ne.Num, ne.Err)
	}
	return &ParseError{Field: flow.Columns[i], Err: err}
}
