package dump

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDump = `10.0.0.1 192.168.1.7 80 51234 6 1700000000 0 1700000000.2 1 60 1 2 0 0 - 1
10.0.0.2   192.168.1.8	443 51235 6 1700000001.5 77 1700000002 2 1500 0 16 0 0 - 0

10.0.0.1 192.168.1.9 80 51236 6 1700000002 0 1700000002 3 60 1 2 0 0 - 1
`

func TestRead(t *testing.T) {
	r := NewStreamReader(strings.NewReader(sampleDump))
	records, err := r.Read()
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, "10.0.0.1", first.DstAddr)
	assert.Equal(t, "192.168.1.7", first.SrcAddr)
	assert.Equal(t, uint16(80), first.DstPort)
	assert.Equal(t, uint16(51234), first.SrcPort)
	assert.Equal(t, 1700000000.0, first.Start)
	assert.Equal(t, 1700000000.2, first.End)
	assert.Equal(t, int64(60), first.Length)
	assert.True(t, first.IsSYN())
	assert.Equal(t, "-", first.DataField)

	second := records[1]
	assert.Equal(t, uint16(443), second.DstPort)
	assert.Equal(t, 1700000001.5, second.Start)
	assert.Equal(t, "77", second.Ack)
	assert.False(t, second.IsSYN())
}

func TestReadMalformed(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantLine  int
		wantField string
	}{
		{
			name:     "too few fields",
			input:    "10.0.0.1 192.168.1.7 80\n",
			wantLine: 1,
		},
		{
			name:     "too many fields",
			input:    "10.0.0.1 192.168.1.7 80 51234 6 1 0 1 1 60 1 2 0 0 - 1 extra\n",
			wantLine: 1,
		},
		{
			name:      "non-numeric timestamp",
			input:     "10.0.0.1 192.168.1.7 80 51234 6 1 0 1 1 60 1 2 0 0 - 1\n10.0.0.1 192.168.1.7 80 51234 6 noon 0 1 1 60 1 2 0 0 - 1\n",
			wantLine:  2,
			wantField: "start_timestamp",
		},
		{
			name:      "non-numeric port",
			input:     "10.0.0.1 192.168.1.7 http 51234 6 1 0 1 1 60 1 2 0 0 - 1\n",
			wantLine:  1,
			wantField: "destination_port",
		},
		{
			name:      "port out of range",
			input:     "10.0.0.1 192.168.1.7 80 70000 6 1 0 1 1 60 1 2 0 0 - 1\n",
			wantLine:  1,
			wantField: "source_port",
		},
		{
			name:      "non-numeric syn",
			input:     "10.0.0.1 192.168.1.7 80 51234 6 1 0 1 1 60 yes 2 0 0 - 1\n",
			wantLine:  1,
			wantField: "syn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := NewStreamReader(strings.NewReader(tt.input)).Read()
			require.Error(t, err)
			assert.Nil(t, records)

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.wantLine, pe.Line)
			assert.Equal(t, tt.wantField, pe.Field)
		})
	}
}

func TestParseErrorUnwrap(t *testing.T) {
	_, err := ParseFields(strings.Fields("a b 1 2 6 x 0 1 1 60 1 2 0 0 - 1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, strconv.ErrSyntax))
}

func TestNewReaderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "DUMP.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleDump), 0o644))

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	records, err := r.Read()
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestNewReaderMissingFile(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
