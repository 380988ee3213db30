// Package flow defines the flow record model shared by readers, feature
// extraction and reporting.
package flow

import (
	"errors"
	"math"
	"strconv"
	"time"
)

// ErrEmptyDataset is returned when an analysis is asked to run over zero records.
var ErrEmptyDataset = errors.New("empty dataset")

// Columns lists the positional fields of a dump line, in order.
var Columns = []string{
	"destination_ip",
	"source_ip",
	"destination_port",
	"source_port",
	"protocol",
	"start_timestamp",
	"ack_number",
	"end_timestamp",
	"packet_number",
	"length",
	"syn",
	"flag",
	"counter1",
	"counter2",
	"data_field",
	"data_direction",
}

// NumColumns is the number of positional fields in a record.
const NumColumns = 16

// Record is one observed packet/flow event.
// Fields that are never interpreted numerically are kept verbatim.
type Record struct {
	DstAddr      string
	SrcAddr      string
	DstPort      uint16
	SrcPort      uint16
	Protocol     string
	Start        float64 // seconds since epoch
	Ack          string
	End          float64 // seconds since epoch
	PacketNumber string
	Length       int64
	SYN          int
	Flags        string
	Counter1     string
	Counter2     string
	DataField    string
	Direction    string
}

// IsSYN reports whether the SYN flag is set.
func (r Record) IsSYN() bool {
	return r.SYN == 1
}

// StartTime returns the start timestamp as a UTC time.
func (r Record) StartTime() time.Time {
	return EpochTime(r.Start)
}

// Fields returns the record as its 16 positional string fields.
func (r Record) Fields() []string {
	return []string{
		r.DstAddr,
		r.SrcAddr,
		strconv.FormatUint(uint64(r.DstPort), 10),
		strconv.FormatUint(uint64(r.SrcPort), 10),
		r.Protocol,
		FormatEpoch(r.Start),
		r.Ack,
		FormatEpoch(r.End),
		r.PacketNumber,
		strconv.FormatInt(r.Length, 10),
		strconv.Itoa(r.SYN),
		r.Flags,
		r.Counter1,
		r.Counter2,
		r.DataField,
		r.Direction,
	}
}

// EpochTime converts fractional epoch seconds to a UTC time.
func EpochTime(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))).UTC()
}

// FormatEpoch renders epoch seconds with the shortest exact representation.
func FormatEpoch(sec float64) string {
	return strconv.FormatFloat(sec, 'f', -1, 64)
}
