// Package report renders an analysis result for the console and as a chart.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/olekukonko/tablewriter"

	"github.com/hed1ad/synguard/pkg/flow"
	"github.com/hed1ad/synguard/pkg/pipeline"
	"github.com/hed1ad/synguard/pkg/synflood"
)

// Output formats.
const (
	FormatText  = "text"
	FormatTable = "table"
	FormatJSON  = "json"
)

// TimeLayout renders window bounds in report output.
const TimeLayout = "2006-01-02 15:04:05.999999"

const separator = "----------------------------------------"

// NoCandidates is printed when the dataset holds no SYN traffic.
const NoCandidates = "no SYN flooding candidates"

// Candidate is one ranked SYN flooding candidate.
type Candidate struct {
	Rank          int       `json:"rank"`
	Window        int       `json:"window"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	DstAddr       string    `json:"destination_ip"`
	DstPort       uint16    `json:"destination_port"`
	Packets       int       `json:"packet_count"`
	UniqueSources int       `json:"unique_source_ips"`
}

// Summary is the machine-readable view of a run.
type Summary struct {
	RunID            string      `json:"run_id"`
	Detector         string      `json:"detector"`
	Records          int         `json:"records"`
	Windows          int         `json:"windows"`
	AnomalousWindows []int       `json:"anomalous_windows"`
	AnomalyRecords   int         `json:"anomaly_records"`
	SynGroups        int         `json:"syn_groups"`
	SynPackets       int         `json:"syn_packets"`
	Candidates       []Candidate `json:"candidates"`
}

// Candidates numbers groups by rank, starting at 1.
func Candidates(groups []synflood.Group) []Candidate {
	out := make([]Candidate, 0, len(groups))
	for i, g := range groups {
		out = append(out, Candidate{
			Rank:          i + 1,
			Window:        g.Window,
			Start:         flow.EpochTime(g.Start),
			End:           flow.EpochTime(g.End),
			DstAddr:       g.DstAddr,
			DstPort:       g.DstPort,
			Packets:       g.Packets,
			UniqueSources: g.UniqueSources,
		})
	}
	return out
}

// Summarize builds the summary of res.
func Summarize(res *pipeline.Result) Summary {
	anomalous := res.AnomalousWindows
	if anomalous == nil {
		anomalous = []int{}
	}
	return Summary{
		RunID:            res.RunID,
		Detector:         res.Detector,
		Records:          len(res.Windowed.Records),
		Windows:          len(res.Matrix.Windows),
		AnomalousWindows: anomalous,
		AnomalyRecords:   len(res.Anomalies),
		SynGroups:        len(res.SynGroups),
		SynPackets:       res.PerMinute.Total(),
		Candidates:       Candidates(res.TopGroups),
	}
}

// Write renders res to w in the named format.
func Write(w io.Writer, format string, res *pipeline.Result) error {
	switch format {
	case FormatText, "":
		return WriteText(w, res)
	case FormatTable:
		return WriteTable(w, res)
	case FormatJSON:
		return WriteJSON(w, res)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// WriteText prints a run summary followed by one block per ranked candidate.
func WriteText(w io.Writer, res *pipeline.Result) error {
	s := Summarize(res)

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: %d records in %d windows, detector %s\n", s.RunID, s.Records, s.Windows, s.Detector)
	if len(s.AnomalousWindows) == 0 {
		b.WriteString("Anomalous windows: none\n")
	} else {
		fmt.Fprintf(&b, "Anomalous windows: %s (%d records)\n", joinInts(s.AnomalousWindows), s.AnomalyRecords)
	}

	if len(s.Candidates) == 0 {
		b.WriteString(NoCandidates + "\n")
	}
	for _, c := range s.Candidates {
		b.WriteString(separator + "\n")
		fmt.Fprintf(&b, "SYN Flooding Attack Details (Rank %d):\n", c.Rank)
		fmt.Fprintf(&b, "  Start Time: %s\n", c.Start.Format(TimeLayout))
		fmt.Fprintf(&b, "  End Time: %s\n", c.End.Format(TimeLayout))
		fmt.Fprintf(&b, "  Destination IP: %s\n", c.DstAddr)
		fmt.Fprintf(&b, "  Destination Port: %d\n", c.DstPort)
		fmt.Fprintf(&b, "  Packet Count: %d\n", c.Packets)
		fmt.Fprintf(&b, "  Unique Source IPs: %d\n", c.UniqueSources)
		b.WriteString(separator + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteTable prints the ranked candidates as a table.
func WriteTable(w io.Writer, res *pipeline.Result) error {
	candidates := Candidates(res.TopGroups)
	if len(candidates) == 0 {
		_, err := fmt.Fprintln(w, NoCandidates)
		return err
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Rank", "Window", "Start", "End", "Destination IP",
		"Port", "SYN Packets", "Unique Sources"})
	in := strconv.Itoa
	for _, c := range candidates {
		table.Append([]string{
			in(c.Rank), in(c.Window), c.Start.Format(TimeLayout), c.End.Format(TimeLayout),
			c.DstAddr, in(int(c.DstPort)), in(c.Packets), in(c.UniqueSources)})
	}
	table.Render()
	return nil
}

// WriteJSON prints the run summary as indented JSON.
func WriteJSON(w io.Writer, res *pipeline.Result) error {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(Summarize(res), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func joinInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}
