// Package pcap turns offline packet captures into flow records.
package pcap

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/hed1ad/synguard/pkg/flow"
)

// Reader reads packets from a pcap file.
type Reader struct {
	file      *os.File
	src       *pcapgo.Reader
	extractor *RecordExtractor
}

// NewFileReader creates a reader for PCAP files.
func NewFileReader(filename string) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	r, err := NewStreamReader(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.file = file
	return r, nil
}

// NewStreamReader reads a pcap stream that is already open.
func NewStreamReader(src io.Reader) (*Reader, error) {
	pr, err := pcapgo.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("pcap header: %w", err)
	}

	return &Reader{
		src:       pr,
		extractor: NewRecordExtractor(),
	}, nil
}

// Read returns one record per IP packet. Packets without an IP layer are skipped.
func (r *Reader) Read() ([]flow.Record, error) {
	if r.src == nil {
		return nil, errors.New("reader not initialized")
	}

	var records []flow.Record
	packetSource := gopacket.NewPacketSource(r.src, r.src.LinkType())
	packetSource.DecodeOptions = gopacket.DecodeOptions{Lazy: true}

	for {
		packet, err := packetSource.NextPacket()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("packet %d: %w", r.extractor.count+1, err)
		}

		if rec, ok := r.extractor.Extract(packet); ok {
			records = append(records, rec)
		}
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

// RecordExtractor maps decoded packets onto the flow record columns.
type RecordExtractor struct {
	count int
}

// NewRecordExtractor creates a new packet record extractor.
func NewRecordExtractor() *RecordExtractor {
	return &RecordExtractor{}
}

// Extract converts a packet to a flow record.
// Counter1 carries the TCP window, Counter2 the IP TTL and DataField the
// payload size; Direction is not observable from a single capture point.
func (e *RecordExtractor) Extract(packet gopacket.Packet) (flow.Record, bool) {
	e.count++

	rec := flow.Record{
		PacketNumber: strconv.Itoa(e.count),
		Ack:          "0",
		Flags:        "0",
		Counter1:     "0",
		Counter2:     "0",
		DataField:    "0",
		Direction:    "-",
	}

	if ipLayer := packet.Layer(layers.LayerTypeIPv4); ipLayer != nil {
		ip := ipLayer.(*layers.IPv4)
		rec.DstAddr = ip.DstIP.String()
		rec.SrcAddr = ip.SrcIP.String()
		rec.Protocol = strconv.Itoa(int(ip.Protocol))
		rec.Counter2 = strconv.Itoa(int(ip.TTL))
	} else if ipLayer := packet.Layer(layers.LayerTypeIPv6); ipLayer != nil {
		ip := ipLayer.(*layers.IPv6)
		rec.DstAddr = ip.DstIP.String()
		rec.SrcAddr = ip.SrcIP.String()
		rec.Protocol = strconv.Itoa(int(ip.NextHeader))
		rec.Counter2 = strconv.Itoa(int(ip.HopLimit))
	} else {
		return flow.Record{}, false
	}

	// payload size comes from the transport layer; port-mapped application
	// decoders (DNS on 53) report no payload or fail to decode
	var payload []byte
	if tcpLayer := packet.Layer(layers.LayerTypeTCP); tcpLayer != nil {
		tcp := tcpLayer.(*layers.TCP)
		payload = tcp.LayerPayload()
		rec.DstPort = uint16(tcp.DstPort)
		rec.SrcPort = uint16(tcp.SrcPort)
		rec.Ack = strconv.FormatUint(uint64(tcp.Ack), 10)
		rec.Flags = strconv.Itoa(encodeTCPFlags(tcp))
		rec.Counter1 = strconv.Itoa(int(tcp.Window))
		if tcp.SYN {
			rec.SYN = 1
		}
	} else if udpLayer := packet.Layer(layers.LayerTypeUDP); udpLayer != nil {
		udp := udpLayer.(*layers.UDP)
		rec.DstPort = uint16(udp.DstPort)
		rec.SrcPort = uint16(udp.SrcPort)
		payload = udp.LayerPayload()
	} else if appLayer := packet.ApplicationLayer(); appLayer != nil {
		payload = appLayer.Payload()
	}
	rec.DataField = strconv.Itoa(len(payload))

	if md := packet.Metadata(); md != nil && !md.Timestamp.IsZero() {
		ts := float64(md.Timestamp.UnixNano()) / 1e9
		rec.Start = ts
		rec.End = ts
		rec.Length = int64(md.Length)
	}
	if rec.Length == 0 {
		rec.Length = int64(len(packet.Data()))
	}

	return rec, true
}

// encodeTCPFlags packs the TCP control bits into the wire bit order.
func encodeTCPFlags(tcp *layers.TCP) int {
	var flags int
	if tcp.FIN {
		flags |= 0x01
	}
	if tcp.SYN {
		flags |= 0x02
	}
	if tcp.RST {
		flags |= 0x04
	}
	if tcp.PSH {
		flags |= 0x08
	}
	if tcp.ACK {
		flags |= 0x10
	}
	if tcp.URG {
		flags |= 0x20
	}
	return flags
}
