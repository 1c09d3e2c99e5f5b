// Package ingest converts pcap captures into the JSONL flow dataset
// consumed by the offline preprocessor. Packets are grouped into
// bidirectional 5-tuple flows; each packet is rendered as hex words
// with a <head> marker between header and payload bytes and a <pkt>
// terminator, and labeled with its protocol layer classes.
package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcap"

	"github.com/V-Enzo/flashT5/internal/logging"
	"github.com/V-Enzo/flashT5/internal/models"
)

// Protocol layer classes for the NML task, one label space per
// network-model layer.
const (
	LinkEthernet = 0
	LinkOther    = 1

	NetIPv4  = 0
	NetIPv6  = 1
	NetOther = 2

	TransTCP   = 0
	TransUDP   = 1
	TransOther = 2

	AppHTTP  = 0
	AppTLS   = 1
	AppDNS   = 2
	AppOther = 3
)

// Config holds ingest settings.
type Config struct {
	// PacketsPerFlow caps the packets kept per flow.
	PacketsPerFlow int

	// PayloadByteLimit caps the payload bytes rendered per packet.
	// The offline preprocessor still truncates to the token budget;
	// this only bounds the intermediate JSONL size.
	PayloadByteLimit int

	// BPFFilter is an optional capture filter expression.
	BPFFilter string
}

// DefaultConfig returns sensible ingest defaults.
func DefaultConfig() *Config {
	return &Config{
		PacketsPerFlow:   10,
		PayloadByteLimit: 256,
	}
}

// Ingester reads pcap files and writes JSONL flow records.
type Ingester struct {
	cfg *Config
	log *logging.Logger

	// Packet parsing
	eth     layers.Ethernet
	ip4     layers.IPv4
	ip6     layers.IPv6
	tcp     layers.TCP
	udp     layers.UDP
	parser  *gopacket.DecodingLayerParser
	decoded []gopacket.LayerType
}

// NewIngester creates a pcap ingester.
func NewIngester(cfg *Config) *Ingester {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	in := &Ingester{
		cfg: cfg,
		log: logging.IngestLogger(),
	}
	in.parser = gopacket.NewDecodingLayerParser(
		layers.LayerTypeEthernet,
		&in.eth, &in.ip4, &in.ip6, &in.tcp, &in.udp,
	)
	in.parser.IgnoreUnsupported = true
	in.decoded = make([]gopacket.LayerType, 0, 10)
	return in
}

// flowKey identifies a bidirectional 5-tuple flow.
type flowKey struct {
	a, b  string // canonically ordered "ip:port" endpoints
	proto uint8
}

// packetRender is one packet's serialized form plus its layer labels.
type packetRender struct {
	text   string
	labels [4]int
}

// flowState accumulates packets for one flow in arrival order.
type flowState struct {
	packets []packetRender
}

// IngestFile reads one pcap file and appends its flows to w as JSONL.
// Flows are emitted in first-seen order. Returns the number of flows
// written.
func (in *Ingester) IngestFile(pcapPath string, w io.Writer) (int, error) {
	handle, err := pcap.OpenOffline(pcapPath)
	if err != nil {
		return 0, fmt.Errorf("ingest: open pcap %s: %w", pcapPath, err)
	}
	defer handle.Close()

	if in.cfg.BPFFilter != "" {
		if err := handle.SetBPFFilter(in.cfg.BPFFilter); err != nil {
			return 0, fmt.Errorf("ingest: set BPF filter: %w", err)
		}
	}

	flows := make(map[flowKey]*flowState)
	var order []flowKey

	packetsRead := 0
	parseErrors := 0
	for {
		data, _, err := handle.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("ingest: read packet: %w", err)
		}
		packetsRead++

		key, render, ok := in.decodePacket(data)
		if !ok {
			parseErrors++
			continue
		}

		state, seen := flows[key]
		if !seen {
			state = &flowState{}
			flows[key] = state
			order = append(order, key)
		}
		if len(state.packets) < in.cfg.PacketsPerFlow {
			state.packets = append(state.packets, render)
		}
	}

	in.log.Info("pcap read complete",
		"path", pcapPath, "packets", packetsRead,
		"flows", len(order), "parse_errors", parseErrors)

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	written := 0
	for _, key := range order {
		rec := renderFlow(pcapPath, flows[key])
		if err := enc.Encode(&rec); err != nil {
			return written, fmt.Errorf("ingest: encode flow: %w", err)
		}
		written++
	}
	if err := bw.Flush(); err != nil {
		return written, fmt.Errorf("ingest: flush output: %w", err)
	}
	return written, nil
}

// decodePacket parses one packet into its flow key and rendered form.
func (in *Ingester) decodePacket(data []byte) (flowKey, packetRender, bool) {
	if err := in.parser.DecodeLayers(data, &in.decoded); err != nil {
		// Partial decodes are fine; undecodable link layers are not.
		if len(in.decoded) == 0 {
			return flowKey{}, packetRender{}, false
		}
	}

	var (
		labels   [4]int
		srcIP    string
		dstIP    string
		srcPort  uint16
		dstPort  uint16
		proto    uint8
		payload  []byte
		hasNet   bool
		hasTrans bool
	)
	labels[0] = LinkOther
	labels[1] = NetOther
	labels[2] = TransOther
	labels[3] = AppOther

	for _, typ := range in.decoded {
		switch typ {
		case layers.LayerTypeEthernet:
			labels[0] = LinkEthernet
		case layers.LayerTypeIPv4:
			labels[1] = NetIPv4
			srcIP, dstIP = in.ip4.SrcIP.String(), in.ip4.DstIP.String()
			proto = uint8(in.ip4.Protocol)
			hasNet = true
		case layers.LayerTypeIPv6:
			labels[1] = NetIPv6
			srcIP, dstIP = in.ip6.SrcIP.String(), in.ip6.DstIP.String()
			proto = uint8(in.ip6.NextHeader)
			hasNet = true
		case layers.LayerTypeTCP:
			labels[2] = TransTCP
			srcPort, dstPort = uint16(in.tcp.SrcPort), uint16(in.tcp.DstPort)
			payload = in.tcp.Payload
			hasTrans = true
		case layers.LayerTypeUDP:
			labels[2] = TransUDP
			srcPort, dstPort = uint16(in.udp.SrcPort), uint16(in.udp.DstPort)
			payload = in.udp.Payload
			hasTrans = true
		}
	}
	if !hasNet {
		return flowKey{}, packetRender{}, false
	}
	if hasTrans {
		labels[3] = appClass(srcPort, dstPort)
	}

	// The header region is everything up to the transport payload.
	header := data[:len(data)-len(payload)]
	if limit := in.cfg.PayloadByteLimit; len(payload) > limit {
		payload = payload[:limit]
	}

	var text strings.Builder
	text.WriteString(hexWords(header))
	text.WriteString(" <head>")
	if len(payload) > 0 {
		text.WriteByte(' ')
		text.WriteString(hexWords(payload))
	}
	text.WriteString(" <pkt>")

	render := packetRender{text: text.String(), labels: labels}
	return canonicalKey(srcIP, srcPort, dstIP, dstPort, proto), render, true
}

// appClass maps well-known ports to an application layer class.
func appClass(srcPort, dstPort uint16) int {
	for _, p := range [2]uint16{srcPort, dstPort} {
		switch p {
		case 80, 8080:
			return AppHTTP
		case 443, 8443:
			return AppTLS
		case 53:
			return AppDNS
		}
	}
	return AppOther
}

// canonicalKey orders the two endpoints so both directions of a
// session map to the same flow.
func canonicalKey(srcIP string, srcPort uint16, dstIP string, dstPort uint16, proto uint8) flowKey {
	a := fmt.Sprintf("%s:%d", srcIP, srcPort)
	b := fmt.Sprintf("%s:%d", dstIP, dstPort)
	if a > b {
		a, b = b, a
	}
	return flowKey{a: a, b: b, proto: proto}
}

// hexWords renders bytes as lowercase hex words, two bytes per word.
func hexWords(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(data)*5/2 + 1)
	for i := 0; i < len(data); i += 2 {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i+1 < len(data) {
			fmt.Fprintf(&b, "%02x%02x", data[i], data[i+1])
		} else {
			fmt.Fprintf(&b, "%02x", data[i])
		}
	}
	return b.String()
}

// renderFlow assembles one JSONL record from a flow's packets.
func renderFlow(path string, state *flowState) models.RawRecord {
	texts := make([]string, len(state.packets))
	labelGroups := make([]string, len(state.packets))
	for i, pkt := range state.packets {
		texts[i] = pkt.text
		labelGroups[i] = fmt.Sprintf("%d,%d,%d,%d",
			pkt.labels[0], pkt.labels[1], pkt.labels[2], pkt.labels[3])
	}
	return models.RawRecord{
		Path:              path,
		Text:              strings.Join(texts, " "),
		NetworkModelLayer: strings.Join(labelGroups, ";"),
	}
}
