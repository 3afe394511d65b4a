package plugin

import (
	"fmt"
	"net"
	"strings"

	"github.com/schmurfy/dhcprelayd/internal/dhcp"
	"github.com/schmurfy/dhcprelayd/pkg/dhcpv4"
)

// RelayInfo implements RFC 3046 Option 82 handling: it stamps the
// ingress interface name into Option 82's circuit-id sub-option on the
// way to the server, and strips Option 82 before a reply reaches the
// client. It registers itself under the name "relayinfo" so a
// `[relayinfo-plugin]` config section can enable it (§6, §9).
type RelayInfo struct {
	Base
	strict        bool
	trustUpstream bool
}

func init() {
	Register("relayinfo", func() Plugin { return &RelayInfo{} })
}

func (p *RelayInfo) Name() string { return "relayinfo" }

// Init parses `strict=0|1` and `trust_upstream=0|1` option lines.
// With neither set, an existing Option 82 is overwritten with this hop's
// circuit-id and remote-id. strict rejects any client request that
// already carries Option 82 (likely spoofed or a misbehaving upstream
// relay). trust_upstream leaves an existing Option 82 untouched rather
// than overwriting it; strict takes precedence when both are set.
func (p *RelayInfo) Init(opts []string) error {
	for _, line := range opts {
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("relayinfo: malformed option %q", line)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		switch key {
		case "strict":
			p.strict = isTruthy(val)
		case "trust_upstream":
			p.trustUpstream = isTruthy(val)
		default:
			return fmt.Errorf("relayinfo: unknown option %q", key)
		}
	}
	return nil
}

func (p *RelayInfo) Destroy() {}

func isTruthy(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

// ClientRequest stamps or rejects Option 82 on the way to the server.
// remote-id is populated from hdr.SrcMAC — the captured frame's
// Ethernet source address, i.e. the client's own NIC address — per
// RFC 3046.
func (p *RelayInfo) ClientRequest(ifName string, pkt *dhcp.Packet, hdr dhcp.Headers) Verdict {
	existing := dhcp.GetRelayInfo(pkt)
	if existing != nil {
		if p.strict {
			return Reject
		}
		if p.trustUpstream {
			return Accept
		}
	}

	info := &dhcp.RelayAgentInfo{CircuitID: ifName, RemoteID: hdr.SrcMAC.String()}
	pkt.SetOptions(replaceOption(pkt.Options(), dhcpv4.OptionRelayAgentInfo, dhcp.EncodeRelayAgentInfo(info)))
	return Accept
}

// SendToClient strips Option 82 before the reply is framed for the
// client; it is a relay-internal bookkeeping option the client should
// never see (RFC 3046 §2.1).
func (p *RelayInfo) SendToClient(from net.Addr, ifName string, pkt *dhcp.Packet, fp *dhcp.FrameParams) Verdict {
	pkt.SetOptions(removeOption(pkt.Options(), dhcpv4.OptionRelayAgentInfo))
	return Accept
}

// replaceOption rebuilds the options area with any existing occurrence
// of code removed and a new TLV for code inserted just before the
// OptionEnd terminator. value may be up to 255 bytes (a single TLV).
func replaceOption(options []byte, code dhcpv4.OptionCode, value []byte) []byte {
	out := removeOption(options, code)
	// out always ends in OptionEnd (or is empty); insert before it.
	if n := len(out); n > 0 && dhcpv4.OptionCode(out[n-1]) == dhcpv4.OptionEnd {
		out = out[:n-1]
	}
	out = append(out, byte(code), byte(len(value)))
	out = append(out, value...)
	out = append(out, byte(dhcpv4.OptionEnd))
	return out
}

// removeOption rebuilds the options area with every occurrence of code
// dropped, preserving the relative order and encoding of every other
// option, and terminated with a fresh OptionEnd.
func removeOption(options []byte, code dhcpv4.OptionCode) []byte {
	out := make([]byte, 0, len(options)+1)
	dhcp.Walk(options, func(tag dhcpv4.OptionCode, v []byte) bool {
		if tag == code {
			return true
		}
		out = append(out, byte(tag), byte(len(v)))
		out = append(out, v...)
		return true
	})
	out = append(out, byte(dhcpv4.OptionEnd))
	return out
}
