package dhcp

import (
	"encoding/binary"
	"net"

	"github.com/mdlayher/ethernet"

	"github.com/schmurfy/dhcprelayd/pkg/dhcpv4"
)

// FrameParams describes the Ethernet/IPv4/UDP envelope the reply worker
// wraps a server-origin DHCP payload in before a raw injection on the
// client-facing interface (§4.4).
type FrameParams struct {
	DstMAC, SrcMAC net.HardwareAddr
	SrcIP, DstIP   net.IP
	SrcPort        uint16
	DstPort        uint16
}

// Headers is the Ethernet/IPv4/UDP envelope a listener extracts from a
// captured client frame before handing the DHCP payload to the
// client_request plugin hook (§4.2 step 5-6). SrcMAC is the frame's
// Ethernet source address — the client's own NIC address, usable by a
// plugin as an RFC 3046 remote-id.
type Headers struct {
	SrcMAC, DstMAC net.HardwareAddr
	SrcIP, DstIP   net.IP
	SrcPort        uint16
	DstPort        uint16
}

// ExtractHeaders reads the Ethernet/IPv4/UDP header fields out of a
// captured frame already passed through Validate, so the fixed offsets
// below are known to be in bounds.
func ExtractHeaders(frame []byte) Headers {
	ipOff := dhcpv4.EtherHeaderLen
	udpOff := ipOff + dhcpv4.IPHeaderLen
	return Headers{
		SrcMAC:  net.HardwareAddr(frame[6:12]),
		DstMAC:  net.HardwareAddr(frame[0:6]),
		SrcIP:   net.IP(frame[ipOff+12 : ipOff+16]),
		DstIP:   net.IP(frame[ipOff+16 : ipOff+20]),
		SrcPort: binary.BigEndian.Uint16(frame[udpOff : udpOff+2]),
		DstPort: binary.BigEndian.Uint16(frame[udpOff+2 : udpOff+4]),
	}
}

// BuildReplyFrame writes an Ethernet+IPv4+UDP frame wrapping payload into
// dst, returning the slice of dst actually used. dst must have capacity
// for dhcpv4.EtherHeaderLen + dhcpv4.UDPOverhead + len(payload); callers
// on the hot path pass a buffer obtained from GetScratch.
func BuildReplyFrame(dst []byte, p FrameParams, payload []byte) []byte {
	total := dhcpv4.EtherHeaderLen + dhcpv4.UDPOverhead + len(payload)
	dst = dst[:total]

	copy(dst[0:6], p.DstMAC)
	copy(dst[6:12], p.SrcMAC)
	binary.BigEndian.PutUint16(dst[12:14], uint16(ethernet.EtherTypeIPv4))

	ipOff := dhcpv4.EtherHeaderLen
	ipTotalLen := dhcpv4.UDPOverhead + len(payload)
	dst[ipOff] = 0x45   // version 4, IHL 5 (no options)
	dst[ipOff+1] = 0x10 // ToS: IPTOS_LOWDELAY
	binary.BigEndian.PutUint16(dst[ipOff+2:ipOff+4], uint16(ipTotalLen))
	binary.BigEndian.PutUint16(dst[ipOff+4:ipOff+6], 0) // identification
	binary.BigEndian.PutUint16(dst[ipOff+6:ipOff+8], 0) // flags/fragment offset: 0
	dst[ipOff+8] = 16                                   // TTL
	dst[ipOff+9] = 17                                   // protocol: UDP
	dst[ipOff+10] = 0
	dst[ipOff+11] = 0
	copy(dst[ipOff+12:ipOff+16], p.SrcIP.To4())
	copy(dst[ipOff+16:ipOff+20], p.DstIP.To4())
	csum := ipv4HeaderChecksum(dst[ipOff : ipOff+dhcpv4.IPHeaderLen])
	binary.BigEndian.PutUint16(dst[ipOff+10:ipOff+12], csum)

	udpOff := ipOff + dhcpv4.IPHeaderLen
	udpLen := dhcpv4.UDPHeaderLen + len(payload)
	binary.BigEndian.PutUint16(dst[udpOff:udpOff+2], p.SrcPort)
	binary.BigEndian.PutUint16(dst[udpOff+2:udpOff+4], p.DstPort)
	binary.BigEndian.PutUint16(dst[udpOff+4:udpOff+6], uint16(udpLen))
	dst[udpOff+6] = 0
	dst[udpOff+7] = 0

	copy(dst[dhcpv4.EtherHeaderLen+dhcpv4.UDPOverhead:], payload)

	udpChecksum := udpChecksumIPv4(p.SrcIP.To4(), p.DstIP.To4(), dst[udpOff:])
	binary.BigEndian.PutUint16(dst[udpOff+6:udpOff+8], udpChecksum)

	return dst
}

// ipv4HeaderChecksum computes the RFC 1071 ones'-complement checksum of a
// 20-byte IPv4 header with the checksum field zeroed.
func ipv4HeaderChecksum(hdr []byte) uint16 {
	return onesComplementSum(hdr)
}

// udpChecksumIPv4 computes the UDP checksum over the IPv4 pseudo-header
// (RFC 768) followed by the UDP header and payload (udp[6:8] must be
// zeroed by the caller before this runs).
func udpChecksumIPv4(srcIP, dstIP net.IP, udp []byte) uint16 {
	var sum uint32
	sum += uint32(binary.BigEndian.Uint16(srcIP[0:2]))
	sum += uint32(binary.BigEndian.Uint16(srcIP[2:4]))
	sum += uint32(binary.BigEndian.Uint16(dstIP[0:2]))
	sum += uint32(binary.BigEndian.Uint16(dstIP[2:4]))
	sum += uint32(17) // UDP protocol number
	sum += uint32(len(udp))

	for i := 0; i+1 < len(udp); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(udp[i : i+2]))
	}
	if len(udp)%2 != 0 {
		sum += uint32(udp[len(udp)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	csum := ^uint16(sum)
	if csum == 0 {
		// RFC 768: an all-zero computed checksum is transmitted as
		// all-ones; zero on the wire means "no checksum".
		csum = 0xffff
	}
	return csum
}

func onesComplementSum(b []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(b); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(b[i : i+2]))
	}
	if len(b)%2 != 0 {
		sum += uint32(b[len(b)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}
