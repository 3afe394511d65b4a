package dhcp

import (
	"net"
	"testing"

	"github.com/schmurfy/dhcprelayd/pkg/dhcpv4"
)

func TestBuildReplyFrameFieldLayout(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	p := FrameParams{
		DstMAC:  net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		SrcMAC:  net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
		SrcIP:   net.IPv4(10, 0, 0, 1),
		DstIP:   net.IPv4(10, 0, 0, 2),
		SrcPort: dhcpv4.ServerPort,
		DstPort: dhcpv4.ClientPort,
	}
	buf := make([]byte, dhcpv4.EtherHeaderLen+dhcpv4.UDPOverhead+len(payload))
	frame := BuildReplyFrame(buf, p, payload)

	wantLen := dhcpv4.EtherHeaderLen + dhcpv4.UDPOverhead + len(payload)
	if len(frame) != wantLen {
		t.Fatalf("frame length = %d, want %d", len(frame), wantLen)
	}
	if string(frame[0:6]) != string(p.DstMAC) {
		t.Errorf("dst mac = %v, want %v", frame[0:6], p.DstMAC)
	}
	if string(frame[6:12]) != string(p.SrcMAC) {
		t.Errorf("src mac = %v, want %v", frame[6:12], p.SrcMAC)
	}
	if frame[12] != 0x08 || frame[13] != 0x00 {
		t.Errorf("ethertype = %02x%02x, want 0800", frame[12], frame[13])
	}

	ipOff := dhcpv4.EtherHeaderLen
	if frame[ipOff] != 0x45 {
		t.Errorf("ip version/ihl = %#x, want 0x45", frame[ipOff])
	}
	if frame[ipOff+1] != 0x10 {
		t.Errorf("ip tos = %#x, want 0x10 (IPTOS_LOWDELAY)", frame[ipOff+1])
	}
	if flagsFrag := frame[ipOff+6:ipOff+8]; flagsFrag[0] != 0 || flagsFrag[1] != 0 {
		t.Errorf("ip flags/fragment offset = %02x%02x, want 0000", flagsFrag[0], flagsFrag[1])
	}
	if frame[ipOff+8] != 16 {
		t.Errorf("ip ttl = %d, want 16", frame[ipOff+8])
	}
	payloadTail := frame[dhcpv4.EtherHeaderLen+dhcpv4.UDPOverhead:]
	if string(payloadTail) != string(payload) {
		t.Errorf("payload = %v, want %v", payloadTail, payload)
	}
}

func TestIPv4HeaderChecksumValidatesToZero(t *testing.T) {
	hdr := make([]byte, dhcpv4.IPHeaderLen)
	hdr[0] = 0x45
	hdr[8] = 64
	hdr[9] = 17
	copy(hdr[12:16], net.IPv4(192, 168, 1, 1).To4())
	copy(hdr[16:20], net.IPv4(192, 168, 1, 2).To4())

	csum := ipv4HeaderChecksum(hdr)
	hdr[10] = byte(csum >> 8)
	hdr[11] = byte(csum)

	// Summing a header with the checksum field filled in correctly
	// folds to all-ones (the RFC 1071 self-check).
	if onesComplementSum(hdr) != 0xffff && onesComplementSum(hdr) != 0 {
		t.Errorf("checksum self-check failed: folded sum = %#x", onesComplementSum(hdr))
	}
}

func TestUDPChecksumNeverZeroOnWire(t *testing.T) {
	src := net.IPv4(10, 0, 0, 1).To4()
	dst := net.IPv4(10, 0, 0, 2).To4()
	udp := make([]byte, dhcpv4.UDPHeaderLen)
	udp[5] = dhcpv4.UDPHeaderLen

	csum := udpChecksumIPv4(src, dst, udp)
	if csum == 0 {
		t.Error("udp checksum must never be transmitted as zero (RFC 768)")
	}
}
