package dhcp

import (
	"testing"

	"github.com/schmurfy/dhcprelayd/pkg/dhcpv4"
)

// buildTestFrame builds a minimal, well-formed Ethernet+IPv4+UDP+DHCP
// frame of the given total length, with a DHCPDISCOVER payload.
func buildTestFrame(totalLen int) []byte {
	frame := make([]byte, totalLen)
	frame[12] = 0x08 // EtherType IPv4 high byte
	frame[13] = 0x00

	dhcpStart := dhcpv4.EtherHeaderLen + dhcpv4.UDPOverhead
	udpLen := totalLen - dhcpv4.EtherHeaderLen - dhcpv4.IPHeaderLen
	udpStart := dhcpv4.EtherHeaderLen + dhcpv4.IPHeaderLen
	frame[udpStart+4] = byte(udpLen >> 8)
	frame[udpStart+5] = byte(udpLen)

	copy(frame[dhcpStart+dhcpv4.FixedHeaderLen:], dhcpv4.MagicCookie)
	if totalLen > dhcpStart+dhcpv4.FixedLen {
		frame[dhcpStart+dhcpv4.FixedLen] = byte(dhcpv4.OptionEnd)
	}
	return frame
}

func TestValidateAcceptsMinimalFrame(t *testing.T) {
	minLen := dhcpv4.EtherHeaderLen + dhcpv4.UDPOverhead + dhcpv4.FixedLen + 1 // +1 for the OptionEnd byte
	frame := buildTestFrame(minLen)
	if err := Validate(frame, dhcpv4.MaxPacketSize); err != nil {
		t.Errorf("Validate rejected a well-formed minimal frame: %v", err)
	}
}

func TestValidateRejectsOneByteShort(t *testing.T) {
	minLen := dhcpv4.EtherHeaderLen + dhcpv4.UDPOverhead + dhcpv4.FixedLen + 1
	frame := buildTestFrame(minLen)[:minLen-1]
	if err := Validate(frame, dhcpv4.MaxPacketSize); err == nil {
		t.Error("expected rejection for a frame one byte under the minimum")
	}
}

func TestValidateRejectsBadEtherType(t *testing.T) {
	frame := buildTestFrame(dhcpv4.EtherHeaderLen + dhcpv4.UDPOverhead + dhcpv4.FixedLen + 1)
	frame[12], frame[13] = 0x86, 0xDD // IPv6
	if err := Validate(frame, dhcpv4.MaxPacketSize); err == nil {
		t.Error("expected rejection for non-IPv4 ethertype")
	}
}

func TestValidateRejectsTooLong(t *testing.T) {
	frame := buildTestFrame(dhcpv4.EtherHeaderLen + dhcpv4.UDPOverhead + dhcpv4.FixedLen + 1)
	if err := Validate(frame, len(frame)-1); err == nil {
		t.Error("expected rejection for a frame over max_packet_size")
	}
}

func TestValidateRejectsMissingTerminator(t *testing.T) {
	// Build a frame whose options area never reaches 255 within the
	// declared length: one TLV whose length byte claims more data than
	// is actually present.
	totalLen := dhcpv4.EtherHeaderLen + dhcpv4.UDPOverhead + dhcpv4.FixedLen + 3
	frame := buildTestFrame(totalLen)
	dhcpStart := dhcpv4.EtherHeaderLen + dhcpv4.UDPOverhead
	frame[dhcpStart+dhcpv4.FixedLen] = byte(dhcpv4.OptionSubnetMask)
	frame[dhcpStart+dhcpv4.FixedLen+1] = 200 // declares far more than is present
	if err := Validate(frame, dhcpv4.MaxPacketSize); err == nil {
		t.Error("expected rejection for a payload missing its 255 terminator")
	}
}
