package dhcp

import (
	"fmt"

	"github.com/mdlayher/ethernet"

	"github.com/schmurfy/dhcprelayd/pkg/dhcpv4"
)

// Validate is the stateless sanity_check from §4.1: it accepts only a
// captured Ethernet frame that is long enough, carries IPv4, carries a
// plausible UDP length, and whose DHCP options area is well-formed up to
// a terminating OptionEnd. The accept path does not allocate; each
// rejection returns a newly formatted error.
func Validate(frame []byte, maxPacketSize int) error {
	if len(frame) > maxPacketSize {
		return fmt.Errorf("frame too long: %d > %d", len(frame), maxPacketSize)
	}
	if len(frame) < dhcpv4.EtherHeaderLen+dhcpv4.FixedLen {
		return fmt.Errorf("frame too short: %d bytes", len(frame))
	}

	etherType := ethernet.EtherType(uint16(frame[12])<<8 | uint16(frame[13]))
	if etherType != ethernet.EtherTypeIPv4 {
		return fmt.Errorf("unexpected ethertype %#04x", uint16(etherType))
	}

	udpStart := dhcpv4.EtherHeaderLen + dhcpv4.IPHeaderLen
	if len(frame) < udpStart+dhcpv4.UDPHeaderLen {
		return fmt.Errorf("frame too short for udp header")
	}
	udpLen := int(frame[udpStart+4])<<8 | int(frame[udpStart+5])
	if udpLen < dhcpv4.FixedHeaderLen+dhcpv4.MagicCookieLen+1 {
		return fmt.Errorf("udp length %d too small for a dhcp payload", udpLen)
	}

	payload := frame[dhcpv4.EtherHeaderLen+dhcpv4.UDPOverhead:]
	if len(payload) < dhcpv4.FixedLen {
		return fmt.Errorf("dhcp payload too short: %d bytes", len(payload))
	}
	if GetLen(payload) == 0 {
		return fmt.Errorf("malformed dhcp options: no terminator found")
	}
	return nil
}
