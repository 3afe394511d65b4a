package dhcp

import (
	"testing"

	"github.com/schmurfy/dhcprelayd/pkg/dhcpv4"
)

func buildPayload(options ...byte) []byte {
	buf := make([]byte, dhcpv4.FixedLen)
	copy(buf[dhcpv4.FixedHeaderLen:], dhcpv4.MagicCookie)
	return append(buf, options...)
}

func TestWalkBasic(t *testing.T) {
	payload := buildPayload(
		byte(dhcpv4.OptionSubnetMask), 4, 255, 255, 255, 0,
		byte(dhcpv4.OptionEnd),
	)

	var mask []byte
	Walk(payload[dhcpv4.FixedLen:], func(tag dhcpv4.OptionCode, v []byte) bool {
		if tag == dhcpv4.OptionSubnetMask {
			mask = v
		}
		return true
	})
	if len(mask) != 4 || mask[0] != 255 || mask[3] != 0 {
		t.Errorf("subnet mask = %v, want [255 255 255 0]", mask)
	}
}

func TestWalkMultiple(t *testing.T) {
	payload := buildPayload(
		byte(dhcpv4.OptionDHCPMessageType), 1, byte(dhcpv4.MessageTypeDiscover),
		byte(dhcpv4.OptionHostname), 4, 't', 'e', 's', 't',
		byte(dhcpv4.OptionEnd),
	)

	count := 0
	Walk(payload[dhcpv4.FixedLen:], func(tag dhcpv4.OptionCode, v []byte) bool {
		count++
		return true
	})
	if count != 2 {
		t.Errorf("expected 2 options, got %d", count)
	}

	mt, ok := Find(payload[dhcpv4.FixedLen:], dhcpv4.OptionDHCPMessageType)
	if !ok || mt[0] != byte(dhcpv4.MessageTypeDiscover) {
		t.Errorf("message type wrong or missing")
	}

	hn, ok := Find(payload[dhcpv4.FixedLen:], dhcpv4.OptionHostname)
	if !ok || string(hn) != "test" {
		t.Errorf("hostname = %q, want %q", string(hn), "test")
	}
}

func TestWalkPadding(t *testing.T) {
	payload := buildPayload(
		byte(dhcpv4.OptionPad),
		byte(dhcpv4.OptionPad),
		byte(dhcpv4.OptionDHCPMessageType), 1, byte(dhcpv4.MessageTypeRequest),
		byte(dhcpv4.OptionPad),
		byte(dhcpv4.OptionEnd),
	)

	count := 0
	Walk(payload[dhcpv4.FixedLen:], func(tag dhcpv4.OptionCode, v []byte) bool {
		count++
		return true
	})
	if count != 1 {
		t.Errorf("expected 1 option (pad should be skipped), got %d", count)
	}
}

func TestWalkStopsOnMissingTerminator(t *testing.T) {
	// Option with no length byte: Walk must stop, not panic.
	payload := buildPayload(byte(dhcpv4.OptionSubnetMask))
	calls := 0
	Walk(payload[dhcpv4.FixedLen:], func(tag dhcpv4.OptionCode, v []byte) bool {
		calls++
		return true
	})
	if calls != 0 {
		t.Errorf("expected 0 callbacks for truncated option, got %d", calls)
	}
}

func TestGetLenBasic(t *testing.T) {
	payload := buildPayload(
		byte(dhcpv4.OptionDHCPMessageType), 1, byte(dhcpv4.MessageTypeOffer),
		byte(dhcpv4.OptionSubnetMask), 4, 255, 255, 255, 0,
		byte(dhcpv4.OptionEnd),
	)
	n := GetLen(payload)
	if n != len(payload) {
		t.Errorf("GetLen = %d, want %d", n, len(payload))
	}
}

func TestGetLenTruncatedAfterEnd(t *testing.T) {
	payload := buildPayload(
		byte(dhcpv4.OptionDHCPMessageType), 1, byte(dhcpv4.MessageTypeAck),
		byte(dhcpv4.OptionEnd),
		0xAA, 0xAA, 0xAA, // trailing garbage after terminator must be excluded
	)
	n := GetLen(payload)
	want := len(payload) - 3
	if n != want {
		t.Errorf("GetLen = %d, want %d (trailing bytes after 255 must be trimmed)", n, want)
	}
}

func TestGetLenNoTerminator(t *testing.T) {
	payload := buildPayload(byte(dhcpv4.OptionSubnetMask), 4, 255, 255, 255, 0)
	if n := GetLen(payload); n != 0 {
		t.Errorf("GetLen = %d, want 0 for missing terminator", n)
	}
}

func TestGetLenIdempotent(t *testing.T) {
	payload := buildPayload(
		byte(dhcpv4.OptionHostname), 4, 't', 'e', 's', 't',
		byte(dhcpv4.OptionEnd),
	)
	n1 := GetLen(payload)
	n2 := GetLen(payload[:n1])
	if n1 != n2 {
		t.Errorf("GetLen not idempotent: %d != %d", n1, n2)
	}
}

func TestGetLenTooShort(t *testing.T) {
	if n := GetLen(make([]byte, dhcpv4.FixedLen-1)); n != 0 {
		t.Errorf("GetLen = %d, want 0 for payload shorter than FixedLen", n)
	}
}
