package dhcp

import (
	"github.com/schmurfy/dhcprelayd/pkg/dhcpv4"
)

// maxOptionScan bounds how far Walk/GetLen will scan looking for the end
// option, so a payload with a corrupted length byte can't spin forever.
const maxOptionScan = dhcpv4.MaxPacketSize

// WalkFunc is called once per option TLV found by Walk. Returning false
// stops the walk early without error (the caller found what it needed).
type WalkFunc func(tag dhcpv4.OptionCode, value []byte) bool

// Walk iterates the (tag, len, value) triples in a raw DHCP options area
// (the bytes immediately following the magic cookie) without allocating.
// Pad bytes (tag 0) are skipped one byte at a time without a callback.
// It stops at the first OptionEnd tag or when it runs out of bytes. It
// never panics on truncated input:
// a TLV whose declared length would run past the buffer simply ends the
// walk, mirroring the original sanity_check's "stop at the first bad TLV"
// behavior rather than erroring.
func Walk(options []byte, fn WalkFunc) {
	i := 0
	limit := len(options)
	if limit > maxOptionScan {
		limit = maxOptionScan
	}
	for i < limit {
		tag := dhcpv4.OptionCode(options[i])
		if tag == dhcpv4.OptionPad {
			i++
			continue
		}
		if tag == dhcpv4.OptionEnd {
			return
		}
		if i+1 >= len(options) {
			return
		}
		length := int(options[i+1])
		start := i + 2
		end := start + length
		if end > len(options) {
			return
		}
		if !fn(tag, options[start:end]) {
			return
		}
		i = end
	}
}

// Find returns the value of the first occurrence of code in options, or
// (nil, false) if the walk does not reach it. An option is found even when
// no OptionEnd terminator follows it.
func Find(options []byte, code dhcpv4.OptionCode) ([]byte, bool) {
	var value []byte
	found := false
	Walk(options, func(tag dhcpv4.OptionCode, v []byte) bool {
		if tag == code {
			value = v
			found = true
			return false
		}
		return true
	})
	return value, found
}

// GetLen implements get_dhcp_len: given a full DHCP payload (fixed header
// + magic cookie + options), it returns the total payload length —
// FixedLen plus option bytes up to and including the OptionEnd terminator.
// It returns 0 if no terminator is found within maxOptionScan bytes, per
// §4.6. Idempotent: calling it again on payload[:n] where n is its own
// result returns n again, since the terminator it found is still the
// first one encountered.
func GetLen(payload []byte) int {
	if len(payload) < dhcpv4.FixedLen {
		return 0
	}
	options := payload[dhcpv4.FixedLen:]
	limit := len(options)
	if limit > maxOptionScan {
		limit = maxOptionScan
	}
	i := 0
	for i < limit {
		tag := dhcpv4.OptionCode(options[i])
		if tag == dhcpv4.OptionPad {
			i++
			continue
		}
		if tag == dhcpv4.OptionEnd {
			return dhcpv4.FixedLen + i + 1
		}
		if i+1 >= len(options) {
			return 0
		}
		length := int(options[i+1])
		next := i + 2 + length
		if next > len(options) {
			return 0
		}
		i = next
	}
	return 0
}
