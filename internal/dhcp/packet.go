// Package dhcp implements the relay's packet-plane building blocks: the
// typed DHCPv4 header view, the option walker, frame validation, the
// request queue, rate limiting, Option 82 encoding, and raw frame
// synthesis. The listener and the relay and reply workers that use them
// live in internal/relay.
package dhcp

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"

	"github.com/schmurfy/dhcprelayd/pkg/dhcpv4"
)

// Packet is a bounds-checked view over a raw DHCPv4 payload (fixed header
// + magic cookie + options). It never copies or decodes the options area
// into a map: every accessor reads straight out of the backing buffer so
// that relaying a packet preserves option bytes exactly, including
// duplicate or vendor-unknown options a map-based decode would reorder or
// drop.
type Packet struct {
	buf []byte
}

// Parse wraps buf as a Packet after checking the minimum length and magic
// cookie. buf is not copied; the returned Packet aliases it.
func Parse(buf []byte) (*Packet, error) {
	if len(buf) < dhcpv4.FixedLen {
		return nil, fmt.Errorf("dhcp packet too short: %d bytes (minimum %d)", len(buf), dhcpv4.FixedLen)
	}
	cookie := buf[dhcpv4.FixedHeaderLen:dhcpv4.FixedLen]
	if cookie[0] != dhcpv4.MagicCookie[0] || cookie[1] != dhcpv4.MagicCookie[1] ||
		cookie[2] != dhcpv4.MagicCookie[2] || cookie[3] != dhcpv4.MagicCookie[3] {
		return nil, fmt.Errorf("invalid dhcp magic cookie: %v", cookie)
	}
	return &Packet{buf: buf}, nil
}

// Bytes returns the backing buffer. Callers that reslice it (e.g. after
// GetLen) are expected to re-Parse if they need a Packet over the new
// length.
func (p *Packet) Bytes() []byte { return p.buf }

// Len returns the current length of the backing buffer.
func (p *Packet) Len() int { return len(p.buf) }

func (p *Packet) Op() dhcpv4.OpCode         { return dhcpv4.OpCode(p.buf[0]) }
func (p *Packet) SetOp(v dhcpv4.OpCode)     { p.buf[0] = byte(v) }
func (p *Packet) HType() dhcpv4.HardwareType { return dhcpv4.HardwareType(p.buf[1]) }
func (p *Packet) HLen() byte                { return p.buf[2] }
func (p *Packet) Hops() byte                { return p.buf[3] }
func (p *Packet) SetHops(v byte)            { p.buf[3] = v }
func (p *Packet) XID() uint32               { return binary.BigEndian.Uint32(p.buf[4:8]) }
func (p *Packet) Secs() uint16              { return binary.BigEndian.Uint16(p.buf[8:10]) }
func (p *Packet) Flags() uint16             { return binary.BigEndian.Uint16(p.buf[10:12]) }

// CIAddr, YIAddr, SIAddr, GIAddr return 4-byte net.IP views that alias the
// backing buffer: writes through the returned slice mutate the packet.
func (p *Packet) CIAddr() net.IP { return net.IP(p.buf[12:16]) }
func (p *Packet) YIAddr() net.IP { return net.IP(p.buf[16:20]) }
func (p *Packet) SIAddr() net.IP { return net.IP(p.buf[20:24]) }
func (p *Packet) GIAddr() net.IP { return net.IP(p.buf[24:28]) }

// SetGIAddr overwrites the giaddr field with ip's 4-byte form.
func (p *Packet) SetGIAddr(ip net.IP) {
	ip4 := ip.To4()
	if ip4 == nil {
		return
	}
	copy(p.buf[24:28], ip4)
}

// GIAddrZero reports whether giaddr is 0.0.0.0.
func (p *Packet) GIAddrZero() bool {
	g := p.buf[24:28]
	return g[0] == 0 && g[1] == 0 && g[2] == 0 && g[3] == 0
}

// CHAddr returns the first HLen bytes of the client hardware address
// field; when HLen is 0 or larger than 16 it returns the first 6 bytes.
func (p *Packet) CHAddr() net.HardwareAddr {
	n := int(p.HLen())
	if n > 16 || n <= 0 {
		n = 6
	}
	return net.HardwareAddr(p.buf[28 : 28+n])
}

// SName returns the 64-byte server host name field, trimmed of trailing
// NUL bytes.
func (p *Packet) SName() []byte { return trimNUL(p.buf[44:108]) }

// File returns the 128-byte boot file name field, trimmed of trailing NUL
// bytes.
func (p *Packet) File() []byte { return trimNUL(p.buf[108:236]) }

// Options returns the raw options area, starting immediately after the
// magic cookie. It is not trimmed to the terminator; pass it to Walk or
// GetLen.
func (p *Packet) Options() []byte {
	if len(p.buf) <= dhcpv4.FixedLen {
		return nil
	}
	return p.buf[dhcpv4.FixedLen:]
}

// SetOptions replaces everything from the magic cookie's end onward with
// newOpts, reallocating the backing buffer rather than mutating in
// place so a plugin can grow or shrink the options area (e.g. inserting
// or stripping Option 82) without the caller tracking capacity. Callers
// must re-fetch p.Bytes()/GetLen after calling this.
func (p *Packet) SetOptions(newOpts []byte) {
	p.buf = append(p.buf[:dhcpv4.FixedLen:dhcpv4.FixedLen], newOpts...)
}

// MessageType returns the value of option 53, or 0 if absent.
func (p *Packet) MessageType() dhcpv4.MessageType {
	if v, ok := Find(p.Options(), dhcpv4.OptionDHCPMessageType); ok && len(v) == 1 {
		return dhcpv4.MessageType(v[0])
	}
	return 0
}

// IsBroadcast reports whether the top bit of the 16-bit flags field is
// set (RFC 2131 §2).
func (p *Packet) IsBroadcast() bool {
	return p.Flags()&0x8000 != 0
}

func trimNUL(b []byte) []byte {
	i := len(b)
	for i > 0 && b[i-1] == 0 {
		i--
	}
	return b[:i]
}

// replyScratch is a pool of max-size buffers reused by the reply worker
// across iterations, eliminating per-reply allocation on the hot path
// (§9 design note).
var replyScratch = sync.Pool{
	New: func() interface{} {
		b := make([]byte, dhcpv4.MaxPacketSize)
		return &b
	},
}

// GetScratch returns a pooled, zero-length-capped buffer of MaxPacketSize
// bytes capacity.
func GetScratch() []byte {
	b := *(replyScratch.Get().(*[]byte))
	return b[:0]
}

// PutScratch returns a scratch buffer to the pool.
func PutScratch(b []byte) {
	b = b[:cap(b)]
	replyScratch.Put(&b)
}
