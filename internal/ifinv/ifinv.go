// Package ifinv builds and owns the relay's per-interface resources: a
// raw AF_PACKET capture/write handle and a BOOTPS-bound UDP socket, one
// set per configured interface (§3, §9's "process-wide pcap/BPF handles"
// redesign into a scoped, owning Interface value).
package ifinv

import (
	"fmt"
	"net"

	"github.com/mdlayher/packet"

	"github.com/schmurfy/dhcprelayd/internal/relayerr"
)

// Interface is one entry in the frozen-after-startup inventory. It owns
// its raw socket and UDP socket for the process lifetime; Close releases
// both.
type Interface struct {
	Name       string
	Index      int
	MAC        net.HardwareAddr
	IP         net.IP
	ServerRefs []int

	raw *packet.Conn
	udp *net.UDPConn
}

// RawConn returns the raw AF_PACKET handle used for both capture
// (ReadFrom) and frame injection (WriteTo).
func (i *Interface) RawConn() *packet.Conn { return i.raw }

// UDPConn returns the UDP socket bound to (IP, bootpsPort) used by the
// relay worker to send to servers and by the reply worker to receive
// server answers.
func (i *Interface) UDPConn() *net.UDPConn { return i.udp }

// Close releases both handles. Errors are combined; callers log rather
// than treat a close failure as fatal.
func (i *Interface) Close() error {
	var rawErr, udpErr error
	if i.raw != nil {
		rawErr = i.raw.Close()
	}
	if i.udp != nil {
		udpErr = i.udp.Close()
	}
	if rawErr != nil || udpErr != nil {
		return fmt.Errorf("closing interface %s: raw=%v udp=%v", i.Name, rawErr, udpErr)
	}
	return nil
}

// OpenParams names what Open needs beyond the interface itself: the
// BOOTPS port to bind and filter on, and an optional forced bind IP
// (from the IP-binding map, §3).
type OpenParams struct {
	BootpsPort uint16
	BindIP     net.IP // nil: auto-detect from the interface
}

// Open acquires both the raw capture/write handle and the UDP socket for
// a system network interface, installs the BOOTPS admission filter, and
// returns an owning *Interface. An interface with no usable IPv4 address
// is a Configuration-kind error; socket and filter failures are
// Resource-kind errors (§7).
func Open(netIf *net.Interface, index int, p OpenParams) (*Interface, error) {
	addr, err := boundIPv4(netIf, p.BindIP)
	if err != nil {
		return nil, relayerr.New(relayerr.Configuration, "ifinv.Open", fmt.Errorf("interface %s: %w", netIf.Name, err))
	}

	rawConn, err := packet.Listen(netIf, packet.Raw, 0x0800, nil)
	if err != nil {
		return nil, relayerr.New(relayerr.Resource, "ifinv.Open", fmt.Errorf("opening raw socket on %s: %w", netIf.Name, err))
	}

	filter, err := bootpsFilter(p.BootpsPort, macArray(netIf.HardwareAddr))
	if err != nil {
		rawConn.Close()
		return nil, relayerr.New(relayerr.Resource, "ifinv.Open", fmt.Errorf("assembling bpf filter for %s: %w", netIf.Name, err))
	}
	if err := rawConn.SetBPF(filter); err != nil {
		rawConn.Close()
		return nil, relayerr.New(relayerr.Resource, "ifinv.Open", fmt.Errorf("installing bpf filter on %s: %w", netIf.Name, err))
	}

	udpConn, err := listenBootps(netIf.Name, addr, p.BootpsPort)
	if err != nil {
		rawConn.Close()
		return nil, relayerr.New(relayerr.Resource, "ifinv.Open", fmt.Errorf("binding udp socket on %s: %w", netIf.Name, err))
	}

	return &Interface{
		Name:  netIf.Name,
		Index: index,
		MAC:   netIf.HardwareAddr,
		IP:    addr,
		raw:   rawConn,
		udp:   udpConn,
	}, nil
}

// NewForTest builds an Interface around an already-open UDP socket and
// no raw handle, for tests that exercise the relay/reply workers'
// UDP-facing logic without a real AF_PACKET capability.
func NewForTest(name string, index int, mac net.HardwareAddr, ip net.IP, serverRefs []int, udp *net.UDPConn) *Interface {
	return &Interface{Name: name, Index: index, MAC: mac, IP: ip, ServerRefs: serverRefs, udp: udp}
}

func macArray(mac net.HardwareAddr) [6]byte {
	var a [6]byte
	copy(a[:], mac)
	return a
}

func boundIPv4(netIf *net.Interface, forced net.IP) (net.IP, error) {
	addrs, err := netIf.Addrs()
	if err != nil {
		return nil, fmt.Errorf("listing addresses: %w", err)
	}
	var ips []net.IP
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			ips = append(ips, v4)
		}
	}
	if forced != nil {
		for _, ip := range ips {
			if ip.Equal(forced) {
				return ip, nil
			}
		}
		// Forced bind IP absent from this interface: fall back to
		// auto-detection per §3's IP-binding-map invariant.
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no ipv4 address configured")
	}
	return ips[0], nil
}

// Inventory is the frozen-after-startup set of opened interfaces.
type Inventory struct {
	byIndex []*Interface
	byName  map[string]*Interface
}

// NewInventory builds an Inventory from already-opened interfaces.
func NewInventory(ifs []*Interface) *Inventory {
	byName := make(map[string]*Interface, len(ifs))
	for _, i := range ifs {
		byName[i.Name] = i
	}
	return &Inventory{byIndex: ifs, byName: byName}
}

// All returns every interface in inventory order.
func (inv *Inventory) All() []*Interface { return inv.byIndex }

// ByName looks up an interface by name.
func (inv *Inventory) ByName(name string) (*Interface, bool) {
	i, ok := inv.byName[name]
	return i, ok
}

// ByGIAddr finds the interface whose bound IP matches giaddr — the
// reply worker's egress-interface resolution (§4.4 step 5).
func (inv *Inventory) ByGIAddr(giaddr net.IP) (*Interface, bool) {
	for _, i := range inv.byIndex {
		if i.IP.Equal(giaddr) {
			return i, true
		}
	}
	return nil, false
}

// Close releases every interface's handles, carrying on past individual
// close errors, and returns the first one.
func (inv *Inventory) Close() error {
	var firstErr error
	for _, i := range inv.byIndex {
		if err := i.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
