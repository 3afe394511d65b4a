// Package svrinv builds and holds the frozen-after-startup server
// inventory: DNS-resolved (IPv4, UDP port) endpoints configured as
// `<server>[:port]` in the CLI trailing list or a `[servers]` config
// section (§6). A bare hostname is resolved once at startup via
// github.com/miekg/dns — the teacher used this library for proxying
// client DNS queries; here it legitimately resolves the relay's own
// server list instead.
package svrinv

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/schmurfy/dhcprelayd/internal/relayerr"
	"github.com/schmurfy/dhcprelayd/pkg/dhcpv4"
)

// Server is one resolved relay target.
type Server struct {
	Name string
	Addr *net.UDPAddr
}

// Inventory is the ordered, frozen list of resolved servers. Index in
// this slice is the stable server-inventory index referenced by an
// interface's ServerRefs (§3).
type Inventory struct {
	servers []Server
}

// NewInventory wraps an already-resolved server list.
func NewInventory(servers []Server) *Inventory {
	return &Inventory{servers: servers}
}

// All returns every server in inventory order.
func (inv *Inventory) All() []Server { return inv.servers }

// At returns the server at index i.
func (inv *Inventory) At(i int) (Server, bool) {
	if i < 0 || i >= len(inv.servers) {
		return Server{}, false
	}
	return inv.servers[i], true
}

// Len returns the number of resolved servers.
func (inv *Inventory) Len() int { return len(inv.servers) }

// resolver is the single A-record lookup this package needs, implemented
// by systemResolver, so tests can substitute a fake without a live
// resolver.
type resolver interface {
	lookupA(host string) (net.IP, error)
}

// systemResolver resolves via the system's configured nameservers,
// discovered from /etc/resolv.conf (dns.ClientConfigFromFile), falling
// back to net.LookupIP if no resolver config is found — keeping startup
// resolution working in minimal containers with no resolv.conf.
type systemResolver struct {
	client  *dns.Client
	servers []string
}

func newSystemResolver() *systemResolver {
	r := &systemResolver{client: &dns.Client{Timeout: 3 * time.Second}}
	if cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil {
		for _, s := range cfg.Servers {
			r.servers = append(r.servers, net.JoinHostPort(s, cfg.Port))
		}
	}
	return r
}

func (r *systemResolver) lookupA(host string) (net.IP, error) {
	if len(r.servers) == 0 {
		ips, err := net.LookupIP(host)
		if err != nil {
			return nil, err
		}
		for _, ip := range ips {
			if v4 := ip.To4(); v4 != nil {
				return v4, nil
			}
		}
		return nil, fmt.Errorf("no A record for %s", host)
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	var lastErr error
	for _, addr := range r.servers {
		resp, _, err := r.client.Exchange(msg, addr)
		if err != nil {
			lastErr = err
			continue
		}
		for _, rr := range resp.Answer {
			if a, ok := rr.(*dns.A); ok {
				return a.A.To4(), nil
			}
		}
		lastErr = fmt.Errorf("no A record for %s via %s", host, addr)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no nameservers available to resolve %s", host)
	}
	return nil, lastErr
}

// Resolve parses `host` or `host:port` and resolves host to an IPv4
// address, defaulting port to bootpsPort. A malformed port is a fatal
// Configuration error per §6.
func Resolve(endpoint string, bootpsPort uint16) (Server, error) {
	return resolveWith(newSystemResolver(), endpoint, bootpsPort)
}

func resolveWith(r resolver, endpoint string, bootpsPort uint16) (Server, error) {
	host, portStr, port := endpoint, "", bootpsPort
	if i := strings.LastIndex(endpoint, ":"); i >= 0 {
		host, portStr = endpoint[:i], endpoint[i+1:]
		p, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return Server{}, relayerr.New(relayerr.Configuration, "svrinv.Resolve",
				fmt.Errorf("bad port in server endpoint %q: %w", endpoint, err))
		}
		port = uint16(p)
	}

	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return Server{Name: endpoint, Addr: &net.UDPAddr{IP: v4, Port: int(port)}}, nil
		}
		return Server{}, relayerr.New(relayerr.Configuration, "svrinv.Resolve",
			fmt.Errorf("server %q is not an ipv4 address", endpoint))
	}

	ip, err := r.lookupA(host)
	if err != nil {
		return Server{}, relayerr.New(relayerr.Configuration, "svrinv.Resolve",
			fmt.Errorf("resolving server %q: %w", host, err))
	}
	return Server{Name: endpoint, Addr: &net.UDPAddr{IP: ip, Port: int(port)}}, nil
}

// DefaultBootpsPort looks up the bootps service port via the system
// services database, falling back to dhcpv4.ServerPort (§6).
func DefaultBootpsPort() uint16 {
	if p, err := net.LookupPort("udp", "bootps"); err == nil && p > 0 {
		return uint16(p)
	}
	return dhcpv4.ServerPort
}
