// Package plugin implements the relay's four-hook plugin chain (§4.5,
// §9). Plugins are resolved by name against a build-time registry rather
// than dlopen'd, but the hook points and short-circuit-on-reject
// semantics match the original design exactly.
package plugin

import (
	"fmt"
	"net"

	"github.com/schmurfy/dhcprelayd/internal/dhcp"
	"github.com/schmurfy/dhcprelayd/internal/metrics"
)

// Verdict is the result of a hook invocation.
type Verdict int

const (
	Accept Verdict = iota
	Reject
)

// ClientRequestHook runs once per captured client packet before it is
// enqueued. ifName is the ingress interface; hdr is the Ethernet/IP/UDP
// envelope the listener extracted from the captured frame (§4.2 step
// 5-6), usable by a plugin needing link-layer provenance such as the
// client's source MAC for an RFC 3046 remote-id.
type ClientRequestHook func(ifName string, pkt *dhcp.Packet, hdr dhcp.Headers) Verdict

// SendToServerHook runs once per (server, request) pair before the relay
// worker dispatches the DHCP payload.
type SendToServerHook func(server net.Addr, ifName string, pkt *dhcp.Packet) Verdict

// ServerAnswerHook runs once per received server reply, before the
// egress interface is resolved.
type ServerAnswerHook func(from net.Addr, pkt *dhcp.Packet) Verdict

// SendToClientHook runs once per reply after headers have been built,
// immediately before checksums and frame write.
type SendToClientHook func(from net.Addr, ifName string, pkt *dhcp.Packet, p *dhcp.FrameParams) Verdict

// Plugin is the interface every registered plugin implements. Any hook
// method may be a no-op that always returns Accept; Init and Destroy are
// always called.
type Plugin interface {
	Name() string
	Init(opts []string) error
	Destroy()

	ClientRequest(ifName string, pkt *dhcp.Packet, hdr dhcp.Headers) Verdict
	SendToServer(server net.Addr, ifName string, pkt *dhcp.Packet) Verdict
	ServerAnswer(from net.Addr, pkt *dhcp.Packet) Verdict
	SendToClient(from net.Addr, ifName string, pkt *dhcp.Packet, p *dhcp.FrameParams) Verdict
}

// Base embeds into a concrete plugin to provide Accept-everything
// defaults for hooks the plugin doesn't care about, so implementations
// only override what they need — matching the original's "any hook is
// optional" rule without requiring every plugin to restate four no-ops.
type Base struct{}

func (Base) ClientRequest(string, *dhcp.Packet, dhcp.Headers) Verdict               { return Accept }
func (Base) SendToServer(net.Addr, string, *dhcp.Packet) Verdict                    { return Accept }
func (Base) ServerAnswer(net.Addr, *dhcp.Packet) Verdict                            { return Accept }
func (Base) SendToClient(net.Addr, string, *dhcp.Packet, *dhcp.FrameParams) Verdict { return Accept }

// Factory constructs a fresh, uninitialized plugin instance.
type Factory func() Plugin

var registry = map[string]Factory{}

// Register adds a factory to the build-time registry. Called from each
// built-in plugin's init(); a config-file `[<name>-plugin]` section
// resolves name through this map.
func Register(name string, f Factory) {
	registry[name] = f
}

// Lookup returns the factory registered under name, or false if none is
// registered — a Resource-kind error at config-load time (§7).
func Lookup(name string) (Factory, bool) {
	f, ok := registry[name]
	return f, ok
}

// Entry pairs a plugin instance with its declared option lines, as
// parsed from a `[<name>-plugin]` config section.
type Entry struct {
	Plugin Plugin
	Opts   []string
}

// Chain is the ordered, initialized plugin list invoked at each hook
// point. Order is registration order from the config file.
type Chain struct {
	entries []Entry
}

// NewChain initializes every entry's plugin in order, aborting on the
// first Init failure (startup errors are fatal, §7).
func NewChain(entries []Entry) (*Chain, error) {
	for i, e := range entries {
		if err := e.Plugin.Init(e.Opts); err != nil {
			return nil, fmt.Errorf("plugin %q init: %w", e.Plugin.Name(), err)
		}
		entries[i] = e
	}
	return &Chain{entries: entries}, nil
}

// Close calls Destroy on every plugin in registration order.
func (c *Chain) Close() {
	for _, e := range c.entries {
		e.Plugin.Destroy()
	}
}

// ClientRequest runs every plugin's hook in order; the first Reject
// short-circuits the remainder.
func (c *Chain) ClientRequest(ifName string, pkt *dhcp.Packet, hdr dhcp.Headers) Verdict {
	for _, e := range c.entries {
		if e.Plugin.ClientRequest(ifName, pkt, hdr) == Reject {
			metrics.PluginRejections.WithLabelValues(e.Plugin.Name(), "client_request").Inc()
			return Reject
		}
	}
	return Accept
}

func (c *Chain) SendToServer(server net.Addr, ifName string, pkt *dhcp.Packet) Verdict {
	for _, e := range c.entries {
		if e.Plugin.SendToServer(server, ifName, pkt) == Reject {
			metrics.PluginRejections.WithLabelValues(e.Plugin.Name(), "send_to_server").Inc()
			return Reject
		}
	}
	return Accept
}

func (c *Chain) ServerAnswer(from net.Addr, pkt *dhcp.Packet) Verdict {
	for _, e := range c.entries {
		if e.Plugin.ServerAnswer(from, pkt) == Reject {
			metrics.PluginRejections.WithLabelValues(e.Plugin.Name(), "server_answer").Inc()
			return Reject
		}
	}
	return Accept
}

func (c *Chain) SendToClient(from net.Addr, ifName string, pkt *dhcp.Packet, p *dhcp.FrameParams) Verdict {
	for _, e := range c.entries {
		if e.Plugin.SendToClient(from, ifName, pkt, p) == Reject {
			metrics.PluginRejections.WithLabelValues(e.Plugin.Name(), "send_to_client").Inc()
			return Reject
		}
	}
	return Accept
}
