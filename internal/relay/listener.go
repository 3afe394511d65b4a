// Package relay wires the interface inventory, server inventory, plugin
// chain, and request queue into the three concurrent stages of §4:
// per-interface listeners, the relay worker, and the reply worker.
package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/schmurfy/dhcprelayd/internal/dhcp"
	"github.com/schmurfy/dhcprelayd/internal/ifinv"
	"github.com/schmurfy/dhcprelayd/internal/metrics"
	"github.com/schmurfy/dhcprelayd/internal/plugin"
	"github.com/schmurfy/dhcprelayd/pkg/dhcpv4"
)

// Listener captures, filters, and enqueues client-origin DHCP requests
// from a single interface (§4.2). One Listener per ifinv.Interface.
type Listener struct {
	Iface         *ifinv.Interface
	Queue         *dhcp.Queue
	Chain         *plugin.Chain
	RPSLimit      int
	MaxPacketSize int
	Logger        *slog.Logger
}

// Run captures frames until ctx is canceled. It never returns a non-nil
// error for steady-state packet problems — those are logged and
// dropped, per §7's RuntimePacket/CaptureTransient policy — only a
// canceled context ends the loop.
func (l *Listener) Run(ctx context.Context) error {
	rl := dhcp.NewRateLimiter(l.RPSLimit)
	buf := make([]byte, dhcpv4.MaxPacketSize)
	logger := l.Logger.With("interface", l.Iface.Name)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, _, err := l.Iface.RawConn().ReadFrom(buf)
		if err != nil {
			logger.Debug("capture transient", "error", err)
			time.Sleep(time.Millisecond)
			continue
		}
		frame := buf[:n]
		metrics.PacketsCaptured.WithLabelValues(l.Iface.Name).Inc()

		if !rl.Allow(time.Now()) {
			metrics.PacketsRateLimited.WithLabelValues(l.Iface.Name).Inc()
			continue
		}

		if err := dhcp.Validate(frame, l.MaxPacketSize); err != nil {
			logger.Warn("rejected frame", "error", err)
			metrics.PacketsRejected.WithLabelValues(l.Iface.Name, "validator").Inc()
			continue
		}

		payload := frame[dhcpv4.EtherHeaderLen+dhcpv4.UDPOverhead:]
		pkt, err := dhcp.Parse(payload)
		if err != nil {
			logger.Warn("unparseable dhcp payload", "error", err)
			metrics.PacketsRejected.WithLabelValues(l.Iface.Name, "unparseable").Inc()
			continue
		}
		if pkt.Op() == dhcpv4.OpCodeBootReply {
			metrics.PacketsRejected.WithLabelValues(l.Iface.Name, "bootreply").Inc()
			continue
		}

		hdr := dhcp.ExtractHeaders(frame)
		if l.Chain.ClientRequest(l.Iface.Name, pkt, hdr) == plugin.Reject {
			metrics.PacketsRejected.WithLabelValues(l.Iface.Name, "plugin").Inc()
			continue
		}

		payloadLen := dhcp.GetLen(pkt.Bytes())
		if payloadLen == 0 {
			logger.Warn("client_request plugin left malformed options")
			metrics.PacketsRejected.WithLabelValues(l.Iface.Name, "malformed_options").Inc()
			continue
		}

		reqPayload := make([]byte, payloadLen)
		copy(reqPayload, pkt.Bytes()[:payloadLen])

		req := dhcp.Request{
			Payload:       reqPayload,
			IngressIfName: l.Iface.Name,
			IngressIfAddr: l.Iface.IP,
			SrcMAC:        l.Iface.MAC,
		}
		done := ctx.Done()
		if !l.Queue.Enqueue(req, done) {
			return nil
		}
	}
}
