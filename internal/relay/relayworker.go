package relay

import (
	"context"
	"log/slog"

	"github.com/schmurfy/dhcprelayd/internal/dhcp"
	"github.com/schmurfy/dhcprelayd/internal/ifinv"
	"github.com/schmurfy/dhcprelayd/internal/metrics"
	"github.com/schmurfy/dhcprelayd/internal/plugin"
	"github.com/schmurfy/dhcprelayd/internal/svrinv"
)

// RelayWorker is the single queue-draining consumer that mutates
// relay-agent fields and dispatches to every server fanned out from the
// ingress interface (§4.3).
type RelayWorker struct {
	Queue   *dhcp.Queue
	Ifaces  *ifinv.Inventory
	Servers *svrinv.Inventory
	Chain   *plugin.Chain
	MaxHops byte
	Logger  *slog.Logger
}

// Run drains the queue until ctx is canceled and no request remains
// buffered.
func (w *RelayWorker) Run(ctx context.Context) error {
	for {
		req, ok := w.Queue.Dequeue(ctx.Done())
		if !ok {
			return nil
		}
		w.relay(req)
	}
}

func (w *RelayWorker) relay(req dhcp.Request) {
	pkt, err := dhcp.Parse(req.Payload)
	if err != nil {
		w.Logger.Warn("relay worker: unparseable queued payload", "error", err)
		return
	}

	if pkt.Hops() >= w.MaxHops {
		w.Logger.Warn("hop limit reached, dropping", "hops", pkt.Hops(), "max_hops", w.MaxHops)
		metrics.HopLimitDrops.Inc()
		return
	}
	pkt.SetHops(pkt.Hops() + 1)

	if pkt.GIAddrZero() {
		pkt.SetGIAddr(req.IngressIfAddr)
	}

	iface, ok := w.Ifaces.ByName(req.IngressIfName)
	if !ok {
		w.Logger.Error("relay worker: unknown ingress interface", "interface", req.IngressIfName)
		return
	}

	for _, serverIdx := range iface.ServerRefs {
		server, ok := w.Servers.At(serverIdx)
		if !ok {
			continue
		}

		if w.Chain.SendToServer(server.Addr, req.IngressIfName, pkt) == plugin.Reject {
			continue
		}

		n := dhcp.GetLen(pkt.Bytes())
		if n == 0 {
			w.Logger.Error("send_to_server plugin left malformed options, dropping for this server",
				"server", server.Name)
			continue
		}

		if _, err := iface.UDPConn().WriteToUDP(pkt.Bytes()[:n], server.Addr); err != nil {
			w.Logger.Warn("sendto server failed", "server", server.Name, "error", err)
			metrics.ServerSendErrors.WithLabelValues(server.Name).Inc()
			continue
		}
		metrics.RequestsRelayed.WithLabelValues(server.Name).Inc()
	}
}
