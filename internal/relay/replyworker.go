package relay

import (
	"context"
	"log/slog"
	"net"

	"github.com/mdlayher/packet"

	"github.com/schmurfy/dhcprelayd/internal/dhcp"
	"github.com/schmurfy/dhcprelayd/internal/ifinv"
	"github.com/schmurfy/dhcprelayd/internal/metrics"
	"github.com/schmurfy/dhcprelayd/internal/plugin"
	"github.com/schmurfy/dhcprelayd/pkg/dhcpv4"
)

// serverDatagram is one reply read off an interface's UDP socket, handed
// to the reply worker's single-consumer loop.
type serverDatagram struct {
	iface *ifinv.Interface
	from  *net.UDPAddr
	n     int
	buf   []byte
}

// ReplyWorker multiplexes every interface's UDP socket through one
// reader goroutine per socket funneling into a shared channel (§4.4),
// and processes exactly one datagram per iteration. Datagrams are handled
// in the order the readers deliver them; interfaces are not prioritised
// by inventory order.
type ReplyWorker struct {
	Ifaces        *ifinv.Inventory
	Chain         *plugin.Chain
	MaxPacketSize int
	Logger        *slog.Logger
}

// Run starts one reader per interface and processes datagrams until ctx
// is canceled.
func (w *ReplyWorker) Run(ctx context.Context) error {
	datagrams := make(chan serverDatagram, len(w.Ifaces.All()))

	for _, iface := range w.Ifaces.All() {
		go w.readLoop(ctx, iface, datagrams)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-datagrams:
			w.handle(d)
		}
	}
}

func (w *ReplyWorker) readLoop(ctx context.Context, iface *ifinv.Interface, out chan<- serverDatagram) {
	maxPayload := w.MaxPacketSize - dhcpv4.EtherHeaderLen - dhcpv4.UDPOverhead
	buf := make([]byte, maxPayload)
	for {
		n, from, err := iface.UDPConn().ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			w.Logger.Debug("reply socket read error", "interface", iface.Name, "error", err)
			continue
		}
		cp := make([]byte, n)
		copy(cp, buf[:n])
		select {
		case out <- serverDatagram{iface: iface, from: from, n: n, buf: cp}:
		case <-ctx.Done():
			return
		}
	}
}

func (w *ReplyWorker) handle(d serverDatagram) {
	metrics.RepliesReceived.WithLabelValues(d.iface.Name).Inc()

	if d.n < dhcpv4.MinPacketSize {
		w.Logger.Warn("reply shorter than minimum dhcp size, dropping", "length", d.n)
		metrics.RepliesRejected.WithLabelValues("short_read").Inc()
		return
	}

	pkt, err := dhcp.Parse(d.buf[:d.n])
	if err != nil {
		w.Logger.Warn("reply worker: unparseable server reply", "error", err)
		metrics.RepliesRejected.WithLabelValues("unparseable").Inc()
		return
	}

	if w.Chain.ServerAnswer(d.from, pkt) == plugin.Reject {
		metrics.RepliesRejected.WithLabelValues("plugin").Inc()
		return
	}

	n := dhcp.GetLen(pkt.Bytes())
	if n == 0 {
		w.Logger.Warn("server_answer plugin left malformed options, dropping")
		metrics.RepliesRejected.WithLabelValues("malformed_options").Inc()
		return
	}
	payload := pkt.Bytes()[:n]

	egress, ok := w.Ifaces.ByGIAddr(pkt.GIAddr())
	if !ok {
		w.Logger.Error("reply worker: no interface owns giaddr", "giaddr", pkt.GIAddr().String())
		metrics.RepliesRejected.WithLabelValues("unresolved_egress").Inc()
		return
	}

	params := dhcp.FrameParams{
		SrcMAC:  egress.MAC,
		SrcIP:   egress.IP,
		SrcPort: dhcpv4.ServerPort,
		DstPort: dhcpv4.ClientPort,
	}
	if pkt.Op() == dhcpv4.OpCodeBootReply && pkt.IsBroadcast() {
		params.DstMAC = dhcpv4.BroadcastMAC
		params.DstIP = dhcpv4.BroadcastIP
	} else {
		params.DstMAC = pkt.CHAddr()
		params.DstIP = pkt.YIAddr()
	}

	if w.Chain.SendToClient(d.from, egress.Name, pkt, &params) == plugin.Reject {
		metrics.RepliesRejected.WithLabelValues("plugin").Inc()
		return
	}
	n = dhcp.GetLen(pkt.Bytes())
	if n == 0 {
		w.Logger.Warn("send_to_client plugin left malformed options, dropping")
		metrics.RepliesRejected.WithLabelValues("malformed_options").Inc()
		return
	}
	payload = pkt.Bytes()[:n]

	scratch := dhcp.GetScratch()
	defer dhcp.PutScratch(scratch)
	total := dhcpv4.EtherHeaderLen + dhcpv4.UDPOverhead + len(payload)
	if cap(scratch) < total {
		scratch = make([]byte, total)
	}
	frame := dhcp.BuildReplyFrame(scratch[:total], params, payload)

	if _, err := egress.RawConn().WriteTo(frame, &packet.Addr{HardwareAddr: params.DstMAC}); err != nil {
		w.Logger.Warn("raw frame write failed", "interface", egress.Name, "error", err)
		metrics.FrameWriteErrors.WithLabelValues(egress.Name).Inc()
		return
	}
	metrics.RepliesSent.WithLabelValues(egress.Name).Inc()
}
