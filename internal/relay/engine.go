package relay

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/schmurfy/dhcprelayd/internal/dhcp"
	"github.com/schmurfy/dhcprelayd/internal/ifinv"
	"github.com/schmurfy/dhcprelayd/internal/plugin"
	"github.com/schmurfy/dhcprelayd/internal/svrinv"
)

// Config bundles the tunables every engine task needs — the ISC-mode CLI
// flags and config-file [options] of §6.
type Config struct {
	MaxPacketSize int
	MaxHops       byte
	RPSLimit      int
	QueueDepth    int
}

// Engine owns the request queue and the full task set of §5: one
// listener per interface, one relay worker, one reply worker, all
// spawned onto a shared errgroup.Group bound to a cancellable context.
type Engine struct {
	Ifaces  *ifinv.Inventory
	Servers *svrinv.Inventory
	Chain   *plugin.Chain
	Config  Config
	Logger  *slog.Logger

	queue *dhcp.Queue
}

// Run blocks until ctx is canceled or any task returns an error, then
// waits for every other task to unwind. The first error (if any) is
// returned after graceful shutdown.
func (e *Engine) Run(ctx context.Context) error {
	e.queue = dhcp.NewQueue(e.Config.QueueDepth)

	g, gctx := errgroup.WithContext(ctx)

	for _, iface := range e.Ifaces.All() {
		l := &Listener{
			Iface:         iface,
			Queue:         e.queue,
			Chain:         e.Chain,
			RPSLimit:      e.Config.RPSLimit,
			MaxPacketSize: e.Config.MaxPacketSize,
			Logger:        e.Logger,
		}
		g.Go(func() error { return l.Run(gctx) })
	}

	relayWorker := &RelayWorker{
		Queue:   e.queue,
		Ifaces:  e.Ifaces,
		Servers: e.Servers,
		Chain:   e.Chain,
		MaxHops: e.Config.MaxHops,
		Logger:  e.Logger,
	}
	g.Go(func() error { return relayWorker.Run(gctx) })

	replyWorker := &ReplyWorker{
		Ifaces:        e.Ifaces,
		Chain:         e.Chain,
		MaxPacketSize: e.Config.MaxPacketSize,
		Logger:        e.Logger,
	}
	g.Go(func() error { return replyWorker.Run(gctx) })

	return g.Wait()
}

// QueueLen exposes the current request queue depth for the metrics
// gauge of §5.
func (e *Engine) QueueLen() int {
	if e.queue == nil {
		return 0
	}
	return e.queue.Len()
}
