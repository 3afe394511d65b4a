// dhcprelayd — a DHCPv4 relay agent: per-interface client capture, a
// single hop-counting relay worker, and a server-reply worker that
// re-synthesizes and raw-injects Ethernet/IP/UDP frames back to clients.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	nethttp "net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/schmurfy/dhcprelayd/internal/config"
	"github.com/schmurfy/dhcprelayd/internal/ifinv"
	"github.com/schmurfy/dhcprelayd/internal/logging"
	"github.com/schmurfy/dhcprelayd/internal/metrics"
	"github.com/schmurfy/dhcprelayd/internal/plugin"
	"github.com/schmurfy/dhcprelayd/internal/relay"
	"github.com/schmurfy/dhcprelayd/internal/relayerr"
	"github.com/schmurfy/dhcprelayd/internal/svrinv"
	"github.com/schmurfy/dhcprelayd/internal/syslogfwd"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.ParseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return exitCodeOf(err)
	}

	level := "info"
	if cfg.Debug {
		level = "debug"
	}
	logger := logging.Setup(level, os.Stdout)
	logger.Info("dhcprelayd starting", "file_driven", cfg.FileDriven)

	pidPath := cfg.PIDFile
	if pidPath == "" {
		pidPath = "/var/run/" + filepath.Base(os.Args[0]) + ".pid"
	}
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write pid file", "error", err)
	} else {
		defer removePIDFile(pidPath)
	}

	bootpsPort := svrinv.DefaultBootpsPort()

	servers, ifaceServerRefs, err := buildServerInventory(cfg, bootpsPort)
	if err != nil {
		logger.Error("failed to build server inventory", "error", err)
		return exitCodeOf(err)
	}
	logger.Info("server inventory resolved", "servers", servers.Len())

	ifaces, err := buildInterfaceInventory(cfg, bootpsPort, ifaceServerRefs)
	if err != nil {
		logger.Error("failed to open interfaces", "error", err)
		return exitCodeOf(err)
	}
	defer ifaces.Close()
	logger.Info("interface inventory opened", "interfaces", len(ifaces.All()))

	chain, err := buildPluginChain(cfg)
	if err != nil {
		logger.Error("failed to initialize plugin chain", "error", err)
		return exitCodeOf(err)
	}
	defer chain.Close()

	var forwarder *syslogfwd.Forwarder
	if cfg.Options.SyslogAddr != "" {
		forwarder = syslogfwd.NewForwarder(syslogfwd.Config{Address: cfg.Options.SyslogAddr}, logger)
		if err := forwarder.Start(); err != nil {
			logger.Warn("syslog forwarder failed to start, continuing without it", "error", err)
			forwarder = nil
		} else {
			defer forwarder.Stop()
		}
	}

	metrics.BuildInfo.WithLabelValues("dev").Set(1)
	metrics.StartTime.SetToCurrentTime()

	metricsSrv := startMetricsServer(cfg.Options.MetricsAddr, logger)
	defer metricsSrv.Close()

	engine := &relay.Engine{
		Ifaces:  ifaces,
		Servers: servers,
		Chain:   chain,
		Config: relay.Config{
			MaxPacketSize: cfg.Options.MaxPacketSize,
			MaxHops:       byte(cfg.Options.MaxHops),
			RPSLimit:      cfg.Options.RPSLimit,
			QueueDepth:    cfg.Options.QueueDepth,
		},
		Logger: logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go reportQueueDepth(ctx, engine)

	errCh := make(chan error, 1)
	go func() { errCh <- engine.Run(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
		if forwarder != nil {
			forwarder.Forward(relayerr.RuntimePacket, "dhcprelayd received shutdown signal, stopping")
		}
		<-errCh
	case err := <-errCh:
		if err != nil {
			logger.Error("engine stopped with error", "error", err)
			return exitCodeOf(err)
		}
	}

	logger.Info("dhcprelayd stopped")
	return 0
}

func reportQueueDepth(ctx context.Context, e *relay.Engine) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.QueueDepth.Set(float64(e.QueueLen()))
		}
	}
}

func startMetricsServer(addr string, logger *slog.Logger) *nethttp.Server {
	if addr == "" {
		addr = config.DefaultMetricsAddr
	}
	mux := nethttp.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &nethttp.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != nethttp.ErrServerClosed {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()
	logger.Info("metrics endpoint started", "addr", addr)
	return srv
}

// buildServerInventory resolves every server endpoint to a UDP address,
// returning the inventory plus a per-interface-name list of server
// indices that interface should relay requests to.
func buildServerInventory(cfg *config.Config, bootpsPort uint16) (*svrinv.Inventory, map[string][]int, error) {
	refs := make(map[string][]int)
	var servers []svrinv.Server

	if cfg.FileDriven {
		for _, entry := range cfg.Servers {
			srv, err := svrinv.Resolve(entry.Endpoint, bootpsPort)
			if err != nil {
				return nil, nil, err
			}
			idx := len(servers)
			servers = append(servers, srv)
			for _, ifName := range entry.Interfaces {
				refs[ifName] = append(refs[ifName], idx)
			}
		}
	} else {
		for _, endpoint := range cfg.CLIServers {
			srv, err := svrinv.Resolve(endpoint, bootpsPort)
			if err != nil {
				return nil, nil, err
			}
			servers = append(servers, srv)
		}
		allIdx := make([]int, len(servers))
		for i := range allIdx {
			allIdx[i] = i
		}
		for _, ifName := range cfg.Interfaces {
			refs[ifName] = allIdx
		}
	}

	if len(servers) == 0 {
		return nil, nil, relayerr.New(relayerr.Configuration, "main.buildServerInventory", fmt.Errorf("no servers resolved"))
	}
	return svrinv.NewInventory(servers), refs, nil
}

// buildInterfaceInventory opens a raw/UDP socket pair per configured
// interface, applying any bind_ip override, and wires each interface's
// ServerRefs from the server-resolution pass above.
func buildInterfaceInventory(cfg *config.Config, bootpsPort uint16, refs map[string][]int) (*ifinv.Inventory, error) {
	bindIPs := make(map[string]net.IP, len(cfg.Binds))
	for _, b := range cfg.Binds {
		bindIPs[b.Interface] = b.IP
	}

	names := cfg.Interfaces
	if cfg.FileDriven {
		names = names[:0]
		for name := range refs {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, relayerr.New(relayerr.Configuration, "main.buildInterfaceInventory", fmt.Errorf("no interfaces found to listen. exiting"))
	}

	var ifaces []*ifinv.Interface
	for i, name := range names {
		netIf, err := net.InterfaceByName(name)
		if err != nil {
			return nil, relayerr.New(relayerr.Configuration, "main.buildInterfaceInventory", fmt.Errorf("interface %s: %w", name, err))
		}
		iface, err := ifinv.Open(netIf, i, ifinv.OpenParams{BootpsPort: bootpsPort, BindIP: bindIPs[name]})
		if err != nil {
			return nil, err
		}
		iface.ServerRefs = refs[name]
		ifaces = append(ifaces, iface)
	}
	return ifinv.NewInventory(ifaces), nil
}

func buildPluginChain(cfg *config.Config) (*plugin.Chain, error) {
	var entries []plugin.Entry
	for _, sec := range cfg.Plugins {
		factory, ok := plugin.Lookup(sec.Name)
		if !ok {
			return nil, relayerr.New(relayerr.Resource, "main.buildPluginChain", fmt.Errorf("unknown plugin %q", sec.Name))
		}
		entries = append(entries, plugin.Entry{Plugin: factory(), Opts: sec.Options})
	}
	return plugin.NewChain(entries)
}

func writePIDFile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating pid directory %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

func removePIDFile(path string) {
	os.Remove(path)
}

func exitCodeOf(err error) int {
	var relErr *relayerr.Error
	if errors.As(err, &relErr) {
		return relErr.Kind.ExitCode()
	}
	return 1
}
