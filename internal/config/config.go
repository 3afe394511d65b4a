// Package config implements the relay's two configuration entry points:
// ISC-compatible CLI flags and a hand-rolled INI-like config file. The
// file grammar below is not TOML/YAML/any format a library in the
// example pack parses, so this package hand-rolls it rather than force
// a third-party format onto a line syntax it was never designed for
// (see DESIGN.md).
package config

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/schmurfy/dhcprelayd/internal/relayerr"
	"github.com/schmurfy/dhcprelayd/pkg/dhcpv4"
)

// Defaults for options a config file or CLI invocation may omit.
const (
	DefaultMaxHops     = 4
	DefaultPluginPath  = "/usr/local/lib/dhcprelayd/plugins/"
	DefaultQueueDepth  = 256
	DefaultMetricsAddr = "127.0.0.1:9116"
)

// ServerEntry is one `[servers]` line naming a relay target and the
// interfaces that should forward client requests to it.
type ServerEntry struct {
	Endpoint   string
	Interfaces []string
}

// IPBinding is a `bind_ip=<ipv4> <iface>` directive: force the named
// interface's relay socket to bind to a specific local address rather
// than auto-detecting one (§3's IP-binding-map invariant).
type IPBinding struct {
	IP        net.IP
	Interface string
}

// PluginSection is a `[<name>-plugin]` block: the plugin name to
// resolve against the build-time registry, plus its raw option lines.
type PluginSection struct {
	Name    string
	Options []string
}

// Options holds the `[options]` section (file mode) or its CLI
// flag equivalents (ISC mode).
type Options struct {
	MaxPacketSize int
	MaxHops       int
	RPSLimit      int
	PluginPath    string
	QueueDepth    int
	MetricsAddr   string
	SyslogAddr    string // empty: syslog forwarding disabled
}

// Config is the fully parsed, not-yet-wired configuration: it names
// interfaces, servers, and plugins but does not open sockets or
// resolve hostnames. main.go is responsible for that wiring.
type Config struct {
	Options Options

	// File-driven mode.
	Servers []ServerEntry
	Binds   []IPBinding
	Plugins []PluginSection

	// ISC CLI mode: a flat interface list forwarding to every entry in
	// CLIServers (the ISC CLI has no per-interface server selection).
	Interfaces []string
	CLIServers []string

	Debug      bool
	PIDFile    string
	FileDriven bool
}

func defaultOptions() Options {
	return Options{
		MaxPacketSize: dhcpv4.DefaultPacketSize,
		MaxHops:       DefaultMaxHops,
		RPSLimit:      0,
		PluginPath:    DefaultPluginPath,
		QueueDepth:    DefaultQueueDepth,
		MetricsAddr:   DefaultMetricsAddr,
	}
}

// ParseFlags parses ISC-compatible CLI flags: `-A size -c hops -d -f
// config -i ifname -p pidfile <server> ...`. `-f` is mutually exclusive
// with `-A`/`-c`/`-i`; when present ParseFlags loads that file through
// ParseFile and returns its Config, carrying over `-d` and `-p`.
//
// The original ISC CLI also accepts `-x "<pcap filter>"`, compiled by
// libpcap and ANDed into the capture filter. This build has no pcap
// filter-expression compiler in its dependency set (internal/ifinv's
// classic BPF program is hand-assembled, not parsed from tcpdump
// syntax), so `-x` is not accepted rather than silently ignored or
// half-implemented; see DESIGN.md.
func ParseFlags(args []string) (*Config, error) {
	fs := flag.NewFlagSet("dhcprelayd", flag.ContinueOnError)
	packetSize := fs.Int("A", 0, "max dhcp packet size")
	maxHops := fs.Int("c", 0, "max relay hop count")
	debug := fs.Bool("d", false, "run in foreground with debug logging")
	configFile := fs.String("f", "", "config file (mutually exclusive with -A/-c/-i)")
	ifaceFlag := multiFlag{}
	fs.Var(&ifaceFlag, "i", "interface to listen on (repeatable)")
	pidFile := fs.String("p", "", "pid file path")

	if err := fs.Parse(args); err != nil {
		return nil, relayerr.New(relayerr.Configuration, "config.ParseFlags", err)
	}

	cfg := &Config{Options: defaultOptions(), Debug: *debug, PIDFile: *pidFile}

	if *configFile != "" {
		if *packetSize != 0 || *maxHops != 0 || len(ifaceFlag) != 0 {
			return nil, relayerr.New(relayerr.Configuration, "config.ParseFlags",
				fmt.Errorf("either config file or command line options allowed, not both"))
		}
		fileCfg, err := ParseFile(*configFile)
		if err != nil {
			return nil, err
		}
		fileCfg.Debug = cfg.Debug
		fileCfg.PIDFile = cfg.PIDFile
		return fileCfg, nil
	}

	if *packetSize != 0 {
		if *packetSize < dhcpv4.MinPacketSize || *packetSize > dhcpv4.MaxPacketSize {
			return nil, relayerr.New(relayerr.Configuration, "config.ParseFlags",
				fmt.Errorf("packet size %d out of range [%d, %d]", *packetSize, dhcpv4.MinPacketSize, dhcpv4.MaxPacketSize))
		}
		cfg.Options.MaxPacketSize = *packetSize
	}
	if *maxHops != 0 {
		if *maxHops < 1 || *maxHops > 16 {
			return nil, relayerr.New(relayerr.Configuration, "config.ParseFlags",
				fmt.Errorf("max hops %d out of range [1, 16]", *maxHops))
		}
		cfg.Options.MaxHops = *maxHops
	}

	cfg.Interfaces = []string(ifaceFlag)
	cfg.CLIServers = fs.Args()

	if len(cfg.Interfaces) == 0 {
		return nil, relayerr.New(relayerr.Configuration, "config.ParseFlags", fmt.Errorf("at least one -i interface is required"))
	}
	if len(cfg.CLIServers) == 0 {
		return nil, relayerr.New(relayerr.Configuration, "config.ParseFlags", fmt.Errorf("at least one trailing server argument is required"))
	}

	return cfg, nil
}

type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }
func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

type section int

const (
	sectionServers section = iota
	sectionOptions
	sectionPlugin
)

// ParseFile parses a file-driven config: `[servers]`, `[options]`, and
// `[<name>-plugin]` sections. A bare `file=<path>` line inside
// `[servers]` inlines another server list file.
func ParseFile(path string) (*Config, error) {
	cfg := &Config{Options: defaultOptions(), FileDriven: true}
	if err := parseFileInto(cfg, path); err != nil {
		return nil, err
	}
	if len(cfg.Servers) == 0 {
		return nil, relayerr.New(relayerr.Configuration, "config.ParseFile", fmt.Errorf("no servers configured"))
	}
	return cfg, nil
}

func parseFileInto(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return relayerr.New(relayerr.Configuration, "config.ParseFile", fmt.Errorf("opening %s: %w", path, err))
	}
	defer f.Close()

	sec := sectionServers
	var curPlugin *PluginSection
	line := 0

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line++
		raw := scanner.Text()
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}

		if strings.HasPrefix(raw, "[") {
			name := strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
			if name == raw[1:] {
				return relayerr.New(relayerr.Configuration, "config.ParseFile",
					fmt.Errorf("%s:%d: malformed section header", path, line))
			}
			switch strings.ToLower(name) {
			case "servers":
				sec = sectionServers
				curPlugin = nil
			case "options":
				sec = sectionOptions
				curPlugin = nil
			default:
				pluginName, ok := strings.CutSuffix(name, "-plugin")
				if !ok {
					return relayerr.New(relayerr.Configuration, "config.ParseFile",
						fmt.Errorf("%s:%d: unknown section %q", path, line, name))
				}
				sec = sectionPlugin
				cfg.Plugins = append(cfg.Plugins, PluginSection{Name: pluginName})
				curPlugin = &cfg.Plugins[len(cfg.Plugins)-1]
			}
			continue
		}

		switch sec {
		case sectionServers:
			if err := parseServersLine(cfg, path, line, raw); err != nil {
				return err
			}
		case sectionOptions:
			if err := parseOptionsLine(cfg, path, line, raw); err != nil {
				return err
			}
		case sectionPlugin:
			curPlugin.Options = append(curPlugin.Options, raw)
		}
	}
	if err := scanner.Err(); err != nil {
		return relayerr.New(relayerr.Configuration, "config.ParseFile", fmt.Errorf("reading %s: %w", path, err))
	}
	return nil
}

func parseServersLine(cfg *Config, path string, line int, raw string) error {
	eq := strings.Index(raw, "=")
	if eq < 0 {
		fields := strings.Fields(raw)
		if len(fields) < 2 {
			return relayerr.New(relayerr.Configuration, "config.ParseFile",
				fmt.Errorf("%s:%d: server line needs a server and at least one interface", path, line))
		}
		cfg.Servers = append(cfg.Servers, ServerEntry{Endpoint: fields[0], Interfaces: fields[1:]})
		return nil
	}

	key := strings.ToLower(strings.TrimSpace(raw[:eq]))
	val := strings.TrimSpace(raw[eq+1:])
	switch key {
	case "bind_ip":
		fields := strings.Fields(val)
		if len(fields) != 2 {
			return relayerr.New(relayerr.Configuration, "config.ParseFile",
				fmt.Errorf("%s:%d: bind_ip syntax error", path, line))
		}
		ip := net.ParseIP(fields[0]).To4()
		if ip == nil {
			return relayerr.New(relayerr.Configuration, "config.ParseFile",
				fmt.Errorf("%s:%d: bind_ip: %q is not a valid ipv4 address", path, line, fields[0]))
		}
		cfg.Binds = append(cfg.Binds, IPBinding{IP: ip, Interface: fields[1]})
	case "file":
		if err := parseFileInto(cfg, val); err != nil {
			return err
		}
	default:
		return relayerr.New(relayerr.Configuration, "config.ParseFile",
			fmt.Errorf("%s:%d: unknown directive in [servers] section: %s", path, line, key))
	}
	return nil
}

func parseOptionsLine(cfg *Config, path string, line int, raw string) error {
	eq := strings.Index(raw, "=")
	if eq < 0 {
		return relayerr.New(relayerr.Configuration, "config.ParseFile",
			fmt.Errorf("%s:%d: option line missing '='", path, line))
	}
	key := strings.ToLower(strings.TrimSpace(raw[:eq]))
	val := strings.TrimSpace(raw[eq+1:])

	switch key {
	case "max_packet_size":
		n, err := strconv.Atoi(val)
		if err != nil || n < dhcpv4.MinPacketSize || n > dhcpv4.MaxPacketSize {
			return relayerr.New(relayerr.Configuration, "config.ParseFile",
				fmt.Errorf("%s:%d: wrong packet size %q", path, line, val))
		}
		cfg.Options.MaxPacketSize = n
	case "max_hops":
		n, err := strconv.Atoi(val)
		if err != nil || n < 1 || n > 16 {
			return relayerr.New(relayerr.Configuration, "config.ParseFile",
				fmt.Errorf("%s:%d: wrong hops number %q", path, line, val))
		}
		cfg.Options.MaxHops = n
	case "rps_limit":
		n, err := strconv.Atoi(val)
		if err != nil {
			return relayerr.New(relayerr.Configuration, "config.ParseFile",
				fmt.Errorf("%s:%d: rps_limit number error", path, line))
		}
		cfg.Options.RPSLimit = n
	case "plugin_path":
		p := val
		if !strings.HasSuffix(p, "/") {
			p += "/"
		}
		cfg.Options.PluginPath = p
	case "queue_depth":
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return relayerr.New(relayerr.Configuration, "config.ParseFile",
				fmt.Errorf("%s:%d: wrong queue_depth %q", path, line, val))
		}
		cfg.Options.QueueDepth = n
	case "metrics_addr":
		cfg.Options.MetricsAddr = val
	case "syslog_addr":
		cfg.Options.SyslogAddr = val
	default:
		return relayerr.New(relayerr.Configuration, "config.ParseFile",
			fmt.Errorf("%s:%d: unknown option in [options] section: %s", path, line, key))
	}
	return nil
}
