package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseFlagsISCMode(t *testing.T) {
	cfg, err := ParseFlags([]string{"-A", "576", "-c", "8", "-i", "eth0", "-i", "eth1", "10.0.0.1", "10.0.0.2:6700"})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if cfg.Options.MaxPacketSize != 576 {
		t.Errorf("MaxPacketSize = %d, want 576", cfg.Options.MaxPacketSize)
	}
	if cfg.Options.MaxHops != 8 {
		t.Errorf("MaxHops = %d, want 8", cfg.Options.MaxHops)
	}
	if len(cfg.Interfaces) != 2 {
		t.Fatalf("Interfaces = %v, want 2 entries", cfg.Interfaces)
	}
	if len(cfg.CLIServers) != 2 {
		t.Fatalf("CLIServers = %v, want 2 entries", cfg.CLIServers)
	}
}

func TestParseFlagsRequiresInterface(t *testing.T) {
	if _, err := ParseFlags([]string{"10.0.0.1"}); err == nil {
		t.Fatal("expected error with no -i interface")
	}
}

func TestParseFlagsRequiresServer(t *testing.T) {
	if _, err := ParseFlags([]string{"-i", "eth0"}); err == nil {
		t.Fatal("expected error with no trailing server")
	}
}

func TestParseFlagsRejectsBadPacketSize(t *testing.T) {
	if _, err := ParseFlags([]string{"-A", "10", "-i", "eth0", "10.0.0.1"}); err == nil {
		t.Fatal("expected error for out-of-range packet size")
	}
}

func TestParseFlagsFileModeRejectsMixedFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dhcprelayd.conf")
	if err := os.WriteFile(path, []byte("[servers]\n10.0.0.1 eth0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseFlags([]string{"-f", path, "-i", "eth0"}); err == nil {
		t.Fatal("expected error mixing -f with -i")
	}
}

func TestParseFileServersAndOptions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dhcprelayd.conf")
	content := `# comment
[servers]
10.0.0.1 eth0 eth1
bind_ip=192.168.1.1 eth0
10.0.0.2:6700 eth1

[options]
max_packet_size=576
max_hops=6
rps_limit=500
plugin_path=/opt/dhcprelayd/plugins
queue_depth=128
metrics_addr=0.0.0.0:9200
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(cfg.Servers) != 2 {
		t.Fatalf("Servers = %+v, want 2 entries", cfg.Servers)
	}
	if cfg.Servers[0].Endpoint != "10.0.0.1" || len(cfg.Servers[0].Interfaces) != 2 {
		t.Errorf("Servers[0] = %+v", cfg.Servers[0])
	}
	if len(cfg.Binds) != 1 || cfg.Binds[0].Interface != "eth0" {
		t.Errorf("Binds = %+v", cfg.Binds)
	}
	if cfg.Options.MaxPacketSize != 576 || cfg.Options.MaxHops != 6 || cfg.Options.RPSLimit != 500 {
		t.Errorf("Options = %+v", cfg.Options)
	}
	if cfg.Options.PluginPath != "/opt/dhcprelayd/plugins/" {
		t.Errorf("PluginPath = %q, want trailing slash appended", cfg.Options.PluginPath)
	}
	if cfg.Options.QueueDepth != 128 {
		t.Errorf("QueueDepth = %d, want 128", cfg.Options.QueueDepth)
	}
	if cfg.Options.MetricsAddr != "0.0.0.0:9200" {
		t.Errorf("MetricsAddr = %q", cfg.Options.MetricsAddr)
	}
}

func TestParseFileIncludesServerListFile(t *testing.T) {
	dir := t.TempDir()
	serversPath := filepath.Join(dir, "servers.list")
	if err := os.WriteFile(serversPath, []byte("10.0.0.9 eth2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	mainPath := filepath.Join(dir, "dhcprelayd.conf")
	content := "[servers]\nfile=" + serversPath + "\n"
	if err := os.WriteFile(mainPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := ParseFile(mainPath)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(cfg.Servers) != 1 || cfg.Servers[0].Endpoint != "10.0.0.9" {
		t.Errorf("Servers = %+v", cfg.Servers)
	}
}

func TestParseFilePluginSection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dhcprelayd.conf")
	content := `[servers]
10.0.0.1 eth0

[relayinfo-plugin]
strict=1
trust_upstream=0

[options]
max_hops=3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(cfg.Plugins) != 1 || cfg.Plugins[0].Name != "relayinfo" {
		t.Fatalf("Plugins = %+v", cfg.Plugins)
	}
	if len(cfg.Plugins[0].Options) != 2 {
		t.Errorf("Plugins[0].Options = %v, want 2 lines", cfg.Plugins[0].Options)
	}
	if cfg.Options.MaxHops != 3 {
		t.Errorf("MaxHops = %d, want 3", cfg.Options.MaxHops)
	}
}

func TestParseFileRejectsUnknownSection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dhcprelayd.conf")
	if err := os.WriteFile(path, []byte("[bogus]\nfoo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseFile(path); err == nil {
		t.Fatal("expected error for unknown section name")
	}
}

func TestParseFileRejectsUnknownOption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dhcprelayd.conf")
	content := "[servers]\n10.0.0.1 eth0\n\n[options]\nbogus_option=1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseFile(path); err == nil {
		t.Fatal("expected error for unknown option key")
	}
}

func TestParseFileRejectsNoServers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dhcprelayd.conf")
	if err := os.WriteFile(path, []byte("[options]\nmax_hops=4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseFile(path); err == nil {
		t.Fatal("expected error when no servers are configured")
	}
}
