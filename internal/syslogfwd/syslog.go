// Package syslogfwd mirrors relayerr-classified log events to a remote
// syslog collector in RFC 5424 format (§2a, ambient logging stack). It
// is a narrowed form of the teacher's multi-format, multi-sink SIEM
// forwarder: one format (RFC 5424), one sink (syslog over UDP/TCP), and
// severity derived from relayerr.Kind rather than an application event
// taxonomy.
package syslogfwd

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/schmurfy/dhcprelayd/internal/relayerr"
)

// Facility values (RFC 5424).
const (
	FacilityDaemon = 3
	FacilityLocal0 = 16
)

// Severity values (RFC 5424).
const (
	SeverityError   = 3
	SeverityWarning = 4
	SeverityNotice  = 5
)

// Config names the remote collector and envelope fields.
type Config struct {
	Address  string // host:port
	Protocol string // "udp" or "tcp"; default "udp"
	Facility int
	Tag      string
}

// Forwarder asynchronously mirrors messages to a syslog collector. A
// full queue drops the message rather than blocking the caller — this
// is best-effort observability, not a delivery guarantee.
type Forwarder struct {
	cfg      Config
	logger   *slog.Logger
	hostname string

	ch   chan entry
	done chan struct{}
	wg   sync.WaitGroup

	mu   sync.Mutex
	conn net.Conn
}

type entry struct {
	severity int
	ts       time.Time
	msg      string
}

// NewForwarder builds a Forwarder with defaults applied for any unset
// Config field.
func NewForwarder(cfg Config, logger *slog.Logger) *Forwarder {
	if cfg.Protocol == "" {
		cfg.Protocol = "udp"
	}
	if cfg.Facility == 0 {
		cfg.Facility = FacilityLocal0
	}
	if cfg.Tag == "" {
		cfg.Tag = "dhcprelayd"
	}
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "-"
	}
	return &Forwarder{
		cfg:      cfg,
		logger:   logger,
		hostname: hostname,
		ch:       make(chan entry, 256),
		done:     make(chan struct{}),
	}
}

// Start dials the collector and begins the background send loop.
func (f *Forwarder) Start() error {
	conn, err := net.DialTimeout(f.cfg.Protocol, f.cfg.Address, 5*time.Second)
	if err != nil {
		return relayerr.New(relayerr.Resource, "syslogfwd.Start", fmt.Errorf("dialing %s://%s: %w", f.cfg.Protocol, f.cfg.Address, err))
	}
	f.conn = conn

	f.wg.Add(1)
	go f.loop()
	return nil
}

// Stop drains pending sends and closes the collector connection.
func (f *Forwarder) Stop() {
	close(f.done)
	f.wg.Wait()
	f.mu.Lock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.mu.Unlock()
}

// Forward queues a relayerr-classified event for delivery. Fatal kinds
// map to ERR, RuntimePacket to WARNING, CaptureTransient to NOTICE.
func (f *Forwarder) Forward(kind relayerr.Kind, msg string) {
	select {
	case f.ch <- entry{severity: severityForKind(kind), ts: time.Now(), msg: msg}:
	default:
		f.logger.Debug("syslogfwd queue full, dropping message", "kind", kind.String())
	}
}

func severityForKind(k relayerr.Kind) int {
	switch {
	case k.Fatal():
		return SeverityError
	case k == relayerr.RuntimePacket:
		return SeverityWarning
	default:
		return SeverityNotice
	}
}

func (f *Forwarder) loop() {
	defer f.wg.Done()
	for {
		select {
		case e := <-f.ch:
			f.send(e)
		case <-f.done:
			for {
				select {
				case e := <-f.ch:
					f.send(e)
				default:
					return
				}
			}
		}
	}
}

func (f *Forwarder) send(e entry) {
	priority := f.cfg.Facility*8 + e.severity
	ts := e.ts.UTC().Format("2006-01-02T15:04:05.000Z")
	line := fmt.Sprintf("<%d>1 %s %s %s - - - %s\n", priority, ts, f.hostname, f.cfg.Tag, e.msg)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil {
		return
	}
	if _, err := f.conn.Write([]byte(line)); err != nil {
		f.logger.Debug("syslog write failed, reconnecting", "error", err)
		f.conn.Close()
		conn, dialErr := net.DialTimeout(f.cfg.Protocol, f.cfg.Address, 3*time.Second)
		if dialErr != nil {
			f.logger.Warn("syslog reconnect failed", "error", dialErr)
			f.conn = nil
			return
		}
		f.conn = conn
		f.conn.Write([]byte(line))
	}
}
