package syslogfwd

import (
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/schmurfy/dhcprelayd/internal/relayerr"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSeverityForKind(t *testing.T) {
	cases := []struct {
		kind relayerr.Kind
		want int
	}{
		{relayerr.Configuration, SeverityError},
		{relayerr.Resource, SeverityError},
		{relayerr.Memory, SeverityError},
		{relayerr.RuntimePacket, SeverityWarning},
		{relayerr.CaptureTransient, SeverityNotice},
	}
	for _, c := range cases {
		if got := severityForKind(c.kind); got != c.want {
			t.Errorf("severityForKind(%v) = %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestForwarderSendsRFC5424Envelope(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer pc.Close()

	f := NewForwarder(Config{Address: pc.LocalAddr().String(), Tag: "dhcprelayd"}, discardLogger())
	if err := f.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.Stop()

	f.Forward(relayerr.RuntimePacket, "hop limit reached on eth0")

	buf := make([]byte, 512)
	pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	line := string(buf[:n])

	wantPrefix := "<" + strconv.Itoa(FacilityLocal0*8+SeverityWarning) + ">1 "
	if !strings.HasPrefix(line, wantPrefix) {
		t.Errorf("line = %q, want prefix %q", line, wantPrefix)
	}
	if !strings.Contains(line, "dhcprelayd") {
		t.Errorf("line = %q, want tag dhcprelayd", line)
	}
	if !strings.Contains(line, "hop limit reached on eth0") {
		t.Errorf("line = %q, want message content", line)
	}
}

func TestForwarderDropsWhenQueueFull(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer pc.Close()

	f := NewForwarder(Config{Address: pc.LocalAddr().String()}, discardLogger())
	for i := 0; i < cap(f.ch); i++ {
		f.ch <- entry{severity: SeverityNotice, ts: time.Now(), msg: "x"}
	}

	done := make(chan struct{})
	go func() {
		f.Forward(relayerr.CaptureTransient, "overflow")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Forward blocked on a full queue")
	}
}
