//go:build linux

package ifinv

import (
	"fmt"
	"net"
	"os"
	"syscall"
)

// listenBootps opens a UDP socket bound to (addr, port) on the named
// interface, with SO_REUSEADDR, SO_BROADCAST, and (Linux-only)
// SO_BINDTODEVICE enabled, per §3's udp_socket invariant.
func listenBootps(ifName string, addr net.IP, port uint16) (*net.UDPConn, error) {
	s, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_DGRAM, syscall.IPPROTO_UDP)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	closeOnErr := true
	defer func() {
		if closeOnErr {
			syscall.Close(s)
		}
	}()

	if err := syscall.SetsockoptInt(s, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
		return nil, fmt.Errorf("SO_REUSEADDR: %w", err)
	}
	if err := syscall.SetsockoptInt(s, syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1); err != nil {
		return nil, fmt.Errorf("SO_BROADCAST: %w", err)
	}
	if err := syscall.SetsockoptString(s, syscall.SOL_SOCKET, syscall.SO_BINDTODEVICE, ifName); err != nil {
		return nil, fmt.Errorf("SO_BINDTODEVICE %s: %w", ifName, err)
	}

	lsa := &syscall.SockaddrInet4{Port: int(port)}
	copy(lsa.Addr[:], addr.To4())
	if err := syscall.Bind(s, lsa); err != nil {
		return nil, fmt.Errorf("bind %s:%d: %w", addr, port, err)
	}

	f := os.NewFile(uintptr(s), fmt.Sprintf("bootps-%s", ifName))
	defer f.Close()
	closeOnErr = false

	pc, err := net.FilePacketConn(f)
	if err != nil {
		return nil, fmt.Errorf("FilePacketConn: %w", err)
	}
	udpConn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, fmt.Errorf("unexpected packet conn type %T", pc)
	}
	return udpConn, nil
}
