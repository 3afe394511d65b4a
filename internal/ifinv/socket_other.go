//go:build !linux

package ifinv

import (
	"fmt"
	"net"
)

// listenBootps on non-Linux platforms binds a plain UDP socket without
// SO_BINDTODEVICE (unavailable outside Linux); §3 calls this "best
// effort elsewhere". Multiple interfaces sharing one host still each get
// their own socket bound to their own IP, which disambiguates traffic
// without the device-level bind.
func listenBootps(ifName string, addr net.IP, port uint16) (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: addr, Port: int(port)})
	if err != nil {
		return nil, fmt.Errorf("listen udp on %s (%s:%d): %w", ifName, addr, port, err)
	}
	return conn, nil
}
