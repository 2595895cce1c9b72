package util

import (
	"net"
	"strings"
)

// NormalizeAddr returns addr trimmed, or fallback when addr is blank.
func NormalizeAddr(addr, fallback string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return fallback
	}
	return addr
}

// BindKey normalizes a listen address so ":1080" and "0.0.0.0:1080" compare
// equal. Addresses that do not parse are returned trimmed.
func BindKey(listen string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(listen))
	if err != nil {
		return strings.TrimSpace(listen)
	}
	return net.JoinHostPort(NormalizeAddr(host, "0.0.0.0"), port)
}
