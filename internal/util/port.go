package util

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	MinPort = 1
	MaxPort = 65535
)

// ValidatePort checks if port is in valid range (1-65535).
func ValidatePort(port int) error {
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("port %d out of range (must be %d-%d)", port, MinPort, MaxPort)
	}
	return nil
}

// ParsePortOnlyAddr parses an address of the form ":<port>".
func ParsePortOnlyAddr(addr string) (int, error) {
	if !strings.HasPrefix(addr, ":") {
		return 0, fmt.Errorf("address must start with ':' (e.g. :8080)")
	}
	port, err := strconv.Atoi(addr[1:])
	if err != nil {
		return 0, fmt.Errorf("port must be a number")
	}
	if err := ValidatePort(port); err != nil {
		return 0, err
	}
	return port, nil
}
