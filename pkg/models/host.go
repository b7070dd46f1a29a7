package models

import (
	"fmt"
	"net"
	"os"
	"strings"
)

const maxPort = 65535

// HostIdentity identifies the process that reports errors. It is produced once at
// startup and handed to everything that builds new records.
type HostIdentity struct {
	HostName  string `json:"host_name"`
	IPAddress string `json:"ip_address"`
	Port      int    `json:"port"`
}

// NewHostIdentity returns a validated HostIdentity.
func NewHostIdentity(hostName, ipAddress string, port int) (HostIdentity, error) {
	h := HostIdentity{HostName: hostName, IPAddress: ipAddress, Port: port}
	if err := h.Validate(); err != nil {
		return HostIdentity{}, err
	}
	return h, nil
}

// IsZero reports whether the identity was never set.
func (h HostIdentity) IsZero() bool {
	return h == HostIdentity{}
}

// Validate checks the same rules applied to a record's host fields.
func (h HostIdentity) Validate() error {
	return validateHost(h.HostName, h.IPAddress, h.Port)
}

func validateHost(hostName, ipAddress string, port int) error {
	if strings.TrimSpace(hostName) == "" {
		return fmt.Errorf("%w: host name must not be blank", ErrInvalidArgument)
	}
	if strings.TrimSpace(ipAddress) == "" {
		return fmt.Errorf("%w: ip address must not be blank", ErrInvalidArgument)
	}
	if port < 0 || port > maxPort {
		return fmt.Errorf("%w: port must be between 0 and %d, got %d", ErrInvalidArgument, maxPort, port)
	}
	return nil
}

// DetectHostIdentity derives the identity from the operating system: the host name
// and the first non-loopback IPv4 address, or 127.0.0.1 when none is found.
func DetectHostIdentity(port int) (HostIdentity, error) {
	hostName, err := os.Hostname()
	if err != nil {
		return HostIdentity{}, fmt.Errorf("resolve host name: %w", err)
	}
	return NewHostIdentity(hostName, firstNonLoopbackIPv4(), port)
}

func firstNonLoopbackIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "127.0.0.1"
}
