package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Service is a wsecho server found on the network.
type Service struct {
	// Instance is the advertised instance name (e.g., "wsecho")
	Instance string

	// Hostname is the mDNS hostname (e.g., "buildbox.local.")
	Hostname string

	// IP is the preferred address, IPv4 when one was announced
	IP string

	// Port is the WebSocket listener port
	Port int

	// Metadata contains the TXT record data
	// Common fields: "version=...", "tls=true", "path=/"
	Metadata map[string]string

	// DiscoveredAt is when the service was seen
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the service
func (s *Service) String() string {
	return fmt.Sprintf("%s (%s) at %s", s.Instance, s.Hostname, net.JoinHostPort(s.IP, strconv.Itoa(s.Port)))
}

// URL returns the WebSocket URL for the service. The scheme follows the
// "tls" TXT record and the path follows "path", defaulting to "/".
func (s *Service) URL() string {
	scheme := "ws"
	if s.GetMetadata("tls") == "true" {
		scheme = "wss"
	}
	path := s.GetMetadata("path")
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(s.IP, strconv.Itoa(s.Port)), path)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (s *Service) GetMetadata(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}
