package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Capsule represents a Gemini server found on the local network
type Capsule struct {
	// Instance is the advertised service instance name (e.g., "gemd on laptop")
	Instance string

	// Hostname is the mDNS hostname (e.g., "laptop.local.")
	Hostname string

	// IP is the preferred address, IPv4 when available
	IP string

	// Port is the Gemini port (typically 1965)
	Port int

	// Metadata contains the TXT record data (e.g., "path=/", "server=gemd")
	Metadata map[string]string

	// DiscoveredAt is when the capsule was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the capsule
func (c *Capsule) String() string {
	return fmt.Sprintf("%s (%s) at %s", c.Instance, c.Hostname, net.JoinHostPort(c.IP, strconv.Itoa(c.Port)))
}

// URL returns the gemini:// URL of the capsule root, honouring an advertised path
func (c *Capsule) URL() string {
	path := c.GetMetadata("path")
	if path == "" {
		path = "/"
	}
	host := net.JoinHostPort(c.IP, strconv.Itoa(c.Port))
	if c.Port == DefaultPort {
		host = c.IP
		if ip := net.ParseIP(c.IP); ip != nil && ip.To4() == nil {
			host = "[" + c.IP + "]"
		}
	}
	return "gemini://" + host + path
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (c *Capsule) GetMetadata(key string) string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata[key]
}
