package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Portal represents a captive portal discovered on the network
type Portal struct {
	// Instance is the mDNS service instance name
	Instance string

	// APName is the access point name the portal is serving (TXT "ap")
	APName string

	// Hostname is the mDNS hostname (e.g., "raspberrypi.local.")
	Hostname string

	// IP is the IPv4 address, or IPv6 when the portal has no IPv4 address
	IP string

	// Port is the HTTP port (typically 80)
	Port int

	// Version is the daemon version (TXT "version")
	Version string

	// Metadata contains all mDNS TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the portal was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the portal
func (p *Portal) String() string {
	return fmt.Sprintf("Portal %q (%s) at %s:%d", p.APName, p.Hostname, p.IP, p.Port)
}

// BaseURL returns the HTTP base URL for the portal
func (p *Portal) BaseURL() string {
	return "http://" + net.JoinHostPort(p.IP, strconv.Itoa(p.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (p *Portal) GetMetadata(key string) string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata[key]
}
