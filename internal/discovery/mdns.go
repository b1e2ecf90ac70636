package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type portals advertise
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for portal discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is the default HTTP port for portals
	DefaultPort = 80

	// TXT record keys
	TXTMarker  = "wifiportal"
	TXTAPName  = "ap"
	TXTVersion = "version"

	defaultInstance = "wifiportal"
)

// PortalTXT builds the TXT record a portal advertises
func PortalTXT(apName, version string) []string {
	txt := []string{TXTMarker + "=1", TXTAPName + "=" + apName}
	if version != "" {
		txt = append(txt, TXTVersion+"="+version)
	}
	return txt
}

// InstanceName returns the mDNS instance name for an access point
func InstanceName(apName string) string {
	if apName == "" {
		return defaultInstance
	}
	return apName
}

// Scanner handles mDNS portal discovery
type Scanner struct {
	// Timeout is the maximum time to wait for portal discovery
	Timeout time.Duration

	// Interfaces limits browsing to these interfaces (nil = all)
	Interfaces []net.Interface
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

func (s *Scanner) resolver() (*zeroconf.Resolver, error) {
	var opts []zeroconf.ClientOption
	if len(s.Interfaces) > 0 {
		opts = append(opts, zeroconf.SelectIfaces(s.Interfaces))
	}
	resolver, err := zeroconf.NewResolver(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}
	return resolver, nil
}

// ScanForPortals discovers all portals on the local network. It returns
// when the timeout expires or ctx is done.
func (s *Scanner) ScanForPortals(ctx context.Context) ([]*Portal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := s.resolver()
	if err != nil {
		return nil, err
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var mu sync.Mutex
	portals := make([]*Portal, 0)
	seen := make(map[string]bool)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entries {
			portal := parseServiceEntry(entry)
			if portal == nil {
				continue
			}
			key := portal.Instance + "|" + portal.IP
			mu.Lock()
			if !seen[key] {
				seen[key] = true
				portals = append(portals, portal)
			}
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	// The resolver closes entries once browsing stops
	select {
	case <-done:
	case <-time.After(time.Second):
	}

	mu.Lock()
	defer mu.Unlock()
	return append([]*Portal(nil), portals...), nil
}

// WaitForPortal waits for a portal advertising the named access point in
// its TXT record. It gives up after the scanner timeout.
func (s *Scanner) WaitForPortal(ctx context.Context, apName string) (*Portal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := s.resolver()
	if err != nil {
		return nil, err
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	if portal := awaitPortal(ctx, entries, apName); portal != nil {
		return portal, nil
	}
	return nil, fmt.Errorf("portal %q not found within %s", apName, s.Timeout)
}

// awaitPortal reads entries until one is a portal for apName. It returns nil
// when ctx is done or entries is closed first.
func awaitPortal(ctx context.Context, entries <-chan *zeroconf.ServiceEntry, apName string) *Portal {
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return nil
			}
			if portal := parseServiceEntry(entry); portal != nil && portal.APName == apName {
				return portal
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// parseServiceEntry converts a zeroconf service entry to a Portal.
// Returns nil if the entry does not carry the portal TXT marker.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Portal {
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		// TXT records are in "key=value" format
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}
	if metadata[TXTMarker] != "1" {
		return nil
	}

	// Prefer IPv4
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	return &Portal{
		Instance:     entry.Instance,
		APName:       metadata[TXTAPName],
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Version:      metadata[TXTVersion],
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
