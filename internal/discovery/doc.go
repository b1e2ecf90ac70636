// Package discovery finds captive portals on the local network over mDNS.
//
// While its portal is active, the daemon registers an "_http._tcp" service
// whose TXT record marks it as a portal:
//
//	wifiportal=1
//	ap=EasyWiFi setup
//	version=1.0.0
//
// The Scanner browses for "_http._tcp" services and keeps only entries
// carrying the wifiportal=1 marker. Other HTTP services on the segment
// (printers, NAS boxes) are ignored.
//
// # Usage Example
//
//	scanner := discovery.NewScanner()
//	portals, err := scanner.ScanForPortals(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, p := range portals {
//	    fmt.Printf("%s -> %s\n", p.APName, p.BaseURL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Portals must be on the same local network segment (usually: join the
// portal's access point first)
// - Firewall must allow mDNS (UDP port 5353)
//
// # Thread Safety
//
// A Scanner may be used from multiple goroutines. Each call runs its own
// resolver.
package discovery
