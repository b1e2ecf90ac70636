package radio

import (
	"context"
	"fmt"
	"net/netip"
)

// Mode is the operating mode of the Wi-Fi interface
type Mode int

const (
	// ModeOff means the radio is idle
	ModeOff Mode = iota
	// ModeStation joins an existing network
	ModeStation
	// ModeAP hosts an access point
	ModeAP
	// ModeAPStation hosts an access point while joined to a network
	ModeAPStation
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeStation:
		return "station"
	case ModeAP:
		return "ap"
	case ModeAPStation:
		return "ap+station"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// HasAP reports whether an access point may be running in this mode
func (m Mode) HasAP() bool {
	return m == ModeAP || m == ModeAPStation
}

// Status is the station link state
type Status int

const (
	// StatusIdle means no join is in progress or the join has not resolved yet
	StatusIdle Status = iota
	// StatusNoSSID means the requested network is not in range
	StatusNoSSID
	// StatusConnected means the station holds an address on the network
	StatusConnected
	// StatusConnectFailed means the network rejected the join (usually a bad password)
	StatusConnectFailed
	// StatusDisconnected means the link is down
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusNoSSID:
		return "no-ssid"
	case StatusConnected:
		return "connected"
	case StatusConnectFailed:
		return "connect-failed"
	case StatusDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Encryption is the security type reported by a scan. The numeric values
// are part of the portal's /scan JSON.
type Encryption int

const (
	EncryptionOpen Encryption = iota
	EncryptionWEP
	EncryptionWPA
	EncryptionWPA2
	EncryptionWPAWPA2
	EncryptionWPA2Enterprise
	EncryptionWPA3
	EncryptionWPA2WPA3
)

func (e Encryption) String() string {
	switch e {
	case EncryptionOpen:
		return "open"
	case EncryptionWEP:
		return "WEP"
	case EncryptionWPA:
		return "WPA"
	case EncryptionWPA2:
		return "WPA2"
	case EncryptionWPAWPA2:
		return "WPA/WPA2"
	case EncryptionWPA2Enterprise:
		return "WPA2-Enterprise"
	case EncryptionWPA3:
		return "WPA3"
	case EncryptionWPA2WPA3:
		return "WPA2/WPA3"
	default:
		return fmt.Sprintf("encryption(%d)", int(e))
	}
}

// Network is one access point seen by a scan
type Network struct {
	SSID       string     `json:"ssid"`
	RSSI       int        `json:"rssi"`
	Encryption Encryption `json:"encryption"`
}

// StaticIP is a fixed IPv4 configuration for the station interface
type StaticIP struct {
	IP      netip.Addr
	Gateway netip.Addr
	Subnet  netip.Addr
	DNS     netip.Addr
}

// Driver is the radio the supervisor and the portal drive. Implementations
// are not required to be safe for concurrent use; callers serialize access.
type Driver interface {
	// Mode returns the current operating mode
	Mode() Mode
	// SetMode switches the operating mode
	SetMode(mode Mode) error

	// Begin starts joining a network and returns without waiting for the result
	Begin(ssid, password string) error
	// WaitForConnectResult blocks until the pending join resolves or ctx is
	// done, and returns the resulting status
	WaitForConnectResult(ctx context.Context) Status
	// Status returns the current station link state
	Status() Status
	// Disconnect drops the station link. Saved network configuration is kept.
	Disconnect() error
	// Config applies a static IPv4 configuration to subsequent joins
	Config(ip StaticIP) error
	// LocalIP returns the station address, or the zero Addr when not connected
	LocalIP() netip.Addr

	// SoftAP brings up an access point. An empty password creates an open one.
	SoftAP(name, password string) error
	// SoftAPDisconnect tears the access point down
	SoftAPDisconnect() error
	// SoftAPIP returns the access point's own address
	SoftAPIP() netip.Addr

	// Scan performs a synchronous scan for nearby networks
	Scan(ctx context.Context) ([]Network, error)
}
