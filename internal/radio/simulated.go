package radio

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/logging"
)

var (
	// DefaultSimulatedAPIP is the access point address the simulated radio reports
	DefaultSimulatedAPIP = netip.MustParseAddr("192.168.4.1")
	// DefaultSimulatedLocalIP is the DHCP lease the simulated radio hands out
	DefaultSimulatedLocalIP = netip.MustParseAddr("192.168.1.50")
)

// AccessPoint is a network the simulated radio can see and join
type AccessPoint struct {
	Network
	Password string
}

// Simulated is an in-memory radio. Joins succeed when the network is in range
// and the password matches, so connection sequences can be scripted without
// hardware. It is safe for concurrent use.
type Simulated struct {
	mu sync.Mutex

	mode     Mode
	status   Status
	networks []AccessPoint
	stalled  map[string]bool

	connectedSSID string
	localIP       netip.Addr
	staticIP      *StaticIP

	apName     string
	apPassword string
	apUp       bool
	apIP       netip.Addr

	joins []string

	// ConfigErr, when set, is returned by Config
	ConfigErr error
	// SoftAPErr, when set, is returned by SoftAP
	SoftAPErr error
	// ScanErr, when set, is returned by Scan
	ScanErr error
}

// NewSimulated creates a simulated radio with the given networks in range
func NewSimulated(networks ...AccessPoint) *Simulated {
	return &Simulated{
		mode:     ModeOff,
		status:   StatusDisconnected,
		networks: append([]AccessPoint(nil), networks...),
		stalled:  make(map[string]bool),
		apIP:     DefaultSimulatedAPIP,
	}
}

// ParseAccessPoints parses a comma-separated list of ssid[:password[:rssi]]
// entries, as accepted by the run command's --simulate-networks flag.
// A network with a password is reported as WPA2, one without as open.
func ParseAccessPoints(list string) ([]AccessPoint, error) {
	var aps []AccessPoint
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.SplitN(entry, ":", 3)
		ap := AccessPoint{Network: Network{SSID: parts[0], RSSI: -50}}
		if ap.SSID == "" {
			return nil, fmt.Errorf("empty SSID in %q", entry)
		}
		if len(parts) > 1 {
			ap.Password = parts[1]
		}
		if len(parts) > 2 {
			rssi, err := strconv.Atoi(parts[2])
			if err != nil {
				return nil, fmt.Errorf("invalid RSSI in %q: %w", entry, err)
			}
			ap.RSSI = rssi
		}
		if ap.Password != "" {
			ap.Encryption = EncryptionWPA2
		}
		aps = append(aps, ap)
	}
	return aps, nil
}

// Mode implements Driver
func (s *Simulated) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode implements Driver. Leaving a mode with an access point tears it down.
func (s *Simulated) SetMode(mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !mode.HasAP() {
		s.apUp = false
	}
	if mode == ModeAP || mode == ModeOff {
		s.dropLink()
	}
	s.mode = mode
	return nil
}

// Begin implements Driver
func (s *Simulated) Begin(ssid, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != ModeStation && s.mode != ModeAPStation {
		return errors.New("station interface not enabled")
	}

	s.joins = append(s.joins, ssid)
	s.dropLink()

	if s.stalled[ssid] {
		s.status = StatusIdle
		return nil
	}

	ap, ok := s.lookup(ssid)
	switch {
	case !ok:
		s.status = StatusNoSSID
	case ap.Password != "" && ap.Password != password:
		s.status = StatusConnectFailed
	default:
		s.status = StatusConnected
		s.connectedSSID = ssid
		s.localIP = DefaultSimulatedLocalIP
		if s.staticIP != nil {
			s.localIP = s.staticIP.IP
		}
	}

	logging.Debug("Simulated join",
		zap.String("ssid", ssid),
		zap.Stringer("status", s.status),
	)
	return nil
}

// WaitForConnectResult implements Driver. A stalled join only resolves when
// ctx is done.
func (s *Simulated) WaitForConnectResult(ctx context.Context) Status {
	s.mu.Lock()
	status := s.status
	s.mu.Unlock()

	if status != StatusIdle {
		return status
	}

	<-ctx.Done()
	return s.Status()
}

// Status implements Driver
func (s *Simulated) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Disconnect implements Driver
func (s *Simulated) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLink()
	return nil
}

// Config implements Driver
func (s *Simulated) Config(ip StaticIP) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ConfigErr != nil {
		return s.ConfigErr
	}
	if !ip.IP.Is4() {
		return fmt.Errorf("static address must be IPv4: %s", ip.IP)
	}
	s.staticIP = &ip
	return nil
}

// LocalIP implements Driver
func (s *Simulated) LocalIP() netip.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localIP
}

// SoftAP implements Driver
func (s *Simulated) SoftAP(name, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SoftAPErr != nil {
		return s.SoftAPErr
	}
	if !s.mode.HasAP() {
		return errors.New("access point interface not enabled")
	}
	s.apName = name
	s.apPassword = password
	s.apUp = true
	return nil
}

// SoftAPDisconnect implements Driver
func (s *Simulated) SoftAPDisconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apUp = false
	return nil
}

// SoftAPIP implements Driver
func (s *Simulated) SoftAPIP() netip.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apIP
}

// Scan implements Driver
func (s *Simulated) Scan(ctx context.Context) ([]Network, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ScanErr != nil {
		return nil, s.ScanErr
	}
	networks := make([]Network, 0, len(s.networks))
	for _, ap := range s.networks {
		networks = append(networks, ap.Network)
	}
	return networks, nil
}

// AddNetwork brings a network into range, replacing one with the same SSID
func (s *Simulated) AddNetwork(ap AccessPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.networks {
		if s.networks[i].SSID == ap.SSID {
			s.networks[i] = ap
			return
		}
	}
	s.networks = append(s.networks, ap)
}

// RemoveNetwork takes a network out of range. A station joined to it loses
// its link.
func (s *Simulated) RemoveNetwork(ssid string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.networks {
		if s.networks[i].SSID == ssid {
			s.networks = append(s.networks[:i], s.networks[i+1:]...)
			break
		}
	}
	if s.connectedSSID == ssid {
		s.dropLink()
	}
}

// Stall makes joins to ssid hang until the caller's wait times out
func (s *Simulated) Stall(ssid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stalled[ssid] = true
}

// DropLink simulates losing the station link without any API call
func (s *Simulated) DropLink() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLink()
}

// Joins returns the SSIDs passed to Begin, in order
func (s *Simulated) Joins() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.joins...)
}

// ResetJoins forgets recorded joins
func (s *Simulated) ResetJoins() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joins = nil
}

// ConnectedSSID returns the network the station is joined to, if any
func (s *Simulated) ConnectedSSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectedSSID
}

// AccessPointState reports the hosted access point: its name, its password
// (empty for an open network) and whether it is up.
func (s *Simulated) AccessPointState() (name, password string, up bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apName, s.apPassword, s.apUp
}

// StaticConfig returns the last static IP configuration applied, if any
func (s *Simulated) StaticConfig() (StaticIP, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staticIP == nil {
		return StaticIP{}, false
	}
	return *s.staticIP, true
}

func (s *Simulated) lookup(ssid string) (AccessPoint, bool) {
	for _, ap := range s.networks {
		if ap.SSID == ssid {
			return ap, true
		}
	}
	return AccessPoint{}, false
}

// dropLink must be called with mu held
func (s *Simulated) dropLink() {
	s.status = StatusDisconnected
	s.connectedSSID = ""
	s.localIP = netip.Addr{}
}
