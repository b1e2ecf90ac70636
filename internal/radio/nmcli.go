package radio

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/logging"
)

const (
	// DefaultInterface is the wireless interface the nmcli driver manages
	DefaultInterface = "wlan0"

	// APConnectionName is the NetworkManager profile used for the portal access point
	APConnectionName = "wifiportal-ap"

	// joinWaitSeconds bounds how long nmcli itself waits for activation
	joinWaitSeconds = 30
)

// Runner executes a command and returns its standard output
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err,
				strings.TrimSpace(string(exitErr.Stderr)))
		}
		return out, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

// NMCLI drives a Linux wireless interface through NetworkManager's nmcli.
//
// Joins run in the background: Begin starts "nmcli device wifi connect" and
// WaitForConnectResult waits for it to finish. The access point is a shared
// (NAT + DHCP) NetworkManager profile, so SoftAPIP is whatever address
// NetworkManager assigns to the interface, normally 10.42.0.1.
type NMCLI struct {
	Interface string
	Run       Runner

	mu       sync.Mutex
	mode     Mode
	pending  chan error
	cancel   context.CancelFunc
	staticIP *StaticIP
}

// NewNMCLI creates a driver for the given interface
func NewNMCLI(iface string) *NMCLI {
	if iface == "" {
		iface = DefaultInterface
	}
	return &NMCLI{
		Interface: iface,
		Run:       ExecRunner,
		mode:      ModeStation,
	}
}

func (n *NMCLI) nmcli(ctx context.Context, args ...string) ([]byte, error) {
	logging.Debug("nmcli", zap.Strings("args", redact(args)))
	return n.Run(ctx, "nmcli", args...)
}

// Mode implements Driver
func (n *NMCLI) Mode() Mode {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.mode
}

// SetMode implements Driver. NetworkManager cannot host an access point and
// a station link on one interface, so ModeAPStation behaves like ModeAP.
func (n *NMCLI) SetMode(mode Mode) error {
	n.mu.Lock()
	prev := n.mode
	n.mode = mode
	n.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if prev.HasAP() && !mode.HasAP() {
		if err := n.SoftAPDisconnect(); err != nil {
			return err
		}
	}

	switch mode {
	case ModeOff:
		_, err := n.nmcli(ctx, "radio", "wifi", "off")
		return err
	case ModeAP, ModeAPStation:
		n.abortJoin()
		_, _ = n.nmcli(ctx, "device", "disconnect", n.Interface)
	}
	if prev == ModeOff {
		_, err := n.nmcli(ctx, "radio", "wifi", "on")
		return err
	}
	return nil
}

// Begin implements Driver
func (n *NMCLI) Begin(ssid, password string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.cancel != nil {
		n.cancel()
	}

	args := []string{"--wait", strconv.Itoa(joinWaitSeconds), "device", "wifi", "connect", ssid}
	if password != "" {
		args = append(args, "password", password)
	}
	args = append(args, "ifname", n.Interface)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	n.pending = done
	n.cancel = cancel
	static := n.staticIP

	go func() {
		if static != nil {
			// Applies to the profile left by a previous join; a first join
			// starts on DHCP and picks the static address up on the next one.
			_, _ = n.nmcli(ctx, staticArgs(ssid, *static)...)
		}
		_, err := n.nmcli(ctx, args...)
		done <- err
	}()
	return nil
}

// WaitForConnectResult implements Driver
func (n *NMCLI) WaitForConnectResult(ctx context.Context) Status {
	n.mu.Lock()
	pending := n.pending
	n.mu.Unlock()

	if pending == nil {
		return n.Status()
	}

	select {
	case err := <-pending:
		n.mu.Lock()
		if n.pending == pending {
			n.pending = nil
			n.cancel = nil
		}
		n.mu.Unlock()
		if err != nil {
			logging.Debug("nmcli join failed", zap.Error(err))
			if strings.Contains(err.Error(), "No network with SSID") {
				return StatusNoSSID
			}
			return StatusConnectFailed
		}
		return n.Status()
	case <-ctx.Done():
		n.abortJoin()
		return StatusIdle
	}
}

// Status implements Driver. While hosting the access point the interface is
// "connected" to the AP profile, which is not a station link.
func (n *NMCLI) Status() Status {
	if n.Mode() == ModeAP {
		return StatusDisconnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := n.nmcli(ctx, "-g", "GENERAL.STATE", "device", "show", n.Interface)
	if err != nil {
		return StatusDisconnected
	}
	return parseDeviceState(string(out))
}

// Disconnect implements Driver
func (n *NMCLI) Disconnect() error {
	n.abortJoin()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := n.nmcli(ctx, "device", "disconnect", n.Interface)
	return err
}

// Config implements Driver
func (n *NMCLI) Config(ip StaticIP) error {
	if !ip.IP.Is4() || !ip.Gateway.Is4() {
		return fmt.Errorf("static address and gateway must be IPv4")
	}
	if _, err := prefixLength(ip.Subnet); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.staticIP = &ip
	return nil
}

// LocalIP implements Driver
func (n *NMCLI) LocalIP() netip.Addr {
	if n.Mode().HasAP() {
		return netip.Addr{}
	}
	return n.interfaceAddr()
}

// SoftAP implements Driver
func (n *NMCLI) SoftAP(name, password string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, _ = n.nmcli(ctx, "connection", "delete", APConnectionName)

	args := []string{
		"connection", "add", "type", "wifi",
		"ifname", n.Interface,
		"con-name", APConnectionName,
		"autoconnect", "no",
		"ssid", name,
		"802-11-wireless.mode", "ap",
		"ipv4.method", "shared",
	}
	if password != "" {
		args = append(args, "wifi-sec.key-mgmt", "wpa-psk", "wifi-sec.psk", password)
	}
	if _, err := n.nmcli(ctx, args...); err != nil {
		return fmt.Errorf("failed to create access point profile: %w", err)
	}
	if _, err := n.nmcli(ctx, "connection", "up", APConnectionName); err != nil {
		return fmt.Errorf("failed to start access point: %w", err)
	}
	return nil
}

// SoftAPDisconnect implements Driver
func (n *NMCLI) SoftAPDisconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := n.nmcli(ctx, "connection", "down", APConnectionName); err != nil {
		logging.Debug("Access point profile was not active", zap.Error(err))
	}
	_, err := n.nmcli(ctx, "connection", "delete", APConnectionName)
	return err
}

// SoftAPIP implements Driver
func (n *NMCLI) SoftAPIP() netip.Addr {
	return n.interfaceAddr()
}

// Scan implements Driver
func (n *NMCLI) Scan(ctx context.Context) ([]Network, error) {
	out, err := n.nmcli(ctx, "-t", "-f", "SSID,SIGNAL,SECURITY",
		"device", "wifi", "list", "--rescan", "yes", "ifname", n.Interface)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	return parseScan(string(out)), nil
}

func (n *NMCLI) abortJoin() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		n.cancel()
	}
	n.cancel = nil
	n.pending = nil
}

func (n *NMCLI) interfaceAddr() netip.Addr {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := n.nmcli(ctx, "-g", "IP4.ADDRESS", "device", "show", n.Interface)
	if err != nil {
		return netip.Addr{}
	}
	// Multiple addresses are separated by " | "
	first, _, _ := strings.Cut(strings.TrimSpace(string(out)), " | ")
	prefix, err := netip.ParsePrefix(first)
	if err != nil {
		return netip.Addr{}
	}
	return prefix.Addr()
}

// parseDeviceState maps "100 (connected)" style output to a Status
func parseDeviceState(out string) Status {
	code, _, _ := strings.Cut(strings.TrimSpace(out), " ")
	state, err := strconv.Atoi(code)
	if err != nil {
		return StatusDisconnected
	}

	// NMDeviceState values
	switch {
	case state == 100:
		return StatusConnected
	case state >= 40 && state < 100:
		return StatusIdle
	case state == 120:
		return StatusConnectFailed
	default:
		return StatusDisconnected
	}
}

// parseScan parses terse "SSID:SIGNAL:SECURITY" lines. Colons inside fields
// are escaped as "\:". Hidden networks (empty SSID) are skipped, and for
// duplicate SSIDs the strongest signal wins.
func parseScan(out string) []Network {
	var networks []Network
	seen := make(map[string]int)

	for _, line := range strings.Split(out, "\n") {
		fields := splitTerse(strings.TrimRight(line, "\r"))
		if len(fields) < 3 || fields[0] == "" {
			continue
		}

		signal, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		nw := Network{
			SSID:       fields[0],
			RSSI:       signalToRSSI(signal),
			Encryption: parseSecurity(fields[2]),
		}

		if i, ok := seen[nw.SSID]; ok {
			if nw.RSSI > networks[i].RSSI {
				networks[i] = nw
			}
			continue
		}
		seen[nw.SSID] = len(networks)
		networks = append(networks, nw)
	}
	return networks
}

func splitTerse(line string) []string {
	var fields []string
	var cur strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(fields, cur.String())
}

// signalToRSSI converts NetworkManager's 0-100 signal quality to dBm
func signalToRSSI(signal int) int {
	if signal < 0 {
		signal = 0
	}
	if signal > 100 {
		signal = 100
	}
	return signal/2 - 100
}

func parseSecurity(sec string) Encryption {
	sec = strings.TrimSpace(sec)
	switch {
	case sec == "" || sec == "--":
		return EncryptionOpen
	case strings.Contains(sec, "802.1X"):
		return EncryptionWPA2Enterprise
	case strings.Contains(sec, "WPA3") && strings.Contains(sec, "WPA2"):
		return EncryptionWPA2WPA3
	case strings.Contains(sec, "WPA3"):
		return EncryptionWPA3
	case strings.Contains(sec, "WPA1") && strings.Contains(sec, "WPA2"):
		return EncryptionWPAWPA2
	case strings.Contains(sec, "WPA2"):
		return EncryptionWPA2
	case strings.Contains(sec, "WPA"):
		return EncryptionWPA
	case strings.Contains(sec, "WEP"):
		return EncryptionWEP
	default:
		return EncryptionOpen
	}
}

func staticArgs(profile string, ip StaticIP) []string {
	bits, _ := prefixLength(ip.Subnet)
	args := []string{
		"connection", "modify", profile,
		"ipv4.method", "manual",
		"ipv4.addresses", netip.PrefixFrom(ip.IP, bits).String(),
		"ipv4.gateway", ip.Gateway.String(),
	}
	if ip.DNS.IsValid() {
		args = append(args, "ipv4.dns", ip.DNS.String())
	}
	return args
}

// prefixLength converts a dotted subnet mask to a prefix length
func prefixLength(mask netip.Addr) (int, error) {
	if !mask.Is4() {
		return 0, fmt.Errorf("subnet mask must be IPv4: %s", mask)
	}
	b := mask.As4()
	v := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	bits := 0
	for v&0x80000000 != 0 {
		bits++
		v <<= 1
	}
	if v != 0 {
		return 0, fmt.Errorf("subnet mask is not contiguous: %s", mask)
	}
	return bits, nil
}

// redact hides passwords and pre-shared keys from debug logs
func redact(args []string) []string {
	out := append([]string(nil), args...)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == "password" || out[i] == "wifi-sec.psk" {
			out[i+1] = "***"
		}
	}
	return out
}
