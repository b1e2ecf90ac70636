package radio

import (
	"context"
	"errors"
	"net/netip"
	"reflect"
	"strings"
	"sync"
	"testing"
)

// fakeRunner records nmcli invocations and answers from a table keyed by the
// first arguments
type fakeRunner struct {
	mu        sync.Mutex
	calls     [][]string
	responses map[string]string
	failures  map[string]error
}

func (f *fakeRunner) run(_ context.Context, _ string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, args)
	key := strings.Join(args, " ")
	for prefix, err := range f.failures {
		if strings.Contains(key, prefix) {
			return nil, err
		}
	}
	for prefix, out := range f.responses {
		if strings.Contains(key, prefix) {
			return []byte(out), nil
		}
	}
	return nil, nil
}

func (f *fakeRunner) called(substr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if strings.Contains(strings.Join(c, " "), substr) {
			return true
		}
	}
	return false
}

func newFakeNMCLI() (*NMCLI, *fakeRunner) {
	f := &fakeRunner{responses: map[string]string{}, failures: map[string]error{}}
	n := NewNMCLI("wlan1")
	n.Run = f.run
	return n, f
}

func TestParseScan(t *testing.T) {
	out := strings.Join([]string{
		"HomeNet:80:WPA2",
		"Cafe:40:",
		"My\\:Colon:60:WPA1 WPA2",
		":90:WPA2",
		"HomeNet:100:WPA2",
		"Corp:70:WPA2 802.1X",
		"Modern:50:WPA3",
		"",
	}, "\n")

	got := parseScan(out)
	want := []Network{
		{SSID: "HomeNet", RSSI: -50, Encryption: EncryptionWPA2},
		{SSID: "Cafe", RSSI: -80, Encryption: EncryptionOpen},
		{SSID: "My:Colon", RSSI: -70, Encryption: EncryptionWPAWPA2},
		{SSID: "Corp", RSSI: -65, Encryption: EncryptionWPA2Enterprise},
		{SSID: "Modern", RSSI: -75, Encryption: EncryptionWPA3},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseScan() =\n%+v\nwant\n%+v", got, want)
	}
}

func TestParseDeviceState(t *testing.T) {
	tests := []struct {
		out  string
		want Status
	}{
		{"100 (connected)\n", StatusConnected},
		{"70 (connecting (getting IP configuration))", StatusIdle},
		{"30 (disconnected)", StatusDisconnected},
		{"120 (failed)", StatusConnectFailed},
		{"garbage", StatusDisconnected},
	}

	for _, tt := range tests {
		if got := parseDeviceState(tt.out); got != tt.want {
			t.Errorf("parseDeviceState(%q) = %v, want %v", tt.out, got, tt.want)
		}
	}
}

func TestPrefixLength(t *testing.T) {
	tests := []struct {
		mask    string
		want    int
		wantErr bool
	}{
		{"255.255.255.0", 24, false},
		{"255.255.0.0", 16, false},
		{"255.255.255.255", 32, false},
		{"255.0.255.0", 0, true},
	}

	for _, tt := range tests {
		got, err := prefixLength(netip.MustParseAddr(tt.mask))
		if (err != nil) != tt.wantErr {
			t.Errorf("prefixLength(%s) error = %v, wantErr %v", tt.mask, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("prefixLength(%s) = %d, want %d", tt.mask, got, tt.want)
		}
	}
}

func TestNMCLIJoin(t *testing.T) {
	n, f := newFakeNMCLI()
	f.responses["GENERAL.STATE"] = "100 (connected)"

	if err := n.Begin("HomeNet", "secret123"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if got := n.WaitForConnectResult(context.Background()); got != StatusConnected {
		t.Errorf("WaitForConnectResult() = %v, want connected", got)
	}
	if !f.called("device wifi connect HomeNet password secret123 ifname wlan1") {
		t.Errorf("connect not issued, calls = %v", f.calls)
	}
}

func TestNMCLIJoinNoSSID(t *testing.T) {
	n, f := newFakeNMCLI()
	f.failures["wifi connect"] = errors.New("Error: No network with SSID 'Gone' found.")

	_ = n.Begin("Gone", "")
	if got := n.WaitForConnectResult(context.Background()); got != StatusNoSSID {
		t.Errorf("WaitForConnectResult() = %v, want no-ssid", got)
	}
}

func TestNMCLISoftAP(t *testing.T) {
	tests := []struct {
		name     string
		password string
		secured  bool
	}{
		{"open", "", false},
		{"protected", "password1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, f := newFakeNMCLI()
			if err := n.SoftAP("Setup", tt.password); err != nil {
				t.Fatalf("SoftAP() error = %v", err)
			}
			if got := f.called("wifi-sec.psk " + tt.password); got != tt.secured {
				t.Errorf("psk configured = %v, want %v", got, tt.secured)
			}
			if !f.called("connection up " + APConnectionName) {
				t.Error("access point profile was not brought up")
			}
		})
	}
}

func TestNMCLISoftAPIP(t *testing.T) {
	n, f := newFakeNMCLI()
	f.responses["IP4.ADDRESS"] = "10.42.0.1/24 | 10.42.0.2/24\n"

	if got := n.SoftAPIP(); got != netip.MustParseAddr("10.42.0.1") {
		t.Errorf("SoftAPIP() = %v, want 10.42.0.1", got)
	}
}

func TestNMCLIScan(t *testing.T) {
	n, f := newFakeNMCLI()
	f.responses["wifi list"] = "HomeNet:80:WPA2\n"

	networks, err := n.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(networks) != 1 || networks[0].SSID != "HomeNet" {
		t.Errorf("Scan() = %+v", networks)
	}

	f.failures["wifi list"] = errors.New("device busy")
	if _, err := n.Scan(context.Background()); err == nil {
		t.Error("Scan() should surface runner errors")
	}
}

func TestRedact(t *testing.T) {
	got := redact([]string{"device", "wifi", "connect", "X", "password", "hunter22"})
	if got[5] != "***" {
		t.Errorf("redact() = %v", got)
	}
}
