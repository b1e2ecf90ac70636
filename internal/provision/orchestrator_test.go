package provision

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/muurk/wifiportal/internal/credentials"
	"github.com/muurk/wifiportal/internal/events"
	"github.com/muurk/wifiportal/internal/fault"
	"github.com/muurk/wifiportal/internal/portal"
	"github.com/muurk/wifiportal/internal/radio"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu          sync.Mutex
	connects    []events.ConnectEvent
	disconnects []events.DisconnectEvent
	saves       []events.SaveEvent
}

func (r *recorder) attach(n *events.Notifier) {
	n.Connect.Set(func(e events.ConnectEvent) {
		r.mu.Lock()
		r.connects = append(r.connects, e)
		r.mu.Unlock()
	})
	n.Disconnect.Set(func(e events.DisconnectEvent) {
		r.mu.Lock()
		r.disconnects = append(r.disconnects, e)
		r.mu.Unlock()
	})
	n.Save.Set(func(e events.SaveEvent) {
		r.mu.Lock()
		r.saves = append(r.saves, e)
		r.mu.Unlock()
	})
}

func (r *recorder) connectSSIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.connects {
		out = append(out, e.SSID)
	}
	return out
}

type fixture struct {
	orch     *Orchestrator
	storage  *credentials.MemStorage
	radio    *radio.Simulated
	clock    *testClock
	events   *recorder
	restarts atomic.Int32
}

// newFixture persists saved (most recent first) before the orchestrator is
// created, and puts aps in range of the simulated radio
func newFixture(t *testing.T, saved []credentials.Credential, aps ...radio.AccessPoint) *fixture {
	t.Helper()

	f := &fixture{
		storage: credentials.NewMemStorage(),
		radio:   radio.NewSimulated(aps...),
		clock:   &testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		events:  &recorder{},
	}
	if len(saved) > 0 {
		if err := f.storage.WriteFile(credentials.DefaultRecordName, credentials.EncodeRecords(saved)); err != nil {
			t.Fatal(err)
		}
	}

	f.orch = New(Options{
		Storage:   f.storage,
		Radio:     f.radio,
		Restarter: RestartFunc(func() { f.restarts.Add(1) }),
		Portal: portal.Options{
			HTTPAddr: "127.0.0.1:0",
			DNSAddr:  "127.0.0.1:0",
		},
	})
	f.orch.Now = f.clock.Now
	f.orch.Station().Now = f.clock.Now
	f.orch.Station().SetConnectTimeout(10 * time.Millisecond)
	f.orch.Portal().Now = f.clock.Now
	f.events.attach(f.orch.Notifier())

	t.Cleanup(f.orch.Portal().Stop)
	return f
}

func (f *fixture) begin(t *testing.T) {
	t.Helper()
	if err := f.orch.Begin(context.Background()); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
}

func ap(ssid, password string) radio.AccessPoint {
	return radio.AccessPoint{Network: radio.Network{SSID: ssid, RSSI: -50}, Password: password}
}

func cred(ssid, password string) credentials.Credential {
	return credentials.Credential{SSID: ssid, Password: password}
}

func TestBegin_StorageUnavailable(t *testing.T) {
	f := newFixture(t, nil, ap("Home", "secret123"))
	f.storage.MountErr = errors.New("flash not formatted")

	err := f.orch.Begin(context.Background())
	if !fault.Is(err, fault.StorageUnavailable) {
		t.Fatalf("Begin() error = %v, want StorageUnavailable", err)
	}
	if f.orch.Mode() != ModeHalted {
		t.Errorf("Mode() = %v, want halted", f.orch.Mode())
	}
	if f.orch.Status().Mode != ModeHalted {
		t.Errorf("Status().Mode = %v, want halted", f.orch.Status().Mode)
	}
	if len(f.radio.Joins()) != 0 || f.orch.Portal().IsActive() {
		t.Error("halted orchestrator touched the radio")
	}

	// Tick does nothing while halted
	f.orch.Tick(context.Background())
	if f.orch.Mode() != ModeHalted {
		t.Errorf("Mode() after Tick = %v", f.orch.Mode())
	}
}

func TestServe_StorageUnavailableIsPermanent(t *testing.T) {
	f := newFixture(t, nil)
	f.storage.MountErr = errors.New("flash not formatted")

	if err := f.orch.Serve(context.Background()); !errors.Is(err, suture.ErrDoNotRestart) {
		t.Errorf("Serve() error = %v, want ErrDoNotRestart", err)
	}
}

func TestBegin_NoCredentialsStartsPortal(t *testing.T) {
	f := newFixture(t, nil, ap("Home", "secret123"))
	f.begin(t)

	if f.orch.Mode() != ModeProvisioning {
		t.Fatalf("Mode() = %v, want provisioning", f.orch.Mode())
	}
	if !f.orch.Portal().IsActive() {
		t.Fatal("portal not active")
	}
	name, _, up := f.radio.AccessPointState()
	if !up || name != portal.DefaultAPName {
		t.Errorf("access point = %q up=%v, want %q up", name, up, portal.DefaultAPName)
	}
	if len(f.radio.Joins()) != 0 {
		t.Errorf("joins = %v, want none", f.radio.Joins())
	}

	st := f.orch.Status()
	if !st.PortalActive || st.Connected || st.Address != radio.DefaultSimulatedAPIP.String() {
		t.Errorf("Status() = %+v", st)
	}
}

func TestBegin_ConnectsToSavedNetwork(t *testing.T) {
	f := newFixture(t, []credentials.Credential{cred("Home", "secret123")}, ap("Home", "secret123"))
	f.begin(t)

	if f.orch.Mode() != ModeStationed {
		t.Fatalf("Mode() = %v, want stationed", f.orch.Mode())
	}
	if f.orch.Portal().IsActive() {
		t.Error("portal active while stationed")
	}
	f.events.mu.Lock()
	connects := append([]events.ConnectEvent(nil), f.events.connects...)
	f.events.mu.Unlock()
	want := []events.ConnectEvent{{SSID: "Home", Address: radio.DefaultSimulatedLocalIP.String()}}
	if !reflect.DeepEqual(connects, want) {
		t.Errorf("connect events = %v, want %v", connects, want)
	}
	if f.orch.CurrentSSID() != "Home" {
		t.Errorf("CurrentSSID() = %q", f.orch.CurrentSSID())
	}

	st := f.orch.Status()
	if st.Mode != ModeStationed || !st.Connected || st.SSID != "Home" {
		t.Errorf("Status() = %+v", st)
	}
}

func TestBegin_NoSavedNetworkInRange(t *testing.T) {
	f := newFixture(t, []credentials.Credential{cred("Home", "secret123"), cred("Office", "secret456")})
	f.begin(t)

	if f.orch.Mode() != ModeProvisioning || !f.orch.Portal().IsActive() {
		t.Fatalf("Mode() = %v active=%v, want provisioning with portal", f.orch.Mode(), f.orch.Portal().IsActive())
	}
	if got := f.radio.Joins(); !reflect.DeepEqual(got, []string{"Home", "Office"}) {
		t.Errorf("joins = %v", got)
	}
	if len(f.events.connectSSIDs()) != 0 {
		t.Error("connect event fired without a connection")
	}
}

func TestTick_DisconnectAndReconnect(t *testing.T) {
	f := newFixture(t, []credentials.Credential{cred("Home", "secret123")}, ap("Home", "secret123"))
	f.begin(t)
	ctx := context.Background()

	f.radio.DropLink()
	f.orch.Tick(ctx)

	f.events.mu.Lock()
	disconnects := append([]events.DisconnectEvent(nil), f.events.disconnects...)
	f.events.mu.Unlock()
	if !reflect.DeepEqual(disconnects, []events.DisconnectEvent{{SSID: "Home"}}) {
		t.Fatalf("disconnect events = %v", disconnects)
	}
	if f.orch.Status().Connected {
		t.Error("Status().Connected after link loss")
	}

	// A second tick inside the retry interval does not retry
	f.radio.ResetJoins()
	f.orch.Tick(ctx)
	if len(f.radio.Joins()) != 0 {
		t.Fatalf("retried inside the interval: %v", f.radio.Joins())
	}

	f.clock.Advance(f.orch.Station().RetryInterval())
	f.orch.Tick(ctx)
	if got := f.radio.Joins(); !reflect.DeepEqual(got, []string{"Home"}) {
		t.Fatalf("joins = %v, want [Home]", got)
	}

	// The join completed; the next tick sees the edge
	f.orch.Tick(ctx)
	if got := f.events.connectSSIDs(); !reflect.DeepEqual(got, []string{"Home", "Home"}) {
		t.Errorf("connect events = %v", got)
	}
	if f.orch.Mode() != ModeStationed || !f.orch.Status().Connected {
		t.Errorf("Mode() = %v, Status() = %+v", f.orch.Mode(), f.orch.Status())
	}
}

func TestTick_CyclesToNextNetwork(t *testing.T) {
	f := newFixture(t,
		[]credentials.Credential{cred("Home", "secret123"), cred("Office", "secret456")},
		ap("Home", "secret123"), ap("Office", "secret456"),
	)
	f.begin(t)
	f.orch.SetReconnectParams(1, time.Second)
	ctx := context.Background()

	f.radio.RemoveNetwork("Home")
	f.orch.Tick(ctx) // disconnect edge

	f.clock.Advance(time.Second)
	f.orch.Tick(ctx) // retry 1
	if f.orch.Mode() != ModeStationed {
		t.Fatalf("Mode() = %v after first retry", f.orch.Mode())
	}

	f.clock.Advance(time.Second)
	f.orch.Tick(ctx) // retry 2 exceeds the budget and cycles

	if f.orch.Mode() != ModeStationed {
		t.Fatalf("Mode() = %v, want stationed", f.orch.Mode())
	}
	if f.radio.ConnectedSSID() != "Office" {
		t.Errorf("connected to %q, want Office", f.radio.ConnectedSSID())
	}
	if got := f.events.connectSSIDs(); !reflect.DeepEqual(got, []string{"Home", "Office"}) {
		t.Errorf("connect events = %v", got)
	}
	if f.orch.CurrentSSID() != "Office" {
		t.Errorf("CurrentSSID() = %q", f.orch.CurrentSSID())
	}
}

func TestTick_ExhaustedFallsBackToPortal(t *testing.T) {
	f := newFixture(t, []credentials.Credential{cred("Home", "secret123")}, ap("Home", "secret123"))
	f.begin(t)
	f.orch.SetReconnectParams(1, time.Second)
	ctx := context.Background()

	f.radio.RemoveNetwork("Home")
	f.orch.Tick(ctx)
	for i := 0; i < 2; i++ {
		f.clock.Advance(time.Second)
		f.orch.Tick(ctx)
	}

	if f.orch.Mode() != ModeProvisioning {
		t.Fatalf("Mode() = %v, want provisioning", f.orch.Mode())
	}
	if !f.orch.Portal().IsActive() {
		t.Fatal("portal not active after exhausting networks")
	}
	if st := f.orch.Status(); !st.PortalActive || st.Connected {
		t.Errorf("Status() = %+v", st)
	}
}

func TestTick_RetriesFailedPortalStart(t *testing.T) {
	f := newFixture(t, nil)
	f.radio.SoftAPErr = errors.New("driver busy")
	f.begin(t)
	ctx := context.Background()

	if f.orch.Mode() != ModeProvisioning || f.orch.Portal().IsActive() {
		t.Fatalf("Mode() = %v active=%v", f.orch.Mode(), f.orch.Portal().IsActive())
	}

	f.radio.SoftAPErr = nil
	f.orch.Tick(ctx)
	if f.orch.Portal().IsActive() {
		t.Fatal("portal restarted inside the retry interval")
	}

	f.clock.Advance(f.orch.Station().RetryInterval())
	f.orch.Tick(ctx)
	if !f.orch.Portal().IsActive() {
		t.Error("portal not restarted after the retry interval")
	}
}

func TestSaveCredentials(t *testing.T) {
	f := newFixture(t, nil)
	f.begin(t)

	if err := f.orch.SaveCredentials("Home", "secret123"); err != nil {
		t.Fatalf("SaveCredentials() error = %v", err)
	}
	if !f.storage.Has(credentials.DefaultRecordName) {
		t.Error("record not persisted")
	}

	if err := f.orch.SaveCredentials("", "x"); !fault.Is(err, fault.InvalidInput) {
		t.Errorf("empty SSID error = %v, want InvalidInput", err)
	}

	f.storage.WriteErr = errors.New("flash full")
	if err := f.orch.SaveCredentials("Office", "secret456"); !fault.Is(err, fault.PersistenceFailure) {
		t.Errorf("write failure error = %v, want PersistenceFailure", err)
	}

	f.events.mu.Lock()
	saves := append([]events.SaveEvent(nil), f.events.saves...)
	f.events.mu.Unlock()
	if !reflect.DeepEqual(saves, []events.SaveEvent{{SSID: "Home", Password: "secret123"}}) {
		t.Errorf("save events = %v", saves)
	}

	// The failed write is still visible in memory
	got := f.orch.Credentials()
	if len(got) != 2 || got[0].SSID != "Office" {
		t.Errorf("Credentials() = %v", got)
	}
}

func TestReset(t *testing.T) {
	f := newFixture(t, []credentials.Credential{cred("Home", "secret123")}, ap("Home", "secret123"))
	f.begin(t)

	if err := f.orch.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if len(f.orch.Credentials()) != 0 {
		t.Error("credentials remain after Reset")
	}
	if f.storage.Has(credentials.DefaultRecordName) {
		t.Error("record remains after Reset")
	}

	var buf bytes.Buffer
	f.orch.PrintCredentials(&buf)
	if strings.Contains(buf.String(), "Home") {
		t.Errorf("PrintCredentials() after Reset = %q", buf.String())
	}
}

func TestPortalSaveRestarts(t *testing.T) {
	f := newFixture(t, nil, ap("Home", "secret123"))
	f.begin(t)
	addr := f.orch.Portal().Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ctx.Err() == nil {
			f.orch.Tick(ctx)
			time.Sleep(2 * time.Millisecond)
		}
	}()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.PostForm("http://"+addr+"/save", url.Values{"ssid": {"Home"}, "password": {"secret123"}})
	cancel()
	<-done
	if err != nil {
		t.Fatalf("POST /save: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	if got := f.orch.Credentials(); len(got) != 1 || got[0] != cred("Home", "secret123") {
		t.Errorf("Credentials() = %v", got)
	}
	if f.restarts.Load() != 0 {
		t.Fatal("restarted before the delay")
	}

	f.clock.Advance(portal.DefaultRestartDelay)
	f.orch.Tick(context.Background())
	if f.restarts.Load() != 1 {
		t.Errorf("restarts = %d, want 1", f.restarts.Load())
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- f.orch.Run(ctx, time.Millisecond) }()

	deadline := time.Now().Add(2 * time.Second)
	for f.orch.Status().Mode != ModeProvisioning {
		if time.Now().After(deadline) {
			t.Fatal("Run never reached provisioning")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	if f.orch.Portal().IsActive() {
		t.Error("portal still active after Run returned")
	}
}

func TestModeString(t *testing.T) {
	tests := map[Mode]string{
		ModeStarting:     "starting",
		ModeProvisioning: "provisioning",
		ModeStationed:    "stationed",
		ModeHalted:       "halted",
		Mode(9):          "mode(9)",
	}
	for mode, want := range tests {
		if got := mode.String(); got != want {
			t.Errorf("Mode(%d).String() = %q, want %q", int(mode), got, want)
		}
	}
}
