package portal

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/miekg/dns"

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

type fixture struct {
	portal   *Portal
	radio    *radio.Simulated
	clock    *testClock
	restarts atomic.Int32
}

func newFixture(t *testing.T, opts Options, aps ...radio.AccessPoint) *fixture {
	t.Helper()
	f := &fixture{
		radio: radio.NewSimulated(aps...),
		clock: &testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	opts.HTTPAddr = "127.0.0.1:0"
	opts.DNSAddr = "127.0.0.1:0"
	opts.Restart = func() { f.restarts.Add(1) }
	f.portal = New(f.radio, opts)
	f.portal.Now = f.clock.Now
	t.Cleanup(f.portal.Stop)
	return f
}

func (f *fixture) start(t *testing.T, password string) {
	t.Helper()
	if !f.portal.Start(context.Background(), "Setup", password) {
		t.Fatal("Start() = false")
	}
}

// pump drives HandleClient the way the orchestrator tick does until the
// returned stop func is called
func (f *fixture) pump() (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ctx.Err() == nil {
			f.portal.HandleClient(ctx)
			time.Sleep(2 * time.Millisecond)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (f *fixture) url(path string) string {
	return "http://" + f.portal.Addr().String() + path
}

func noRedirectClient() *http.Client {
	return &http.Client{
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestStart_PassphraseLength(t *testing.T) {
	tests := []struct {
		name        string
		password    string
		wantSecured bool
	}{
		{"empty", "", false},
		{"seven characters", "1234567", false},
		{"eight characters", "12345678", true},
		{"sixty-three characters", strings.Repeat("a", 63), true},
		{"sixty-four characters", strings.Repeat("a", 64), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			f.start(t, tt.password)

			name, pw, up := f.radio.AccessPointState()
			if !up || name != "Setup" {
				t.Fatalf("access point = (%q, up=%v), want Setup up", name, up)
			}
			if tt.wantSecured && pw != tt.password {
				t.Errorf("access point password = %q, want %q", pw, tt.password)
			}
			if !tt.wantSecured && pw != "" {
				t.Errorf("access point password = %q, want open", pw)
			}
			if f.portal.Secured() != tt.wantSecured {
				t.Errorf("Secured() = %v, want %v", f.portal.Secured(), tt.wantSecured)
			}
		})
	}
}

func TestStart_DefaultsAndIdempotence(t *testing.T) {
	f := newFixture(t, Options{})

	if !f.portal.Start(context.Background(), "", "") {
		t.Fatal("Start() = false")
	}
	if f.portal.APName() != DefaultAPName {
		t.Errorf("APName() = %q, want %q", f.portal.APName(), DefaultAPName)
	}
	if f.portal.PortalIP() != radio.DefaultSimulatedAPIP {
		t.Errorf("PortalIP() = %v, want %v", f.portal.PortalIP(), radio.DefaultSimulatedAPIP)
	}
	addr := f.portal.Addr().String()

	if !f.portal.Start(context.Background(), "Other", "") {
		t.Error("second Start() = false, want true")
	}
	if f.portal.APName() != DefaultAPName || f.portal.Addr().String() != addr {
		t.Error("second Start() replaced the running portal")
	}
}

func TestStart_AccessPointFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.radio.SoftAPErr = errors.New("driver refused")

	if f.portal.Start(context.Background(), "Setup", "") {
		t.Fatal("Start() = true, want false")
	}
	if f.portal.State() != StateStopped {
		t.Errorf("State() = %v, want stopped", f.portal.State())
	}
	if f.radio.Mode() != radio.ModeOff {
		t.Errorf("radio mode = %v, want off", f.radio.Mode())
	}
}

func TestStart_CancelledContext(t *testing.T) {
	f := newFixture(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if f.portal.Start(ctx, "Setup", "") {
		t.Error("Start() with cancelled context = true")
	}
}

func TestStop(t *testing.T) {
	f := newFixture(t, Options{})
	f.start(t, "")

	f.portal.Stop()
	if f.portal.IsActive() {
		t.Error("IsActive() after Stop = true")
	}
	if _, _, up := f.radio.AccessPointState(); up {
		t.Error("access point still up after Stop")
	}
	if f.radio.Mode() != radio.ModeOff {
		t.Errorf("radio mode = %v, want off", f.radio.Mode())
	}
	if f.portal.Addr() != nil {
		t.Error("Addr() after Stop should be nil")
	}

	// A second Stop does nothing
	f.portal.Stop()

	// Stop before any Start does nothing
	g := newFixture(t, Options{})
	g.portal.Stop()
}

func TestRoot_ServesForm(t *testing.T) {
	f := newFixture(t, Options{})
	f.start(t, "")

	resp, err := noRedirectClient().Get(f.url("/"))
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	body := readBody(t, resp)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}
	for _, want := range []string{
		`action="/save"`,
		`method="POST"`,
		`name="ssid"`,
		`id="ssid"`,
		`name="password"`,
		"EasyWiFi Setup",
		"/scan",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestRoot_Stylesheet(t *testing.T) {
	f := newFixture(t, Options{})
	f.portal.SetStylesheet("https://cdn.example.com/portal.css")
	f.start(t, "")

	resp, err := noRedirectClient().Get(f.url("/"))
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	body := readBody(t, resp)
	if !strings.Contains(body, `href="https://cdn.example.com/portal.css"`) {
		t.Error("page does not link the configured stylesheet")
	}
}

func TestStylesheetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal.css")
	if err := os.WriteFile(path, []byte("body{color:red}"), 0o644); err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, Options{StylesheetFile: path})
	f.start(t, "")

	client := noRedirectClient()
	resp, err := client.Get(f.url("/"))
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	if body := readBody(t, resp); !strings.Contains(body, `href="/styles.css"`) {
		t.Error("page does not link the served stylesheet")
	}

	resp, err = client.Get(f.url("/styles.css"))
	if err != nil {
		t.Fatalf("GET /styles.css: %v", err)
	}
	if body := readBody(t, resp); body != "body{color:red}" {
		t.Errorf("stylesheet body = %q", body)
	}
}

func TestSave_EmptySSID(t *testing.T) {
	f := newFixture(t, Options{})
	var calls atomic.Int32
	f.portal.SetOnSave(func(string, string) error {
		calls.Add(1)
		return nil
	})
	f.start(t, "")

	resp, err := noRedirectClient().PostForm(f.url("/save"), url.Values{"ssid": {""}, "password": {"x"}})
	if err != nil {
		t.Fatalf("POST /save: %v", err)
	}
	body := readBody(t, resp)

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if body != emptySSIDBody {
		t.Errorf("body = %q, want %q", body, emptySSIDBody)
	}
	if calls.Load() != 0 {
		t.Error("save handler called for empty SSID")
	}
	if f.portal.RestartPending() {
		t.Error("restart scheduled for empty SSID")
	}
}

func TestSave_RejectsUnstorableFields(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
	}{
		{"newline in ssid", url.Values{"ssid": {"Home\nNet"}, "password": {"homepass"}}},
		{"tab in ssid", url.Values{"ssid": {"Home\tNet"}, "password": {"homepass"}}},
		{"carriage return in password", url.Values{"ssid": {"HomeNet"}, "password": {"home\rpass"}}},
		{"oversized password", url.Values{"ssid": {"HomeNet"}, "password": {strings.Repeat("p", 5000)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			var calls atomic.Int32
			f.portal.SetOnSave(func(string, string) error {
				calls.Add(1)
				return nil
			})
			f.start(t, "")

			stop := f.pump()
			resp, err := noRedirectClient().PostForm(f.url("/save"), tt.form)
			stop()
			if err != nil {
				t.Fatalf("POST /save: %v", err)
			}
			body := readBody(t, resp)

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			if body != badFieldsBody {
				t.Errorf("body = %q, want %q", body, badFieldsBody)
			}
			if calls.Load() != 0 {
				t.Error("save handler called for unstorable fields")
			}
			if f.portal.RestartPending() {
				t.Error("restart scheduled for unstorable fields")
			}
		})
	}
}

func TestSave_SchedulesRestart(t *testing.T) {
	f := newFixture(t, Options{})
	var mu sync.Mutex
	var saved [][2]string
	f.portal.SetOnSave(func(ssid, password string) error {
		mu.Lock()
		saved = append(saved, [2]string{ssid, password})
		mu.Unlock()
		return nil
	})
	f.start(t, "")

	stop := f.pump()
	resp, err := noRedirectClient().PostForm(f.url("/save"), url.Values{"ssid": {"Home"}, "password": {"secret123"}})
	stop()
	if err != nil {
		t.Fatalf("POST /save: %v", err)
	}
	body := readBody(t, resp)

	if resp.StatusCode != http.StatusOK || body != savedBody {
		t.Fatalf("response = %d %q, want 200 %q", resp.StatusCode, body, savedBody)
	}
	mu.Lock()
	if len(saved) != 1 || saved[0] != [2]string{"Home", "secret123"} {
		t.Errorf("saved = %v", saved)
	}
	mu.Unlock()

	if !f.portal.RestartPending() {
		t.Fatal("RestartPending() = false after save")
	}

	f.portal.HandleClient(context.Background())
	f.clock.Advance(DefaultRestartDelay - time.Millisecond)
	f.portal.HandleClient(context.Background())
	if f.restarts.Load() != 0 {
		t.Fatal("restart fired before the delay elapsed")
	}

	f.clock.Advance(time.Millisecond)
	f.portal.HandleClient(context.Background())
	if f.restarts.Load() != 1 {
		t.Fatalf("restarts = %d, want 1", f.restarts.Load())
	}

	f.clock.Advance(time.Minute)
	f.portal.HandleClient(context.Background())
	if f.restarts.Load() != 1 {
		t.Errorf("restart fired again: %d", f.restarts.Load())
	}
}

func TestSave_HandlerErrorStillRestarts(t *testing.T) {
	f := newFixture(t, Options{})
	f.portal.SetOnSave(func(string, string) error {
		return errors.New("flash write failed")
	})
	f.start(t, "")

	stop := f.pump()
	resp, err := noRedirectClient().PostForm(f.url("/save"), url.Values{"ssid": {"Home"}})
	stop()
	if err != nil {
		t.Fatalf("POST /save: %v", err)
	}
	readBody(t, resp)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if !f.portal.RestartPending() {
		t.Error("RestartPending() = false")
	}
}

func TestStopClearsPendingRestart(t *testing.T) {
	f := newFixture(t, Options{})
	f.start(t, "")

	stop := f.pump()
	resp, err := noRedirectClient().PostForm(f.url("/save"), url.Values{"ssid": {"Home"}})
	stop()
	if err != nil {
		t.Fatalf("POST /save: %v", err)
	}
	readBody(t, resp)

	f.portal.Stop()
	if f.portal.RestartPending() {
		t.Error("RestartPending() after Stop = true")
	}
}

func TestScan(t *testing.T) {
	f := newFixture(t, Options{},
		radio.AccessPoint{Network: radio.Network{SSID: "Home", RSSI: -40, Encryption: radio.EncryptionWPA2}, Password: "secret123"},
		radio.AccessPoint{Network: radio.Network{SSID: "Cafe", RSSI: -75, Encryption: radio.EncryptionOpen}},
	)
	f.start(t, "")

	stop := f.pump()
	resp, err := noRedirectClient().Get(f.url("/scan"))
	stop()
	if err != nil {
		t.Fatalf("GET /scan: %v", err)
	}
	body := readBody(t, resp)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}

	var got []map[string]any
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d networks, want 2", len(got))
	}
	if got[0]["ssid"] != "Home" || got[0]["rssi"] != float64(-40) || got[0]["encryption"] != float64(radio.EncryptionWPA2) {
		t.Errorf("first network = %v", got[0])
	}
}

func TestScan_ErrorReturnsEmptyList(t *testing.T) {
	f := newFixture(t, Options{})
	f.radio.ScanErr = errors.New("busy")
	f.start(t, "")

	stop := f.pump()
	resp, err := noRedirectClient().Get(f.url("/scan"))
	stop()
	if err != nil {
		t.Fatalf("GET /scan: %v", err)
	}
	body := readBody(t, resp)

	if resp.StatusCode != http.StatusOK || body != "[]" {
		t.Errorf("response = %d %q, want 200 []", resp.StatusCode, body)
	}
}

func TestCaptiveRedirects(t *testing.T) {
	f := newFixture(t, Options{})
	f.start(t, "")
	client := noRedirectClient()

	paths := append([]string{"/some/unknown/page", "/favicon.ico"}, CaptivePaths...)
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			resp, err := client.Get(f.url(path))
			if err != nil {
				t.Fatalf("GET %s: %v", path, err)
			}
			readBody(t, resp)

			if resp.StatusCode != http.StatusFound {
				t.Errorf("status = %d, want 302", resp.StatusCode)
			}
			if loc := resp.Header.Get("Location"); loc != "/" {
				t.Errorf("Location = %q, want /", loc)
			}
		})
	}

	// Wrong method on a known route is treated the same way
	resp, err := client.Post(f.url("/scan"), "text/plain", nil)
	if err != nil {
		t.Fatalf("POST /scan: %v", err)
	}
	readBody(t, resp)
	if resp.StatusCode != http.StatusFound {
		t.Errorf("POST /scan status = %d, want 302", resp.StatusCode)
	}
}

func TestDNSWildcard(t *testing.T) {
	f := newFixture(t, Options{})
	f.start(t, "")
	addr := f.portal.DNSAddr().String()
	client := &dns.Client{Net: "udp", Timeout: 2 * time.Second}

	for _, name := range []string{"connectivitycheck.gstatic.com.", "example.org.", "anything.local."} {
		m := new(dns.Msg)
		m.SetQuestion(name, dns.TypeA)

		reply, _, err := client.Exchange(m, addr)
		if err != nil {
			t.Fatalf("exchange %s: %v", name, err)
		}
		if reply.Rcode != dns.RcodeSuccess {
			t.Errorf("%s rcode = %s", name, dns.RcodeToString[reply.Rcode])
		}
		if len(reply.Answer) != 1 {
			t.Fatalf("%s answers = %d, want 1", name, len(reply.Answer))
		}
		a, ok := reply.Answer[0].(*dns.A)
		if !ok {
			t.Fatalf("%s answer is %T", name, reply.Answer[0])
		}
		if a.A.String() != radio.DefaultSimulatedAPIP.String() {
			t.Errorf("%s -> %s, want %s", name, a.A, radio.DefaultSimulatedAPIP)
		}
		if a.Hdr.Ttl != dnsTTL {
			t.Errorf("TTL = %d, want %d", a.Hdr.Ttl, dnsTTL)
		}
	}

	m := new(dns.Msg)
	m.SetQuestion("example.org.", dns.TypeAAAA)
	reply, _, err := client.Exchange(m, addr)
	if err != nil {
		t.Fatalf("exchange AAAA: %v", err)
	}
	if reply.Rcode != dns.RcodeSuccess || len(reply.Answer) != 0 {
		t.Errorf("AAAA reply = %s with %d answers, want empty NOERROR", dns.RcodeToString[reply.Rcode], len(reply.Answer))
	}
}

func TestHandleClient_DrainsOnlyQueuedWork(t *testing.T) {
	f := newFixture(t, Options{})
	f.start(t, "")
	s := f.portal.session

	// Each job queues another, the way clients polling /scan keep the
	// queue full.
	var ran atomic.Int32
	var refill func()
	refill = func() {
		ran.Add(1)
		s.work <- job{run: refill, done: make(chan struct{})}
	}
	for i := 0; i < 3; i++ {
		s.work <- job{run: refill, done: make(chan struct{})}
	}

	returned := make(chan struct{})
	go func() {
		f.portal.HandleClient(context.Background())
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("HandleClient kept draining work queued after it started")
	}

	if got := ran.Load(); got != 3 {
		t.Errorf("jobs run = %d, want 3", got)
	}
	if got := len(s.work); got != 3 {
		t.Errorf("queued after drain = %d, want 3", got)
	}

	// A due restart still fires on a tick that found work queued.
	f.portal.scheduleRestart()
	f.clock.Advance(DefaultRestartDelay)
	f.portal.HandleClient(context.Background())
	if f.restarts.Load() != 1 {
		t.Errorf("restarts = %d, want 1", f.restarts.Load())
	}
}

func TestHandleClient_Inactive(t *testing.T) {
	f := newFixture(t, Options{})
	// Must not panic without a session
	f.portal.HandleClient(context.Background())
}
