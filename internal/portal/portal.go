package portal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/metrics"
	"github.com/muurk/wifiportal/internal/radio"
)

const (
	// DefaultAPName is the access point name used when none is configured
	DefaultAPName = "EasyWiFi setup"

	// DefaultHTTPAddr is where the configuration form is served
	DefaultHTTPAddr = ":80"

	// DefaultDNSAddr is where the catch-all DNS responder listens
	DefaultDNSAddr = ":53"

	// DefaultRestartDelay is the pause between a successful save and the restart
	DefaultRestartDelay = 2 * time.Second

	// MinPassphraseLength and MaxPassphraseLength bound a WPA2 access point
	// passphrase. Anything outside the range starts an open access point.
	MinPassphraseLength = 8
	MaxPassphraseLength = 63

	// workQueueSize bounds pending handler work between ticks
	workQueueSize = 8

	shutdownTimeout = 2 * time.Second
)

// State is the portal lifecycle state
type State int

const (
	StateStopped State = iota
	StateStarting
	StateActive
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SaveFunc receives credentials submitted through the form
type SaveFunc func(ssid, password string) error

// Options configures a Portal
type Options struct {
	// HTTPAddr and DNSAddr are listen addresses; use ":0" in tests
	HTTPAddr string
	DNSAddr  string

	// Advertise registers the portal over mDNS while it is active
	Advertise bool
	// Version is published in the mDNS TXT record
	Version string

	// StylesheetFile, when set, is served at /styles.css and linked from the page
	StylesheetFile string

	// Restart is called once RestartDelay after a credential save. It is
	// expected not to return on a real device.
	Restart      func()
	RestartDelay time.Duration
}

// Portal is the captive configuration portal. Start, Stop and HandleClient
// must be called from one goroutine; HTTP handlers hand their work to that
// goroutine through HandleClient.
type Portal struct {
	radio radio.Driver
	opts  Options

	onSave     SaveFunc
	stylesheet string

	// Now is read when scheduling and firing the restart
	Now func() time.Time

	state      State
	apName     string
	apPassword string
	session    *session
	restartAt  time.Time
}

// session is everything constructed by Start and torn down by Stop
type session struct {
	apIP       netip.Addr
	stylesheet string

	httpServer *http.Server
	httpLn     net.Listener
	dns        *dnsResponder
	advert     *advertisement

	work chan job
	quit chan struct{}
}

// job is handler work that must run on the tick goroutine
type job struct {
	run  func()
	done chan struct{}
}

// New creates a stopped portal
func New(driver radio.Driver, opts Options) *Portal {
	if opts.HTTPAddr == "" {
		opts.HTTPAddr = DefaultHTTPAddr
	}
	if opts.DNSAddr == "" {
		opts.DNSAddr = DefaultDNSAddr
	}
	if opts.RestartDelay == 0 {
		opts.RestartDelay = DefaultRestartDelay
	}
	return &Portal{
		radio: driver,
		opts:  opts,
		Now:   time.Now,
		state: StateStopped,
	}
}

// SetOnSave installs the save capability
func (p *Portal) SetOnSave(fn SaveFunc) {
	p.onSave = fn
}

// SetStylesheet links the page to an external stylesheet instead of the
// built-in one. Takes effect on the next Start.
func (p *Portal) SetStylesheet(href string) {
	p.stylesheet = href
}

// Start brings up the access point, the DNS responder and the HTTP server.
// A password of 8 to 63 characters creates a protected access point; any
// other length creates an open one. Starting an active portal does nothing
// and returns true.
func (p *Portal) Start(ctx context.Context, apName, apPassword string) bool {
	if p.state == StateActive {
		logging.Debug("Portal already active", zap.String("ap", p.apName))
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	if apName == "" {
		apName = DefaultAPName
	}

	p.setState(StateStarting, "start")

	if err := p.radio.SetMode(radio.ModeAP); err != nil {
		logging.Error("Failed to switch radio to AP mode", zap.Error(err))
		p.setState(StateStopped, "radio mode failed")
		return false
	}

	secured := len(apPassword) >= MinPassphraseLength && len(apPassword) <= MaxPassphraseLength
	password := ""
	if secured {
		password = apPassword
	}
	if err := p.radio.SoftAP(apName, password); err != nil {
		logging.Error("Failed to start access point", zap.String("ap", apName), zap.Error(err))
		p.teardownRadio()
		p.setState(StateStopped, "access point failed")
		return false
	}

	apIP := p.radio.SoftAPIP()
	if !apIP.Is4() {
		logging.Error("Access point has no IPv4 address", zap.Stringer("ip", apIP))
		p.teardownRadio()
		p.setState(StateStopped, "no access point address")
		return false
	}

	s, err := p.startSession(apName, apIP)
	if err != nil {
		logging.Error("Failed to start portal servers", zap.Error(err))
		p.teardownRadio()
		p.setState(StateStopped, "listener failed")
		return false
	}

	p.session = s
	p.apName = apName
	p.apPassword = password
	p.restartAt = time.Time{}
	p.setState(StateActive, "started")
	metrics.SetPortalActive(true)

	logging.Info("Portal started",
		zap.String("ap", apName),
		zap.Bool("secured", secured),
		zap.Stringer("ip", apIP),
		zap.String("http_addr", s.httpLn.Addr().String()),
		zap.String("dns_addr", s.dns.Addr().String()),
	)
	return true
}

func (p *Portal) startSession(apName string, apIP netip.Addr) (*session, error) {
	s := &session{
		apIP:       apIP,
		stylesheet: p.stylesheet,
		work:       make(chan job, workQueueSize),
		quit:       make(chan struct{}),
	}

	if p.opts.StylesheetFile != "" {
		if _, err := os.Stat(p.opts.StylesheetFile); err != nil {
			logging.Warn("Stylesheet file not readable, using built-in style",
				zap.String("path", p.opts.StylesheetFile),
				zap.Error(err),
			)
		} else if s.stylesheet == "" {
			s.stylesheet = stylesheetPath
		}
	}

	dnsResp, err := startDNS(p.opts.DNSAddr, apIP)
	if err != nil {
		return nil, fmt.Errorf("dns responder: %w", err)
	}
	s.dns = dnsResp

	ln, err := net.Listen("tcp", p.opts.HTTPAddr)
	if err != nil {
		s.dns.Shutdown()
		return nil, fmt.Errorf("http listener: %w", err)
	}
	s.httpLn = ln
	s.httpServer = &http.Server{
		Handler:           p.routes(s),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Portal HTTP server stopped", zap.Error(err))
		}
	}()

	if p.opts.Advertise {
		_, port, _ := net.SplitHostPort(ln.Addr().String())
		adv, err := advertise(apName, port, p.opts.Version)
		if err != nil {
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			s.advert = adv
		}
	}

	return s, nil
}

// Stop shuts the servers down and tears the access point down. Stopping an
// inactive portal does nothing.
func (p *Portal) Stop() {
	if p.state != StateActive {
		return
	}

	s := p.session
	p.session = nil
	close(s.quit)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		logging.Warn("Portal HTTP shutdown incomplete", zap.Error(err))
		_ = s.httpServer.Close()
	}
	s.dns.Shutdown()
	if s.advert != nil {
		s.advert.Shutdown()
	}

	p.teardownRadio()
	p.restartAt = time.Time{}
	p.setState(StateStopped, "stopped")
	metrics.SetPortalActive(false)
	logging.Info("Portal stopped", zap.String("ap", p.apName))
}

// HandleClient runs the handler work queued when it was called and fires a
// due restart. Work queued while it drains waits for the next call.
func (p *Portal) HandleClient(ctx context.Context) {
	if p.state != StateActive || ctx.Err() != nil {
		return
	}

	s := p.session
	for n := len(s.work); n > 0; n-- {
		j := <-s.work
		j.run()
		close(j.done)
	}

	if !p.restartAt.IsZero() && !p.Now().Before(p.restartAt) {
		p.restartAt = time.Time{}
		logging.Info("Restarting to apply new credentials")
		if p.opts.Restart != nil {
			p.opts.Restart()
		} else {
			logging.Warn("No restart handler configured")
		}
	}
}

// IsActive reports whether the portal is serving
func (p *Portal) IsActive() bool {
	return p.state == StateActive
}

// State returns the lifecycle state
func (p *Portal) State() State {
	return p.state
}

// RestartPending reports whether a restart has been scheduled
func (p *Portal) RestartPending() bool {
	return !p.restartAt.IsZero()
}

// PortalIP returns the access point address while active
func (p *Portal) PortalIP() netip.Addr {
	if p.session == nil {
		return netip.Addr{}
	}
	return p.session.apIP
}

// Addr returns the HTTP listen address while active
func (p *Portal) Addr() net.Addr {
	if p.session == nil {
		return nil
	}
	return p.session.httpLn.Addr()
}

// DNSAddr returns the DNS listen address while active
func (p *Portal) DNSAddr() net.Addr {
	if p.session == nil {
		return nil
	}
	return p.session.dns.Addr()
}

// APName returns the name of the access point last started
func (p *Portal) APName() string {
	return p.apName
}

// Secured reports whether the running access point is protected
func (p *Portal) Secured() bool {
	return p.state == StateActive && p.apPassword != ""
}

// submit hands fn to the tick goroutine and waits for it to run. It returns
// false if the request is cancelled or the portal stops first.
func (s *session) submit(r *http.Request, fn func()) bool {
	j := job{run: fn, done: make(chan struct{})}

	select {
	case s.work <- j:
	case <-r.Context().Done():
		return false
	case <-s.quit:
		return false
	}

	select {
	case <-j.done:
		return true
	case <-r.Context().Done():
		return false
	case <-s.quit:
		return false
	}
}

// scheduleRestart runs on the tick goroutine
func (p *Portal) scheduleRestart() {
	p.restartAt = p.Now().Add(p.opts.RestartDelay)
	logging.Info("Restart scheduled", zap.Duration("delay", p.opts.RestartDelay))
}

func (p *Portal) teardownRadio() {
	if err := p.radio.SoftAPDisconnect(); err != nil {
		logging.Debug("Access point teardown", zap.Error(err))
	}
	if err := p.radio.SetMode(radio.ModeOff); err != nil {
		logging.Debug("Radio mode reset", zap.Error(err))
	}
}

func (p *Portal) setState(to State, reason string) {
	if p.state == to {
		return
	}
	logging.LogTransition("portal:"+p.state.String(), "portal:"+to.String(), reason)
	p.state = to
}
