package station

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/credentials"
	"github.com/muurk/wifiportal/internal/fault"
	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/metrics"
	"github.com/muurk/wifiportal/internal/radio"
)

const (
	// DefaultMaxAttempts is the number of reconnection retries against one
	// network before cycling to the next
	DefaultMaxAttempts = 10

	// DefaultRetryInterval is the minimum time between reconnection retries
	DefaultRetryInterval = 5 * time.Second

	// DefaultConnectTimeout bounds a single join attempt during Connect
	DefaultConnectTimeout = 10 * time.Second
)

// DefaultDNS is used when a static configuration omits a DNS server
var DefaultDNS = netip.AddrFrom4([4]byte{8, 8, 8, 8})

// State is the supervisor's view of the station link
type State int

const (
	// StateIdle means no connection has been attempted yet
	StateIdle State = iota
	// StateConnecting means a Connect pass is in progress
	StateConnecting
	// StateConnected means the last observation found the link up
	StateConnected
	// StateRetrying means the link is down and reconnection is being retried
	StateRetrying
	// StateExhausted means a full pass over every saved network failed, or
	// there was nothing to try. The caller should fall back to the portal.
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateRetrying:
		return "retrying"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Supervisor drives station-mode connections against a credential store.
// It is not safe for concurrent use.
type Supervisor struct {
	store *credentials.Store
	radio radio.Driver

	// Now returns the current time. Tests replace it to control the retry
	// interval; time.Now carries a monotonic reading so the interval never wraps.
	Now func() time.Time

	lastAttempt    time.Time
	attempts       int
	maxAttempts    int
	retryInterval  time.Duration
	connectTimeout time.Duration
	wasConnected   bool
	staticIP       *radio.StaticIP
	state          State
}

// NewSupervisor creates a supervisor with the default reconnection parameters
func NewSupervisor(store *credentials.Store, driver radio.Driver) *Supervisor {
	return &Supervisor{
		store:          store,
		radio:          driver,
		Now:            time.Now,
		maxAttempts:    DefaultMaxAttempts,
		retryInterval:  DefaultRetryInterval,
		connectTimeout: DefaultConnectTimeout,
		state:          StateIdle,
	}
}

// Connect tries every saved network once, starting at the store's active
// index (or 0). With preferNext the start moves one position further, which
// is how a chronically failing network is skipped. Returns true on the first
// network that connects.
//
// When every candidate fails the active index is reset to 0, the radio is
// disconnected and the state becomes StateExhausted. An empty store fails
// immediately without touching the store.
func (s *Supervisor) Connect(ctx context.Context, preferNext bool) bool {
	s.attempts = 0
	s.lastAttempt = s.Now()

	if s.store.IsEmpty() {
		logging.Info("No credentials available",
			zap.Stringer("kind", fault.NoCredentials),
		)
		s.setState(StateExhausted, "no credentials")
		return false
	}

	s.setState(StateConnecting, "connect")
	s.ensureStationMode()

	total := s.store.Count()
	start := 0
	if active := s.store.ActiveIndex(); active >= 0 && active < total {
		start = active
		if preferNext && total > 1 {
			start = (start + 1) % total
		}
	}

	for offset := 0; offset < total; offset++ {
		index := (start + offset) % total
		s.store.SetActive(index)

		cred, ok := s.store.Get(index)
		if ok && s.AttemptConnection(ctx, cred, s.connectTimeout) {
			return true
		}
		if ctx.Err() != nil {
			break
		}
	}

	logging.Warn("Failed to connect to any saved network",
		zap.Stringer("kind", fault.AllCredentialsExhausted),
		zap.Int("networks", total),
	)
	s.store.SetActive(0)
	s.wasConnected = false
	if err := s.radio.Disconnect(); err != nil {
		logging.Debug("Disconnect after failed pass", zap.Error(err))
	}
	s.setState(StateExhausted, "all credentials failed")
	return false
}

// AttemptConnection joins one network and waits up to timeout for the
// result. The radio is put in pure station mode first, tearing down any
// access point.
func (s *Supervisor) AttemptConnection(ctx context.Context, cred credentials.Credential, timeout time.Duration) bool {
	logging.Info("Attempting to connect", zap.String("ssid", cred.SSID))

	if err := s.join(cred); err != nil {
		logging.Warn("Join could not be started", zap.String("ssid", cred.SSID), zap.Error(err))
		metrics.RecordJoin("failed", 0)
		return false
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := s.Now()
	status := s.radio.WaitForConnectResult(waitCtx)
	elapsed := s.Now().Sub(started)

	if status == radio.StatusConnected {
		s.wasConnected = true
		s.attempts = 0
		metrics.RecordJoin("connected", elapsed)
		metrics.SetStationConnected(true)
		logging.LogJoin(cred.SSID, 1, "connected")
		logging.Info("Connected",
			zap.String("ssid", cred.SSID),
			zap.Stringer("ip", s.radio.LocalIP()),
		)
		s.setState(StateConnected, "join succeeded")
		return true
	}

	outcome := "failed"
	fields := []zap.Field{zap.String("ssid", cred.SSID), zap.Stringer("status", status)}
	if waitCtx.Err() != nil && ctx.Err() == nil {
		outcome = "timeout"
		fields = append(fields, zap.Stringer("kind", fault.ConnectionTimeout), zap.Duration("timeout", timeout))
	}
	metrics.RecordJoin(outcome, elapsed)
	logging.LogJoin(cred.SSID, 1, outcome)
	logging.Info("Connection failed", fields...)

	if err := s.radio.Disconnect(); err != nil {
		logging.Debug("Disconnect after failed join", zap.Error(err))
	}
	return false
}

// HandleReconnection is called once per tick while the orchestrator is not
// serving the portal. Returns true when the link is up.
//
// While the link is down it re-joins the active network at most once per
// retry interval, and after more than MaxAttempts retries cycles to the next
// saved network with Connect(ctx, true).
func (s *Supervisor) HandleReconnection(ctx context.Context) bool {
	if s.radio.Status() == radio.StatusConnected {
		if !s.wasConnected {
			logging.Info("Reconnected to WiFi", zap.String("ssid", s.CurrentSSID()))
			s.wasConnected = true
			metrics.SetStationConnected(true)
		}
		s.attempts = 0
		s.setState(StateConnected, "link up")
		return true
	}

	if s.wasConnected {
		logging.Warn("WiFi lost, attempting reconnect", zap.String("ssid", s.CurrentSSID()))
		s.wasConnected = false
		metrics.SetStationConnected(false)
	}
	if s.state != StateExhausted {
		s.setState(StateRetrying, "link down")
	}

	now := s.Now()
	if now.Sub(s.lastAttempt) < s.retryInterval {
		return false
	}

	s.lastAttempt = now
	s.attempts++

	if cred, ok := s.store.Active(); ok {
		logging.LogJoin(cred.SSID, s.attempts, "retry")
		metrics.RecordJoin("retry", 0)
		if err := s.join(cred); err != nil {
			logging.Warn("Reconnect join could not be started", zap.String("ssid", cred.SSID), zap.Error(err))
		}
	}

	if s.attempts > s.maxAttempts {
		logging.Warn("Too many failures, cycling saved networks",
			zap.Int("attempts", s.attempts),
			zap.Int("max_attempts", s.maxAttempts),
		)
		metrics.NetworkCycles.Inc()
		s.attempts = 0
		return s.Connect(ctx, true)
	}

	return false
}

// IsConnected reports whether the radio currently has a station link
func (s *Supervisor) IsConnected() bool {
	return s.radio.Status() == radio.StatusConnected
}

// Disconnect drops the station link
func (s *Supervisor) Disconnect() {
	if err := s.radio.Disconnect(); err != nil {
		logging.Debug("Disconnect failed", zap.Error(err))
	}
	s.wasConnected = false
	metrics.SetStationConnected(false)
	s.setState(StateIdle, "disconnect")
}

// SetStaticIP configures a fixed address applied before every join. An
// invalid DNS address falls back to DefaultDNS.
func (s *Supervisor) SetStaticIP(ip, gateway, subnet, dns netip.Addr) {
	if !dns.IsValid() || dns.IsUnspecified() {
		dns = DefaultDNS
	}
	s.staticIP = &radio.StaticIP{IP: ip, Gateway: gateway, Subnet: subnet, DNS: dns}
	logging.Info("Static IP configured", zap.Stringer("ip", ip))
}

// StaticIP returns the configured static address, if any
func (s *Supervisor) StaticIP() (radio.StaticIP, bool) {
	if s.staticIP == nil {
		return radio.StaticIP{}, false
	}
	return *s.staticIP, true
}

// SetReconnectParams sets the retry budget and the minimum retry interval
func (s *Supervisor) SetReconnectParams(maxAttempts int, interval time.Duration) {
	s.maxAttempts = maxAttempts
	s.retryInterval = interval
}

// SetConnectTimeout sets the per-network wait used by Connect
func (s *Supervisor) SetConnectTimeout(timeout time.Duration) {
	s.connectTimeout = timeout
}

// ResetReconnectAttempts zeroes the attempt counter and restarts the retry interval
func (s *Supervisor) ResetReconnectAttempts() {
	s.attempts = 0
	s.lastAttempt = s.Now()
}

// WasConnected returns the last observed link state
func (s *Supervisor) WasConnected() bool { return s.wasConnected }

// SetWasConnected seeds the last observed link state
func (s *Supervisor) SetWasConnected(connected bool) { s.wasConnected = connected }

// Attempts returns the reconnection attempt counter
func (s *Supervisor) Attempts() int { return s.attempts }

// MaxAttempts returns the reconnection retry budget
func (s *Supervisor) MaxAttempts() int { return s.maxAttempts }

// RetryInterval returns the minimum time between reconnection retries
func (s *Supervisor) RetryInterval() time.Duration { return s.retryInterval }

// State returns the supervisor state
func (s *Supervisor) State() State { return s.state }

// CurrentSSID returns the active network's SSID, or "" when none is active
func (s *Supervisor) CurrentSSID() string {
	if cred, ok := s.store.Active(); ok {
		return cred.SSID
	}
	return ""
}

// LocalAddr returns the station address
func (s *Supervisor) LocalAddr() netip.Addr {
	return s.radio.LocalIP()
}

// join puts the radio in station mode, applies the static configuration and
// starts a join without waiting for it
func (s *Supervisor) join(cred credentials.Credential) error {
	s.ensureStationMode()
	s.applyStaticIP()
	return s.radio.Begin(cred.SSID, cred.Password)
}

func (s *Supervisor) ensureStationMode() {
	mode := s.radio.Mode()
	if mode == radio.ModeStation {
		return
	}

	if mode.HasAP() {
		if err := s.radio.SoftAPDisconnect(); err != nil {
			logging.Warn("Failed to tear down access point", zap.Error(err))
		}
	}
	if err := s.radio.SetMode(radio.ModeStation); err != nil {
		logging.Error("Failed to switch radio to station mode", zap.Error(err))
	}
}

func (s *Supervisor) applyStaticIP() {
	if s.staticIP == nil {
		return
	}
	if err := s.radio.Config(*s.staticIP); err != nil {
		logging.Warn("Failed to configure static IP, falling back to DHCP", zap.Error(err))
	}
}

func (s *Supervisor) setState(to State, reason string) {
	if s.state == to {
		return
	}
	logging.LogTransition(s.state.String(), to.String(), reason)
	s.state = to
}
