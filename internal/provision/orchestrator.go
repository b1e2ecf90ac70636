package provision

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/credentials"
	"github.com/muurk/wifiportal/internal/events"
	"github.com/muurk/wifiportal/internal/fault"
	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/metrics"
	"github.com/muurk/wifiportal/internal/portal"
	"github.com/muurk/wifiportal/internal/radio"
	"github.com/muurk/wifiportal/internal/station"
)

// DefaultTickInterval is how often Run calls Tick
const DefaultTickInterval = 100 * time.Millisecond

// Mode is what the orchestrator is currently doing
type Mode int

const (
	// ModeStarting is the mode before Begin has run
	ModeStarting Mode = iota
	// ModeProvisioning means the portal is (or should be) serving
	ModeProvisioning
	// ModeStationed means a station link was established and is supervised
	ModeStationed
	// ModeHalted means Begin failed and nothing is driven
	ModeHalted
)

func (m Mode) String() string {
	switch m {
	case ModeStarting:
		return "starting"
	case ModeProvisioning:
		return "provisioning"
	case ModeStationed:
		return "stationed"
	case ModeHalted:
		return "halted"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Restarter restarts the device or process so that Begin runs again from a
// clean state. Restart is not expected to return on real hardware.
type Restarter interface {
	Restart()
}

// RestartFunc adapts a function to Restarter
type RestartFunc func()

// Restart implements Restarter
func (f RestartFunc) Restart() { f() }

// Options configures an Orchestrator
type Options struct {
	Storage    credentials.Storage
	RecordName string
	Radio      radio.Driver
	Restarter  Restarter

	// APName and APPassword configure the portal access point
	APName     string
	APPassword string

	// Portal carries the listener and advertisement settings. Its Restart
	// field is replaced by the orchestrator.
	Portal portal.Options

	TickInterval time.Duration
}

// Status is a point-in-time view of the orchestrator that is safe to read
// from any goroutine
type Status struct {
	Mode         Mode
	SSID         string
	Connected    bool
	Address      string
	PortalActive bool
}

// Orchestrator ties the credential store, the station supervisor and the
// portal together. Everything except Status is owned by the goroutine
// calling Begin and Tick (normally Run).
type Orchestrator struct {
	storage   credentials.Storage
	store     *credentials.Store
	radio     radio.Driver
	station   *station.Supervisor
	portal    *portal.Portal
	notifier  *events.Notifier
	restarter Restarter

	apName     string
	apPassword string
	interval   time.Duration

	// Now is read when deciding whether to retry a failed portal start
	Now func() time.Time

	mode              Mode
	lastPortalAttempt time.Time
	status            atomic.Pointer[Status]
}

// New creates an orchestrator. Nothing touches the radio or storage until
// Begin.
func New(opts Options) *Orchestrator {
	if opts.APName == "" {
		opts.APName = portal.DefaultAPName
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}

	store := credentials.NewStore(opts.Storage, opts.RecordName)
	o := &Orchestrator{
		storage:    opts.Storage,
		store:      store,
		radio:      opts.Radio,
		station:    station.NewSupervisor(store, opts.Radio),
		notifier:   events.NewNotifier(),
		restarter:  opts.Restarter,
		apName:     opts.APName,
		apPassword: opts.APPassword,
		interval:   opts.TickInterval,
		Now:        time.Now,
		mode:       ModeStarting,
	}

	portalOpts := opts.Portal
	portalOpts.Restart = o.restart
	o.portal = portal.New(opts.Radio, portalOpts)
	o.portal.SetOnSave(o.SaveCredentials)

	o.publishStatus()
	return o
}

// Notifier returns the event subscriptions
func (o *Orchestrator) Notifier() *events.Notifier { return o.notifier }

// Station returns the connection supervisor
func (o *Orchestrator) Station() *station.Supervisor { return o.station }

// Portal returns the captive portal
func (o *Orchestrator) Portal() *portal.Portal { return o.portal }

// SetAP sets the access point name and password used the next time the
// portal starts
func (o *Orchestrator) SetAP(name, password string) {
	o.apName = name
	o.apPassword = password
}

// SetStylesheet links the portal page to an external stylesheet
func (o *Orchestrator) SetStylesheet(href string) {
	o.portal.SetStylesheet(href)
}

// SetReconnectParams forwards to the station supervisor
func (o *Orchestrator) SetReconnectParams(maxAttempts int, interval time.Duration) {
	o.station.SetReconnectParams(maxAttempts, interval)
}

// Begin mounts storage, loads credentials and either connects or starts the
// portal. The only error it returns is a StorageUnavailable fault, after
// which the orchestrator is halted.
func (o *Orchestrator) Begin(ctx context.Context) error {
	logging.Info("Provisioning begin")

	if err := o.storage.Mount(); err != nil {
		ferr := fault.Wrap(fault.StorageUnavailable, "provision.begin", err)
		logging.Error("Failed to mount credential storage", zap.Error(ferr))
		o.setMode(ModeHalted, "storage unavailable")
		o.publishStatus()
		return ferr
	}

	o.store.Load()
	metrics.CredentialsStored.Set(float64(o.store.Count()))

	connected := o.radio.Status() == radio.StatusConnected
	o.station.SetWasConnected(connected)
	metrics.SetStationConnected(connected)

	o.tryConnect(ctx, false)
	o.publishStatus()
	return nil
}

// Tick advances the orchestrator by one step. In provisioning mode it
// services the portal; in stationed mode it tracks the link and drives
// reconnection, falling back to the portal once every network has failed.
func (o *Orchestrator) Tick(ctx context.Context) {
	switch o.mode {
	case ModeProvisioning:
		o.tickPortal(ctx)
	case ModeStationed:
		o.tickStation(ctx)
	}
	o.publishStatus()
}

func (o *Orchestrator) tickPortal(ctx context.Context) {
	if o.portal.IsActive() {
		o.portal.HandleClient(ctx)
		return
	}
	if o.Now().Sub(o.lastPortalAttempt) >= o.station.RetryInterval() {
		o.startPortal(ctx, "portal retry")
	}
}

func (o *Orchestrator) tickStation(ctx context.Context) {
	wasConnected := o.station.WasConnected()
	connected := o.station.IsConnected()

	if connected {
		if !wasConnected {
			logging.Info("Reconnected to WiFi", zap.String("ssid", o.station.CurrentSSID()))
			o.station.SetWasConnected(true)
			metrics.SetStationConnected(true)
			o.notifyConnect()
		}
		// Link is up, so this only refreshes the supervisor state
		o.station.HandleReconnection(ctx)
		return
	}

	if wasConnected {
		logging.Warn("WiFi lost, attempting reconnect", zap.String("ssid", o.station.CurrentSSID()))
		o.notifyDisconnect()
		o.station.SetWasConnected(false)
		metrics.SetStationConnected(false)
	}

	if o.station.HandleReconnection(ctx) {
		// A cycle to another network succeeded
		o.notifyConnect()
		return
	}

	if o.station.State() == station.StateExhausted {
		logging.Warn("Failed to connect to any saved network, starting portal",
			zap.Stringer("kind", fault.AllCredentialsExhausted),
		)
		o.startPortal(ctx, "networks exhausted")
	}
}

// tryConnect stops the portal and tries the saved networks, falling back to
// the portal when there are none or none connect
func (o *Orchestrator) tryConnect(ctx context.Context, preferNext bool) {
	o.portal.Stop()

	if o.store.IsEmpty() {
		logging.Info("No SSID saved, starting portal")
		o.startPortal(ctx, "no credentials")
		return
	}

	if o.station.Connect(ctx, preferNext) {
		o.setMode(ModeStationed, "connected")
		o.notifyConnect()
		return
	}

	logging.Warn("Failed to connect to any saved network, starting portal",
		zap.Stringer("kind", fault.AllCredentialsExhausted),
	)
	o.startPortal(ctx, "connect failed")
}

func (o *Orchestrator) startPortal(ctx context.Context, reason string) {
	o.setMode(ModeProvisioning, reason)
	o.lastPortalAttempt = o.Now()
	if !o.portal.Start(ctx, o.apName, o.apPassword) {
		logging.Error("Portal failed to start, will retry",
			zap.Duration("retry_in", o.station.RetryInterval()),
		)
	}
}

// Reset forgets every saved network. The current link and mode are left
// alone; the next Begin starts the portal.
func (o *Orchestrator) Reset() error {
	err := o.store.Clear()
	metrics.CredentialsStored.Set(0)
	if err != nil {
		logging.Warn("Failed to remove credential record", zap.Error(err))
	}
	return err
}

// SaveCredentials stores a network at the front of the list and fires the
// save notification when it was persisted. The portal calls this from the
// tick goroutine.
func (o *Orchestrator) SaveCredentials(ssid, password string) error {
	err := o.store.Save(ssid, password)
	switch {
	case err == nil:
		metrics.RecordSave("ok", o.store.Count())
		o.notifier.Save.Fire(events.SaveEvent{SSID: ssid, Password: password})
	case fault.Is(err, fault.InvalidInput):
		metrics.RecordSave("invalid", o.store.Count())
	default:
		metrics.RecordSave("persist_failed", o.store.Count())
	}
	return err
}

// Credentials returns a copy of the saved networks, most recently used first
func (o *Orchestrator) Credentials() []credentials.Credential {
	return o.store.All()
}

// PrintCredentials writes the saved networks to w
func (o *Orchestrator) PrintCredentials(w io.Writer) {
	o.store.Print(w)
}

// Mode returns the current mode. Use Status from other goroutines.
func (o *Orchestrator) Mode() Mode { return o.mode }

// CurrentSSID returns the active network's SSID
func (o *Orchestrator) CurrentSSID() string {
	return o.station.CurrentSSID()
}

// Status returns the snapshot taken at the end of the last Begin or Tick
func (o *Orchestrator) Status() Status {
	return *o.status.Load()
}

// Run calls Begin and then Tick every interval until ctx is done. The portal
// is stopped on the way out.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration) error {
	if err := o.Begin(ctx); err != nil {
		return err
	}
	defer o.portal.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info("Provisioning stopped", zap.Stringer("mode", o.mode))
			return ctx.Err()
		case <-ticker.C:
			o.Tick(ctx)
		}
	}
}

// Serve implements suture.Service. A storage failure is permanent and stops
// the service from being restarted.
func (o *Orchestrator) Serve(ctx context.Context) error {
	err := o.Run(ctx, o.interval)
	if fault.Is(err, fault.StorageUnavailable) {
		return suture.ErrDoNotRestart
	}
	return err
}

func (o *Orchestrator) String() string { return "provisioning" }

func (o *Orchestrator) restart() {
	if o.restarter == nil {
		logging.Warn("No restarter configured, continuing without restart")
		return
	}
	logging.Info("Restarting to apply saved credentials")
	o.restarter.Restart()
}

func (o *Orchestrator) notifyConnect() {
	cred, ok := o.store.Active()
	if !ok {
		return
	}
	o.notifier.Connect.Fire(events.ConnectEvent{
		SSID:    cred.SSID,
		Address: o.station.LocalAddr().String(),
	})
}

func (o *Orchestrator) notifyDisconnect() {
	cred, ok := o.store.Active()
	if !ok {
		return
	}
	o.notifier.Disconnect.Fire(events.DisconnectEvent{SSID: cred.SSID})
}

func (o *Orchestrator) setMode(to Mode, reason string) {
	if o.mode == to {
		return
	}
	logging.LogTransition(o.mode.String(), to.String(), reason)
	metrics.SetMode(o.mode.String(), to.String())
	o.mode = to
}

func (o *Orchestrator) publishStatus() {
	st := &Status{
		Mode:         o.mode,
		SSID:         o.station.CurrentSSID(),
		PortalActive: o.portal.IsActive(),
	}
	switch {
	case o.mode == ModeStationed && o.station.WasConnected():
		st.Connected = true
		st.Address = o.station.LocalAddr().String()
	case st.PortalActive:
		st.Address = o.portal.PortalIP().String()
	}
	o.status.Store(st)
}
