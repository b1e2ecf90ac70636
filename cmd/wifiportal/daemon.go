package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/config"
	"github.com/muurk/wifiportal/internal/credentials"
	"github.com/muurk/wifiportal/internal/events"
	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/portal"
	"github.com/muurk/wifiportal/internal/provision"
	"github.com/muurk/wifiportal/internal/radio"
	"github.com/muurk/wifiportal/internal/server"
	"github.com/muurk/wifiportal/internal/supervisor"
	"github.com/muurk/wifiportal/internal/version"
)

// Run command flags
var (
	runLogLevel   string
	runLogFormat  string
	runDriver     string
	runInterface  string
	runSimulate   string
	runStatusAddr string
	runNoRestart  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the provisioning daemon",
	Long: `Run the provisioning daemon in the foreground.

The daemon loads the saved networks and joins the first one in range. If none
can be joined it raises an access point and serves the configuration portal
on it, answering every DNS query with the portal address so that phones open
the page on their own. A saved network is joined after a restart of the
process.

The status server (health, metrics and the event stream) listens on
status.addr when it is set.`,
	Example: `  # Run with the configuration from the standard locations
  sudo wifiportal run

  # Try the portal on a laptop without touching the real radio
  wifiportal run --driver simulated --simulate-networks "HomeNet:secret123:-50,Cafe" \
      --config ./dev.yaml

  # Verbose logging
  wifiportal run --log-level debug`,
	RunE: runDaemon,
}

func init() {
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&runLogFormat, "log-format", "", "Log encoding (console, json)")
	runCmd.Flags().StringVar(&runDriver, "driver", "", "Radio driver (nmcli, simulated)")
	runCmd.Flags().StringVar(&runInterface, "interface", "", "Wireless interface for nmcli")
	runCmd.Flags().StringVar(&runSimulate, "simulate-networks", "", "Networks seen by the simulated driver (ssid[:password[:rssi]],...)")
	runCmd.Flags().StringVar(&runStatusAddr, "status-addr", "", "Status server address (overrides status.addr)")
	runCmd.Flags().BoolVar(&runNoRestart, "no-restart", false, "Log instead of re-executing after credentials are saved")

	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logging.InitializeWithFormat(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	driver, err := newDriver(cfg.Radio)
	if err != nil {
		return err
	}

	var restarter provision.Restarter
	if !runNoRestart {
		restarter = provision.RestartFunc(reexec)
	}

	orch, err := newOrchestrator(cfg, driver, restarter)
	if err != nil {
		return err
	}

	hub := events.NewHub()
	hub.Attach(orch.Notifier())

	tree := supervisor.NewTree(logging.GetLogger(), supervisor.DefaultTreeConfig())
	tree.AddControlService(orch)
	tree.AddMessagingService(hub)

	if cfg.Status.Addr != "" {
		srv, err := server.New(&server.Config{
			Addr:     cfg.Status.Addr,
			CertPath: cfg.Status.CertFile,
			KeyPath:  cfg.Status.KeyFile,
			Version:  version.Version,
		}, orch, hub)
		if err != nil {
			return err
		}
		tree.AddAPIService(srv)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info("Starting wifiportal",
		zap.String("version", version.Version),
		zap.String("driver", cfg.Radio.Driver),
		zap.String("storage", cfg.Storage.Dir),
		zap.String("status_addr", cfg.Status.Addr),
	)

	err = tree.Serve(ctx)
	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn("Service did not stop in time", zap.String("service", svc.Name))
		}
	}
	if errors.Is(err, context.Canceled) {
		logging.Info("Shutdown complete")
		return nil
	}
	return err
}

// applyRunFlags lets explicitly set flags win over file and environment
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = runLogLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = runLogFormat
	}
	if flags.Changed("driver") {
		cfg.Radio.Driver = runDriver
	}
	if flags.Changed("interface") {
		cfg.Radio.Interface = runInterface
	}
	if flags.Changed("simulate-networks") {
		cfg.Radio.SimulateNetworks = runSimulate
	}
	if flags.Changed("status-addr") {
		cfg.Status.Addr = runStatusAddr
	}
}

func newDriver(rc config.RadioConfig) (radio.Driver, error) {
	switch rc.Driver {
	case config.DriverNMCLI:
		return radio.NewNMCLI(rc.Interface), nil
	case config.DriverSimulated:
		aps, err := radio.ParseAccessPoints(rc.SimulateNetworks)
		if err != nil {
			return nil, fmt.Errorf("invalid radio.simulate_networks: %w", err)
		}
		return radio.NewSimulated(aps...), nil
	default:
		return nil, fmt.Errorf("unknown radio driver %q", rc.Driver)
	}
}

func newOrchestrator(cfg *config.Config, driver radio.Driver, restarter provision.Restarter) (*provision.Orchestrator, error) {
	orch := provision.New(provision.Options{
		Storage:    credentials.NewDirStorage(cfg.Storage.Dir),
		RecordName: cfg.Storage.Record,
		Radio:      driver,
		Restarter:  restarter,
		APName:     cfg.Portal.APName,
		APPassword: cfg.Portal.APPassword,
		Portal: portal.Options{
			HTTPAddr:       cfg.Portal.HTTPAddr,
			DNSAddr:        cfg.Portal.DNSAddr,
			Advertise:      cfg.Portal.Advertise,
			Version:        version.Version,
			StylesheetFile: cfg.Portal.StylesheetFile,
			RestartDelay:   cfg.Portal.RestartDelay,
		},
		TickInterval: cfg.Station.TickInterval,
	})

	orch.SetReconnectParams(cfg.Station.MaxAttempts, cfg.Station.RetryInterval)
	orch.Station().SetConnectTimeout(cfg.Station.ConnectTimeout)
	if cfg.Portal.Stylesheet != "" {
		orch.SetStylesheet(cfg.Portal.Stylesheet)
	}

	if cfg.Station.StaticIP != "" {
		addrs, err := cfg.Station.Static()
		if err != nil {
			return nil, err
		}
		orch.Station().SetStaticIP(addrs.IP, addrs.Gateway, addrs.Subnet, addrs.DNS)
	}

	return orch, nil
}

// reexec replaces the process with a fresh copy of itself. On failure the
// process exits non-zero so a service manager can start it again.
func reexec() {
	logging.Sync()

	exe, err := os.Executable()
	if err == nil {
		err = syscall.Exec(exe, os.Args, os.Environ())
	}
	logging.Error("Failed to re-execute", zap.Error(err))
	logging.Sync()
	os.Exit(1)
}
