package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muurk/wifiportal/internal/credentials"
	"github.com/muurk/wifiportal/internal/discovery"
	"github.com/muurk/wifiportal/internal/events"
	"github.com/muurk/wifiportal/internal/portalclient"
	"github.com/muurk/wifiportal/internal/ui"
	"github.com/muurk/wifiportal/internal/wizard"
)

// Portal client flags
var (
	portalURL       string
	portalAPName    string
	discoverTimeout time.Duration
	provisionSSID   string
	provisionPass   string
	provisionWait   time.Duration
	watchAddr       string
)

func init() {
	for _, cmd := range []*cobra.Command{scanCmd, provisionCmd, wizardCmd} {
		cmd.Flags().StringVar(&portalURL, "portal", "", "Portal base URL, e.g. http://192.168.4.1 (skips discovery)")
		cmd.Flags().StringVar(&portalAPName, "ap-name", "", "Wait for the portal serving this access point instead of taking the first one found")
	}

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(wizardCmd)
	rootCmd.AddCommand(watchCmd)
}

var portalTroubleshooting = []string{
	"Join the setup access point (default name \"EasyWiFi setup\") first",
	"Check that the device is in setup mode and not already on a network",
	"Pass --portal http://<address> if mDNS is blocked on this machine",
}

// discoverCmd lists portals advertised over mDNS
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find setup portals on the local network",
	Long: `Browse mDNS for configuration portals.

A device in setup mode advertises its portal on the access point it raises.
Join that access point first, then run discover to find the portal address.`,
	Example: `  # Browse for 5 seconds (default)
  wifiportal discover

  # Longer browse on a slow network
  wifiportal discover --timeout 15s`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", discovery.DefaultScanTimeout, "How long to browse")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Portal Discovery", "discover", map[string]string{"Timeout": discoverTimeout.String()})

	scanner := discovery.NewScanner()
	scanner.Timeout = discoverTimeout

	portals, err := scanner.ScanForPortals(ctx)
	if err != nil {
		p.PrintError("Discovery failed", err, portalTroubleshooting)
		return err
	}

	if len(portals) == 0 {
		p.PrintWarning("No portals found", map[string]string{"Browsed for": discoverTimeout.String()})
		return nil
	}

	for _, portal := range portals {
		p.PrintSuccess(portal.APName, map[string]string{
			"URL":      portal.BaseURL(),
			"Hostname": portal.Hostname,
			"Version":  portal.Version,
		})
	}
	return nil
}

// scanCmd asks a portal which networks it can see
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List the networks a portal can see",
	Long: `Ask a configuration portal for the networks in range of the device.

The list comes from the device's radio, not this machine's, so it shows what
the device will be able to join.`,
	Example: `  # Discover the portal, then scan
  wifiportal scan

  # Scan a known portal
  wifiportal scan --portal http://192.168.4.1

  # Pick one portal when several devices are in setup mode
  wifiportal scan --ap-name "Kiosk setup"`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p := ui.NewPrinter(cmd.OutOrStdout())

	base, err := resolvePortal(ctx)
	if err != nil {
		p.PrintError("No portal", err, portalTroubleshooting)
		return err
	}

	networks, err := portalclient.NewClientWithURL(base).Scan(ctx)
	if err != nil {
		p.PrintError(portalclient.ShortMessage(err), err, portalTroubleshooting)
		return err
	}

	p.PrintHeader("Networks in Range", "scan", map[string]string{"Portal": base})
	p.PrintNetworks(networks)
	return nil
}

// provisionCmd submits credentials without the wizard
var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Send network credentials to a portal",
	Long: `Submit an SSID and passphrase to a configuration portal.

The device saves the network and restarts to join it, so the portal goes away
shortly after a successful save. With --wait the command waits for that to
happen before reporting success.`,
	Example: `  # Prompt for the passphrase
  wifiportal provision --ssid HomeNet

  # Non-interactive
  wifiportal provision --portal http://192.168.4.1 --ssid HomeNet --password secret123

  # Open network
  wifiportal provision --ssid Cafe --password ""`,
	RunE: runProvision,
}

func init() {
	provisionCmd.Flags().StringVar(&provisionSSID, "ssid", "", "Network name")
	provisionCmd.Flags().StringVar(&provisionPass, "password", "", "Passphrase (prompted when omitted)")
	provisionCmd.Flags().DurationVar(&provisionWait, "wait", 0, "Wait this long for the portal to close after saving")
	_ = provisionCmd.MarkFlagRequired("ssid")
}

func runProvision(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p := ui.NewPrinter(cmd.OutOrStdout())

	password := provisionPass
	if !cmd.Flags().Changed("password") {
		var err error
		password, err = readPassword(cmd, provisionSSID)
		if err != nil {
			return err
		}
	}

	if err := checkCredential(p, provisionSSID, password); err != nil {
		return err
	}

	base, err := resolvePortal(ctx)
	if err != nil {
		p.PrintError("No portal", err, portalTroubleshooting)
		return err
	}

	p.PrintHeader("Provision", "provision", map[string]string{"Portal": base, "SSID": provisionSSID})

	client := portalclient.NewClientWithURL(base)
	if err := client.Save(ctx, provisionSSID, password); err != nil {
		p.PrintError(portalclient.ShortMessage(err), err, portalTroubleshooting)
		return err
	}

	details := map[string]string{"SSID": provisionSSID}
	if provisionWait > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, provisionWait)
		defer cancel()
		if err := client.WaitGone(waitCtx, time.Second); err != nil {
			p.PrintWarning("Saved, but the portal is still up", map[string]string{
				"SSID":   provisionSSID,
				"Waited": provisionWait.String(),
			})
			return nil
		}
		details["Portal"] = "closed"
	}

	p.PrintSuccess("Credentials saved", details)
	return nil
}

// wizardCmd runs the interactive setup
var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup: find a portal, pick a network, enter the passphrase",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !ui.IsTerminal() {
			return errors.New("the wizard needs an interactive terminal; use 'wifiportal provision' instead")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		base := portalURL
		if base == "" && portalAPName != "" {
			var err error
			if base, err = resolvePortal(ctx); err != nil {
				return err
			}
		}

		done, err := wizard.Run(ctx, wizard.Options{
			Finder:    discovery.NewScanner(),
			Dial:      func(base string) wizard.PortalAPI { return portalclient.NewClientWithURL(base) },
			PortalURL: base,
		})
		if err != nil {
			return err
		}
		if !done {
			fmt.Fprintln(cmd.OutOrStdout(), "Setup cancelled.")
		}
		return nil
	},
}

// watchCmd follows a daemon's event stream
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow connect, disconnect and save events from a running daemon",
	Example: `  # Local daemon on the default status address
  wifiportal watch

  # Remote daemon
  wifiportal watch --addr 10.0.0.12:9180`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		feed, err := events.Dial(ctx, watchAddr)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", watchAddr, err)
		}
		defer func() { _ = feed.Close() }()

		return ui.RunWatch(feed, watchAddr)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchAddr, "addr", "127.0.0.1:9180", "Status server address")
}

// resolvePortal returns --portal, the portal for --ap-name, or the first
// portal found over mDNS
func resolvePortal(ctx context.Context) (string, error) {
	return findPortal(ctx, discovery.NewScanner(), portalURL, portalAPName)
}

// portalLocator is satisfied by *discovery.Scanner
type portalLocator interface {
	ScanForPortals(ctx context.Context) ([]*discovery.Portal, error)
	WaitForPortal(ctx context.Context, apName string) (*discovery.Portal, error)
}

func findPortal(ctx context.Context, locator portalLocator, url, apName string) (string, error) {
	if url != "" {
		return url, nil
	}

	if apName != "" {
		portal, err := locator.WaitForPortal(ctx, apName)
		if err != nil {
			return "", fmt.Errorf("portal discovery failed: %w", err)
		}
		return portal.BaseURL(), nil
	}

	portals, err := locator.ScanForPortals(ctx)
	if err != nil {
		return "", fmt.Errorf("portal discovery failed: %w", err)
	}
	if len(portals) == 0 {
		return "", errors.New("no portal found; join the setup access point or pass --portal")
	}
	return portals[0].BaseURL(), nil
}

// readPassword prompts without echo on a terminal, or reads a line otherwise
func readPassword(cmd *cobra.Command, ssid string) (string, error) {
	fmt.Fprintf(cmd.ErrOrStderr(), "Passphrase for %s (empty for an open network): ", ssid)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// checkCredential prints warnings and fails on anything the store would refuse
func checkCredential(p *ui.Printer, ssid, password string) error {
	warnings, critical := credentials.SeparateWarningsAndErrors(credentials.ValidateCredential(ssid, password))
	if len(critical) > 0 {
		p.PrintError("Invalid credentials", critical[0], nil)
		return critical[0]
	}
	if len(warnings) > 0 {
		details := make(map[string]string, len(warnings))
		for i, w := range warnings {
			details[fmt.Sprintf("%d", i+1)] = w.Error()
		}
		p.PrintWarning("The device may fail to join this network", details)
	}
	return nil
}
