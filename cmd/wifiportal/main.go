// Wifiportal provisions WiFi credentials on a headless Linux device.
//
// The run command starts the daemon: it joins a saved network when one is in
// range and otherwise raises an access point with a captive configuration
// portal. The remaining commands talk to a running portal from another
// machine, or manage the local credential record.
//
// Usage:
//
//	wifiportal [command] [flags]
//
// See 'wifiportal --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/muurk/wifiportal/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wifiportal",
	Short: "WiFi provisioning daemon and portal client",
	Long: `A WiFi provisioning daemon for headless Linux devices.

'wifiportal run' keeps the device on a known network. When no saved network
can be joined it opens an access point and a captive portal where a phone or
laptop can pick a network and enter its passphrase.

The other commands find and drive a portal from a second machine, or edit the
local credential record directly.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var configPath string

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: search standard locations)")

	rootCmd.AddCommand(versionCmd)
}

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		if versionJSON {
			data, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wifiportal %s (commit: %s, %s, %s)\n",
			info.Version, info.Commit, info.GoVersion, info.Platform)
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print as JSON")
}
