package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/muurk/wifiportal/internal/config"
	"github.com/muurk/wifiportal/internal/credentials"
	"github.com/muurk/wifiportal/internal/ui"
)

var (
	credPassword   string
	credYes        bool
	configInitPath string
	configForce    bool
)

func init() {
	credentialsCmd.AddCommand(credentialsListCmd, credentialsAddCmd, credentialsClearCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd)

	rootCmd.AddCommand(credentialsCmd)
	rootCmd.AddCommand(configCmd)
}

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Inspect or edit the saved networks on this device",
	Long: `Read and write the credential record the daemon uses.

Changes take effect the next time the daemon starts. Stop the daemon first:
it keeps its own copy in memory and rewrites the record on every save.`,
}

var credentialsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the saved networks, passphrases included",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		store.Load()
		store.Print(cmd.OutOrStdout())
		return nil
	},
}

var credentialsAddCmd = &cobra.Command{
	Use:   "add SSID",
	Short: "Save a network and make it the first one tried",
	Args:  cobra.ExactArgs(1),
	Example: `  # Prompt for the passphrase
  wifiportal credentials add HomeNet

  # Open network
  wifiportal credentials add Cafe --password ""`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ssid := args[0]
		p := ui.NewPrinter(cmd.OutOrStdout())

		password := credPassword
		if !cmd.Flags().Changed("password") {
			var err error
			if password, err = readPassword(cmd, ssid); err != nil {
				return err
			}
		}

		if err := checkCredential(p, ssid, password); err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		store.Load()
		if err := store.Save(ssid, password); err != nil {
			p.PrintError("Failed to save", err, nil)
			return err
		}

		p.PrintSuccess("Network saved", map[string]string{
			"SSID":     ssid,
			"Position": fmt.Sprintf("1 of %d", store.Count()),
		})
		return nil
	},
}

func init() {
	credentialsAddCmd.Flags().StringVar(&credPassword, "password", "", "Passphrase (prompted when omitted)")
}

var credentialsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every saved network",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		store.Load()

		if !credYes {
			ok := ui.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Clear saved networks", []string{
				fmt.Sprintf("%d saved network(s) will be deleted", store.Count()),
				"The device will open the setup portal on its next start",
			}, "CLEAR")
			if !ok {
				return nil
			}
		}

		if err := store.Clear(); err != nil {
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Saved networks cleared", nil)
		return nil
	},
}

func init() {
	credentialsClearCmd.Flags().BoolVarP(&credYes, "yes", "y", false, "Skip the confirmation prompt")
}

// openStore mounts the configured storage directory
func openStore() (*credentials.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	storage := credentials.NewDirStorage(cfg.Storage.Dir)
	if err := storage.Mount(); err != nil {
		return nil, err
	}
	return credentials.NewStore(storage, cfg.Storage.Record), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or print the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every default spelled out",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configInitPath
		if path == "" {
			var err error
			if path, err = config.GetConfigPath(); err != nil {
				return err
			}
		}

		if err := config.WriteDefault(path, configForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().StringVar(&configInitPath, "path", "", "Where to write the file (default: user config directory)")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Replace an existing file")
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration after file and environment overrides",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	},
}
