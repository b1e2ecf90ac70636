// Package config loads the wifiportal daemon configuration.
//
// Values are layered, later sources overriding earlier ones:
//
//  1. built-in defaults (Default)
//  2. a YAML file: --config, $WIFIPORTAL_CONFIG, the user config path, or
//     /etc/wifiportal/config.yaml
//  3. environment variables: WIFIPORTAL_<SECTION>__<KEY>, for example
//     WIFIPORTAL_STATION__RETRY_INTERVAL=10s
//
// # Configuration File Location
//
// The user configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/wifiportal/config.yaml or $HOME/.config/wifiportal/config.yaml
//   - macOS: $HOME/.config/wifiportal/config.yaml
//   - Windows: %LOCALAPPDATA%\wifiportal\config.yaml
//
// # Usage Example
//
//	cfg, err := config.Load(flagPath)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Write a commented default file for editing
//	if err := config.WriteDefault("/etc/wifiportal/config.yaml", false); err != nil {
//	    log.Fatal(err)
//	}
//
// # Security
//
// The portal access point password is stored in clear text. Saved network
// credentials never live here; they are kept in the credential record under
// storage.dir.
package config
