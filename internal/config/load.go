package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override. A double underscore
	// separates levels: WIFIPORTAL_PORTAL__AP_NAME sets portal.ap_name.
	EnvPrefix = "WIFIPORTAL_"

	// ConfigPathEnvVar overrides the config file location
	ConfigPathEnvVar = "WIFIPORTAL_CONFIG"
)

// envAliases map flat variables that predate the nested form
var envAliases = map[string]string{
	"log_level": "logging.level",
}

// Load builds the configuration from defaults, then the YAML file at path
// (if any), then WIFIPORTAL_ environment variables. An empty path searches
// the default locations; a missing file is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = FindConfigFile()
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envTransform maps WIFIPORTAL_SECTION__KEY to section.key
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if alias, ok := envAliases[key]; ok {
		return alias
	}
	return strings.ReplaceAll(key, "__", ".")
}

// FindConfigFile returns the first existing file among WIFIPORTAL_CONFIG,
// the user config path and /etc/wifiportal/config.yaml, or "" when none exists
func FindConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		return envPath
	}

	var candidates []string
	if userPath, err := GetConfigPath(); err == nil {
		candidates = append(candidates, userPath)
	}
	candidates = append(candidates, SystemConfigPath)

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Validate checks values that would otherwise fail deep inside the daemon
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}

	switch c.Radio.Driver {
	case DriverNMCLI, DriverSimulated:
	default:
		return fmt.Errorf("radio.driver must be %q or %q, got %q", DriverNMCLI, DriverSimulated, c.Radio.Driver)
	}

	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir is required")
	}
	if c.Portal.HTTPAddr == "" || c.Portal.DNSAddr == "" {
		return fmt.Errorf("portal.http_addr and portal.dns_addr are required")
	}
	if c.Portal.RestartDelay < 0 {
		return fmt.Errorf("portal.restart_delay must not be negative")
	}

	if c.Station.MaxAttempts < 1 {
		return fmt.Errorf("station.max_attempts must be at least 1, got %d", c.Station.MaxAttempts)
	}
	if c.Station.RetryInterval <= 0 || c.Station.ConnectTimeout <= 0 || c.Station.TickInterval <= 0 {
		return fmt.Errorf("station intervals and timeouts must be positive")
	}

	if c.Station.StaticIP != "" {
		if _, err := c.Station.Static(); err != nil {
			return err
		}
	}

	if (c.Status.CertFile == "") != (c.Status.KeyFile == "") {
		return fmt.Errorf("status.cert_file and status.key_file must be set together")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

// StaticAddrs holds the parsed static addressing
type StaticAddrs struct {
	IP, Gateway, Subnet, DNS netip.Addr
}

// Static parses the static addressing fields. DNS may be empty.
func (s StationConfig) Static() (StaticAddrs, error) {
	var out StaticAddrs
	fields := []struct {
		name     string
		value    string
		dst      *netip.Addr
		optional bool
	}{
		{"station.static_ip", s.StaticIP, &out.IP, false},
		{"station.gateway", s.Gateway, &out.Gateway, false},
		{"station.subnet", s.Subnet, &out.Subnet, false},
		{"station.dns", s.DNS, &out.DNS, true},
	}
	for _, f := range fields {
		if f.value == "" && f.optional {
			continue
		}
		addr, err := netip.ParseAddr(f.value)
		if err != nil || !addr.Is4() {
			return StaticAddrs{}, fmt.Errorf("%s must be an IPv4 address, got %q", f.name, f.value)
		}
		*f.dst = addr
	}
	return out, nil
}
