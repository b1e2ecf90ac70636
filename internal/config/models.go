package config

import "time"

// CurrentVersion is the configuration file format version
const CurrentVersion = 1

// Config is the daemon configuration. Every field has a default, so an empty
// or missing file is valid.
type Config struct {
	Version int           `koanf:"version" yaml:"version"`
	Storage StorageConfig `koanf:"storage" yaml:"storage"`
	Radio   RadioConfig   `koanf:"radio" yaml:"radio"`
	Portal  PortalConfig  `koanf:"portal" yaml:"portal"`
	Station StationConfig `koanf:"station" yaml:"station"`
	Status  StatusConfig  `koanf:"status" yaml:"status"`
	Logging LoggingConfig `koanf:"logging" yaml:"logging"`
}

// StorageConfig locates the credential record
type StorageConfig struct {
	Dir    string `koanf:"dir" yaml:"dir"`       // Directory holding the record
	Record string `koanf:"record" yaml:"record"` // Record file name inside Dir
}

// RadioConfig selects the radio driver
type RadioConfig struct {
	Driver    string `koanf:"driver" yaml:"driver"`       // "nmcli" or "simulated"
	Interface string `koanf:"interface" yaml:"interface"` // Wireless interface for nmcli (e.g., "wlan0")

	// SimulateNetworks lists the networks the simulated driver can see, as
	// ssid[:password[:rssi]] entries separated by commas
	SimulateNetworks string `koanf:"simulate_networks" yaml:"simulate_networks,omitempty"`
}

// PortalConfig configures the captive portal
type PortalConfig struct {
	APName     string `koanf:"ap_name" yaml:"ap_name"`
	APPassword string `koanf:"ap_password" yaml:"ap_password"` // 8-63 characters, otherwise the AP is open
	HTTPAddr   string `koanf:"http_addr" yaml:"http_addr"`
	DNSAddr    string `koanf:"dns_addr" yaml:"dns_addr"`
	Advertise  bool   `koanf:"advertise" yaml:"advertise"` // Register the portal over mDNS

	Stylesheet     string `koanf:"stylesheet" yaml:"stylesheet,omitempty"`           // External stylesheet URL
	StylesheetFile string `koanf:"stylesheet_file" yaml:"stylesheet_file,omitempty"` // Local file served at /styles.css

	RestartDelay time.Duration `koanf:"restart_delay" yaml:"restart_delay"`
}

// StationConfig tunes the connection supervisor
type StationConfig struct {
	MaxAttempts    int           `koanf:"max_attempts" yaml:"max_attempts"`
	RetryInterval  time.Duration `koanf:"retry_interval" yaml:"retry_interval"`
	ConnectTimeout time.Duration `koanf:"connect_timeout" yaml:"connect_timeout"`
	TickInterval   time.Duration `koanf:"tick_interval" yaml:"tick_interval"`

	// Static addressing; leave IP empty for DHCP
	StaticIP string `koanf:"static_ip" yaml:"static_ip,omitempty"`
	Gateway  string `koanf:"gateway" yaml:"gateway,omitempty"`
	Subnet   string `koanf:"subnet" yaml:"subnet,omitempty"`
	DNS      string `koanf:"dns" yaml:"dns,omitempty"`
}

// StatusConfig configures the status server. An empty Addr disables it.
// Setting both CertFile and KeyFile serves it over TLS.
type StatusConfig struct {
	Addr     string `koanf:"addr" yaml:"addr"`
	CertFile string `koanf:"cert_file" yaml:"cert_file,omitempty"`
	KeyFile  string `koanf:"key_file" yaml:"key_file,omitempty"`
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"` // "console" or "json"
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Storage: StorageConfig{
			Dir:    "/var/lib/wifiportal",
			Record: "wifi_credentials.txt",
		},
		Radio: RadioConfig{
			Driver:    DriverNMCLI,
			Interface: "wlan0",
		},
		Portal: PortalConfig{
			APName:       "EasyWiFi setup",
			HTTPAddr:     ":80",
			DNSAddr:      ":53",
			Advertise:    true,
			RestartDelay: 2 * time.Second,
		},
		Station: StationConfig{
			MaxAttempts:    10,
			RetryInterval:  5 * time.Second,
			ConnectTimeout: 10 * time.Second,
			TickInterval:   100 * time.Millisecond,
		},
		Status: StatusConfig{
			Addr: "127.0.0.1:9180",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Radio drivers
const (
	DriverNMCLI     = "nmcli"
	DriverSimulated = "simulated"
)
