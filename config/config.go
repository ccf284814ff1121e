// Package config loads the tag station's TOML configuration file.
//
// Every key is optional; keys that are absent keep their defaults. Example:
//
//	port = 18080
//	api_secret = "change-me"
//	advertise = true
//	reset_on_disconnect = true
//	driver = "pcsc"
//	device = ""
//	debug = false
//	message = "hello"
//
//	[permissions]
//	read = true
//	write = false
//	read_only = false
//
//	[tls]
//	enabled = true
//	bootstrap_port = 18081
package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dotside-studios/tagstation/nfc"
)

const (
	// DefaultPort is the HTTP and WebSocket port used when none is configured.
	DefaultPort = 18080

	// DefaultBootstrapPort serves the local CA when TLS is enabled.
	DefaultBootstrapPort = 18081
)

// Config is the fully resolved agent configuration.
type Config struct {
	Port              int
	APISecret         string
	Advertise         bool
	ResetOnDisconnect bool
	Driver            string
	Device            string // libnfc connection string; empty means every device
	Debug             bool

	// TLS serves https:// and wss:// with a certificate from the local CA.
	TLS bool
	// BootstrapPort serves the CA over plain HTTP; 0 disables it.
	BootstrapPort int

	// Operation holds the permissions and message set in the file.
	Operation OperationOverrides
}

// OperationOverrides are the operation settings a file defines. Nil fields
// were not present and leave the live configuration untouched.
type OperationOverrides struct {
	Read     *bool
	Write    *bool
	ReadOnly *bool

	// Message is set when the file defines message; an empty string clears it.
	Message *string
}

// Empty reports whether no operation setting was defined.
func (o OperationOverrides) Empty() bool {
	return o.Read == nil && o.Write == nil && o.ReadOnly == nil && o.Message == nil
}

// ApplyTo merges the defined settings into c with a single update.
func (o OperationOverrides) ApplyTo(c *nfc.OperationConfiguration) {
	if o.Empty() {
		return
	}
	snap := c.Snapshot()
	if o.Read != nil {
		snap.Read = *o.Read
	}
	if o.Write != nil {
		snap.Write = *o.Write
	}
	if o.ReadOnly != nil {
		snap.ReadOnly = *o.ReadOnly
	}
	if o.Message != nil {
		if *o.Message == "" {
			snap.Message = nil
		} else {
			msg := *o.Message
			snap.Message = &msg
		}
	}
	c.Apply(snap)
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Port:              DefaultPort,
		Advertise:         true,
		ResetOnDisconnect: true,
		Driver:            nfc.DriverTypePCSC,
		BootstrapPort:     DefaultBootstrapPort,
	}
}

type fileConfig struct {
	Port              int             `toml:"port"`
	APISecret         string          `toml:"api_secret"`
	Advertise         bool            `toml:"advertise"`
	ResetOnDisconnect bool            `toml:"reset_on_disconnect"`
	Driver            string          `toml:"driver"`
	Device            string          `toml:"device"`
	Debug             bool            `toml:"debug"`
	Message           string          `toml:"message"`
	Permissions       permissionsFile `toml:"permissions"`
	TLS               tlsFile         `toml:"tls"`
}

type tlsFile struct {
	Enabled       bool `toml:"enabled"`
	BootstrapPort int  `toml:"bootstrap_port"`
}

type permissionsFile struct {
	Read     bool `toml:"read"`
	Write    bool `toml:"write"`
	ReadOnly bool `toml:"read_only"`
}

// Load reads path and overlays the keys it defines onto Default().
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("api_secret") {
		cfg.APISecret = strings.TrimSpace(raw.APISecret)
	}
	if meta.IsDefined("advertise") {
		cfg.Advertise = raw.Advertise
	}
	if meta.IsDefined("reset_on_disconnect") {
		cfg.ResetOnDisconnect = raw.ResetOnDisconnect
	}
	if meta.IsDefined("driver") {
		cfg.Driver = strings.ToLower(strings.TrimSpace(raw.Driver))
	}
	if meta.IsDefined("device") {
		cfg.Device = strings.TrimSpace(raw.Device)
	}
	if meta.IsDefined("debug") {
		cfg.Debug = raw.Debug
	}
	if meta.IsDefined("message") {
		msg := raw.Message
		cfg.Operation.Message = &msg
	}
	if meta.IsDefined("permissions", "read") {
		cfg.Operation.Read = &raw.Permissions.Read
	}
	if meta.IsDefined("permissions", "write") {
		cfg.Operation.Write = &raw.Permissions.Write
	}
	if meta.IsDefined("permissions", "read_only") {
		cfg.Operation.ReadOnly = &raw.Permissions.ReadOnly
	}
	if meta.IsDefined("tls", "enabled") {
		cfg.TLS = raw.TLS.Enabled
	}
	if meta.IsDefined("tls", "bootstrap_port") {
		cfg.BootstrapPort = raw.TLS.BootstrapPort
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return nfc.NewConfigurationError("config", fmt.Sprintf("port %d out of range", c.Port))
	}
	if c.BootstrapPort < 0 || c.BootstrapPort > 65535 {
		return nfc.NewConfigurationError("config", fmt.Sprintf("bootstrap port %d out of range", c.BootstrapPort))
	}
	if c.TLS && c.BootstrapPort == c.Port {
		return nfc.NewConfigurationError("config", "bootstrap port must differ from the server port")
	}
	if !slices.Contains(nfc.GetAllDriverTypes(), c.Driver) {
		return nfc.NewConfigurationError("config", fmt.Sprintf("unknown driver %q (want one of %s)",
			c.Driver, strings.Join(nfc.GetAllDriverTypes(), ", ")))
	}
	return nil
}
