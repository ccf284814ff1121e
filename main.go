// Package main runs the tag station agent: it watches NFC readers, reads,
// writes and locks NDEF text on Type 2 tags as configured by the connected
// client, and reports each operation over WebSocket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dotside-studios/tagstation/buildinfo"
	"github.com/dotside-studios/tagstation/config"
	"github.com/dotside-studios/tagstation/nfc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath   string
	portFlag     int
	driverFlag   string
	deviceFlag   string
	secretFlag   string
	debugFlag    bool
	noMDNSFlag   bool
	keepConfFlag bool
	tlsFlag      bool
)

var rootCmd = &cobra.Command{
	Use:   buildinfo.Name,
	Short: buildinfo.DisplayName + " - " + buildinfo.Description,
	Long: `Runs the NFC tag station.

Readers are discovered through PC/SC (default) or libnfc. Each presented
Type 2 tag is read, written and locked according to the permissions set
by the connected WebSocket client or the configuration file.`,
	SilenceUsage: true,
	RunE:         runAgent,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), buildinfo.BuildInfo())
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "TOML configuration file, watched for changes")
	flags.IntVarP(&portFlag, "port", "p", config.DefaultPort, "port for the HTTP and WebSocket server")
	flags.StringVar(&driverFlag, "driver", nfc.DriverTypePCSC, "reader driver ("+strings.Join(nfc.GetAllDriverTypes(), "|")+")")
	flags.StringVar(&deviceFlag, "device", "", "libnfc connection string (default: every device)")
	flags.StringVar(&secretFlag, "secret", "", "API secret required from clients")
	flags.BoolVarP(&debugFlag, "debug", "v", false, "enable debug logging")
	flags.BoolVar(&noMDNSFlag, "no-mdns", false, "do not advertise the station over mDNS")
	flags.BoolVar(&tlsFlag, "tls", false, "serve https:// and wss:// with a certificate from a local CA")
	flags.BoolVar(&keepConfFlag, "keep-config", false, "keep the operation configuration when the client disconnects")

	rootCmd.AddCommand(versionCmd)
}

// defaultConfigPath returns the per-user configuration file if it exists.
func defaultConfigPath() string {
	dir, err := stationDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// resolveConfig loads the file, if any, then lets explicitly set flags win.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if configPath == "" {
		configPath = defaultConfigPath()
	}
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = portFlag
	}
	if flags.Changed("driver") {
		cfg.Driver = strings.ToLower(driverFlag)
	}
	if flags.Changed("device") {
		cfg.Device = deviceFlag
	}
	if flags.Changed("secret") {
		cfg.APISecret = secretFlag
	}
	if flags.Changed("debug") {
		cfg.Debug = debugFlag
	}
	if flags.Changed("tls") {
		cfg.TLS = tlsFlag
	}
	if noMDNSFlag {
		cfg.Advertise = false
	}
	if keepConfFlag {
		cfg.ResetOnDisconnect = false
	}
	return cfg, cfg.Validate()
}

func newLogger(debug bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if debug {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	agent, err := NewAgent(cfg, configPath, logger, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return agent.Run(ctx)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
