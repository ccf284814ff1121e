package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dotside-studios/tagstation/buildinfo"
	"github.com/dotside-studios/tagstation/config"
	"github.com/dotside-studios/tagstation/nfc"
	"github.com/dotside-studios/tagstation/server"
	stationtls "github.com/dotside-studios/tagstation/tls"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DriverFactory opens the reader driver selected by the configuration.
type DriverFactory func(cfg config.Config, logger *zap.Logger) (nfc.Driver, error)

// OpenDriver opens a PC/SC or libnfc driver.
func OpenDriver(cfg config.Config, logger *zap.Logger) (nfc.Driver, error) {
	clock := nfc.NewRealClock()
	switch cfg.Driver {
	case nfc.DriverTypePCSC:
		d, err := nfc.NewPCSCDriver(logger, clock)
		if err != nil {
			return nil, err
		}
		return d, nil
	case nfc.DriverTypeLibNFC:
		return nfc.NewLibNFCDriver(cfg.Device, logger, clock), nil
	default:
		return nil, nfc.NewConfigurationError("OpenDriver", fmt.Sprintf("unknown driver %q", cfg.Driver))
	}
}

// stationDir is the per-user directory holding the configuration file and
// TLS material.
func stationDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config directory: %w", err)
	}
	return filepath.Join(dir, buildinfo.DirName), nil
}

// Agent wires a reader driver to the orchestrator and the server.
type Agent struct {
	Config     config.Config
	ConfigPath string // watched for changes when set

	Logger    *zap.Logger
	Operation *nfc.OperationConfiguration
	Results   *nfc.ResultCache
	Server    *server.Server
	Manager   *nfc.LifecycleManager

	// Certs is set when TLS is enabled.
	Certs *stationtls.Manager

	openDriver DriverFactory
}

// NewAgent builds every component but opens nothing yet.
func NewAgent(cfg config.Config, configPath string, logger *zap.Logger, openDriver DriverFactory) (*Agent, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if openDriver == nil {
		openDriver = OpenDriver
	}

	operation := nfc.NewOperationConfiguration()
	cfg.Operation.ApplyTo(operation)
	results := nfc.NewResultCache()

	var (
		certs             *stationtls.Manager
		certFile, keyFile string
	)
	if cfg.TLS {
		dir, err := stationDir()
		if err != nil {
			return nil, err
		}
		certs = stationtls.NewManager(dir, nil, logger)
		hosts, err := stationtls.LocalHosts()
		if err != nil {
			logger.Warn("failed to list LAN addresses, certificate covers localhost only", zap.Error(err))
		}
		if certFile, keyFile, err = certs.Ensure(hosts); err != nil {
			return nil, fmt.Errorf("prepare TLS certificate: %w", err)
		}
	}

	srv, err := server.New(server.Config{
		Port:              cfg.Port,
		APISecret:         cfg.APISecret,
		Advertise:         cfg.Advertise,
		ResetOnDisconnect: cfg.ResetOnDisconnect,
		TLSCertFile:       certFile,
		TLSKeyFile:        keyFile,
		Operation:         operation,
		Cache:             results,
		Logger:            logger.Named("server"),
	})
	if err != nil {
		return nil, fmt.Errorf("create server: %w", err)
	}

	orch := nfc.NewOrchestrator(operation, logger.Named("orchestrator"))

	return &Agent{
		Config:     cfg,
		ConfigPath: configPath,
		Logger:     logger,
		Operation:  operation,
		Results:    results,
		Server:     srv,
		Manager:    nfc.NewLifecycleManager(orch, srv, logger.Named("lifecycle")),
		Certs:      certs,
		openDriver: openDriver,
	}, nil
}

// Run opens the driver and serves until ctx is done or a component fails.
func (a *Agent) Run(ctx context.Context) error {
	driver, err := a.openDriver(a.Config, a.Logger.Named("driver"))
	if err != nil {
		return fmt.Errorf("open %s driver: %w", a.Config.Driver, err)
	}

	a.Logger.Info("agent starting",
		zap.String("driver", a.Config.Driver),
		zap.Int("port", a.Config.Port),
		zap.Bool("advertise", a.Config.Advertise),
		zap.Bool("tls", a.Certs != nil))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Server.Start(gctx)
	})
	g.Go(func() error {
		if err := a.Manager.Run(gctx, driver); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("reader lifecycle: %w", err)
		}
		return nil
	})
	if a.Certs != nil && a.Config.BootstrapPort > 0 {
		bootstrap := stationtls.NewBootstrapServer(a.Certs, a.Config.BootstrapPort, a.Logger)
		g.Go(func() error {
			return bootstrap.Run(gctx)
		})
	}
	if a.ConfigPath != "" {
		watcher := config.NewWatcher(a.ConfigPath, a.Operation, a.Logger)
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	err = g.Wait()

	if cerr := driver.Close(); cerr != nil {
		a.Logger.Warn("closing driver", zap.Error(cerr))
	}
	a.Manager.Wait()
	a.Logger.Info("agent stopped")
	return err
}
