package main

import (
	"context"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/yarkm13/red-connector-http/internal/config"
	"github.com/yarkm13/red-connector-http/internal/connerr"
	"github.com/yarkm13/red-connector-http/internal/logging"
	"github.com/yarkm13/red-connector-http/internal/receive"
	"github.com/yarkm13/red-connector-http/internal/transport"
)

// app holds the state shared by every command: the global flags and the
// configuration, logger and engine built from them on first use.
type app struct {
	ctx    context.Context
	stdin  *os.File
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string

	config *config.Config
	logger *slog.Logger
	engine *receive.Engine
}

func newApp(ctx context.Context) *app {
	return &app{ctx: ctx, stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
}

// flagSet returns a flag set for command name carrying the global flags.
func (a *app) flagSet(name string) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.StringVar(&a.configPath, "config", "", "YAML configuration file (default $"+config.EnvVar+")")
	flagSet.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	return flagSet
}

// setup loads the configuration and builds the logger and engine. It runs
// after flag parsing so the global flags are honored.
func (a *app) setup() error {
	if a.engine != nil {
		return nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return connerr.Config("%w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return connerr.Config("%w", err)
	}
	a.config = cfg
	a.logger = logging.New(a.stderr, cfg.Log.Format, level)

	settings := transport.Options{
		ConnectTimeout: cfg.HTTP.ConnectTimeout,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		Compression:    cfg.CompressionEnabled(),
		UserAgent:      cfg.HTTP.UserAgent,
		KnownHostsFile: cfg.SSH.KnownHosts,
	}
	if cfg.HTTP.CAFile != "" {
		pool, err := loadRootCAs(cfg.HTTP.CAFile)
		if err != nil {
			return err
		}
		settings.RootCAs = pool
	}
	a.engine = receive.New(settings, a.logger)
	return nil
}

// loadRootCAs appends the PEM bundle at path to the system roots.
func loadRootCAs(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, connerr.Config("reading CA file: %w", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, connerr.Config("CA file %s contains no PEM certificates", path)
	}
	return pool, nil
}

func (a *app) printVersion() error {
	_, err := fmt.Fprintln(a.stdout, cliVersion)
	return err
}
