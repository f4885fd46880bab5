// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// kubemirrord relays control plane change streams to dashboard
// clients over websocket sessions.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/juju/kubemirror/changestream"
	"github.com/juju/kubemirror/relay"
)

var logger = loggo.GetLogger("kubemirror.kubemirrord")

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(Main(os.Args[1:]))
}

// Main runs the daemon with the supplied arguments and returns the
// process exit code.
func Main(args []string) int {
	command := &relayCommand{}
	flags := gnuflag.NewFlagSet("kubemirrord", gnuflag.ContinueOnError)
	flags.SetOutput(os.Stderr)
	command.SetFlags(flags)
	if err := flags.Parse(true, args); err != nil {
		return 2
	}
	if err := command.Init(flags.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := command.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR %v\n", err)
		return 1
	}
	return 0
}

// relayCommand holds the daemon's flags. Flags that are set override
// the config file.
type relayCommand struct {
	configPath    string
	listen        string
	kubeconfig    string
	kubeContext   string
	queueSize     int
	pingPeriod    time.Duration
	loggingConfig string
	logFile       string
}

// SetFlags registers the command's flags.
func (c *relayCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "path of the YAML config file")
	f.StringVar(&c.listen, "listen", "", "address to serve on")
	f.StringVar(&c.kubeconfig, "kubeconfig", "", "kubeconfig file; in-cluster config if unset")
	f.StringVar(&c.kubeContext, "context", "", "kubeconfig context to use")
	f.IntVar(&c.queueSize, "queue-size", 0, "events buffered per subscription")
	f.DurationVar(&c.pingPeriod, "ping-period", 0, "session keepalive interval")
	f.StringVar(&c.loggingConfig, "logging-config", "", "loggo logging specification")
	f.StringVar(&c.logFile, "log-file", "", "also write logs to this file, rotating it")
}

// Init checks there are no positional arguments.
func (c *relayCommand) Init(args []string) error {
	if len(args) > 0 {
		return errors.Errorf("unrecognized args: %q", args)
	}
	return nil
}

// config returns the config file, or the defaults, overridden by any
// flags that were set.
func (c *relayCommand) config() (Config, error) {
	cfg := DefaultConfig()
	if c.configPath != "" {
		var err error
		if cfg, err = ReadConfig(c.configPath); err != nil {
			return Config{}, errors.Trace(err)
		}
	}
	if c.listen != "" {
		cfg.Listen = c.listen
	}
	if c.kubeconfig != "" {
		cfg.Kubeconfig = c.kubeconfig
	}
	if c.kubeContext != "" {
		cfg.Context = c.kubeContext
	}
	if c.queueSize != 0 {
		cfg.QueueSize = c.queueSize
	}
	if c.pingPeriod != 0 {
		cfg.PingPeriod = c.pingPeriod
	}
	if c.loggingConfig != "" {
		cfg.LoggingConfig = c.loggingConfig
	}
	if c.logFile != "" {
		cfg.LogFile = c.logFile
	}
	return cfg, errors.Trace(cfg.Validate())
}

// Run serves the relay until ctx is done.
func (c *relayCommand) Run(ctx context.Context) error {
	cfg, err := c.config()
	if err != nil {
		return errors.Trace(err)
	}
	if err := loggo.ConfigureLoggers(cfg.LoggingConfig); err != nil {
		return errors.Trace(err)
	}
	if w := cfg.logWriter(); w != nil {
		if err := loggo.RegisterWriter("file", loggo.NewSimpleWriter(w, loggo.DefaultFormatter)); err != nil {
			return errors.Annotate(err, "adding log file writer")
		}
		defer func() { _, _ = loggo.RemoveWriter("file") }()
	}
	changestream.RouteKlog()

	restConfig, err := cfg.RESTConfig()
	if err != nil {
		return errors.Trace(err)
	}
	client, err := changestream.NewClient(restConfig)
	if err != nil {
		return errors.Trace(err)
	}

	metrics := relay.NewMetricsCollector()
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler, err := relay.NewHandler(relay.Config{
		Clock:      clock.WallClock,
		Logger:     loggo.GetLogger("kubemirror.relay"),
		Metrics:    metrics,
		QueueSize:  cfg.QueueSize,
		PingPeriod: cfg.PingPeriod,
	}, func(token string) (relay.StreamOpener, error) {
		opener, err := client.WithBearerToken(token)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return opener, nil
	})
	if err != nil {
		return errors.Trace(err)
	}

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newRouter(handler, registry),
		ReadHeaderTimeout: 10 * time.Second,
	}
	served := make(chan error, 1)
	go func() {
		served <- server.ListenAndServe()
	}()
	logger.Infof("relaying %s on %s", client.Host(), cfg.Listen)

	select {
	case err := <-served:
		handler.Kill()
		_ = handler.Wait()
		return errors.Annotate(err, "serving")
	case <-ctx.Done():
	}

	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Sessions are hijacked connections, which Shutdown does not track.
	handler.Kill()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warningf("shutting down http server: %v", err)
	}
	return errors.Trace(handler.Wait())
}
