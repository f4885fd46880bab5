// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"bytes"
	"io"
	"net"
	"os"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/lumberjack/v2"
	"gopkg.in/yaml.v3"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/juju/kubemirror/relay"
)

// Config is the relay daemon's configuration, read from YAML.
type Config struct {
	// Listen is the address the HTTP server binds.
	Listen string `yaml:"listen"`

	// Kubeconfig is the path of a kubeconfig file. Empty uses the
	// in-cluster service account.
	Kubeconfig string `yaml:"kubeconfig,omitempty"`

	// Context selects a kubeconfig context other than the current one.
	Context string `yaml:"context,omitempty"`

	QueueSize  int           `yaml:"queue-size"`
	PingPeriod time.Duration `yaml:"ping-period"`

	// LoggingConfig is a loggo specification, e.g. "<root>=INFO".
	LoggingConfig string `yaml:"logging-config"`

	// LogFile, when set, receives log output as well as stderr. It is
	// rotated at LogFileMaxSize megabytes.
	LogFile        string `yaml:"log-file,omitempty"`
	LogFileMaxSize int    `yaml:"log-file-max-size"`
}

// DefaultConfig returns the configuration used for values a file does
// not set.
func DefaultConfig() Config {
	return Config{
		Listen:         ":17080",
		QueueSize:      relay.DefaultQueueSize,
		PingPeriod:     relay.DefaultPingPeriod,
		LoggingConfig:  "<root>=INFO",
		LogFileMaxSize: 300,
	}
}

// ReadConfig reads the file at path over the defaults. Unknown keys
// are rejected.
func ReadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Annotatef(err, "reading config %q", path)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Annotatef(err, "parsing config %q", path)
	}
	return cfg, errors.Trace(cfg.Validate())
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return errors.NotValidf("listen address %q", c.Listen)
	}
	if c.Context != "" && c.Kubeconfig == "" {
		return errors.NotValidf("context without kubeconfig")
	}
	if c.QueueSize <= 0 {
		return errors.NotValidf("queue-size %d", c.QueueSize)
	}
	if c.PingPeriod <= 0 {
		return errors.NotValidf("ping-period %v", c.PingPeriod)
	}
	if c.LogFileMaxSize <= 0 {
		return errors.NotValidf("log-file-max-size %d", c.LogFileMaxSize)
	}
	if _, err := loggo.ParseConfigString(c.LoggingConfig); err != nil {
		return errors.NewNotValid(err, "logging-config")
	}
	return nil
}

// RESTConfig returns the control plane connection described by the
// config.
func (c Config) RESTConfig() (*rest.Config, error) {
	if c.Kubeconfig == "" {
		cfg, err := rest.InClusterConfig()
		return cfg, errors.Annotate(err, "loading in-cluster config")
	}
	loader := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		&clientcmd.ClientConfigLoadingRules{ExplicitPath: c.Kubeconfig},
		&clientcmd.ConfigOverrides{CurrentContext: c.Context},
	)
	cfg, err := loader.ClientConfig()
	return cfg, errors.Annotatef(err, "loading kubeconfig %q", c.Kubeconfig)
}

// logWriter returns a rotating writer for the log file, or nil when no
// log file is configured.
func (c Config) logWriter() io.Writer {
	if c.LogFile == "" {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   c.LogFile,
		MaxSize:    c.LogFileMaxSize,
		MaxBackups: 2,
		Compress:   true,
	}
}
