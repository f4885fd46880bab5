// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package changestream

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/juju/loggo"
	"k8s.io/klog/v2"
)

// klogSink routes the client library's klog output through loggo, so
// it is filtered by the same logging config as everything else.
type klogSink struct {
	logger loggo.Logger
	name   string
	values []interface{}
}

// RouteKlog sends all klog output to the "kubemirror.klog" logger.
func RouteKlog() {
	klog.SetLogger(logr.New(newKlogSink()))
}

func newKlogSink() *klogSink {
	return &klogSink{
		logger: loggo.GetLogger("kubemirror.klog"),
	}
}

// Init is part of logr.LogSink.
func (k *klogSink) Init(logr.RuntimeInfo) {}

// Enabled is part of logr.LogSink. Verbosity above zero maps onto
// debug, and above four onto trace.
func (k *klogSink) Enabled(level int) bool {
	return k.logger.IsLevelEnabled(k.level(level))
}

func (k *klogSink) level(level int) loggo.Level {
	switch {
	case level <= 0:
		return loggo.INFO
	case level <= 4:
		return loggo.DEBUG
	default:
		return loggo.TRACE
	}
}

// Info is part of logr.LogSink.
func (k *klogSink) Info(level int, msg string, keysAndValues ...interface{}) {
	k.logger.Logf(k.level(level), "%s", k.format(msg, keysAndValues))
}

// Error is part of logr.LogSink.
func (k *klogSink) Error(err error, msg string, keysAndValues ...interface{}) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	k.logger.Errorf("%s", k.format(msg, keysAndValues))
}

// WithValues is part of logr.LogSink.
func (k *klogSink) WithValues(keysAndValues ...interface{}) logr.LogSink {
	values := append(append([]interface{}(nil), k.values...), keysAndValues...)
	return &klogSink{logger: k.logger, name: k.name, values: values}
}

// WithName is part of logr.LogSink.
func (k *klogSink) WithName(name string) logr.LogSink {
	if k.name != "" {
		name = k.name + "." + name
	}
	return &klogSink{logger: k.logger, name: name, values: k.values}
}

func (k *klogSink) format(msg string, keysAndValues []interface{}) string {
	var b strings.Builder
	if k.name != "" {
		b.WriteString(k.name)
		b.WriteString(": ")
	}
	b.WriteString(msg)
	all := append(append([]interface{}(nil), k.values...), keysAndValues...)
	for i := 0; i < len(all); i += 2 {
		if i+1 < len(all) {
			fmt.Fprintf(&b, " %v=%v", all[i], all[i+1])
		} else {
			fmt.Fprintf(&b, " %v", all[i])
		}
	}
	return b.String()
}
