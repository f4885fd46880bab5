// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// kubemirror mirrors a cluster through a relay and prints the
// relationship graph grown from one object each time the mirror
// changes.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/clock"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo"
	"github.com/juju/pubsub/v2"

	"github.com/juju/kubemirror/changestream"
	"github.com/juju/kubemirror/core/graph"
	"github.com/juju/kubemirror/core/kind"
	"github.com/juju/kubemirror/core/mirror"
	"github.com/juju/kubemirror/core/object"
	"github.com/juju/kubemirror/core/relation"
	"github.com/juju/kubemirror/worker/mirrorsync"
)

var logger = loggo.GetLogger("kubemirror.cmd")

func main() {
	os.Exit(Main(os.Args[1:], os.Stdout, os.Stderr))
}

// Main runs the command with the supplied arguments and returns the
// process exit code.
func Main(args []string, stdout, stderr io.Writer) int {
	command := &graphCommand{
		catalog: relation.DefaultCatalog(),
		stdout:  stdout,
	}
	flags := gnuflag.NewFlagSet("kubemirror", gnuflag.ContinueOnError)
	flags.SetOutput(stderr)
	command.SetFlags(flags)
	if err := flags.Parse(true, args); err != nil {
		return 2
	}
	if err := command.Init(flags.Args()); err != nil {
		fmt.Fprintf(stderr, "ERROR %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := command.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "ERROR %v\n", err)
		return 1
	}
	return 0
}

type graphCommand struct {
	catalog *relation.Catalog
	stdout  io.Writer

	relayURL      string
	token         string
	namespace     string
	hide          string
	pageSize      int
	window        time.Duration
	loggingConfig string
	cursors       cursorsValue

	root   object.Ref
	hidden set.Strings
}

// SetFlags registers the command's flags.
func (c *graphCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.relayURL, "relay", "ws://localhost:17080/stream", "websocket address of the relay")
	f.StringVar(&c.token, "token", "", "bearer token presented to the relay")
	f.StringVar(&c.namespace, "namespace", "", "namespace to mirror; all namespaces if unset")
	f.StringVar(&c.hide, "hide", "", "comma separated kinds never shown as nodes")
	f.IntVar(&c.pageSize, "page-size", graph.DefaultPageSize, "children of one kind shown before paginating")
	f.DurationVar(&c.window, "window", mirror.DefaultWindow, "quiescence window before the graph is rebuilt")
	f.StringVar(&c.loggingConfig, "logging-config", "<root>=WARNING", "loggo logging specification")
	if c.cursors == nil {
		c.cursors = make(cursorsValue)
	}
	f.Var(c.cursors, "cursor", "page to show, as <pagination-node-id>=<offset>; may be repeated")
}

// Init parses the root ref and the hidden kinds.
func (c *graphCommand) Init(args []string) error {
	if len(args) != 1 {
		return errors.New("expected exactly one root, e.g. Namespace/default")
	}
	root, err := object.ParseRef(args[0])
	if err != nil {
		return errors.Trace(err)
	}
	if _, err := c.catalog.Resolve(root.Kind); err != nil {
		return errors.Annotate(err, "root")
	}
	c.root = root

	c.hidden = set.NewStrings()
	for _, name := range strings.Split(c.hide, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := c.catalog.Resolve(kind.Kind(name)); err != nil {
			return errors.Annotate(err, "hide")
		}
		c.hidden.Add(name)
	}
	if c.pageSize <= 0 {
		return errors.NotValidf("page size %d", c.pageSize)
	}
	return nil
}

// Run mirrors until ctx is done, printing the graph as a YAML document
// after every recompute.
func (c *graphCommand) Run(ctx context.Context) error {
	if err := loggo.ConfigureLoggers(c.loggingConfig); err != nil {
		return errors.Trace(err)
	}
	changestream.RouteKlog()

	hub := pubsub.NewSimpleHub(nil)
	store, err := mirror.NewStore(mirror.Config{
		Catalog: c.catalog,
		Hub:     hub,
		Clock:   clock.WallClock,
		Logger:  loggo.GetLogger("kubemirror.mirror"),
		Window:  c.window,
	})
	if err != nil {
		return errors.Trace(err)
	}
	defer store.Close()

	watcher := store.Watch()
	defer func() { _ = watcher.Stop() }()

	unsubscribe := hub.Subscribe(mirrorsync.StatusTopic, func(_ string, data interface{}) {
		if change, ok := data.(mirrorsync.StatusChange); ok {
			logger.Infof("mirror %s %s", change.Status, change.Reason)
		}
	})
	defer unsubscribe()

	w, err := mirrorsync.NewWorker(mirrorsync.Config{
		URL:               c.relayURL,
		Token:             c.token,
		Namespace:         c.namespace,
		Catalog:           c.catalog,
		Store:             store,
		Hub:               hub,
		Dialer:            websocket.DefaultDialer,
		Clock:             clock.WallClock,
		Logger:            loggo.GetLogger("kubemirror.mirrorsync"),
		ResubscribeDelay:  mirrorsync.DefaultResubscribeDelay,
		ReconnectDelay:    mirrorsync.DefaultReconnectDelay,
		MaxReconnectDelay: mirrorsync.DefaultMaxReconnectDelay,
	})
	if err != nil {
		return errors.Trace(err)
	}
	stopped := make(chan error, 1)
	go func() {
		stopped <- w.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			w.Kill()
			return errors.Trace(<-stopped)
		case err := <-stopped:
			return errors.Annotate(err, "mirror stopped")
		case snapshot, ok := <-watcher.Changes():
			if !ok {
				w.Kill()
				return errors.Trace(<-stopped)
			}
			if err := c.print(snapshot); err != nil {
				w.Kill()
				<-stopped
				return errors.Trace(err)
			}
		}
	}
}

func (c *graphCommand) print(snapshot *mirror.Snapshot) error {
	g := graph.Build(c.root, snapshot, c.catalog.Table(), graph.Options{
		Hidden:   c.hidden,
		Cursors:  c.cursors,
		PageSize: c.pageSize,
	})
	data, err := render(graph.NodeID(c.root), snapshot.Generation(), g)
	if err != nil {
		return errors.Trace(err)
	}
	_, err = fmt.Fprintf(c.stdout, "---\n%s", data)
	return errors.Trace(err)
}

// cursorsValue collects repeated --cursor flags.
type cursorsValue map[string]int

// Set is part of the gnuflag.Value interface.
func (v cursorsValue) Set(s string) error {
	i := strings.LastIndex(s, "=")
	if i <= 0 {
		return errors.NotValidf("cursor %q", s)
	}
	offset, err := strconv.Atoi(s[i+1:])
	if err != nil || offset < 0 {
		return errors.NotValidf("cursor %q", s)
	}
	v[s[:i]] = offset
	return nil
}

// String is part of the gnuflag.Value interface.
func (v cursorsValue) String() string {
	var parts []string
	for id, offset := range v {
		parts = append(parts, fmt.Sprintf("%s=%d", id, offset))
	}
	return strings.Join(parts, ",")
}
