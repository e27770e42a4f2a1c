package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/channeltime/ctw/internal/agent"
	"github.com/channeltime/ctw/internal/api"
	"github.com/channeltime/ctw/internal/collector"
	"github.com/channeltime/ctw/internal/credential"
	"github.com/channeltime/ctw/internal/delivery"
	"github.com/channeltime/ctw/internal/pending"
	"github.com/channeltime/ctw/internal/store"
	"github.com/channeltime/ctw/internal/tracker"
)

// RunCmd starts the background agent and its local message listener.
type RunCmd struct {
	Collector string `help:"Collector base URL" default:"${config_collector}"`
	Listen    string `help:"Local listen address for the instrumentation API" default:"${config_listen}"`
	StateDir  string `help:"State directory (default: ~/.ctw/state)"`
}

// Run executes the run command.
func (c *RunCmd) Run(globals *Globals) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	log, err := newLogger(globals)
	if err != nil {
		return outputErrorCommon(globals, "LOGGER_INIT", err.Error())
	}
	defer log.Sync()

	stateDir := c.StateDir
	if stateDir == "" {
		stateDir = globals.Config.Daemon.StateDir
	}
	if stateDir == "" {
		stateDir, err = store.DefaultStateDir()
		if err != nil {
			return outputErrorCommon(globals, "STATE_DIR", fmt.Sprintf("cannot resolve state directory: %s", err))
		}
	}
	st, err := store.NewFileStore(stateDir)
	if err != nil {
		return outputErrorCommon(globals, "STATE_DIR", fmt.Sprintf("cannot open state directory: %s", err))
	}

	dc := globals.Config.Daemon
	clk := clock.New()
	creds := credential.New(st)
	queue := pending.New(st, creds, log, dc.QueueCapacity, dc.MaxRetryAttempts)
	sender := collector.NewClient(c.Collector, dc.SenderTimeout)
	engine := delivery.NewEngine(sender, creds, queue, st, clk, log, dc.MaxRetryAttempts)
	tr := tracker.New(st)
	ag := agent.New(tr, engine, queue, creds, clk, log, dc.FlushInterval)
	srv := api.NewServer(ag, log)

	if !globals.Quiet {
		fmt.Fprintf(globals.Stderr, "ctw agent listening on %s (collector: %s)\n", c.Listen, c.Collector)
		fmt.Fprintln(globals.Stderr, "Press Ctrl+C to stop")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := ag.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return srv.ListenAndServe(gctx, c.Listen)
	})

	if err := g.Wait(); err != nil {
		return outputErrorCommon(globals, "AGENT_FAILED", err.Error())
	}
	return nil
}
