package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/channeltime/ctw/internal/cli"
	"github.com/channeltime/ctw/internal/config"
)

const quickStart = `ctw - channel watch-time agent

Quick start:
  ctw run                               Start the agent daemon
  ctw status                            Show credential, session, and queue state

For help:
  ctw --help                            All commands and flags
`

func main() {
	// Show quick start if no args provided
	if len(os.Args) == 1 {
		fmt.Print(quickStart)
		return
	}

	// Load configuration from files/environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
	}

	var c cli.CLI

	// Apply config defaults before parsing; CLI flags override them
	vars := kong.Vars{
		"config_collector": cfg.Daemon.CollectorURL,
		"config_listen":    cfg.Daemon.ListenAddr,
	}

	ctx := kong.Parse(&c,
		kong.Name("ctw"),
		kong.Description("channeltime watch-time agent: aggregates channel heartbeats and ships them to the collector"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		vars,
	)

	globals := cli.NewGlobalsWithConfig(&c, cfg)
	err = ctx.Run(globals)
	if err != nil {
		os.Exit(1)
	}
}
