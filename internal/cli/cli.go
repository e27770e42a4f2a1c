package cli

import (
	"io"
	"os"

	"github.com/channeltime/ctw/internal/config"
)

// CLI is the top-level command tree. Format has no kong default so an
// empty value means the flag was not given and config decides.
type CLI struct {
	Format  string `help:"Output format: text or json" enum:",text,json"`
	Quiet   bool   `short:"q" help:"Suppress non-essential output"`
	Verbose bool   `short:"v" help:"Enable verbose debug logging"`

	Run    RunCmd    `cmd:"" help:"Run the watch-time agent daemon"`
	Status StatusCmd `cmd:"" help:"Query a running agent"`
}

// Globals carries shared state into every command's Run method.
// FormatSet records whether --format came from the user, so terminal
// detection only applies to the config-derived default.
type Globals struct {
	Format    string
	FormatSet bool
	Quiet     bool
	Verbose   bool
	Config    *config.Config
	Stdout    io.Writer
	Stderr    io.Writer
}

// NewGlobalsWithConfig builds Globals from parsed flags, falling back to
// config values where no flag was given.
func NewGlobalsWithConfig(c *CLI, cfg *config.Config) *Globals {
	format := c.Format
	formatSet := format != ""
	if !formatSet {
		format = cfg.Format
	}
	return &Globals{
		Format:    format,
		FormatSet: formatSet,
		Quiet:     c.Quiet || cfg.Quiet,
		Verbose:   c.Verbose || cfg.Verbose,
		Config:    cfg,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}
}
