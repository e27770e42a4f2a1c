package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"

	"github.com/channeltime/ctw/internal/agent"
)

// StatusCmd queries a running agent over its local API.
type StatusCmd struct {
	Listen string `help:"Agent listen address" default:"${config_listen}"`
}

// Run executes the status command.
func (c *StatusCmd) Run(globals *Globals) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + c.Listen + "/v1/status")
	if err != nil {
		return outputErrorCommon(globals, "AGENT_UNREACHABLE",
			fmt.Sprintf("cannot reach agent at %s: %s", c.Listen, err),
			"is 'ctw run' running?")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return outputErrorCommon(globals, "STATUS_FAILED",
			fmt.Sprintf("agent returned HTTP %d", resp.StatusCode))
	}

	var st agent.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return outputErrorCommon(globals, "STATUS_DECODE", err.Error())
	}

	// Pipes get json by default, but an explicit --format wins.
	format := globals.Format
	if !globals.FormatSet {
		if f, ok := globals.Stdout.(*os.File); ok && !isatty.IsTerminal(f.Fd()) {
			format = "json"
		}
	}

	if format == "json" {
		return json.NewEncoder(globals.Stdout).Encode(st)
	}

	channel := st.ActiveChannel
	if channel == "" {
		channel = "(none)"
	}
	table := tablewriter.NewTable(globals.Stdout)
	table.Header("Field", "Value")
	table.Append([]string{"Credential held", strconv.FormatBool(st.HasCredential)})
	table.Append([]string{"Active channel", channel})
	table.Append([]string{"Heartbeats this window", strconv.Itoa(st.HeartbeatCount)})
	table.Append([]string{"Pending submissions", strconv.Itoa(st.PendingCount)})
	return table.Render()
}
