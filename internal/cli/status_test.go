package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/channeltime/ctw/internal/agent"
	"github.com/channeltime/ctw/internal/config"
)

func TestStatusCmdRendersJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/status", r.URL.Path)
		json.NewEncoder(w).Encode(agent.Status{
			HasCredential:  true,
			ActiveChannel:  "shroud",
			HeartbeatCount: 4,
			PendingCount:   1,
		})
	}))
	defer srv.Close()

	globals, stdout, _ := testGlobals("json")
	cmd := &StatusCmd{Listen: strings.TrimPrefix(srv.URL, "http://")}
	require.NoError(t, cmd.Run(globals))

	var st agent.Status
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &st))
	require.True(t, st.HasCredential)
	require.Equal(t, "shroud", st.ActiveChannel)
	require.Equal(t, 4, st.HeartbeatCount)
	require.Equal(t, 1, st.PendingCount)
}

func TestStatusCmdRendersTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(agent.Status{ActiveChannel: "shroud", HeartbeatCount: 2})
	}))
	defer srv.Close()

	globals, stdout, _ := testGlobals("text")
	cmd := &StatusCmd{Listen: strings.TrimPrefix(srv.URL, "http://")}
	require.NoError(t, cmd.Run(globals))

	out := stdout.String()
	require.Contains(t, out, "shroud")
	require.Contains(t, out, "Active channel")
	require.Contains(t, out, "Pending submissions")
}

// pipeGlobals points stdout at a pipe so the command sees a real
// non-terminal file, the way a shell pipeline would.
func pipeGlobals(t *testing.T, format string, formatSet bool) (*Globals, func() string) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	globals := &Globals{
		Format:    format,
		FormatSet: formatSet,
		Config:    config.Default(),
		Stdout:    w,
		Stderr:    &bytes.Buffer{},
	}
	return globals, func() string {
		require.NoError(t, w.Close())
		out, err := io.ReadAll(r)
		require.NoError(t, err)
		return string(out)
	}
}

func TestStatusCmdExplicitTextSurvivesPipe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(agent.Status{ActiveChannel: "shroud", HeartbeatCount: 2})
	}))
	defer srv.Close()

	globals, read := pipeGlobals(t, "text", true)
	cmd := &StatusCmd{Listen: strings.TrimPrefix(srv.URL, "http://")}
	require.NoError(t, cmd.Run(globals))

	out := read()
	require.Contains(t, out, "Active channel")
	require.Contains(t, out, "shroud")
}

func TestStatusCmdDefaultFormatFallsBackToJSONOnPipe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(agent.Status{ActiveChannel: "shroud", HeartbeatCount: 2})
	}))
	defer srv.Close()

	globals, read := pipeGlobals(t, "text", false)
	cmd := &StatusCmd{Listen: strings.TrimPrefix(srv.URL, "http://")}
	require.NoError(t, cmd.Run(globals))

	var st agent.Status
	require.NoError(t, json.Unmarshal([]byte(read()), &st))
	require.Equal(t, "shroud", st.ActiveChannel)
}

func TestStatusCmdAgentUnreachable(t *testing.T) {
	globals, _, stderr := testGlobals("text")
	cmd := &StatusCmd{Listen: "127.0.0.1:1"}

	err := cmd.Run(globals)
	require.Error(t, err)
	require.Contains(t, stderr.String(), "AGENT_UNREACHABLE")
}
