package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/pickem/internal/domain/event"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "pickemctl", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"tail", "poll", "reconcile"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	serverFlag := cmd.PersistentFlags().Lookup("server")
	require.NotNil(t, serverFlag)
	assert.Equal(t, "http://localhost:9080", serverFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestInvalidFormatRejected(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"poll", "--format", "yaml"})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestPollCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/feed/poll", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("lastEventId"))
		_ = json.NewEncoder(w).Encode(event.Page{
			Events: []event.Event{{
				ID:      8,
				Kind:    event.KindScoreUpdate,
				Scope:   event.ScopeGlobal,
				Payload: json.RawMessage(`{"game_id":2}`),
			}},
			NextCursor: 8,
		})
	}))
	defer srv.Close()

	out := new(bytes.Buffer)
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"poll", "--server", srv.URL, "--cursor", "7"})
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "score-update")
	assert.Contains(t, out.String(), "lastEventId=8")
}

func TestPollCommandSinceEscaping(t *testing.T) {
	const since = "2026-08-30T12:00:00+02:00"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The zone offset's '+' must survive the query round-trip.
		assert.Equal(t, since, r.URL.Query().Get("since"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(event.Page{Events: []event.Event{}})
	}))
	defer srv.Close()

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"poll", "--server", srv.URL, "--since", since, "--limit", "50"})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	require.NoError(t, cmd.ExecuteContext(context.Background()))
}

func TestReconcileCommand(t *testing.T) {
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		require.Equal(t, "/admin/reconcile", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	out := new(bytes.Buffer)
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"reconcile", "--server", srv.URL})
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Equal(t, http.MethodPost, method)
	assert.Contains(t, out.String(), "ok")
}
