package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/retroloop/internal/server"
)

func execBoard(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewBoardCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestBoardCreateDefaultTemplate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "retro.db")

	buf, err := execBoard(t, "json", "create", "--db", dbPath)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "retro", data["template"])
	assert.Equal(t, "Sprint Retrospective", data["name"])
	assert.NotEmpty(t, data["id"])

	// The board is actually persisted with the template's policy.
	st, err := server.OpenStore(dbPath)
	require.NoError(t, err)
	defer st.Close()

	cfg, err := server.New(st).BoardConfig(context.Background(), data["id"].(string))
	require.NoError(t, err)
	assert.Equal(t, "Sprint Retrospective", cfg.Name)
	assert.Equal(t, 5, cfg.ReactionQuotaPerUser)
	assert.Equal(t, 1000, cfg.MaxContentLength)
	assert.False(t, cfg.Closed)
}

func TestBoardCreateFromTemplateDir(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "retro.db")
	dir := writeCUEDir(t, map[string]string{"retro.cue": validTemplateCUE})

	buf, err := execBoard(t, "text", "create",
		"--db", dbPath, "--templates", dir, "--name", "Sprint 42")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Sprint 42")
}

func TestBoardCreateUnknownTemplate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "retro.db")

	buf, err := execBoard(t, "text", "create", "--db", dbPath, "--template", "kanban")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "E005")
}

func TestBoardCloseAndReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "retro.db")

	buf, err := execBoard(t, "json", "create", "--db", dbPath)
	require.NoError(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	boardID := resp.Data.(map[string]interface{})["id"].(string)

	out, err := execBoard(t, "text", "close", "--db", dbPath, boardID)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "now closed")

	st, err := server.OpenStore(dbPath)
	require.NoError(t, err)
	cfg, err := server.New(st).BoardConfig(context.Background(), boardID)
	require.NoError(t, err)
	require.NoError(t, st.Close())
	assert.True(t, cfg.Closed)

	out, err = execBoard(t, "text", "reopen", "--db", dbPath, boardID)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "now open")
}

func TestBoardCloseUnknownBoard(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "retro.db")

	// Opening the store creates the schema even with no boards.
	st, err := server.OpenStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = execBoard(t, "text", "close", "--db", dbPath, "ghost")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
