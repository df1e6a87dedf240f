package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/TheIdeem/supabase-mcp-server/internal/notify"
	"github.com/TheIdeem/supabase-mcp-server/internal/schema"
	"github.com/TheIdeem/supabase-mcp-server/internal/storage"
	"github.com/TheIdeem/supabase-mcp-server/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, text string) error {
	n.messages = append(n.messages, text)
	return nil
}

type harness struct {
	store    *storage.MemoryStorage
	opened   int
	notifier *recordingNotifier
	output   string
}

// newHarness clears the environment, points storage at memory and the
// notifier at a recorder.
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    storage.NewMemoryStorage(),
		notifier: &recordingNotifier{},
		output:   filepath.Join(t.TempDir(), "create_ai_helper_tables.sql"),
	}
	for _, key := range []string{
		"SUPABASE_PROJECT_REF", "SUPABASE_SERVICE_ROLE_KEY", "SUPABASE_URL", "DATABASE_URL",
		"SCHEMA_OUTPUT", "PROBE_TIMEOUT", "TELEGRAM_TOKEN", "TELEGRAM_CHAT_ID",
	} {
		t.Setenv(key, "")
	}

	origLogger, origStorage, origNotifier := newLogger, openStorage, newNotifier
	t.Cleanup(func() {
		newLogger, openStorage, newNotifier = origLogger, origStorage, origNotifier
	})
	newLogger = func(bool) (*zap.Logger, error) { return zap.NewNop(), nil }
	openStorage = func(*config.Config, *zap.Logger) (storage.Storage, error) {
		h.opened++
		return h.store, nil
	}
	newNotifier = func(config.TelegramConfig, *zap.Logger) (notify.Notifier, error) {
		return h.notifier, nil
	}
	return h
}

func (h *harness) credentials(t *testing.T) {
	t.Setenv("SUPABASE_PROJECT_REF", "abcd1234")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "service-key")
}

func execute(args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", ""}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestProvisionMissingCredentials(t *testing.T) {
	h := newHarness(t)

	_, err := execute("--output", h.output)
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrMissingCredentials))
	assert.Zero(t, h.opened)
	assert.Zero(t, h.store.Calls())
	assert.NoFileExists(t, h.output)
}

func TestProvisionOnlyProjectRef(t *testing.T) {
	h := newHarness(t)
	t.Setenv("SUPABASE_PROJECT_REF", "abcd1234")

	_, err := execute("--output", h.output)
	assert.ErrorIs(t, err, config.ErrMissingCredentials)
	assert.Zero(t, h.opened)
}

func TestProvisionMissingTables(t *testing.T) {
	h := newHarness(t)
	h.credentials(t)

	out, err := execute("--output", h.output)
	require.NoError(t, err)

	assert.Contains(t, out, "Connecting to Supabase at https://abcd1234.supabase.co")
	assert.Contains(t, out, "Table ai_suggestions does not exist. Creation required.")
	assert.Contains(t, out, "CREATE TABLE IF NOT EXISTS public.ai_suggestions")
	assert.Contains(t, out, "Done.")

	data, err := os.ReadFile(h.output)
	require.NoError(t, err)
	assert.Equal(t, schema.Render(schema.Default()), string(data))
	assert.Equal(t, 2, h.store.Calls())
	assert.Empty(t, h.notifier.messages)
}

func TestProvisionUnexpectedErrorKeepsExitStatus(t *testing.T) {
	h := newHarness(t)
	h.credentials(t)
	h.store.CreateTable("ai_suggestions", "id")
	h.store.FailWith("user_searches", errors.New("timeout"))

	out, err := execute("--output", h.output)
	require.NoError(t, err)
	assert.Contains(t, out, "Error checking table user_searches: timeout")
	assert.FileExists(t, h.output)
}

func TestProvisionOutputFromEnvironment(t *testing.T) {
	h := newHarness(t)
	h.credentials(t)
	t.Setenv("SCHEMA_OUTPUT", h.output)

	_, err := execute()
	require.NoError(t, err)
	assert.FileExists(t, h.output)
}

func TestProvisionWriteFailure(t *testing.T) {
	h := newHarness(t)
	h.credentials(t)

	_, err := execute("--output", filepath.Join(t.TempDir(), "missing", "out.sql"))
	assert.Error(t, err)
}

func TestProvisionNotifies(t *testing.T) {
	h := newHarness(t)
	h.credentials(t)
	h.store.CreateTable("ai_suggestions", "id")
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	_, err := execute("--output", h.output)
	require.NoError(t, err)

	require.Len(t, h.notifier.messages, 1)
	assert.Contains(t, h.notifier.messages[0], "ai_suggestions: exists")
	assert.Contains(t, h.notifier.messages[0], "user_searches: missing")
}

func TestSQLCommand(t *testing.T) {
	h := newHarness(t)

	out, err := execute("sql")
	require.NoError(t, err)
	assert.Equal(t, schema.Render(schema.Default()), out)

	_, err = execute("sql", "--output", h.output)
	require.NoError(t, err)
	data, err := os.ReadFile(h.output)
	require.NoError(t, err)
	assert.Equal(t, out, string(data))
	assert.Zero(t, h.opened)
}

func TestVerifyCommand(t *testing.T) {
	h := newHarness(t)
	h.credentials(t)
	h.store.CreateTable("ai_suggestions", "id")

	out, err := execute("verify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user_searches")
	assert.Contains(t, out, "ai_suggestions: exists")
	assert.Contains(t, out, "user_searches: missing")

	h.store.CreateTable("user_searches", "id")
	_, err = execute("verify")
	assert.NoError(t, err)
}

func TestTablesCommand(t *testing.T) {
	h := newHarness(t)
	h.credentials(t)
	h.store.CreateTable("users", "id", "email")
	h.store.AddRow("users")
	h.store.CreateTable("extractions", "id")

	out, err := execute("tables", "--table", "users,extractions,profiles")
	require.NoError(t, err)

	assert.Contains(t, out, "- users: exists\n    columns: email, id\n")
	assert.Contains(t, out, "- extractions: exists\n    table is empty\n")
	assert.Contains(t, out, "- profiles: does not exist or error: relation \"public.profiles\" does not exist\n")
}
