package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/billing-engine/internal/application/service"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`
database:
  path: %q
logger:
  level: "error"
  output_path: "stderr"
  format: "console"
`, filepath.Join(dir, "billing.db"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestMigrateCommand(t *testing.T) {
	cfg := writeConfig(t)

	_, err := run(t, "--config", cfg, "migrate")
	require.NoError(t, err)

	// idempotent
	_, err = run(t, "--config", cfg, "migrate")
	require.NoError(t, err)
}

func TestBulkCommand_ReportsUnknownInvoices(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "--config", cfg, "bulk", "--ids", "41,42,41", "--action", "mark_paid")
	require.NoError(t, err)

	var result service.BulkResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Empty(t, result.Success)
	require.Len(t, result.Rejected, 2)
	for _, item := range result.Rejected {
		assert.Equal(t, service.ReasonNotFound, item.Reason)
	}
}

func TestBulkCommand_RejectsBadIDs(t *testing.T) {
	cfg := writeConfig(t)

	_, err := run(t, "--config", cfg, "bulk", "--ids", "1,x", "--action", "MARK_PAID")
	assert.Error(t, err)
}

func TestBulkCommand_RequiresFlags(t *testing.T) {
	cfg := writeConfig(t)

	_, err := run(t, "--config", cfg, "bulk", "--ids", "1")
	assert.Error(t, err)
}

func TestRoot_MissingConfigFile(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "migrate")
	assert.Error(t, err)
}
