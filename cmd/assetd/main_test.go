package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "absent.env")))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "assetd dev\n", out)
}

func TestAuditEmptyStore(t *testing.T) {
	root := t.TempDir()
	t.Setenv("STORAGE_PATH", root)
	t.Setenv("CATALOG_DRIVER", "sqlite3")

	out, err := run(t, "audit", "--prune", "--min-age", "2h")
	require.NoError(t, err)

	var report struct {
		Records   int   `json:"records"`
		Artifacts int   `json:"artifacts"`
		Missing   []any `json:"missing"`
		Orphans   []any `json:"orphans"`
		Pruned    int   `json:"pruned"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.Zero(t, report.Records)
	assert.Zero(t, report.Artifacts)
	assert.NotNil(t, report.Missing)
	assert.NotNil(t, report.Orphans)
}

func TestAuditBadConfig(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "tape")
	_, err := run(t, "audit")
	assert.Error(t, err)
}
