package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blueprint-migrator/internal/config"
)

const legacy = `{"name": "Deals", "flow": [
	{"id": 1, "module": "pipedrive:GetDeal", "version": 1, "parameters": {"__IMTCONN__": 10}, "mapper": {"id": "1"}},
	{"id": 2, "module": "http:ActionSendData", "version": 3, "parameters": {"__IMTCONN__": 10},
	 "mapper": {"url": "https://api.pipedrive.com/v1/deals"}}
]}`

const current = `{"name": "Deals", "flow": [
	{"id": 1, "module": "pipedrive:getDealV2", "version": 2, "parameters": {"__IMTCONN__": 10}, "mapper": {"id": "1"}}
]}`

func clearEnv(t *testing.T) {
	t.Helper()

	for _, k := range []string{config.EnvConnectionID, config.EnvConnectionLabel, config.EnvAPIToken, config.EnvAPIBase, config.EnvHistoryDSN} {
		t.Setenv(k, "")
	}
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}

	return dir
}

func exec(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	err := run(context.Background(), args, &stdout, &stderr)

	return stdout.String(), stderr.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)

	return exitErr.Code
}

func TestMigrateFile(t *testing.T) {
	clearEnv(t)

	in := writeFiles(t, map[string]string{"deals.json": legacy})
	out := filepath.Join(t.TempDir(), "out")

	stdout, _, err := exec(t, "migrate", "--file", filepath.Join(in, "deals.json"), "--output-dir", out, "--connection-id", "4242")
	require.NoError(t, err)

	target := filepath.Join(out, "deals_migrated.json")
	assert.Contains(t, stdout, "-> "+target)
	assert.Contains(t, stdout, "2 modules migrated")
	assert.Contains(t, stdout, "connection: 4242")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"module": "pipedrive:getDealV2"`)
	assert.Contains(t, string(data), `"module": "pipedrive:MakeAPICallV2"`)
	assert.Contains(t, string(data), `"__IMTCONN__": 4242`)
}

func TestMigrateDir(t *testing.T) {
	clearEnv(t)

	in := writeFiles(t, map[string]string{
		"a.json":          legacy,
		"b.json":          current,
		"a_migrated.json": legacy,
		"notes.txt":       "x",
	})
	out := t.TempDir()

	stdout, _, err := exec(t, "migrate", "--dir", in, "--output-dir", out)
	require.NoError(t, err)

	assert.Contains(t, stdout, filepath.Join(in, "b.json")+": nothing to migrate")
	assert.Contains(t, stdout, "connection: preserved")

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a_migrated.json", entries[0].Name())
}

func TestMigrateFailures(t *testing.T) {
	clearEnv(t)

	in := writeFiles(t, map[string]string{"a.json": legacy, "broken.json": "{"})

	stdout, _, err := exec(t, "migrate", "--dir", in, "--output-dir", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(t, err))
	assert.Contains(t, err.Error(), "1 of 2 files failed")
	assert.Contains(t, stdout, "broken.json: error: invalid blueprint document")
}

func TestCheck(t *testing.T) {
	clearEnv(t)

	in := writeFiles(t, map[string]string{"a.json": legacy, "b.json": current})

	stdout, _, err := exec(t, "check", "--dir", in)
	require.NoError(t, err)

	assert.Contains(t, stdout, "a.json: module 2 (http:ActionSendData) https://api.pipedrive.com/v1/deals [v1, needs migration]")
	assert.Contains(t, stdout, "total: 1, v1: 1, v2: 0")
}

func TestUsageErrors(t *testing.T) {
	clearEnv(t)

	file := filepath.Join(writeFiles(t, map[string]string{"a.json": legacy}), "a.json")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "no command", args: nil},
		{name: "unknown command", args: []string{"convert"}, wantErr: `unknown command "convert"`},
		{name: "no input", args: []string{"migrate"}, wantErr: "one of --file or --dir is required"},
		{name: "both inputs", args: []string{"check", "--file", file, "--dir", "."}, wantErr: "mutually exclusive"},
		{name: "bad flag", args: []string{"migrate", "--nope"}, wantErr: "flag provided but not defined"},
		{name: "stray argument", args: []string{"check", "--file", file, "extra"}, wantErr: "unexpected arguments: extra"},
		{name: "log level", args: []string{"check", "--file", file, "--log-level", "loud"}, wantErr: "invalid log level"},
		{name: "config", args: []string{"check", "--file", file, "--config", filepath.Join(t.TempDir(), "absent.yaml")}, wantErr: "failed to read config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := exec(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, 2, exitCode(t, err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHelp(t *testing.T) {
	stdout, _, err := exec(t, "help")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Commands:")

	_, stderr, err := exec(t, "migrate", "-h")
	require.NoError(t, err)
	assert.Contains(t, stderr, "-output-dir")
}
