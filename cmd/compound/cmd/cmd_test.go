package cmd

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/compound/config"
	"github.com/rustyeddy/compound/store"
)

func TestDayBounds(t *testing.T) {
	start, end, err := dayBounds(time.UTC, "2025-01-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))

	_, _, err = dayBounds(time.UTC, "15/01/2025")
	assert.Error(t, err)
}

func writeConfig(t *testing.T) (string, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	c := config.Default()
	c.Store.Path = filepath.Join(dir, "plans")
	c.Store.User = "alice"
	c.Journal.Type = "none"
	c.Log.Level = "error"
	path := filepath.Join(dir, "compound.yaml")
	require.NoError(t, c.SaveToFile(path))
	return path, c
}

func run(args ...string) error {
	_ = rootCmd.PersistentFlags().Set("config", "")
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestPlanCommands(t *testing.T) {
	path, c := writeConfig(t)

	require.NoError(t, run("--config", path, "plan", "init", "--tenure", "30"))
	require.Error(t, run("--config", path, "plan", "init"), "existing plan needs --force")
	require.NoError(t, run("--config", path, "plan", "outcome", "3", "+440"))
	require.NoError(t, run("--config", path, "plan", "logic", "3", "breakout"))
	require.Error(t, run("--config", path, "plan", "outcome", "99", "10"))

	fs, err := store.NewFileStore(c.Store.Path)
	require.NoError(t, err)
	doc, err := fs.Load(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, 30, doc.Tenure)
	assert.Equal(t, 4, doc.Version)
	d3, err := doc.Day(3)
	require.NoError(t, err)
	got, ok, err := d3.SignedOutcome()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 440.0, got)
	assert.Equal(t, "breakout", d3.Logic)
}

func TestConfigInitWritesValidFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, run("config", "init", "-o", out))

	c, err := config.LoadFromFile(out)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), c)
}
