package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/challengetracker/go/internal/config"
	"github.com/mcdev12/challengetracker/go/internal/models"
)

func useBadger(t *testing.T) {
	t.Helper()
	prev := cfg
	cfg = &config.Config{StoreDriver: config.StoreBadger, BadgerPath: t.TempDir()}
	t.Cleanup(func() { cfg = prev })
}

func seed(t *testing.T, owner string, titles ...string) []string {
	t.Helper()
	app, closeStore, err := openFlags(context.Background(), cfg)
	require.NoError(t, err)
	defer closeStore()

	var ids []string
	for i, title := range titles {
		id := models.NewTrackerID()
		require.NoError(t, app.Set(context.Background(), owner, models.TrackerOptions{
			ID:           id,
			Title:        models.String(title),
			ListPosition: models.Int(i + 1),
		}))
		ids = append(ids, id)
	}
	return ids
}

func run(t *testing.T, fn func(*cobra.Command, []string) error, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	require.NoError(t, fn(cmd, args))
	return out.String()
}

func TestListPrintsInOrder(t *testing.T) {
	useBadger(t)
	ids := seed(t, "player-1", "Climb", "Ritual")

	out := run(t, runList, "player-1")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], ids[0])
	assert.Contains(t, lines[1], "Climb")
	assert.Contains(t, lines[2], "Ritual")
}

func TestCopyMoveDelete(t *testing.T) {
	useBadger(t)
	ids := seed(t, "player-1", "Climb", "Ritual")

	copyID := strings.TrimSpace(run(t, runCopy, "player-1", ids[0]))
	assert.NotEmpty(t, copyID)

	run(t, runMove, "player-1", ids[1], "up")
	out := run(t, runList, "player-1")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "Ritual")
	assert.Contains(t, lines[3], "Copy of Climb")

	run(t, runDelete, "player-1", ids[0])
	out = run(t, runList, "player-1")
	assert.NotContains(t, out, ids[0])
}

func TestMoveRejectsUnknownDirection(t *testing.T) {
	useBadger(t)
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	assert.Error(t, runMove(cmd, []string{"player-1", "abc", "sideways"}))
}

func TestSettingsCheckPrintsDefaults(t *testing.T) {
	prev := cfg
	cfg = &config.Config{}
	t.Cleanup(func() { cfg = prev })

	out := run(t, runSettingsCheck)
	assert.Contains(t, out, "allowShow")
	assert.Contains(t, out, "gamemaster")
	assert.Contains(t, out, "250")
}
