package badgerstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/challengetracker/go/internal/flags"
	"github.com/mcdev12/challengetracker/go/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestOpenOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.SaveFlags(ctx, "u1", models.TrackerOptions{ID: "a"}))
	require.NoError(t, s.Close())

	s, err = Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer s.Close()
	got, err := s.GetFlag(ctx, "u1", "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetFlag(context.Background(), "u1", "nope")
	assert.ErrorIs(t, err, flags.ErrFlagNotFound)
}

func TestSaveListAndOwners(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFlags(ctx, "u1",
		models.TrackerOptions{ID: "a", OuterTotal: models.Int(4)},
		models.TrackerOptions{ID: "b"},
	))
	require.NoError(t, s.SaveFlags(ctx, "u/2", models.TrackerOptions{ID: "c"}))

	list, err := s.ListFlags(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	got, err := s.GetFlag(ctx, "u1", "a")
	require.NoError(t, err)
	assert.Equal(t, 4, *got.OuterTotal)

	owners, err := s.ListOwners(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u/2"}, owners)

	list, err = s.ListFlags(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReplaceFlagsIsAtomic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveFlags(ctx, "u1", models.TrackerOptions{ID: "a"}, models.TrackerOptions{ID: "b"}))

	err := s.ReplaceFlags(ctx, "u1", "a", models.TrackerOptions{ID: "b", ListPosition: models.Int(1)}, models.TrackerOptions{})
	require.Error(t, err)

	_, err = s.GetFlag(ctx, "u1", "a")
	assert.NoError(t, err, "delete must roll back with the failed batch")

	require.NoError(t, s.ReplaceFlags(ctx, "u1", "a", models.TrackerOptions{ID: "b", ListPosition: models.Int(1)}))
	_, err = s.GetFlag(ctx, "u1", "a")
	assert.ErrorIs(t, err, flags.ErrFlagNotFound)

	require.NoError(t, s.DeleteFlag(ctx, "u1", "b"))
	list, err := s.ListFlags(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCancelledContext(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.SaveFlags(ctx, "u1", models.TrackerOptions{ID: "a"}))
}
