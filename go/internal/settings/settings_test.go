package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/challengetracker/go/internal/models"
)

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	s := Defaults()
	s.Size = 50
	assert.Error(t, s.Validate())

	s = Defaults()
	s.FrameWidth = "huge"
	assert.Error(t, s.Validate())

	s = Defaults()
	s.OuterColor = "green"
	assert.Error(t, s.Validate())

	s = Defaults()
	s.AllowShow = 7
	assert.Error(t, s.Validate())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("size: 300\nallowShow: 2\nframeWidth: thick\n"), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 300, s.Size)
	assert.Equal(t, models.RoleTrusted, s.AllowShow)
	assert.Equal(t, models.FrameWidthThick, s.FrameWidth)
	assert.Equal(t, "#228b22ff", s.OuterColor)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	s, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)
}

func TestPermissions(t *testing.T) {
	s := Defaults()
	assert.False(t, s.CanShow(models.Actor{Role: models.RoleAssistant}))
	assert.True(t, s.CanShow(models.Actor{Role: models.RoleGamemaster}))
	assert.True(t, s.CanSeeButton(models.Actor{Role: models.RolePlayer}))
}

func TestStoreUpdateNotifies(t *testing.T) {
	st := NewStore(Defaults())

	var gotOld, gotNew Settings
	calls := 0
	unsubscribe := st.Subscribe(func(old, cur Settings) {
		calls++
		gotOld, gotNew = old, cur
	})

	require.NoError(t, st.Update(func(s *Settings) { s.Size = 400 }))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 250, gotOld.Size)
	assert.Equal(t, 400, gotNew.Size)
	assert.Equal(t, 400, st.Get().Size)

	err := st.Update(func(s *Settings) { s.Size = 9000 })
	assert.Error(t, err)
	assert.Equal(t, 400, st.Get().Size)
	assert.Equal(t, 1, calls)

	unsubscribe()
	require.NoError(t, st.Update(func(s *Settings) { s.Scroll = false }))
	assert.Equal(t, 1, calls)
}
