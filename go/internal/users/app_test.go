package users

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/challengetracker/go/internal/models"
)

func writeUsers(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`users:
  - id: gm
    name: Game Master
    role: gamemaster
  - id: p1
    name: Player One
    role: player
`), 0o644))
	return path
}

func TestLoadRepositoryAndActor(t *testing.T) {
	ctx := context.Background()
	repo, err := LoadRepository(writeUsers(t))
	require.NoError(t, err)
	app := NewApp(repo)

	actor, err := app.Actor(ctx, "gm")
	require.NoError(t, err)
	assert.Equal(t, models.Actor{UserID: "gm", Role: models.RoleGamemaster}, actor)
	assert.True(t, actor.IsGM())

	_, err = app.Actor(ctx, "nobody")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLoadRepositoryRejectsUnknownRole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte("users:\n  - id: x\n    name: X\n    role: king\n"), 0o644))
	_, err := LoadRepository(path)
	assert.Error(t, err)
}

func TestCreateAndUpdateRoleAreSaved(t *testing.T) {
	ctx := context.Background()
	path := writeUsers(t)
	repo, err := LoadRepository(path)
	require.NoError(t, err)
	app := NewApp(repo)

	_, err = app.CreateUser(ctx, CreateUserRequest{ID: "p2", Name: "Player Two", Role: "trusted"})
	require.NoError(t, err)
	_, err = app.CreateUser(ctx, CreateUserRequest{ID: "p2", Name: "Again", Role: "player"})
	assert.Error(t, err)
	_, err = app.CreateUser(ctx, CreateUserRequest{ID: "p3", Name: "Bad", Role: "king"})
	assert.Error(t, err)

	_, err = app.UpdateRole(ctx, "p1", UpdateRoleRequest{Role: "assistant"})
	require.NoError(t, err)
	require.NoError(t, app.DeleteUser(ctx, "gm"))

	reloaded, err := LoadRepository(path)
	require.NoError(t, err)
	list, err := NewApp(reloaded).ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "p1", list[0].ID)
	assert.Equal(t, models.RoleAssistant, list[0].Role)
	assert.Equal(t, models.RoleTrusted, list[1].Role)
}

func TestUserServiceOverConnect(t *testing.T) {
	repo, err := LoadRepository(writeUsers(t))
	require.NoError(t, err)
	mux := http.NewServeMux()
	mux.Handle(NewUserServiceHandler(NewService(NewApp(repo))))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	getUser := connect.NewClient[GetUserRequest, GetUserResponse](
		srv.Client(), srv.URL+UserServiceGetUserProcedure, connect.WithCodec(JSONCodec{}))
	listUsers := connect.NewClient[ListUsersRequest, ListUsersResponse](
		srv.Client(), srv.URL+UserServiceListUsersProcedure, connect.WithCodec(JSONCodec{}))

	res, err := getUser.CallUnary(ctx, connect.NewRequest(&GetUserRequest{ID: "p1"}))
	require.NoError(t, err)
	assert.Equal(t, "Player One", res.Msg.User.Name)
	assert.Equal(t, models.RolePlayer, res.Msg.User.Role)

	_, err = getUser.CallUnary(ctx, connect.NewRequest(&GetUserRequest{ID: "zz"}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	_, err = getUser.CallUnary(ctx, connect.NewRequest(&GetUserRequest{}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	list, err := listUsers.CallUnary(ctx, connect.NewRequest(&ListUsersRequest{}))
	require.NoError(t, err)
	require.Len(t, list.Msg.Users, 2)
}

func TestUserServiceUnknownProcedure(t *testing.T) {
	path, handler := NewUserServiceHandler(NewService(NewApp(&Repository{})))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path+"DeleteUser", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
