package listapp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/challengetracker/go/internal/listapp"
	"github.com/mcdev12/challengetracker/go/internal/models"
)

type directory map[string]models.Actor

func (d directory) Actor(_ context.Context, userID string) (models.Actor, error) {
	a, ok := d[userID]
	if !ok {
		return models.Actor{}, &models.NotFoundError{Field: "user", Value: userID}
	}
	return a, nil
}

func newServer(t *testing.T) (*httptest.Server, *fixture) {
	f := newFixture(t)
	mux := http.NewServeMux()
	listapp.NewHandler(f.app, directory{"gm": gm, "player-1": player1, "player-2": player2}).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, f
}

func do(t *testing.T, method, url, userID string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHandlerRequiresUser(t *testing.T) {
	srv, _ := newServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/api/trackers", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/trackers", "stranger", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlerCreateEditAndView(t *testing.T) {
	srv, _ := newServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/api/trackers/new", "player-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	form := decode[listapp.EditForm](t, resp)
	form.Title = "Sneak"

	resp = do(t, http.MethodPost, srv.URL+"/api/trackers", "player-1", form)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	saved := decode[models.TrackerOptions](t, resp)
	assert.Equal(t, form.ID, saved.ID)

	resp = do(t, http.MethodGet, srv.URL+"/api/trackers", "player-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[listapp.View](t, resp)
	require.Len(t, view.Entries, 1)
	assert.Equal(t, "Sneak", view.Entries[0].TitleOrDefault())

	resp = do(t, http.MethodGet, srv.URL+"/api/trackers/"+form.ID, "player-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Sneak", decode[listapp.EditForm](t, resp).Title)
}

func TestHandlerErrorStatuses(t *testing.T) {
	srv, f := newServer(t)
	ids := f.seed(t, "player-1", "A")

	resp := do(t, http.MethodGet, srv.URL+"/api/trackers?owner=player-1", "player-2", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/trackers/missing", "player-1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	bad := listapp.DefaultForm()
	bad.OuterTotal = 0
	resp = do(t, http.MethodPost, srv.URL+"/api/trackers", "player-1", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/api/trackers/"+ids[0]+"/move/sideways", "player-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerListActions(t *testing.T) {
	srv, f := newServer(t)
	ids := f.seed(t, "player-1", "A", "B")

	resp := do(t, http.MethodPost, srv.URL+"/api/trackers/"+ids[0]+"/copy", "player-1", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/api/trackers/"+ids[1]+"/move/up", "player-1", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodDelete, srv.URL+"/api/trackers/"+ids[0], "player-1", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/trackers?owner=player-1", "gm", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[listapp.View](t, resp)
	assert.Equal(t, []string{"B", "Copy of A"}, titles(&view))

	resp = do(t, http.MethodPost, srv.URL+"/api/trackers/"+ids[1]+"/open", "player-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, f.clients["player-1"].Has(ids[1]))
}
