package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/masquerade-labs/masquerade/internal/auth"
	"github.com/masquerade-labs/masquerade/internal/domain"
	"github.com/masquerade-labs/masquerade/internal/store"
)

// testApp wires a full App over a shared in-memory backend, mirroring
// how serveCmd wires the production one, and seeds one admin user so
// tests can authenticate.
func testApp(t *testing.T) (*App, http.Handler, string) {
	t.Helper()
	backend := store.NewMemoryBackend()
	cfg := store.Config{Prefix: "test", Topic: "test", CacheDuration: time.Hour}

	flags := store.New[domain.FlagPath, domain.Flag](backend, cfg, store.JSONCodec[domain.Flag](), zap.NewNop())
	paths := store.New[store.CollectionPath, domain.FlagPath](backend, cfg, store.JSONCodec[domain.FlagPath](), zap.NewNop())
	users := store.New[store.CollectionPath, domain.User](backend, cfg, store.JSONCodec[domain.User](), zap.NewNop())

	credentials := auth.NewCredentials(1, nil)
	tokens := auth.NewTokens([]byte("test-secret"))

	saltB64, hashB64, err := credentials.Hash("s3cret")
	require.NoError(t, err)
	admin := domain.User{UUID: "admin-uuid", Key: "alice", Salt: saltB64, Hash: hashB64, IsAdmin: true}
	_, _, err = users.Upsert(context.Background(), UsersCollection, admin.Key, admin)
	require.NoError(t, err)

	app := &App{Flags: flags, Paths: paths, Users: users, Tokens: tokens, Credentials: credentials, Log: zap.NewNop()}
	token, err := tokens.Issue(admin.UUID)
	require.NoError(t, err)

	return app, NewRouter(app, ""), token
}

func doRequest(t *testing.T, h http.Handler, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// TestScenarioACreateRead covers spec §8 Scenario A.
func TestScenarioACreateRead(t *testing.T) {
	_, h, token := testApp(t)

	rec := doRequest(t, h, token, http.MethodPost, "/api/v1/acme/prod/flag/", map[string]any{
		"key": "dark_mode", "value": true, "enabled": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, h, token, http.MethodGet, "/api/v1/acme/prod/flag/dark_mode/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var flag domain.Flag
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flag))
	assert.Equal(t, "dark_mode", flag.Key)
	assert.Equal(t, 1, flag.Version)
	assert.Equal(t, flag.Created, flag.Updated)
}

// TestScenarioBUpdateVersionBump covers spec §8 Scenario B.
func TestScenarioBUpdateVersionBump(t *testing.T) {
	_, h, token := testApp(t)

	doRequest(t, h, token, http.MethodPost, "/api/v1/acme/prod/flag/", map[string]any{
		"key": "dark_mode", "value": true, "enabled": true,
	})

	rec := doRequest(t, h, token, http.MethodPost, "/api/v1/acme/prod/flag/dark_mode/", map[string]any{
		"value": false, "enabled": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, token, http.MethodGet, "/api/v1/acme/prod/flag/dark_mode/", nil)
	var flag domain.Flag
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flag))
	assert.Equal(t, 2, flag.Version)
	assert.GreaterOrEqual(t, flag.Updated, flag.Created)
}

// TestScenarioCNoOpToggle covers spec §8 Scenario C.
func TestScenarioCNoOpToggle(t *testing.T) {
	_, h, token := testApp(t)

	doRequest(t, h, token, http.MethodPost, "/api/v1/acme/prod/flag/", map[string]any{
		"key": "dark_mode", "value": true, "enabled": true,
	})
	rec := doRequest(t, h, token, http.MethodGet, "/api/v1/acme/prod/flag/dark_mode/", nil)
	var before domain.Flag
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &before))

	rec = doRequest(t, h, token, http.MethodPost, "/api/v1/acme/prod/flag/dark_mode/", map[string]any{
		"value": true, "enabled": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var after domain.Flag
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.Updated, after.Updated)
}

// TestScenarioDDuplicateCreate covers spec §8 Scenario D.
func TestScenarioDDuplicateCreate(t *testing.T) {
	_, h, token := testApp(t)

	body := map[string]any{"key": "dark_mode", "value": true, "enabled": true}
	rec := doRequest(t, h, token, http.MethodPost, "/api/v1/acme/prod/flag/", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, h, token, http.MethodPost, "/api/v1/acme/prod/flag/", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteFlagNotFound(t *testing.T) {
	_, h, token := testApp(t)

	rec := doRequest(t, h, token, http.MethodDelete, "/api/v1/acme/prod/flag/missing/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListFlagsSortedByKey(t *testing.T) {
	_, h, token := testApp(t)

	for _, key := range []string{"zeta", "alpha", "mid"} {
		doRequest(t, h, token, http.MethodPost, "/api/v1/acme/prod/flag/", map[string]any{
			"key": key, "value": true, "enabled": true,
		})
	}

	rec := doRequest(t, h, token, http.MethodGet, "/api/v1/acme/prod/flags/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var flags []domain.Flag
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flags))
	require.Len(t, flags, 3)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, []string{flags[0].Key, flags[1].Key, flags[2].Key})
}

// TestFlagsAreIsolatedByOwner covers spec §4.4 "users cannot observe or
// mutate another user's flags regardless of URL": two users hitting the
// same {app}/{env} scope each get their own flag set, keyed by their own
// uuid as the FlagPath owner.
func TestFlagsAreIsolatedByOwner(t *testing.T) {
	app, h, aliceToken := testApp(t)

	saltB64, hashB64, err := app.Credentials.Hash("pw")
	require.NoError(t, err)
	bob := domain.User{UUID: "bob-uuid", Key: "bob", Salt: saltB64, Hash: hashB64, IsAdmin: true}
	_, _, err = app.Users.Upsert(context.Background(), UsersCollection, bob.Key, bob)
	require.NoError(t, err)
	bobToken, err := app.Tokens.Issue(bob.UUID)
	require.NoError(t, err)

	doRequest(t, h, aliceToken, http.MethodPost, "/api/v1/acme/prod/flag/", map[string]any{
		"key": "dark_mode", "value": true, "enabled": true,
	})

	rec := doRequest(t, h, bobToken, http.MethodGet, "/api/v1/acme/prod/flag/dark_mode/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, h, bobToken, http.MethodGet, "/api/v1/acme/prod/flags/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var flags []domain.Flag
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flags))
	assert.Empty(t, flags)
}

func TestAuthenticateWrongPasswordIsUnauthorized(t *testing.T) {
	_, h, _ := testApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/authenticate/", nil)
	req.SetBasicAuth("alice", "wrong-password")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateSuccess(t *testing.T) {
	_, h, _ := testApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/authenticate/", nil)
	req.SetBasicAuth("alice", "s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
}

func TestUsersRequireAdmin(t *testing.T) {
	app, h, _ := testApp(t)

	credentials := app.Credentials
	saltB64, hashB64, err := credentials.Hash("pw")
	require.NoError(t, err)
	nonAdmin := domain.User{UUID: "bob-uuid", Key: "bob", Salt: saltB64, Hash: hashB64, IsAdmin: false}
	_, _, err = app.Users.Upsert(context.Background(), UsersCollection, nonAdmin.Key, nonAdmin)
	require.NoError(t, err)

	bobToken, err := app.Tokens.Issue(nonAdmin.UUID)
	require.NoError(t, err)

	rec := doRequest(t, h, bobToken, http.MethodGet, "/api/v1/users/", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreatePathDuplicate(t *testing.T) {
	_, h, token := testApp(t)

	body := map[string]any{"app": "acme", "env": "prod"}
	rec := doRequest(t, h, token, http.MethodPost, "/api/v1/path/", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, h, token, http.MethodPost, "/api/v1/path/", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
