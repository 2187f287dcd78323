package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/orchestra-mcp/chat/config"
	"github.com/orchestra-mcp/chat/src/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

const testPassword = "Sup3r$ecret"

func testConfig() *config.ChatConfig {
	cfg := config.DefaultConfig()
	cfg.JWTSecret = "providers-test"
	cfg.BcryptCost = 4
	cfg.PingInterval = time.Minute
	return cfg
}

func newTestServer(t *testing.T, cfg *config.ChatConfig) *ChatServer {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	st, err := store.New(db)
	require.NoError(t, err)

	p := NewChatServer(cfg, st, nil, nil, zerolog.Nop())
	require.NoError(t, p.Activate(context.Background()))
	t.Cleanup(func() {
		p.Deactivate()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return p
}

func doJSON(t *testing.T, p *ChatServer, method, path string, body any, tok string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := p.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func signup(t *testing.T, p *ChatServer, username string) (userID, tok string) {
	t.Helper()
	status, body := doJSON(t, p, http.MethodPost, "/signup", map[string]string{
		"username": username,
		"password": testPassword,
		"name":     username,
	}, "")
	require.Equal(t, http.StatusOK, status, body)
	return body["userId"].(string), body["token"].(string)
}

func TestHealth(t *testing.T) {
	p := newTestServer(t, testConfig())
	status, body := doJSON(t, p, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestSignupSigninFlow(t *testing.T) {
	p := newTestServer(t, testConfig())
	userID, tok := signup(t, p, "alice")
	assert.NotEmpty(t, userID)
	assert.NotEmpty(t, tok)

	status, body := doJSON(t, p, http.MethodPost, "/signup", map[string]string{
		"username": "alice", "password": testPassword, "name": "Again",
	}, "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "user_exists", body["error"])

	status, body = doJSON(t, p, http.MethodPost, "/signin", map[string]string{
		"username": "alice", "password": testPassword,
	}, "")
	require.Equal(t, http.StatusOK, status)
	id, err := p.tokens.Verify(body["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, userID, id.UserID)

	status, body = doJSON(t, p, http.MethodPost, "/signin", map[string]string{
		"username": "alice", "password": "Wr0ng$pass",
	}, "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "invalid_credentials", body["error"])
}

func TestSignupValidationError(t *testing.T) {
	p := newTestServer(t, testConfig())
	status, body := doJSON(t, p, http.MethodPost, "/signup", map[string]string{
		"username": "a", "password": "weak", "name": "",
	}, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", body["error"])

	req := httptest.NewRequest(http.MethodPost, "/signup", bytes.NewBufferString("{nope"))
	resp, err := p.app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRoomRoutesRequireAuth(t *testing.T) {
	p := newTestServer(t, testConfig())

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/room"},
		{http.MethodGet, "/room/lobby"},
		{http.MethodGet, "/chats/any"},
	} {
		status, body := doJSON(t, p, tc.method, tc.path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, status, tc.path)
		assert.Equal(t, "unauthorized", body["error"], tc.path)

		status, _ = doJSON(t, p, tc.method, tc.path, nil, "garbage")
		assert.Equal(t, http.StatusUnauthorized, status, tc.path)
	}
}

func TestRawTokenAccepted(t *testing.T) {
	p := newTestServer(t, testConfig())
	_, tok := signup(t, p, "rawtoken")

	req := httptest.NewRequest(http.MethodPost, "/room", bytes.NewBufferString(`{"name":"Raw Room"}`))
	req.Header.Set("Authorization", tok)
	resp, err := p.app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoomAndHistoryRoutes(t *testing.T) {
	p := newTestServer(t, testConfig())
	userID, tok := signup(t, p, "owner")

	status, body := doJSON(t, p, http.MethodPost, "/room", map[string]string{"name": "Gopher Den"}, tok)
	require.Equal(t, http.StatusOK, status, body)
	roomID := body["roomId"].(string)
	assert.Equal(t, "gopher-den", body["slug"])

	status, body = doJSON(t, p, http.MethodGet, "/room/gopher-den", nil, tok)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, roomID, body["id"])
	assert.Equal(t, userID, body["adminId"])

	status, body = doJSON(t, p, http.MethodGet, "/room/missing", nil, tok)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["error"])

	status, body = doJSON(t, p, http.MethodGet, "/chats/"+roomID, nil, tok)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["messages"])

	status, _ = doJSON(t, p, http.MethodGet, "/chats/"+roomID+"?limit=zero", nil, tok)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, p, http.MethodGet, "/chats/nope", nil, tok)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestWSInfo(t *testing.T) {
	p := newTestServer(t, testConfig())
	status, body := doJSON(t, p, http.MethodGet, "/ws/info", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Chat", body["server"])
	assert.Equal(t, "0.1.0", body["version"])
	assert.Equal(t, true, body["websocket"])
	assert.Equal(t, "/ws", body["endpoint"])
	assert.Equal(t, float64(0), body["clients"])
}

func TestWSRequiresUpgrade(t *testing.T) {
	p := newTestServer(t, testConfig())

	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/ws")
	p.Handler()(&ctx)
	assert.Equal(t, fasthttp.StatusUpgradeRequired, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "upgrade_required")
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc "))
	assert.Equal(t, "abc", bearerToken("abc"))
	assert.Equal(t, "", bearerToken(""))
}
