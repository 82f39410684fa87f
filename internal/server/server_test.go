package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"notechat-be/internal/bootstrap"
	"notechat-be/internal/config"
	"notechat-be/internal/entity"
	"notechat-be/internal/handler"
	"notechat-be/internal/pkg/logger"
	"notechat-be/internal/pkg/serverutils"
	"notechat-be/internal/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopStore struct{}

func (noopStore) Save(context.Context, int64, int64, string) error { return nil }
func (noopStore) Recent(context.Context, int64, int) ([]*entity.ChatMessage, error) {
	return nil, nil
}

type everyone struct{}

func (everyone) EnsureExists(context.Context, int64) error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{App: config.AppConfig{Port: "0", CorsAllowedOrigins: "*"}}

	hub := websocket.NewHub(noopStore{}, logger.NewNopLogger())
	go hub.Run()
	verifier := serverutils.NewTokenVerifier("secret")

	container := &bootstrap.Container{
		Logger:       logger.NewNopLogger(),
		ChatLogger:   logger.NewNopLogger(),
		Verifier:     verifier,
		WebSocketHub: hub,
		ChatHandler:  handler.NewChatHandler(hub, everyone{}, verifier, websocket.ClientOptions{}, logger.NewNopLogger()),
	}
	srv := New(cfg, container)
	t.Cleanup(func() { _ = srv.Shutdown(time.Second) })
	return srv
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.GetApp().Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestUnknownRouteRendersErrorBody(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.GetApp().Test(httptest.NewRequest(http.MethodGet, "/nope", nil), -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"code":404,"message":"Cannot GET /nope"}`, string(body))
}

func TestStatsRouteIsProtected(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.GetApp().Test(httptest.NewRequest(http.MethodGet, "/api/chat/stats", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
