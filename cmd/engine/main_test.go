package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gator-chat/internal/api"
	"gator-chat/internal/config"
	"gator-chat/internal/middleware"
	"gator-chat/internal/models"
	"gator-chat/internal/utils"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:         &config.ServerConfig{Host: "127.0.0.1", Port: 0, MetricsEnabled: true},
		Database:       &config.DatabaseConfig{Type: "memory"},
		Auth:           &config.AuthConfig{JWTSecret: "integration-secret", Issuer: "gator-chat"},
		Presence:       &config.PresenceConfig{TypingWindow: 2 * time.Second, ReapInterval: time.Second},
		AllowedOrigins: []string{"*"},
		RequestTimeout: 5 * time.Second,
		UserCacheSize:  16,
		AvatarStyle:    "identicon",
	}
}

func TestIntegrationFlow(t *testing.T) {
	cfg := testConfig()
	server, err := NewServer(context.Background(), cfg, utils.DiscardLogger(), clockwork.NewRealClock())
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })

	validator := middleware.NewTokenValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	token := func(sub string) string {
		tok, err := validator.GenerateToken(models.Identity{Subject: sub, Name: sub}, time.Hour)
		require.NoError(t, err)
		return tok
	}
	call := func(method, path, sub string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Authorization", "Bearer "+token(sub))
		rec := httptest.NewRecorder()
		server.http.Handler.ServeHTTP(rec, req)
		return rec
	}

	// Step 1: both users sign in
	require.Equal(t, http.StatusOK, call(http.MethodPost, "/api/users/me", "user1", nil).Code)
	require.Equal(t, http.StatusOK, call(http.MethodPost, "/api/users/me", "user2", nil).Code)

	// Step 2: user1 opens a conversation with user2
	rec := call(http.MethodPost, "/api/conversations/direct", "user1", api.ResolveDirectRequest{OtherUserID: "user2"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resolved api.ConversationIDResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resolved))

	// Step 3: user1 writes, user2 reads
	path := "/api/conversations/" + resolved.ConversationID.String()
	require.Equal(t, http.StatusCreated, call(http.MethodPost, path+"/messages", "user1", api.SendMessageRequest{Content: "hi"}).Code)

	var summaries []api.ConversationSummary
	require.NoError(t, json.Unmarshal(call(http.MethodGet, "/api/conversations", "user2", nil).Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].UnreadCount)
	require.NotNil(t, summaries[0].LastMessage)
	assert.Equal(t, "hi", summaries[0].LastMessage.Content)
}

func TestRunStopsOnCancel(t *testing.T) {
	server, err := NewServer(context.Background(), testConfig(), utils.DiscardLogger(), clockwork.NewRealClock())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNewServerRejectsUnknownStore(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Type = "cassandra"
	_, err := NewServer(context.Background(), cfg, utils.DiscardLogger(), clockwork.NewRealClock())
	assert.Error(t, err)
}
