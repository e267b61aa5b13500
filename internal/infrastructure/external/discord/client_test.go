package discord

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessageDTO_Parsing(t *testing.T) {
	jsonData := `{
    "id": "1234567890123456789",
    "channel_id": "111222333444555666",
    "guild_id": "999888777666555444",
    "author": {
        "id": "246813579246813579",
        "username": "quester",
        "global_name": "Quester",
        "bot": false
    },
    "content": "!profile rocket_league",
    "timestamp": "2025-03-14T09:26:53.589Z"
}`

	var message Message
	err := json.Unmarshal([]byte(jsonData), &message)
	assert.NoError(t, err)

	assert.Equal(t, int64(1234567890123456789), message.ID.Int64())
	assert.Equal(t, int64(111222333444555666), message.ChannelID.Int64())
	assert.Equal(t, int64(999888777666555444), message.GuildID.Int64())
	assert.Equal(t, "!profile rocket_league", message.Content)

	assert.NotNil(t, message.Author)
	assert.Equal(t, int64(246813579246813579), message.Author.ID.Int64())
	assert.Equal(t, "Quester", message.Author.DisplayName())
	assert.False(t, message.Author.Bot)
}

func TestGatewayPayload_Parsing(t *testing.T) {
	jsonData := `{"op":0,"s":42,"t":"MESSAGE_CREATE","d":{"id":"1","channel_id":"2","content":"hi"}}`

	var payload GatewayPayload
	err := json.Unmarshal([]byte(jsonData), &payload)
	assert.NoError(t, err)

	assert.Equal(t, OpDispatch, payload.Op)
	assert.Equal(t, "MESSAGE_CREATE", payload.T)
	if assert.NotNil(t, payload.S) {
		assert.Equal(t, int64(42), *payload.S)
	}

	var message Message
	assert.NoError(t, json.Unmarshal(payload.D, &message))
	assert.Equal(t, "hi", message.Content)
}

func TestSnowflakeID_Conversions(t *testing.T) {
	assert.Equal(t, int64(0), SnowflakeID("").Int64())
	assert.Equal(t, int64(0), SnowflakeID("not-a-number").Int64())
	assert.Equal(t, int64(97), SnowflakeID("97").Int64())
	assert.Equal(t, SnowflakeID("8675309"), FormatSnowflake(8675309))
}

func TestClient_SendMessage(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody createMessageRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"555","channel_id":"42","content":"pong"}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		Token:   "secret-token",
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	message, err := client.SendText(context.Background(), 42, "pong")
	assert.NoError(t, err)

	assert.Equal(t, "/channels/42/messages", gotPath)
	assert.Equal(t, "Bot secret-token", gotAuth)
	assert.Equal(t, "pong", gotBody.Content)

	if assert.NotNil(t, message) {
		assert.Equal(t, int64(555), message.ID.Int64())
		assert.Equal(t, "pong", message.Content)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"code":0,"message":"upstream unavailable"}`))
			return
		}
		w.Write([]byte(`{"id":"1","channel_id":"7","content":"ok"}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		Token:         "tok",
		BaseURL:       server.URL,
		Timeout:       2 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    1 * time.Millisecond,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	_, err := client.SendText(context.Background(), 7, "ok")
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"code":50001,"message":"Missing Access"}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		Token:         "tok",
		BaseURL:       server.URL,
		Timeout:       2 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    1 * time.Millisecond,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	_, err := client.SendText(context.Background(), 7, "nope")
	assert.Error(t, err)
	assert.Equal(t, 1, calls)

	var apiErr *APIError
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, 50001, apiErr.Code)
	assert.Equal(t, "Missing Access", apiErr.Message)
}

func TestClient_HonorsRateLimitRetryAfter(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"code":0,"message":"You are being rate limited.","retry_after":0.005,"global":false}`))
			return
		}
		w.Write([]byte(`{"id":"2","channel_id":"7","content":"ok"}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		Token:         "tok",
		BaseURL:       server.URL,
		Timeout:       2 * time.Second,
		RetryAttempts: 2,
		RetryDelay:    1 * time.Millisecond,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	_, err := client.SendText(context.Background(), 7, "ok")
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}
