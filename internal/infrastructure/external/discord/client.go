// Package discord implements a Discord API wrapper.
// This package provides a clean interface for sending messages over the REST
// API and consuming events from the realtime gateway for the Questline bot.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the Discord REST client.
type ClientConfig struct {
	// Token is the Discord bot token
	Token string

	// BaseURL is the Discord API base URL (default: https://discord.com/api/v10)
	BaseURL string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// RetryAttempts is the number of retry attempts for failed requests
	RetryAttempts int

	// RetryDelay is the initial delay between retries
	RetryDelay time.Duration

	// RequestsPerSecond caps outgoing calls under Discord's global rate limit
	RequestsPerSecond int

	// Logger for structured logging
	Logger *slog.Logger

	// Debug enables debug logging
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(token string) ClientConfig {
	return ClientConfig{
		Token:             token,
		BaseURL:           "https://discord.com/api/v10",
		Timeout:           15 * time.Second,
		RetryAttempts:     3,
		RetryDelay:        1 * time.Second,
		RequestsPerSecond: 45, // Discord's global limit is 50/s; leave headroom
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the Discord REST API client.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a new Discord client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://discord.com/api/v10"
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 45
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.RequestsPerSecond),
		logger:  config.Logger,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SENDING MESSAGES
// ══════════════════════════════════════════════════════════════════════════════

// SendMessageParams contains parameters for sending a message.
type SendMessageParams struct {
	ChannelID        int64
	Content          string
	Embeds           []Embed
	ReplyToMessageID int64
}

// messageReference points a message at the one it replies to.
type messageReference struct {
	MessageID SnowflakeID `json:"message_id"`
}

// createMessageRequest is the Create Message endpoint body.
type createMessageRequest struct {
	Content          string            `json:"content,omitempty"`
	Embeds           []Embed           `json:"embeds,omitempty"`
	MessageReference *messageReference `json:"message_reference,omitempty"`
}

// SendMessage sends a message to a channel.
func (c *Client) SendMessage(ctx context.Context, params SendMessageParams) (*Message, error) {
	body := createMessageRequest{
		Content: params.Content,
		Embeds:  params.Embeds,
	}
	if params.ReplyToMessageID > 0 {
		body.MessageReference = &messageReference{MessageID: FormatSnowflake(params.ReplyToMessageID)}
	}

	path := fmt.Sprintf("/channels/%d/messages", params.ChannelID)

	var message Message
	if err := c.callAPI(ctx, http.MethodPost, path, body, &message); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	return &message, nil
}

// SendText is a convenience method for sending plain text.
func (c *Client) SendText(ctx context.Context, channelID int64, text string) (*Message, error) {
	return c.SendMessage(ctx, SendMessageParams{
		ChannelID: channelID,
		Content:   text,
	})
}

// SendEmbed is a convenience method for sending a single embed.
func (c *Client) SendEmbed(ctx context.Context, channelID int64, embed Embed) (*Message, error) {
	return c.SendMessage(ctx, SendMessageParams{
		ChannelID: channelID,
		Embeds:    []Embed{embed},
	})
}

// AddReaction adds a unicode emoji reaction to a message.
func (c *Client) AddReaction(ctx context.Context, channelID, messageID int64, emoji string) error {
	path := fmt.Sprintf("/channels/%d/messages/%d/reactions/%s/@me",
		channelID, messageID, url.PathEscape(emoji))

	if err := c.callAPI(ctx, http.MethodPut, path, nil, nil); err != nil {
		return fmt.Errorf("add reaction: %w", err)
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT IDENTITY & GATEWAY DISCOVERY
// ══════════════════════════════════════════════════════════════════════════════

// GetCurrentUser returns the bot's own user object.
func (c *Client) GetCurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.callAPI(ctx, http.MethodGet, "/users/@me", nil, &user); err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}

	return &user, nil
}

// GetGatewayBot returns the websocket URL the bot should connect to.
func (c *Client) GetGatewayBot(ctx context.Context) (*GatewayBot, error) {
	var gw GatewayBot
	if err := c.callAPI(ctx, http.MethodGet, "/gateway/bot", nil, &gw); err != nil {
		return nil, fmt.Errorf("get gateway: %w", err)
	}

	return &gw, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// API CALL HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// callAPI makes a call to the Discord API with retries.
func (c *Client) callAPI(ctx context.Context, method, path string, body, result interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := c.config.RetryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := c.doAPICall(ctx, method, path, body, result)
		if err == nil {
			return nil
		}

		lastErr = err

		// Don't retry on non-retryable errors
		if !c.isRetryableError(err) {
			return err
		}

		// Handle rate limiting
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(apiErr.RetryAfter):
			}
		}
	}

	return fmt.Errorf("api call failed after %d retries: %w", c.config.RetryAttempts, lastErr)
}

// doAPICall performs a single API call.
func (c *Client) doAPICall(ctx context.Context, method, path string, body, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	reqURL := c.config.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bot "+c.config.Token)
	req.Header.Set("User-Agent", "DiscordBot (https://github.com/questline-hub/questline-bot, 1.0)")
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.config.Debug {
		c.logger.Debug("discord api call", "method", method, "path", path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}

		var payload apiError
		if json.Unmarshal(respBody, &payload) == nil {
			apiErr.Code = payload.Code
			apiErr.Message = payload.Message
			if payload.RetryAfter > 0 {
				apiErr.RetryAfter = time.Duration(payload.RetryAfter * float64(time.Second))
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}

		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// APIError represents a Discord API error.
type APIError struct {
	Status     int
	Code       int
	Message    string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("discord api error %d (code %d): %s", e.Status, e.Code, e.Message)
}

// isRetryableError checks if an error is retryable.
func (c *Client) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		// Rate limited - retryable
		if apiErr.Status == http.StatusTooManyRequests {
			return true
		}
		// Server errors - retryable
		if apiErr.Status >= 500 {
			return true
		}
		// Client errors - generally not retryable
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			return false
		}
	}

	// Network errors are retryable
	errStr := err.Error()
	return containsAny(errStr, []string{"timeout", "connection refused", "temporary", "reset"})
}

// containsAny checks if s contains any of the substrings.
func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
