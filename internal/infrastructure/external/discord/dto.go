package discord

import (
	"encoding/json"
	"strconv"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// WIRE TYPES
// Discord serializes snowflakes as strings. SnowflakeID keeps the wire
// form and converts at the edge; everything past this package is int64.
// ══════════════════════════════════════════════════════════════════════════════

// SnowflakeID is a Discord ID in its string wire form.
type SnowflakeID string

// Int64 parses the snowflake, returning 0 for empty or malformed IDs.
func (s SnowflakeID) Int64() int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(string(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// FormatSnowflake renders an int64 ID in wire form.
func FormatSnowflake(id int64) SnowflakeID {
	return SnowflakeID(strconv.FormatInt(id, 10))
}

// User represents a Discord user.
type User struct {
	ID            SnowflakeID `json:"id"`
	Username      string      `json:"username"`
	Discriminator string      `json:"discriminator,omitempty"`
	GlobalName    string      `json:"global_name,omitempty"`
	Bot           bool        `json:"bot,omitempty"`
}

// DisplayName returns the best available human-readable name.
func (u *User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// Message represents a Discord message.
type Message struct {
	ID        SnowflakeID `json:"id"`
	ChannelID SnowflakeID `json:"channel_id"`
	GuildID   SnowflakeID `json:"guild_id,omitempty"`
	Author    *User       `json:"author,omitempty"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp,omitempty"`
	Embeds    []Embed     `json:"embeds,omitempty"`
}

// Embed is a rich message block.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

// EmbedField is a name/value pair inside an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter is the small line under an embed.
type EmbedFooter struct {
	Text string `json:"text"`
}

// Guild represents a Discord guild (server). Gateway GUILD_CREATE
// payloads carry much more; only what the bot consumes is kept.
type Guild struct {
	ID          SnowflakeID `json:"id"`
	Name        string      `json:"name,omitempty"`
	Unavailable bool        `json:"unavailable,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// GATEWAY PROTOCOL
// ══════════════════════════════════════════════════════════════════════════════

// Gateway opcodes.
const (
	OpDispatch       = 0
	OpHeartbeat      = 1
	OpIdentify       = 2
	OpPresenceUpdate = 3
	OpResume         = 6
	OpReconnect      = 7
	OpInvalidSession = 9
	OpHello          = 10
	OpHeartbeatACK   = 11
)

// Gateway intents the bot subscribes to.
const (
	IntentGuilds         = 1 << 0
	IntentGuildMembers   = 1 << 1
	IntentGuildMessages  = 1 << 9
	IntentDirectMessages = 1 << 12
	IntentMessageContent = 1 << 15
)

// DefaultIntents covers guild metadata plus prefixed commands in guild
// and direct channels.
const DefaultIntents = IntentGuilds | IntentGuildMessages | IntentDirectMessages | IntentMessageContent

// GatewayPayload is the envelope every gateway frame uses.
type GatewayPayload struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	S  *int64          `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

// HelloData is the OpHello payload.
type HelloData struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

// IdentifyData is the OpIdentify payload.
type IdentifyData struct {
	Token      string             `json:"token"`
	Intents    int                `json:"intents"`
	Properties IdentifyProperties `json:"properties"`
	Presence   *PresenceUpdate    `json:"presence,omitempty"`
}

// IdentifyProperties describes the connecting client.
type IdentifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// ResumeData is the OpResume payload.
type ResumeData struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
}

// PresenceUpdate is the OpPresenceUpdate payload.
type PresenceUpdate struct {
	Since      *int64     `json:"since"`
	Activities []Activity `json:"activities"`
	Status     string     `json:"status"`
	AFK        bool       `json:"afk"`
}

// Activity is one presence activity line.
type Activity struct {
	Name string `json:"name"`
	Type int    `json:"type"`
}

// Activity types.
const (
	ActivityPlaying   = 0
	ActivityListening = 2
	ActivityWatching  = 3
)

// ReadyData is the READY dispatch payload.
type ReadyData struct {
	SessionID        string  `json:"session_id"`
	ResumeGatewayURL string  `json:"resume_gateway_url"`
	User             User    `json:"user"`
	Guilds           []Guild `json:"guilds"`
}

// GatewayBot is the REST /gateway/bot response.
type GatewayBot struct {
	URL    string `json:"url"`
	Shards int    `json:"shards"`
}

// apiError is the REST error body.
type apiError struct {
	Code    int     `json:"code"`
	Message string  `json:"message"`
	Global  bool    `json:"global"`
	// RetryAfter is seconds, fractional, present on 429 responses.
	RetryAfter float64 `json:"retry_after"`
}
