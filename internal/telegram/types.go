// Package telegram is a small client for the Telegram Bot HTTP API:
// long-polling getUpdates and sendMessage.
package telegram

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Update is one provider-delivered event.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is the subset of a Telegram message the bot reacts to.
type Message struct {
	MessageID int64  `json:"message_id"`
	Date      int64  `json:"date,omitempty"`
	Chat      *Chat  `json:"chat"`
	From      *User  `json:"from,omitempty"`
	Text      string `json:"text,omitempty"`
}

// Chat identifies a conversation.
type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type,omitempty"` // private|group|supergroup|channel
	Username string `json:"username,omitempty"`
}

// User is a Telegram account (the sender or the bot itself).
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// ChatID returns the chat the message belongs to, or 0 when absent.
func (m *Message) ChatID() int64 {
	if m == nil || m.Chat == nil {
		return 0
	}
	return m.Chat.ID
}

// SenderUsername prefers the chat username and falls back to the sender's.
func (m *Message) SenderUsername() string {
	if m == nil {
		return ""
	}
	if m.Chat != nil && m.Chat.Username != "" {
		return m.Chat.Username
	}
	if m.From != nil {
		return m.From.Username
	}
	return ""
}

// envelope is the common {ok, result} wrapper of every Bot API response.
type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

func decodeEnvelope(raw []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.OK {
		desc := strings.TrimSpace(env.Description)
		if desc == "" {
			desc = "ok=false"
		}
		return fmt.Errorf("provider rejected request: %s", desc)
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return fmt.Errorf("response has no result")
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
