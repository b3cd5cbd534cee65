// Package domain holds the value types shared by the bot components and the
// goal store.
package domain

// Goal is a listed goal as shown to a chat user.
type Goal struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Category is a goal category the user may file a new goal under.
type Category struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Goal status values, mirroring the web API.
const (
	GoalStatusToDo       = 1
	GoalStatusInProgress = 2
	GoalStatusDone       = 3
	GoalStatusArchived   = 4
)

// ChatIdentity maps a Telegram chat to an application user.
// UserID is zero until the chat has been linked to an account.
type ChatIdentity struct {
	ChatID           int64  `json:"chat_id"`
	Username         string `json:"username,omitempty"`
	UserID           int64  `json:"user_id,omitempty"`
	VerificationCode string `json:"verification_code,omitempty"`
}

// IsVerified reports whether the chat is linked to a user.
func (c *ChatIdentity) IsVerified() bool {
	return c != nil && c.UserID != 0
}
