package store

import "time"

type User struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	GoogleID  string     `json:"google_id"`
	Picture   *string    `json:"picture,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type Chat struct {
	ID        string     `json:"id"` // decimal timestamp token, may be client-supplied
	Title     string     `json:"title"`
	UserID    int64      `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

const (
	MessageTypeUser      = "user"
	MessageTypeAssistant = "assistant"
)

type ChatMessage struct {
	ID          int64     `json:"id"`
	ChatID      string    `json:"chat_id"`
	UserID      int64     `json:"user_id"`
	MessageType string    `json:"message_type"` // "user" or "assistant"
	Content     string    `json:"content"`
	TokensUsed  *int      `json:"tokens_used,omitempty"`
	Model       *string   `json:"model,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
