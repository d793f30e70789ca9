package store

import "time"

const (
	RoleUser = "user"
	RoleBot  = "bot"
)

type User struct {
	ID           string    `json:"id"` // UUID
	Identity     string    `json:"identity"`
	DisplayName  string    `json:"display_name,omitempty"`
	PasswordHash string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt    time.Time `json:"created_at"`
}

type Message struct {
	ID        string    `json:"id"`                // UUID
	UserID    string    `json:"user_id,omitempty"` // empty for anonymous turns
	Role      string    `json:"role"`              // "user" or "bot"
	Content   string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type MemoryEntry struct {
	UserID    string    `json:"-"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
