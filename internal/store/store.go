package store

import "errors"

// ErrDuplicateIdentity is returned by CreateUser when the identity is taken.
var ErrDuplicateIdentity = errors.New("identity already registered")

// Store is the persistence boundary. Two implementations exist: SQLiteStore for
// persistent storage and MemoryStore for process-lifetime storage. The adapter
// is chosen once at startup from configuration, never per request.
//
// Lookup methods return (nil, nil) when the record does not exist.
type Store interface {
	CreateUser(identity, passwordHash, displayName string) (*User, error)
	GetUserByIdentity(identity string) (*User, error)
	GetUserByID(id string) (*User, error)

	AppendMessage(msg *Message) error
	GetMessagesByUserID(userID string, limit int) ([]Message, error)

	UpsertMemory(userID, key, value string) (*MemoryEntry, error)
	GetMemory(userID, key string) (*MemoryEntry, error)
	ClearMemory(userID string) (int, error)

	// Mode reports the storage backing ("memory" or "sqlite") for /api/health.
	Mode() string
	Close() error
}
