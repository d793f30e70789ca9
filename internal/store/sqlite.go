package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Mode() string { return "sqlite" }

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY, -- UUID
        identity TEXT UNIQUE NOT NULL,
        display_name TEXT,
        password_hash TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT, -- NULL for anonymous turns
        role TEXT NOT NULL CHECK (role IN ('user', 'bot')),
        content TEXT NOT NULL,
        timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS memories (
        user_id TEXT NOT NULL,
        key TEXT NOT NULL,
        value TEXT NOT NULL,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        PRIMARY KEY (user_id, key),
        FOREIGN KEY (user_id) REFERENCES users (id)
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

func (s *SQLiteStore) CreateUser(identity, passwordHash, displayName string) (*User, error) {
	user := &User{
		ID:           uuid.NewString(),
		Identity:     identity,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	_, err := s.db.Exec(
		"INSERT INTO users (id, identity, display_name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		user.ID, user.Identity, user.DisplayName, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) GetUserByIdentity(identity string) (*User, error) {
	return s.queryUser("SELECT id, identity, display_name, password_hash, created_at FROM users WHERE identity = ?", identity)
}

func (s *SQLiteStore) GetUserByID(id string) (*User, error) {
	return s.queryUser("SELECT id, identity, display_name, password_hash, created_at FROM users WHERE id = ?", id)
}

func (s *SQLiteStore) queryUser(query string, arg string) (*User, error) {
	var user User
	var displayName sql.NullString
	err := s.db.QueryRow(query, arg).Scan(&user.ID, &user.Identity, &displayName, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if displayName.Valid {
		user.DisplayName = displayName.String
	}
	return &user, nil
}

// Message methods

func (s *SQLiteStore) AppendMessage(msg *Message) error {
	msg.ID = uuid.NewString()
	msg.Timestamp = time.Now()

	var userID sql.NullString
	if msg.UserID != "" {
		userID = sql.NullString{String: msg.UserID, Valid: true}
	}

	stmt, err := s.db.Prepare("INSERT INTO messages (id, user_id, role, content, timestamp) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(msg.ID, userID, msg.Role, msg.Content, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to execute message insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetMessagesByUserID(userID string, limit int) ([]Message, error) {
	// Take the most recent `limit` rows, then flip back to ascending order.
	query := `
        SELECT id, user_id, role, content, timestamp
        FROM (
            SELECT id, user_id, role, content, timestamp
            FROM messages
            WHERE user_id = ?
            ORDER BY timestamp DESC
            LIMIT ?
        )
        ORDER BY timestamp ASC
    `
	rows, err := s.db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		var msgUserID sql.NullString
		if err := rows.Scan(&msg.ID, &msgUserID, &msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		if msgUserID.Valid {
			msg.UserID = msgUserID.String
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Memory methods

func (s *SQLiteStore) UpsertMemory(userID, key, value string) (*MemoryEntry, error) {
	entry := &MemoryEntry{
		UserID:    userID,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	// Single-statement upsert so the last writer wins without a read-then-write race.
	_, err := s.db.Exec(`
        INSERT INTO memories (user_id, key, value, updated_at) VALUES (?, ?, ?, ?)
        ON CONFLICT (user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		userID, key, value, entry.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert memory: %w", err)
	}
	return entry, nil
}

func (s *SQLiteStore) GetMemory(userID, key string) (*MemoryEntry, error) {
	var entry MemoryEntry
	err := s.db.QueryRow(
		"SELECT user_id, key, value, updated_at FROM memories WHERE user_id = ? AND key = ?",
		userID, key,
	).Scan(&entry.UserID, &entry.Key, &entry.Value, &entry.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to query memory: %w", err)
	}
	return &entry, nil
}

func (s *SQLiteStore) ClearMemory(userID string) (int, error) {
	res, err := s.db.Exec("DELETE FROM memories WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear memories: %w", err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}
