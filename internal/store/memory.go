package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process-local maps guarded by a single
// RWMutex. It is selected when no DATABASE_URL is configured: empty at process
// start, discarded at process exit.
type MemoryStore struct {
	mu        sync.RWMutex
	usersByID map[string]*User
	userIDs   map[string]string // identity -> user id
	messages  []Message
	memories  map[string]map[string]*MemoryEntry // user id -> key -> entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		usersByID: make(map[string]*User),
		userIDs:   make(map[string]string),
		memories:  make(map[string]map[string]*MemoryEntry),
	}
}

func (s *MemoryStore) CreateUser(identity, passwordHash, displayName string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.userIDs[identity]; exists {
		return nil, ErrDuplicateIdentity
	}

	user := &User{
		ID:           uuid.NewString(),
		Identity:     identity,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	s.usersByID[user.ID] = user
	s.userIDs[identity] = user.ID
	return user, nil
}

func (s *MemoryStore) GetUserByIdentity(identity string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.userIDs[identity]
	if !ok {
		return nil, nil // Not found
	}
	u := *s.usersByID[id]
	return &u, nil
}

func (s *MemoryStore) GetUserByID(id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByID[id]
	if !ok {
		return nil, nil
	}
	u := *user
	return &u, nil
}

func (s *MemoryStore) AppendMessage(msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = uuid.NewString()
	msg.Timestamp = time.Now()
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *MemoryStore) GetMessagesByUserID(userID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Message
	for _, msg := range s.messages {
		if msg.UserID == userID {
			out = append(out, msg)
		}
	}
	// The slice is append-only, so it is already in timestamp order. Keep the
	// most recent `limit` entries but preserve ascending order.
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *MemoryStore) UpsertMemory(userID, key, value string) (*MemoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userMem, ok := s.memories[userID]
	if !ok {
		userMem = make(map[string]*MemoryEntry)
		s.memories[userID] = userMem
	}

	entry := &MemoryEntry{
		UserID:    userID,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	userMem[key] = entry
	e := *entry
	return &e, nil
}

func (s *MemoryStore) GetMemory(userID, key string) (*MemoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.memories[userID][key]
	if !ok {
		return nil, nil // Not found
	}
	e := *entry
	return &e, nil
}

func (s *MemoryStore) ClearMemory(userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.memories[userID])
	delete(s.memories, userID)
	return n, nil
}

func (s *MemoryStore) Mode() string { return "memory" }

func (s *MemoryStore) Close() error { return nil }
