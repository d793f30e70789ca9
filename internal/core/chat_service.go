package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/kiraleos/chatterd/internal/store"
)

// ErrInsufficientHistory is returned by RunTool when the transcript is too
// short for the tool to produce anything useful.
var ErrInsufficientHistory = fmt.Errorf("at least %d transcript turns are required", MinToolTurns)

const storageErrorReply = "I couldn't save that due to a storage problem. Please try again."

// ChatService orchestrates one conversational turn: rules first, model
// fallback second. Every outcome, error text included, is appended to the
// conversation log so the transcript stays complete.
type ChatService struct {
	store   store.Store
	engine  *Engine
	gateway ModelGateway
}

func NewChatService(st store.Store, engine *Engine, gateway ModelGateway) *ChatService {
	return &ChatService{store: st, engine: engine, gateway: gateway}
}

// Chat processes one user prompt and returns the bot reply. userID is empty
// for anonymous callers. When the caller supplies a history it is passed to
// the model verbatim; otherwise the most recent stored turns are used. The two
// sources are never combined.
//
// On error the returned text is still a user-safe message, already logged as
// the bot turn.
func (s *ChatService) Chat(ctx context.Context, userID, prompt string, history []store.Message) (string, error) {
	// Capture the trailing window before this turn enters the log, so the
	// prompt is never replayed to the model as part of its own history.
	prior := history
	if len(prior) == 0 && userID != "" {
		stored, err := s.store.GetMessagesByUserID(userID, HistoryWindow)
		if err != nil {
			log.Printf("Failed to load history for user %q, proceeding without it: %v", userID, err)
		} else {
			prior = stored
		}
	}

	userMsg := store.Message{UserID: userID, Role: store.RoleUser, Content: prompt}
	if err := s.store.AppendMessage(&userMsg); err != nil {
		return storageErrorReply, fmt.Errorf("failed to store user message: %w", err)
	}

	reply, handled, err := s.engine.Evaluate(prompt, userID)
	if err != nil {
		log.Printf("Rule evaluation failed for user %q: %v", userID, err)
		s.appendBotTurn(userID, storageErrorReply)
		return storageErrorReply, fmt.Errorf("rule evaluation failed: %w", err)
	}

	var modelErr error
	if !handled {
		reply, modelErr = s.gateway.Answer(ctx, prompt, prior)
	}

	s.appendBotTurn(userID, reply)
	if modelErr != nil {
		return reply, fmt.Errorf("model call failed: %w", modelErr)
	}
	return reply, nil
}

// appendBotTurn records the outcome of a turn. The log write is best effort:
// a dropped client or a failed append never un-does the turn itself.
func (s *ChatService) appendBotTurn(userID, text string) {
	botMsg := store.Message{UserID: userID, Role: store.RoleBot, Content: text}
	if err := s.store.AppendMessage(&botMsg); err != nil {
		log.Printf("Failed to store bot message for user %q: %v", userID, err)
	}
}

// RunTool analyzes an existing transcript with the named tool. The result (or
// the user-safe failure text) is logged as a bot turn for the caller.
func (s *ChatService) RunTool(ctx context.Context, userID string, kind ToolKind, transcript []store.Message) (string, error) {
	if len(transcript) < MinToolTurns {
		return "", ErrInsufficientHistory
	}

	text, err := s.gateway.Analyze(ctx, kind, transcript)
	if err != nil {
		s.appendBotTurn(userID, err.Error())
		return "", err
	}

	s.appendBotTurn(userID, text)
	return text, nil
}

func (s *ChatService) CreateUser(identity, passwordHash, displayName string) (*store.User, error) {
	return s.store.CreateUser(identity, passwordHash, displayName)
}

func (s *ChatService) UserByIdentity(identity string) (*store.User, error) {
	return s.store.GetUserByIdentity(identity)
}

func (s *ChatService) Messages(userID string, limit int) ([]store.Message, error) {
	return s.store.GetMessagesByUserID(userID, limit)
}

// Memory keys are case-insensitive: stored and looked up lower-cased, matching
// the remember/recall rules.
func (s *ChatService) SetMemory(userID, key, value string) (*store.MemoryEntry, error) {
	if userID == "" {
		return nil, errors.New("memory requires an authenticated user")
	}
	return s.store.UpsertMemory(userID, strings.ToLower(strings.TrimSpace(key)), value)
}

func (s *ChatService) GetMemory(userID, key string) (*store.MemoryEntry, error) {
	return s.store.GetMemory(userID, strings.ToLower(strings.TrimSpace(key)))
}

func (s *ChatService) ClearMemory(userID string) (int, error) {
	return s.store.ClearMemory(userID)
}

// Status backs both /api/health and the /status chat command.
func (s *ChatService) Status() (aiAvailable bool, storageMode string) {
	return s.gateway.Available(), s.store.Mode()
}
