package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kiraleos/chatterd/internal/auth"
	"github.com/kiraleos/chatterd/internal/core"
	"github.com/kiraleos/chatterd/internal/store"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 100
)

type APIHandler struct {
	chatService *core.ChatService
}

func NewAPIHandler(cs *core.ChatService) *APIHandler {
	return &APIHandler{chatService: cs}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

type RegisterRequest struct {
	Identity    string `json:"identity"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Identity) == "" {
		respondError(w, http.StatusBadRequest, "identity is required")
		return
	}
	if req.Password == "" {
		respondError(w, http.StatusBadRequest, "password is required")
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("Error hashing password for %s: %v", req.Identity, err)
		respondError(w, http.StatusInternalServerError, "Failed to process password")
		return
	}

	user, err := h.chatService.CreateUser(strings.TrimSpace(req.Identity), hashedPassword, strings.TrimSpace(req.DisplayName))
	if err != nil {
		if errors.Is(err, store.ErrDuplicateIdentity) {
			respondError(w, http.StatusConflict, "Identity is already registered")
			return
		}
		log.Printf("Error creating user %s: %v", req.Identity, err)
		respondError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Identity)
	if err != nil {
		log.Printf("Error generating JWT for %s: %v", user.Identity, err)
		respondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"token": token, "user": user})
}

type LoginRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Identity == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "identity and password are required")
		return
	}

	user, err := h.chatService.UserByIdentity(strings.TrimSpace(req.Identity))
	if err != nil {
		log.Printf("Error looking up user %s: %v", req.Identity, err)
		respondError(w, http.StatusInternalServerError, "Failed to process login")
		return
	}

	// Same message for unknown identity and wrong password, so callers
	// cannot enumerate accounts.
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Identity)
	if err != nil {
		log.Printf("Error generating JWT for %s: %v", user.Identity, err)
		respondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

type HistoryTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

func (t HistoryTurn) toMessage() store.Message {
	role := store.RoleUser
	if t.Role == store.RoleBot || t.Role == "model" {
		role = store.RoleBot
	}
	return store.Message{Role: role, Content: t.Text}
}

type ChatRequest struct {
	Prompt  string        `json:"prompt"`
	History []HistoryTurn `json:"history,omitempty"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		respondError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	var history []store.Message
	for _, turn := range req.History {
		history = append(history, turn.toMessage())
	}

	userID := UserIDFromContext(r.Context())
	text, err := h.chatService.Chat(r.Context(), userID, req.Prompt, history)
	if err != nil {
		log.Printf("Chat turn failed for user %q: %v", userID, err)
		respondError(w, http.StatusInternalServerError, text)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"text": text})
}

type ToolRequest struct {
	History []HistoryTurn `json:"history"`
}

func (h *APIHandler) ToolHandler(w http.ResponseWriter, r *http.Request) {
	kind, ok := core.ParseToolKind(chi.URLParam(r, "kind"))
	if !ok {
		respondError(w, http.StatusNotFound, "Unknown tool kind")
		return
	}

	var req ToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	transcript := make([]store.Message, 0, len(req.History))
	for _, turn := range req.History {
		transcript = append(transcript, turn.toMessage())
	}

	userID := UserIDFromContext(r.Context())
	text, err := h.chatService.RunTool(r.Context(), userID, kind, transcript)
	if err != nil {
		if errors.Is(err, core.ErrInsufficientHistory) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (h *APIHandler) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	limit := defaultMessageLimit
	if raw := r.URL.Query().Get("n"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 1 && n <= maxMessageLimit {
			limit = n
		}
	}

	messages, err := h.chatService.Messages(userID, limit)
	if err != nil {
		log.Printf("Error listing messages for user %q: %v", userID, err)
		respondError(w, http.StatusInternalServerError, "Failed to load messages")
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

type MemoryRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (h *APIHandler) SetMemoryHandler(w http.ResponseWriter, r *http.Request) {
	var req MemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		respondError(w, http.StatusBadRequest, "key is required")
		return
	}
	if strings.TrimSpace(req.Value) == "" {
		respondError(w, http.StatusBadRequest, "value is required")
		return
	}

	userID := UserIDFromContext(r.Context())
	entry, err := h.chatService.SetMemory(userID, req.Key, req.Value)
	if err != nil {
		log.Printf("Error storing memory for user %q: %v", userID, err)
		respondError(w, http.StatusInternalServerError, "Failed to store memory")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"memory": entry})
}

func (h *APIHandler) GetMemoryHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	key := chi.URLParam(r, "key")

	entry, err := h.chatService.GetMemory(userID, key)
	if err != nil {
		log.Printf("Error reading memory for user %q: %v", userID, err)
		respondError(w, http.StatusInternalServerError, "Failed to read memory")
		return
	}
	if entry == nil {
		respondError(w, http.StatusNotFound, "No memory stored under that key")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"memory": entry})
}

func (h *APIHandler) ClearMemoryHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	n, err := h.chatService.ClearMemory(userID)
	if err != nil {
		log.Printf("Error clearing memory for user %q: %v", userID, err)
		respondError(w, http.StatusInternalServerError, "Failed to clear memory")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"text": "Forgot " + strconv.Itoa(n) + " remembered fact(s).",
	})
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	aiAvailable, storageMode := h.chatService.Status()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"ai":      aiAvailable,
		"storage": storageMode,
	})
}
