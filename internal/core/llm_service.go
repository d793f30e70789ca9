package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/kiraleos/chatterd/internal/config"
	"github.com/kiraleos/chatterd/internal/store"
)

const (
	defaultChatModelName = "gemini-1.5-flash-latest"

	// How long a model call may take before it is treated as a connectivity
	// failure instead of hanging the caller.
	modelCallTimeout = 30 * time.Second

	// HistoryWindow is how many stored turns are replayed to the model when
	// the caller does not supply a history of their own.
	HistoryWindow = 4

	chatSystemInstruction = "You are a friendly, concise chat assistant. " +
		"Answer the user's question directly. If prior conversation turns are provided, " +
		"use them for context. If you don't know something, say so plainly instead of guessing."

	notConfiguredMessage = "The AI model is not configured on this server. Ask the operator to set an API key."
)

// ModelGateway is what the chat service needs from the model integration.
// LLMService implements it; tests substitute a mock.
type ModelGateway interface {
	Available() bool
	Answer(ctx context.Context, prompt string, priorTurns []store.Message) (string, error)
	Analyze(ctx context.Context, kind ToolKind, transcript []store.Message) (string, error)
}

// LLMService wraps the Gemini client. All generation parameters are fixed
// configuration; callers cannot tune them per request. On a bad-credentials
// failure the service latches itself off until the process is restarted with
// corrected configuration.
//
// The actual model invocations sit behind the chat and analyze function
// fields so the failure handling is exercisable without a live client.
type LLMService struct {
	client  *genai.Client
	chat    func(ctx context.Context, history []*genai.Content, prompt string) (string, error)
	analyze func(ctx context.Context, instruction, transcript string) (string, error)
	latched atomic.Bool
}

func NewLLMService() *LLMService {
	if config.AppConfig.GeminiAPIKey == "" {
		return &LLMService{} // gateway disabled, health reports ai:false
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.AppConfig.GeminiAPIKey))
	if err != nil {
		log.Fatalf("Failed to create GenAI client: %v", err)
	}
	s := &LLMService{client: client}
	s.chat = s.sendChat
	s.analyze = s.generateAnalysis
	return s
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		}
	}
}

// Available reports whether model calls can currently be made.
func (s *LLMService) Available() bool {
	return s.chat != nil && !s.latched.Load()
}

func (s *LLMService) chatModel() *genai.GenerativeModel {
	model := s.client.GenerativeModel(defaultChatModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(chatSystemInstruction)},
	}

	temp := float32(0.7)
	maxTokens := int32(1024)
	topP := float32(0.95)
	topK := int32(40)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     &temp,
		MaxOutputTokens: &maxTokens,
		TopP:            &topP,
		TopK:            &topK,
	}
	return model
}

// Answer forwards the prompt, with the prior turns as chat history, to the
// model. The returned text is always user-presentable; a raw provider error
// never reaches it, every failure is classified into a stable message first.
// A non-nil error marks the turn as failed so the transport layer can answer
// with a server-error status while still showing that text.
func (s *LLMService) Answer(ctx context.Context, prompt string, priorTurns []store.Message) (string, error) {
	if s.chat == nil {
		return notConfiguredMessage, errors.New("model gateway is not configured")
	}
	if s.latched.Load() {
		return failureBadCredentials.userMessage(), errors.New("model gateway is latched off")
	}

	ctx, cancel := context.WithTimeout(ctx, modelCallTimeout)
	defer cancel()

	text, err := s.chat(ctx, toGenaiHistory(priorTurns), prompt)
	if err != nil {
		kind := classifyFailure(err)
		log.Printf("Gemini chat request failed (kind=%d): %v", kind, err)
		if kind == failureBadCredentials {
			s.latched.Store(true)
			log.Println("Model gateway latched off after credential rejection")
		}
		return kind.userMessage(), err
	}

	if text == "" {
		log.Println("Gemini response was empty or had no text parts.")
		return "I'm sorry, I couldn't generate a response at this time. Please try again.",
			errors.New("model returned an empty response")
	}
	return text, nil
}

func (s *LLMService) sendChat(ctx context.Context, history []*genai.Content, prompt string) (string, error) {
	session := s.chatModel().StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	return responseText(resp), nil
}

// Analyze runs a transcript through a fixed tool instruction and returns the
// result prefixed with the tool's lead-in sentence. On failure the error text
// is already the classified user-safe message; the handler decides the status
// code.
func (s *LLMService) Analyze(ctx context.Context, kind ToolKind, transcript []store.Message) (string, error) {
	spec, ok := toolSpecs[kind]
	if !ok {
		return "", fmt.Errorf("unknown tool kind %q", kind)
	}
	if s.analyze == nil {
		return "", errors.New(notConfiguredMessage)
	}
	if s.latched.Load() {
		return "", errors.New(failureBadCredentials.userMessage())
	}

	ctx, cancel := context.WithTimeout(ctx, modelCallTimeout)
	defer cancel()

	text, err := s.analyze(ctx, spec.instruction, formatTranscript(transcript))
	if err != nil {
		failure := classifyFailure(err)
		log.Printf("Gemini %s analysis failed (kind=%d): %v", kind, failure, err)
		if failure == failureBadCredentials {
			s.latched.Store(true)
			log.Println("Model gateway latched off after credential rejection")
		}
		return "", errors.New(failure.userMessage())
	}

	if text == "" {
		return "", errors.New("the model returned an empty analysis, please try again")
	}
	return spec.leadIn + "\n\n" + text, nil
}

func (s *LLMService) generateAnalysis(ctx context.Context, instruction, transcript string) (string, error) {
	model := s.client.GenerativeModel(defaultChatModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(instruction)},
	}
	temp := float32(0.3)
	maxTokens := int32(1024)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     &temp,
		MaxOutputTokens: &maxTokens,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(transcript))
	if err != nil {
		return "", err
	}
	return responseText(resp), nil
}

func toGenaiHistory(turns []store.Message) []*genai.Content {
	var history []*genai.Content
	for _, msg := range turns {
		role := "user"
		if msg.Role == store.RoleBot {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	return history
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		} else {
			log.Printf("Gemini response part was not text: %T", part)
		}
	}
	return strings.TrimSpace(b.String())
}
