package core

import (
	"context"
	"fmt"
	"time"

	"docai.id/document-assistant/internal/llm"
	"docai.id/document-assistant/internal/store"
)

// Retriever fetches context snippets for a query. Implementations
// degrade to (nil, "") on failure; they never abort the pipeline.
type Retriever interface {
	RetrieveContext(ctx context.Context, query string, limit int, documentID string) ([]store.Source, string)
}

// Generator produces answers and titles for one LLM backend. Both
// methods return strings unconditionally: full-request failures come
// back as "Error: "-prefixed answers or the placeholder title.
type Generator interface {
	GenerateResponse(ctx context.Context, contextStr, query string, onDelta func(string), debug bool) string
	GenerateTitle(ctx context.Context, query, response string) string
}

// ChatStore persists completed exchanges.
type ChatStore interface {
	InsertChat(ctx context.Context, chat *store.ChatHistory) (int64, error)
	ListChats(ctx context.Context) ([]store.ChatHistory, error)
	GetChat(ctx context.Context, id int64) (*store.ChatHistory, error)
}

// QueryRequest carries one validated query into the pipeline.
type QueryRequest struct {
	Query        string
	ContextLimit int
	DocumentID   string
	Provider     llm.Provider
	DebugMode    bool
}

type ChatService struct {
	dbStore    ChatStore
	retriever  Retriever
	generators map[llm.Provider]Generator
}

func NewChatService(db ChatStore, retriever Retriever, generators map[llm.Provider]Generator) *ChatService {
	return &ChatService{
		dbStore:    db,
		retriever:  retriever,
		generators: generators,
	}
}

// ProcessQuery runs the pipeline end to end: retrieve context,
// generate the answer and a title, persist, return the stored record.
// The only hard failure is a persistence failure; retrieval and
// provider errors have already degraded into the response text by the
// time persistence runs.
func (s *ChatService) ProcessQuery(ctx context.Context, req QueryRequest) (*store.ChatHistory, error) {
	return s.process(ctx, req, nil)
}

func (s *ChatService) process(ctx context.Context, req QueryRequest, onDelta func(string)) (*store.ChatHistory, error) {
	generator, ok := s.generators[req.Provider]
	if !ok {
		// ParseProvider at the boundary makes this unreachable for
		// well-formed wiring; guard anyway.
		return nil, fmt.Errorf("no generator configured for provider %q", req.Provider)
	}

	sources, contextStr := s.retriever.RetrieveContext(ctx, req.Query, req.ContextLimit, req.DocumentID)

	response := generator.GenerateResponse(ctx, contextStr, req.Query, onDelta, req.DebugMode)

	title := generator.GenerateTitle(ctx, req.Query, response)

	chat := &store.ChatHistory{
		Timestamp: time.Now().Format(store.TimestampFormat),
		Query:     req.Query,
		Response:  response,
		Sources:   sources,
		Title:     title,
	}

	id, err := s.dbStore.InsertChat(ctx, chat)
	if err != nil {
		return nil, fmt.Errorf("failed to save chat: %w", err)
	}
	chat.ID = id

	return chat, nil
}

// GetChatHistory returns every stored chat in insertion order.
func (s *ChatService) GetChatHistory(ctx context.Context) ([]store.ChatHistory, error) {
	return s.dbStore.ListChats(ctx)
}

// GetChat returns one stored chat, or nil if the id is unknown.
func (s *ChatService) GetChat(ctx context.Context, id int64) (*store.ChatHistory, error) {
	return s.dbStore.GetChat(ctx, id)
}
