package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"docai.id/document-assistant/internal/core"
	"docai.id/document-assistant/internal/embedding"
	"docai.id/document-assistant/internal/llm"
	"docai.id/document-assistant/internal/store"
)

const (
	defaultContextLimit = 3
	maxContextLimit     = 10
	maxUploadBytes      = 32 << 20
)

type APIHandler struct {
	chatService *core.ChatService
	embedClient *embedding.Client
}

func NewAPIHandler(cs *core.ChatService, ec *embedding.Client) *APIHandler {
	return &APIHandler{chatService: cs, embedClient: ec}
}

type QueryRequest struct {
	Query        string `json:"query"`
	ContextLimit *int   `json:"context_limit"`
	DocumentID   string `json:"document_id"`
	Provider     string `json:"provider"`
	DebugMode    bool   `json:"debug_mode"`
}

// validate applies defaults and rejects invalid input before anything
// reaches the pipeline or the network.
func (q *QueryRequest) validate() (core.QueryRequest, error) {
	if q.Query == "" {
		return core.QueryRequest{}, fmt.Errorf("query is required")
	}

	limit := defaultContextLimit
	if q.ContextLimit != nil {
		limit = *q.ContextLimit
	}
	if limit < 1 || limit > maxContextLimit {
		return core.QueryRequest{}, fmt.Errorf("context_limit must be between 1 and %d", maxContextLimit)
	}

	documentID := q.DocumentID
	if documentID == "" {
		documentID = embedding.DocumentFilterAll
	}

	providerName := q.Provider
	if providerName == "" {
		providerName = string(llm.ProviderDigitalOcean)
	}
	provider, err := llm.ParseProvider(providerName)
	if err != nil {
		return core.QueryRequest{}, err
	}

	return core.QueryRequest{
		Query:        q.Query,
		ContextLimit: limit,
		DocumentID:   documentID,
		Provider:     provider,
		DebugMode:    q.DebugMode,
	}, nil
}

func (h *APIHandler) ProcessQueryHandler(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	coreReq, err := req.validate()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("stream") == "true" {
		h.streamQuery(w, r, coreReq)
		return
	}

	chat, err := h.chatService.ProcessQuery(r.Context(), coreReq)
	if err != nil {
		log.Printf("Error processing query %q: %v", coreReq.Query, err)
		http.Error(w, "Failed to save chat", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, chat)
}

// streamQuery renders the pipeline's event channel as server-sent
// events: a started frame, one {"text": fragment} frame per delta, and
// a terminal complete (or error) frame. The terminal frame is written
// on every path so the client connection never hangs open.
func (h *APIHandler) streamQuery(w http.ResponseWriter, r *http.Request, req core.QueryRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	streamID := uuid.NewString()
	writeSSE(w, map[string]any{"status": "started", "stream_id": streamID})
	flusher.Flush()

	for ev := range h.chatService.ProcessQueryStream(r.Context(), req) {
		if ev.Done {
			if ev.Err != nil {
				log.Printf("Error in stream %s: %v", streamID, ev.Err)
				writeSSE(w, map[string]any{"status": "error", "error": "Failed to save chat"})
			} else {
				writeSSE(w, map[string]any{"status": "complete", "data": ev.Result})
			}
			flusher.Flush()
			continue // channel closes right after the terminal event
		}
		writeSSE(w, map[string]string{"text": ev.Text})
		flusher.Flush()
	}
}

func writeSSE(w io.Writer, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func (h *APIHandler) GetChatHistoryHandler(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chatService.GetChatHistory(r.Context())
	if err != nil {
		log.Printf("Error listing chat history: %v", err)
		http.Error(w, "Failed to list chat history", http.StatusInternalServerError)
		return
	}
	if chats == nil {
		chats = []store.ChatHistory{}
	}
	writeJSON(w, http.StatusOK, chats)
}

func (h *APIHandler) GetChatHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil || id < 1 {
		http.Error(w, "Invalid chat id", http.StatusBadRequest)
		return
	}

	chat, err := h.chatService.GetChat(r.Context(), id)
	if err != nil {
		log.Printf("Error getting chat %d: %v", id, err)
		http.Error(w, "Failed to get chat", http.StatusInternalServerError)
		return
	}
	if chat == nil {
		http.Error(w, "Chat not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (h *APIHandler) ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	docs, err := h.embedClient.ListDocuments(r.Context())
	if err != nil {
		log.Printf("Error listing documents: %v", err)
		http.Error(w, "Failed to list documents", http.StatusBadGateway)
		return
	}
	if docs == nil {
		docs = []embedding.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (h *APIHandler) UploadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "A file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read file", http.StatusBadRequest)
		return
	}

	result, err := h.embedClient.UploadDocument(r.Context(), header.Filename, header.Header.Get("Content-Type"), content)
	if err != nil {
		log.Printf("Error uploading document %s: %v", header.Filename, err)
		http.Error(w, "Failed to upload document", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type SearchRequest struct {
	Query      string `json:"query"`
	Limit      *int   `json:"limit"`
	DocumentID string `json:"document_id"`
}

func (h *APIHandler) SearchDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}
	limit := defaultContextLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	if limit < 1 || limit > maxContextLimit {
		http.Error(w, fmt.Sprintf("limit must be between 1 and %d", maxContextLimit), http.StatusBadRequest)
		return
	}
	if req.DocumentID == "" {
		req.DocumentID = embedding.DocumentFilterAll
	}

	results := h.embedClient.Search(r.Context(), req.Query, limit, req.DocumentID)
	if results == nil {
		results = []store.Source{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
