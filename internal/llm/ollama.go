package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// OllamaGenerator talks to an Ollama-style generate endpoint. The
// format instruction travels in the separate system field; streaming
// replies are newline-delimited JSON objects.
type OllamaGenerator struct {
	apiURL     string
	model      string
	httpClient *http.Client
}

func NewOllamaGenerator(apiURL, model string) *OllamaGenerator {
	return &OllamaGenerator{
		apiURL: apiURL,
		model:  model,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // local generations can be slow
		},
	}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// GenerateResponse returns the model's answer, or a string prefixed
// "Error: " on any full-request failure. When onDelta is non-nil the
// request streams and onDelta receives the cumulative text after each
// chunk.
func (g *OllamaGenerator) GenerateResponse(ctx context.Context, contextStr, query string, onDelta func(string), debug bool) string {
	payload := ollamaRequest{
		Model:  g.model,
		Prompt: documentsPrompt(contextStr, query),
		System: answerFormatInstruction,
		Stream: onDelta != nil,
	}

	if debug {
		log.Printf("Ollama request to %s (model=%s, stream=%v)", g.apiURL, g.model, payload.Stream)
	}

	resp, err := g.post(ctx, payload)
	if err != nil {
		log.Printf("Ollama request failed: %v", err)
		return fmt.Sprintf("Error: %v", err)
	}
	defer resp.Body.Close()

	if onDelta != nil {
		return g.streamResponse(resp.Body, onDelta)
	}

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Printf("Error parsing Ollama response: %v", err)
		return fmt.Sprintf("Error: %v", err)
	}
	return result.Response
}

// streamResponse reads newline-delimited JSON chunks, skipping
// malformed lines, and fires onDelta with the running total.
func (g *OllamaGenerator) streamResponse(body io.Reader, onDelta func(string)) string {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var full strings.Builder
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var chunk ollamaResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue // skip malformed lines
		}

		if chunk.Response != "" {
			full.WriteString(chunk.Response)
			onDelta(full.String())
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("Error in Ollama streaming response: %v", err)
		if full.Len() == 0 {
			return fmt.Sprintf("Error: %v", err)
		}
	}
	return full.String()
}

// GenerateTitle asks for a 5-10 word summary of the exchange. Always
// non-streaming; any failure falls back to the placeholder title.
func (g *OllamaGenerator) GenerateTitle(ctx context.Context, query, response string) string {
	payload := ollamaRequest{
		Model:  g.model,
		Prompt: titlePrompt(query, response),
		Stream: false,
	}

	resp, err := g.post(ctx, payload)
	if err != nil {
		log.Printf("Error generating title: %v", err)
		return DefaultTitle
	}
	defer resp.Body.Close()

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Printf("Error generating title: %v", err)
		return DefaultTitle
	}
	if result.Response == "" {
		return DefaultTitle
	}
	return strings.Trim(result.Response, "\"'\n\r\t .")
}

func (g *OllamaGenerator) post(ctx context.Context, payload ollamaRequest) (*http.Response, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("Ollama returned status %d: %s", resp.StatusCode, string(body))
	}
	return resp, nil
}
