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

	openai "github.com/sashabaranov/go-openai"
)

const (
	doTemperature     = 0.7
	doTopP            = 0.9
	doMaxTokens       = 1000
	doTitleMaxTokens  = 50
	doRequestTimeout  = 2 * time.Minute
	doCompletionsPath = "/api/v1/chat/completions"
)

// DigitalOceanGenerator talks to a Digital Ocean GenAI agent, which
// exposes an OpenAI-chat-completions-shaped API with bearer auth.
type DigitalOceanGenerator struct {
	baseURL    string
	apiKey     string
	client     *openai.Client
	httpClient *http.Client
}

func NewDigitalOceanGenerator(baseURL, apiKey string) *DigitalOceanGenerator {
	base := strings.TrimRight(baseURL, "/")

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = base + "/api/v1"

	return &DigitalOceanGenerator{
		baseURL: base,
		apiKey:  apiKey,
		client:  openai.NewClientWithConfig(cfg),
		httpClient: &http.Client{
			Timeout: doRequestTimeout,
		},
	}
}

// GenerateResponse returns the model's answer, or a string prefixed
// "Error: " on any full-request failure. When onDelta is non-nil the
// request streams and onDelta receives the cumulative text after each
// chunk.
func (g *DigitalOceanGenerator) GenerateResponse(ctx context.Context, contextStr, query string, onDelta func(string), debug bool) string {
	req := openai.ChatCompletionRequest{
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: answerPrompt(contextStr, query)},
		},
		Temperature: doTemperature,
		TopP:        doTopP,
		MaxTokens:   doMaxTokens,
		Stream:      onDelta != nil,
	}

	if debug {
		log.Printf("Digital Ocean request to %s%s (stream=%v)", g.baseURL, doCompletionsPath, req.Stream)
	}

	if onDelta != nil {
		return g.streamCompletion(ctx, req, onDelta, debug)
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		log.Printf("Error calling Digital Ocean AI: %v", err)
		return fmt.Sprintf("Error: %v", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "No valid response content received"
	}
	return resp.Choices[0].Message.Content
}

// doStreamChunk covers both chunk shapes the agent API emits: the
// chat-completions delta form and the legacy completions text form.
type doStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Text string `json:"text"`
	} `json:"choices"`
}

// streamCompletion reads the SSE wire directly so that an individual
// malformed chunk can be skipped without tearing down the stream.
func (g *DigitalOceanGenerator) streamCompletion(ctx context.Context, req openai.ChatCompletionRequest, onDelta func(string), debug bool) string {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+doCompletionsPath, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		log.Printf("Error in streaming response: %v", err)
		return fmt.Sprintf("Error: %v", err)
	}
	defer resp.Body.Close()

	if debug {
		log.Printf("Digital Ocean response status: %d", resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Printf("Error from Digital Ocean AI: %d: %s", resp.StatusCode, string(body))
		return fmt.Sprintf("Error: %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var full strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "data: ")
		if line == "" || line == "[DONE]" {
			continue
		}

		var chunk doStreamChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			continue // skip the bad line, keep processing the stream
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		content := chunk.Choices[0].Delta.Content
		if content == "" {
			content = chunk.Choices[0].Text
		}
		if content == "" {
			continue
		}

		full.WriteString(content)
		onDelta(full.String())
	}
	if err := scanner.Err(); err != nil && full.Len() == 0 {
		log.Printf("Error in streaming response: %v", err)
		return fmt.Sprintf("Error: %v", err)
	}

	return full.String()
}

// GenerateTitle asks for a 5-10 word summary of the exchange. Always
// non-streaming; any failure falls back to the placeholder title.
func (g *DigitalOceanGenerator) GenerateTitle(ctx context.Context, query, response string) string {
	req := openai.ChatCompletionRequest{
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: titlePrompt(query, response)},
		},
		Temperature: doTemperature,
		MaxTokens:   doTitleMaxTokens,
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		log.Printf("Error generating title: %v", err)
		return DefaultTitle
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return DefaultTitle
	}
	return strings.Trim(resp.Choices[0].Message.Content, "\"'\n\r\t .")
}
