// Package embedding is a thin client for the external embedding/search
// service. Retrieval failures degrade to "no context available" rather
// than aborting the user-facing request, so Search and RetrieveContext
// never return errors.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"docai.id/document-assistant/internal/store"
)

// DocumentFilterAll is the sentinel document filter meaning "search
// every active document".
const DocumentFilterAll = "all"

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type searchRequest struct {
	Query          string         `json:"query"`
	Limit          int            `json:"limit"`
	FilterMetadata map[string]any `json:"filter_metadata"`
}

type searchResponse struct {
	Results []store.Source `json:"results"`
}

// Search queries the embedding service for the most relevant snippets.
// documentID of DocumentFilterAll means no document-scoped filtering;
// any other value is passed through as an exact-match file_id filter.
// The active=true filter is always applied.
func (c *Client) Search(ctx context.Context, query string, limit int, documentID string) []store.Source {
	filter := map[string]any{"active": true}
	if documentID != "" && documentID != DocumentFilterAll {
		filter["file_id"] = documentID
	}

	payload := searchRequest{
		Query:          query,
		Limit:          limit,
		FilterMetadata: filter,
	}

	var result searchResponse
	if err := c.postJSON(ctx, "/api/v1/search", payload, &result); err != nil {
		log.Printf("Error searching embeddings: %v", err)
		return nil
	}
	return result.Results
}

// RetrieveContext runs Search and joins the non-empty snippet texts
// with a blank line between each, preserving relevance order. Zero
// results yield (nil, "") and the caller is expected to proceed.
func (c *Client) RetrieveContext(ctx context.Context, query string, limit int, documentID string) ([]store.Source, string) {
	sources := c.Search(ctx, query, limit, documentID)
	if len(sources) == 0 {
		return nil, ""
	}

	texts := make([]string, 0, len(sources))
	for _, src := range sources {
		if src.Text != "" {
			texts = append(texts, src.Text)
		}
	}
	return sources, strings.Join(texts, "\n\n")
}

// Document is one entry from the embedding service's document listing,
// passed through verbatim.
type Document map[string]any

// ListDocuments proxies the embedding service's document listing.
func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	var result struct {
		Documents []Document `json:"documents"`
	}
	if err := c.getJSON(ctx, "/api/v1/documents", &result); err != nil {
		return nil, err
	}
	return result.Documents, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// UploadResult reports the outcome of an upload plus embedding trigger.
type UploadResult struct {
	FileID string `json:"file_id"`
	// Warning is set when the file was stored but the embedding
	// trigger failed, leaving it unsearchable for now.
	Warning string `json:"warning,omitempty"`
}

// UploadDocument forwards a file to the embedding service's batch
// upload endpoint and then triggers embedding for it.
func (c *Client) UploadDocument(ctx context.Context, filename, contentType string, content []byte) (*UploadResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, quoteEscaper.Replace(filename)))
	if contentType != "" {
		partHeader.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("failed to write upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/upload/batch", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	var uploadResp struct {
		Successful []struct {
			FileID string `json:"file_id"`
		} `json:"successful"`
	}
	if err := c.do(req, &uploadResp); err != nil {
		return nil, err
	}
	if len(uploadResp.Successful) == 0 {
		return nil, fmt.Errorf("upload failed or no files were processed")
	}

	fileID := uploadResp.Successful[0].FileID

	var embedResp map[string]any
	if err := c.postJSON(ctx, "/api/v1/embedding/batch", map[string]any{"file_ids": []string{fileID}}, &embedResp); err != nil {
		log.Printf("Error triggering embedding for file %s: %v", fileID, err)
		return &UploadResult{
			FileID:  fileID,
			Warning: "File uploaded but embedding failed. File may not be searchable.",
		}, nil
	}

	return &UploadResult{FileID: fileID}, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload, out any) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("embedding API returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
