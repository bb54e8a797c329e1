package store

// Source is one retrieved context snippet from the embedding service.
// Metadata is passed through verbatim, whatever the service attached.
type Source struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
	Text     string         `json:"text"`
}

// ChatHistory is one persisted query/answer exchange. Rows are
// append-only: once inserted they are never updated or deleted.
type ChatHistory struct {
	ID        int64    `json:"id"`
	Timestamp string   `json:"timestamp"`
	Query     string   `json:"query"`
	Response  string   `json:"response"`
	Sources   []Source `json:"sources"`
	Title     string   `json:"title"`
}

// TimestampFormat is the fixed textual format used for ChatHistory.Timestamp.
const TimestampFormat = "2006-01-02 15:04:05"
