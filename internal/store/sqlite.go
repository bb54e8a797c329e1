package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS chat_history (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        timestamp TEXT NOT NULL,
        query TEXT NOT NULL,
        response TEXT NOT NULL,
        sources TEXT, -- JSON-encoded array of Source
        title TEXT NOT NULL
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// InsertChat appends one chat row and returns the assigned id. The
// sources slice travels as a single JSON column; it is only ever read
// back as a unit, never queried by field.
func (s *SQLiteStore) InsertChat(ctx context.Context, chat *ChatHistory) (int64, error) {
	sourcesJSON, err := json.Marshal(chat.Sources)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal sources: %w", err)
	}

	stmt, err := s.db.PrepareContext(ctx, "INSERT INTO chat_history (timestamp, query, response, sources, title) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare chat insert: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, chat.Timestamp, chat.Query, chat.Response, string(sourcesJSON), chat.Title)
	if err != nil {
		return 0, fmt.Errorf("failed to execute chat insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted chat id: %w", err)
	}
	return id, nil
}

// ListChats returns every chat in insertion order (ascending id).
// No pagination; the table is expected to stay small.
func (s *SQLiteStore) ListChats(ctx context.Context) ([]ChatHistory, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, timestamp, query, response, sources, title FROM chat_history ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query chat history: %w", err)
	}
	defer rows.Close()

	var chats []ChatHistory
	for rows.Next() {
		chat, err := scanChat(rows.Scan)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *chat)
	}
	return chats, rows.Err()
}

// GetChat returns the chat with the given id, or nil if absent.
func (s *SQLiteStore) GetChat(ctx context.Context, id int64) (*ChatHistory, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, timestamp, query, response, sources, title FROM chat_history WHERE id = ?", id)
	chat, err := scanChat(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}
	return chat, nil
}

func scanChat(scan func(dest ...any) error) (*ChatHistory, error) {
	var chat ChatHistory
	var sourcesJSON sql.NullString
	if err := scan(&chat.ID, &chat.Timestamp, &chat.Query, &chat.Response, &sourcesJSON, &chat.Title); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan chat row: %w", err)
	}
	if sourcesJSON.Valid && sourcesJSON.String != "" {
		if err := json.Unmarshal([]byte(sourcesJSON.String), &chat.Sources); err != nil {
			log.Printf("Warning: failed to unmarshal sources for chat %d: %v. Sources will be empty.", chat.ID, err)
			chat.Sources = nil
		}
	}
	return &chat, nil
}
