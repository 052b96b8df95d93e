package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// Collection names used by the synchronizer.
const (
	Giveaways = "giveaways"
	Usernames = "usernames"
	Users     = "users"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT    NOT NULL,
	doc_id     INTEGER NOT NULL,
	body       TEXT    NOT NULL,
	PRIMARY KEY (collection, doc_id)
);
CREATE TABLE IF NOT EXISTS request_log (
	at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS request_log_at ON request_log (at_ms);
`

// Store is a document store persisted in a single SQLite file.
type Store struct {
	db *sql.DB

	mu          sync.Mutex
	collections map[string]*Collection
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// single writer; also keeps one connection for the whole process
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, collections: make(map[string]*Collection)}, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Collection returns the named collection, loading it on first use.
func (s *Store) Collection(name string) (*Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		return c, nil
	}

	c := &Collection{store: s, name: name, docs: make(map[int64]Document), nextID: 1}
	if err := c.load(); err != nil {
		return nil, fmt.Errorf("load collection %s: %w", name, err)
	}
	s.collections[name] = c
	return c, nil
}

// RequestLog returns the rate limiter journal backed by this store.
func (s *Store) RequestLog() *RequestLog {
	return &RequestLog{db: s.db}
}

// Encode converts a typed record into a Document.
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var d Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return d, nil
}

// Decode fills v from a Document.
func Decode(d Document, v any) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// canonical returns the stored form of d and its JSON body.
func canonical(d Document) (Document, []byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal document: %w", err)
	}
	var out Document
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return out, raw, nil
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case Document:
		return map[string]any(clone(t))
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	}
	return v
}

func clone(d Document) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}
