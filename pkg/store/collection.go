package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
)

// Collection is a named set of documents.
// Reads are served from memory; every write reaches SQLite before memory changes.
type Collection struct {
	store *Store
	name  string

	mu     sync.RWMutex
	docs   map[int64]Document
	order  []int64
	nextID int64
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) load() error {
	rows, err := c.store.db.Query(`SELECT doc_id, body FROM documents WHERE collection = ? ORDER BY doc_id`, c.name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			body string
		)
		if err := rows.Scan(&id, &body); err != nil {
			return err
		}
		var d Document
		if err := json.Unmarshal([]byte(body), &d); err != nil {
			return fmt.Errorf("document %d: %w", id, err)
		}
		c.docs[id] = d
		c.order = append(c.order, id)
		if id >= c.nextID {
			c.nextID = id + 1
		}
	}
	return rows.Err()
}

// Len returns the number of documents.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Contains reports whether any document matches q.
func (c *Collection) Contains(q Query) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range c.order {
		if q.Match(c.docs[id]) {
			return true
		}
	}
	return false
}

// Search returns copies of every matching document in insertion order.
func (c *Collection) Search(q Query) []Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Document
	for _, id := range c.order {
		if d := c.docs[id]; q.Match(d) {
			out = append(out, clone(d))
		}
	}
	return out
}

// Get returns the first matching document.
func (c *Collection) Get(q Query) (Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range c.order {
		if d := c.docs[id]; q.Match(d) {
			return clone(d), true
		}
	}
	return nil, false
}

// All returns copies of every document.
func (c *Collection) All() []Document {
	return c.Search(Any())
}

// Insert adds a new document and returns its id.
func (c *Collection) Insert(ctx context.Context, doc Document) (int64, error) {
	ids, err := c.InsertMultiple(ctx, []Document{doc})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// InsertMultiple adds documents in one transaction.
func (c *Collection) InsertMultiple(ctx context.Context, docs []Document) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]int64, len(docs))
	stored := make([]Document, len(docs))
	err := c.tx(ctx, func(tx *sql.Tx) error {
		for i, doc := range docs {
			d, body, err := canonical(doc)
			if err != nil {
				return err
			}
			id := c.nextID + int64(i)
			if _, err := tx.ExecContext(ctx, `INSERT INTO documents (collection, doc_id, body) VALUES (?, ?, ?)`, c.name, id, string(body)); err != nil {
				return fmt.Errorf("insert document: %w", err)
			}
			ids[i] = id
			stored[i] = d
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, id := range ids {
		c.docs[id] = stored[i]
		c.order = append(c.order, id)
	}
	c.nextID += int64(len(docs))
	return ids, nil
}

// Upsert merges doc into every document matching q, or inserts it when none match.
// Fields present in doc overwrite; fields absent from doc are preserved.
func (c *Collection) Upsert(ctx context.Context, doc Document, q Query) ([]int64, error) {
	ids, err := c.Update(ctx, doc, q)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		return ids, nil
	}
	id, err := c.Insert(ctx, doc)
	if err != nil {
		return nil, err
	}
	return []int64{id}, nil
}

// Update merges fields into every document matching q and returns their ids.
func (c *Collection) Update(ctx context.Context, fields Document, q Query) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var ids []int64
	for _, id := range c.order {
		if q.Match(c.docs[id]) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	updated := make(map[int64]Document, len(ids))
	err := c.tx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			merged := clone(c.docs[id])
			for k, v := range fields {
				merged[k] = v
			}
			d, body, err := canonical(merged)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `UPDATE documents SET body = ? WHERE collection = ? AND doc_id = ?`, string(body), c.name, id); err != nil {
				return fmt.Errorf("update document: %w", err)
			}
			updated[id] = d
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for id, d := range updated {
		c.docs[id] = d
	}
	return ids, nil
}

// Remove deletes every document matching q.
func (c *Collection) Remove(ctx context.Context, q Query) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var ids []int64
	for _, id := range c.order {
		if q.Match(c.docs[id]) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	err := c.tx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND doc_id = ?`, c.name, id); err != nil {
				return fmt.Errorf("remove document: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	removed := make(map[int64]bool, len(ids))
	for _, id := range ids {
		delete(c.docs, id)
		removed[id] = true
	}
	kept := c.order[:0]
	for _, id := range c.order {
		if !removed[id] {
			kept = append(kept, id)
		}
	}
	c.order = kept
	return len(ids), nil
}

// Truncate removes every document and resets ids.
func (c *Collection) Truncate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.store.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ?`, c.name); err != nil {
		return fmt.Errorf("truncate %s: %w", c.name, err)
	}
	c.docs = make(map[int64]Document)
	c.order = nil
	c.nextID = 1
	return nil
}

func (c *Collection) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
