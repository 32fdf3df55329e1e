package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memstore is the in-memory Store. Tests and local development use it in
// place of Postgres; it provides the same atomicity guarantees behind a
// single mutex, so a failed transaction function leaves nothing behind.
type Memstore struct {
	mu          sync.Mutex
	collections map[string]map[string]*Document
	now         func() time.Time
}

func NewMemstore() *Memstore {
	return &Memstore{
		collections: make(map[string]map[string]*Document),
		now:         time.Now,
	}
}

func (s *Memstore) Get(ctx context.Context, collection, id string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.get(collection, id)
}

func (s *Memstore) List(ctx context.Context, collection string) ([]*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	out := make([]*Document, 0, len(docs))
	for _, doc := range docs {
		out = append(out, cloneDocument(doc))
	}

	// Newest first, matching the Postgres listing order.
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (s *Memstore) Upsert(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload := fields
	if merge {
		if existing, err := s.get(collection, id); err == nil {
			merged := make(map[string]any)
			if err := json.Unmarshal(existing.Data, &merged); err != nil {
				return fmt.Errorf("decode existing document %s/%s: %w", collection, id, err)
			}
			for k, v := range fields {
				merged[k] = v
			}
			payload = merged
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal upsert fields: %w", err)
	}

	s.put(collection, id, data)
	return nil
}

func (s *Memstore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections[collection], id)
	return nil
}

func (s *Memstore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, staged: make(map[[2]string]*Document)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	for key, doc := range tx.staged {
		collection, id := key[0], key[1]
		if doc == nil {
			delete(s.collections[collection], id)
			continue
		}
		s.put(collection, id, doc.Data)
	}

	return nil
}

// memTx stages writes until the transaction function returns, so an error
// from fn discards everything.
type memTx struct {
	store  *Memstore
	staged map[[2]string]*Document
}

func (t *memTx) Get(ctx context.Context, collection, id string) (*Document, error) {
	if doc, ok := t.staged[[2]string{collection, id}]; ok {
		if doc == nil {
			return nil, ErrNotFound
		}
		return cloneDocument(doc), nil
	}

	return t.store.get(collection, id)
}

func (t *memTx) Put(ctx context.Context, collection, id string, data []byte) error {
	t.staged[[2]string{collection, id}] = &Document{ID: id, Data: append([]byte(nil), data...)}
	return nil
}

func (t *memTx) Delete(ctx context.Context, collection, id string) error {
	t.staged[[2]string{collection, id}] = nil
	return nil
}

// get and put assume the caller holds the mutex.

func (s *Memstore) get(collection, id string) (*Document, error) {
	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDocument(doc), nil
}

func (s *Memstore) put(collection, id string, data []byte) {
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]*Document)
	}

	now := s.now()
	doc, ok := s.collections[collection][id]
	if !ok {
		doc = &Document{ID: id, CreatedAt: now}
		s.collections[collection][id] = doc
	}

	doc.Data = append([]byte(nil), data...)
	doc.UpdatedAt = now
}

func cloneDocument(doc *Document) *Document {
	out := *doc
	out.Data = append([]byte(nil), doc.Data...)
	return &out
}
