// Copyright (c) 2026 Renpho Health Bridge. All rights reserved.

package tokenstore

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore implements [Store] in process memory. It exists for tests and
// for running the daemon without a Redis instance; documents do not survive
// a restart.
type MemoryStore struct {
	mu        sync.Mutex
	documents map[string]Document
}

// NewMemoryStore creates an empty in-memory token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{documents: make(map[string]Document)}
}

// Load returns the document for the account, or ErrNotFound.
func (store *MemoryStore) Load(ctx context.Context, account string) (*Document, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	document, found := store.documents[account]
	if !found {
		return nil, ErrNotFound
	}

	// Return a copy so callers cannot mutate stored state.
	result := document
	return &result, nil
}

// Save writes the document for the account.
func (store *MemoryStore) Save(ctx context.Context, account string, document *Document) error {
	if !document.Valid() {
		return fmt.Errorf("tokenstore: refusing to save incomplete document")
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	document.Version = SchemaVersion
	store.documents[account] = *document
	return nil
}

// Delete removes the document for the account.
func (store *MemoryStore) Delete(ctx context.Context, account string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	delete(store.documents, account)
	return nil
}
