// Copyright (c) 2026 Renpho Health Bridge. All rights reserved.

/*
Package tokenstore persists Renpho session documents across process restarts.

The session token and user id are the only state the core client needs to
survive a restart; keeping them avoids a fresh credential login on every
start, which matters because an unnecessary login can invalidate a session
shared with the vendor's mobile app.

Architecture:

  - Document: The versioned key-value payload, keyed per configured account.
  - Store: Abstract contract, loaded once at startup and written after every
    token-producing operation.
  - RedisStore / MemoryStore: Durable and in-process implementations.
*/
package tokenstore

import (
	"context"
	"errors"
)

// SchemaVersion is the current Document layout version. Bump on breaking
// layout changes so stale cache entries can be discarded on load.
const SchemaVersion = 1

// Document sources. Manual documents hold a token shared from the vendor's
// mobile app; re-login must never happen automatically for those.
const (
	SourceLogin  = "login"
	SourceManual = "manual"
)

// ErrNotFound is returned by [Store.Load] when no document exists for the
// account.
var ErrNotFound = errors.New("tokenstore: document not found")

// Document is the persisted session state for one account.
type Document struct {
	// Version is the schema version this document was written with.
	Version int `json:"version"`

	// Token is the opaque session token.
	Token string `json:"token"`

	// UserID is the vendor account id the token belongs to.
	UserID int64 `json:"user_id"`

	// Source records how the token was obtained: SourceLogin for our own
	// credential logins, SourceManual for externally shared tokens.
	Source string `json:"source,omitempty"`
}

// Valid reports whether the document satisfies the persistence invariant:
// token and user id are present together, never one without the other.
func (d *Document) Valid() bool {
	return d != nil && d.Token != "" && d.UserID != 0
}

// Store is the persistence contract consumed by the host glue around the
// session client.
type Store interface {
	// Load returns the document for the account, or ErrNotFound.
	Load(ctx context.Context, account string) (*Document, error)

	// Save writes the document for the account, replacing any previous one.
	Save(ctx context.Context, account string, document *Document) error

	// Delete removes the document for the account. Deleting an absent
	// document is not an error.
	Delete(ctx context.Context, account string) error
}
