// Package registry maps opaque deep-link tokens to stored media references.
package registry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ssd-technologies/medialink/internal/storage"
)

// tokenLength is the number of characters in an issued token. At 12 hex
// characters the collision probability over the registry's lifetime is
// negligible, but Issue still retries on a clash.
const tokenLength = 12

// maxIssueAttempts bounds the regenerate-on-collision loop.
const maxIssueAttempts = 5

// ErrNotFound is returned by Resolve for tokens that were never issued.
var ErrNotFound = storage.ErrNotFound

// Registry issues and resolves deep-link tokens backed by the media table.
type Registry struct {
	db *storage.DB
}

// New creates a Registry over the given database.
func New(db *storage.DB) *Registry {
	return &Registry{db: db}
}

// Issue generates a fresh token, stores the media record under it and
// returns the token. The record is immutable once inserted.
func (r *Registry) Issue(fileID string, kind storage.MediaKind, protect bool) (string, error) {
	var lastErr error
	for i := 0; i < maxIssueAttempts; i++ {
		token := newToken()
		rec := &storage.MediaRecord{
			Token:          token,
			FileID:         fileID,
			Kind:           kind,
			ProtectContent: protect,
			CreatedAt:      time.Now().Unix(),
		}
		err := r.db.InsertMedia(rec)
		if err == nil {
			return token, nil
		}
		// A primary-key clash means the token already exists; try another.
		lastErr = err
		if _, getErr := r.db.GetMedia(token); getErr != nil {
			// Not a collision: the insert failed for a real storage reason.
			return "", fmt.Errorf("issue token: %w", err)
		}
	}
	return "", fmt.Errorf("issue token: exhausted %d attempts: %w", maxIssueAttempts, lastErr)
}

// Resolve looks up a token. Returns ErrNotFound for any token that was never
// issued (or has since been deleted).
func (r *Registry) Resolve(token string) (*storage.MediaRecord, error) {
	rec, err := r.db.GetMedia(token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("resolve %s: %w", token, ErrNotFound)
		}
		return nil, fmt.Errorf("resolve %s: %w", token, err)
	}
	return rec, nil
}

// List returns all issued records, newest first.
func (r *Registry) List() ([]storage.MediaRecord, error) {
	return r.db.ListMedia()
}

// Delete removes an issued token. Redeeming it afterwards fails with
// ErrNotFound.
func (r *Registry) Delete(token string) error {
	return r.db.DeleteMedia(token)
}

// newToken derives a short opaque token from a random UUID.
func newToken() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return id[:tokenLength]
}
