package registry

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ssd-technologies/medialink/internal/storage"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	db, err := storage.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func TestIssueResolve_RoundTrip(t *testing.T) {
	r := testRegistry(t)

	token, err := r.Issue("file-abc", storage.KindVideo, true)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(token) != tokenLength {
		t.Errorf("token length = %d, want %d", len(token), tokenLength)
	}

	rec, err := r.Resolve(token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rec.FileID != "file-abc" || rec.Kind != storage.KindVideo || !rec.ProtectContent {
		t.Errorf("resolved record mismatch: %+v", rec)
	}
}

func TestResolve_NeverIssued(t *testing.T) {
	r := testRegistry(t)

	if _, err := r.Resolve("000000000000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIssue_TokensAreUnique(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 10k-token uniqueness check in short mode")
	}
	r := testRegistry(t)

	seen := make(map[string]bool, 10000)
	for i := 0; i < 10000; i++ {
		token, err := r.Issue("f", storage.KindPhoto, false)
		if err != nil {
			t.Fatalf("Issue #%d: %v", i, err)
		}
		if seen[token] {
			t.Fatalf("duplicate token issued: %s", token)
		}
		seen[token] = true
	}
}

func TestDelete_RemovesToken(t *testing.T) {
	r := testRegistry(t)

	token, err := r.Issue("f", storage.KindVideo, false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := r.Delete(token); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := r.Resolve(token); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
