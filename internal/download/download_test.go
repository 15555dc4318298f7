package download

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// rangeServer serves body with full byte-range support.
func rangeServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "blob", time.Time{}, bytes.NewReader(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func urlSource(url string) Source {
	return Source{ResolveURL: func(context.Context) (string, error) { return url, nil }}
}

func TestAcquire_ParallelReassemblesExactly(t *testing.T) {
	// Size deliberately not divisible by 8 so the last worker takes the
	// remainder.
	body := make([]byte, 8*1024*3+7)
	rand.New(rand.NewSource(1)).Read(body)
	srv := rangeServer(t, body)

	dest := filepath.Join(t.TempDir(), "out.bin")
	e := NewEngine()
	if err := e.Acquire(context.Background(), urlSource(srv.URL), dest, nil); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("reassembled file differs: len=%d want %d", len(got), len(body))
	}

	// No segment files may remain.
	leftovers, _ := filepath.Glob(dest + ".part*")
	if len(leftovers) != 0 {
		t.Errorf("segment files left behind: %v", leftovers)
	}
}

func TestAcquire_TinyFileUsesSingleWorker(t *testing.T) {
	body := []byte("abc")
	srv := rangeServer(t, body)

	dest := filepath.Join(t.TempDir(), "tiny.bin")
	e := NewEngine()
	if err := e.Acquire(context.Background(), urlSource(srv.URL), dest, nil); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	got, _ := os.ReadFile(dest)
	if !bytes.Equal(got, body) {
		t.Errorf("got %q, want %q", got, body)
	}
}

func TestAcquire_UnknownSizeFallsBackToSingleStream(t *testing.T) {
	body := []byte(strings.Repeat("stream", 2048))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			// No Content-Length announced.
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "out.bin")
	e := NewEngine()
	if err := e.Acquire(context.Background(), urlSource(srv.URL), dest, nil); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	got, _ := os.ReadFile(dest)
	if !bytes.Equal(got, body) {
		t.Errorf("single-stream content mismatch: len=%d want %d", len(got), len(body))
	}
}

func TestAcquire_DestCreateFailureIsNotClassified(t *testing.T) {
	// No Content-Length from the probe, so the single-stream path runs.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Write([]byte("abc"))
	}))
	defer srv.Close()

	// Destination inside a directory that does not exist.
	dest := filepath.Join(t.TempDir(), "missing", "out.bin")
	e := NewEngine()
	err := e.Acquire(context.Background(), urlSource(srv.URL), dest, nil)
	if err == nil {
		t.Fatal("expected failure")
	}
	var de *Error
	if errors.As(err, &de) {
		t.Errorf("filesystem error carries kind %v, want plain error", de.Kind)
	}
	if !strings.Contains(err.Error(), "create destination") {
		t.Errorf("err = %v", err)
	}
}

func TestAcquire_WorkerFailureLeavesNothingBehind(t *testing.T) {
	body := make([]byte, 64*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Fail any worker asking for the second half of the file.
		if rng := r.Header.Get("Range"); rng != "" && strings.Contains(rng, "bytes=4") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.ServeContent(w, r, "blob", time.Time{}, bytes.NewReader(body))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")
	e := NewEngine()
	err := e.Acquire(context.Background(), urlSource(srv.URL), dest, nil)
	if err == nil {
		t.Fatal("expected failure")
	}
	var de *Error
	if !errors.As(err, &de) || de.Kind != FailureWorker {
		t.Errorf("expected FailureWorker, got %v", err)
	}

	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("destination file should not exist after worker failure")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("directory not clean after failure: %v", entries)
	}
}

func TestAcquire_SizeLimitWithoutFallback(t *testing.T) {
	src := Source{ResolveURL: func(context.Context) (string, error) { return "", ErrSizeLimited }}
	e := NewEngine()
	err := e.Acquire(context.Background(), src, filepath.Join(t.TempDir(), "x"), nil)
	var de *Error
	if !errors.As(err, &de) || de.Kind != FailureSizeLimit {
		t.Errorf("expected FailureSizeLimit, got %v", err)
	}
}

type funcFetcher func(ctx context.Context, chatID int64, messageID int, dest string, progress ProgressFunc) error

func (f funcFetcher) Fetch(ctx context.Context, chatID int64, messageID int, dest string, progress ProgressFunc) error {
	return f(ctx, chatID, messageID, dest, progress)
}

func TestAcquire_SizeLimitSwitchesToFallback(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "large.bin")
	payload := []byte("fetched by fallback")

	called := false
	src := Source{
		ResolveURL: func(context.Context) (string, error) { return "", ErrSizeLimited },
		Fallback: funcFetcher(func(ctx context.Context, chatID int64, messageID int, d string, progress ProgressFunc) error {
			called = true
			if chatID != 77 || messageID != 5 {
				t.Errorf("fallback addressed wrong message: chat=%d msg=%d", chatID, messageID)
			}
			return os.WriteFile(d, payload, 0o644)
		}),
		ChatID:    77,
		MessageID: 5,
	}

	e := NewEngine()
	if err := e.Acquire(context.Background(), src, dest, nil); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !called {
		t.Fatal("fallback fetcher was not invoked")
	}
	got, _ := os.ReadFile(dest)
	if !bytes.Equal(got, payload) {
		t.Errorf("fallback content mismatch: %q", got)
	}
}

func TestAcquire_FallbackFailureIsTimeoutKind(t *testing.T) {
	src := Source{
		ResolveURL: func(context.Context) (string, error) { return "", ErrSizeLimited },
		Fallback: funcFetcher(func(context.Context, int64, int, string, ProgressFunc) error {
			return errors.New("exit status 1")
		}),
	}
	e := NewEngine()
	err := e.Acquire(context.Background(), src, filepath.Join(t.TempDir(), "x"), nil)
	var de *Error
	if !errors.As(err, &de) || de.Kind != FailureTimeout {
		t.Errorf("expected FailureTimeout, got %v", err)
	}
}

func TestThrottleProgress_FinalEmitAlwaysDelivered(t *testing.T) {
	var emits [][2]int64
	fn := throttleProgress(func(current, total int64) {
		emits = append(emits, [2]int64{current, total})
	})

	// Rapid-fire updates: only the first passes the interval gate, but the
	// final one (current == total) must always be let through.
	fn(10, 100)
	fn(20, 100)
	fn(50, 100)
	fn(100, 100)

	if len(emits) != 2 {
		t.Fatalf("expected 2 emissions, got %d: %v", len(emits), emits)
	}
	if emits[1] != [2]int64{100, 100} {
		t.Errorf("final emission missing, got %v", emits)
	}
}

func TestExecFetcher_RunsCommand(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.bin")
	f := &ExecFetcher{
		Command: "sh",
		Args:    []string{"-c", `printf payload > "$3"`, "fetch"},
	}
	err := f.Fetch(context.Background(), 1, 2, dest, nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got, _ := os.ReadFile(dest)
	if string(got) != "payload" {
		t.Errorf("got %q", got)
	}
}

func TestExecFetcher_NonZeroExit(t *testing.T) {
	f := &ExecFetcher{Command: "false"}
	err := f.Fetch(context.Background(), 1, 2, filepath.Join(t.TempDir(), "x"), nil)
	if err == nil {
		t.Fatal("expected error from non-zero exit")
	}
}
