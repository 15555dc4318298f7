// Package download acquires raw media bytes from a remote source, using
// parallel byte-range workers where the size is known and a platform-specific
// fallback path for files the direct fetch refuses.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// defaultConnections is the number of parallel range workers.
	defaultConnections = 8
	// probeTimeout bounds the size probe.
	probeTimeout = 10 * time.Second
	// fallbackTimeout bounds the whole fallback acquisition.
	fallbackTimeout = 900 * time.Second
)

// ProgressFunc receives coarse transfer progress. total is 0 when unknown.
type ProgressFunc func(current, total int64)

// FallbackFetcher acquires a file addressed by its source message rather than
// a URL. It is the escape hatch for files the direct fetch path rejects as
// oversized.
type FallbackFetcher interface {
	Fetch(ctx context.Context, chatID int64, messageID int, dest string, progress ProgressFunc) error
}

// Source describes where the bytes come from. ResolveURL yields the direct
// fetch URL or ErrSizeLimited; Fallback (optional) handles the oversized case.
type Source struct {
	ResolveURL func(ctx context.Context) (string, error)
	Fallback   FallbackFetcher
	ChatID     int64
	MessageID  int
}

// Engine downloads files. The zero value is not usable; construct with
// NewEngine.
type Engine struct {
	client      *http.Client
	connections int
}

// NewEngine creates a download engine with the default connection count.
func NewEngine() *Engine {
	return &Engine{
		client:      &http.Client{},
		connections: defaultConnections,
	}
}

// Acquire fetches the source into dest. The direct path probes the size and
// splits into parallel range workers; an unknown size degrades to a single
// stream; a size-limit rejection switches to the fallback fetcher. On every
// failure path dest and all intermediate segments are removed.
func (e *Engine) Acquire(ctx context.Context, src Source, dest string, progress ProgressFunc) error {
	start := time.Now()

	url, err := src.ResolveURL(ctx)
	if err != nil {
		if errors.Is(err, ErrSizeLimited) {
			if src.Fallback == nil {
				return failed(FailureSizeLimit, err)
			}
			log.Printf("[download] direct path refused (size limit), using fallback fetcher")
			return e.acquireFallback(ctx, src, dest, progress)
		}
		return failed(FailureNetwork, fmt.Errorf("resolve source: %w", err))
	}

	size := e.probeSize(ctx, url)
	if size <= 0 {
		log.Printf("[download] size unknown, using single stream")
		err = e.fetchSingle(ctx, url, dest)
	} else {
		log.Printf("[download] size %.2f MB, using %d range workers", float64(size)/(1024*1024), e.connections)
		err = e.fetchParallel(ctx, url, dest, size)
	}
	if err != nil {
		removeIfExists(dest)
		observeDownload("direct", "error", time.Since(start))
		return err
	}
	observeDownload("direct", "success", time.Since(start))
	return nil
}

// probeSize issues a HEAD request with a short timeout and returns the
// content length, or 0 when it cannot be determined.
func (e *Engine) probeSize(ctx context.Context, url string) int64 {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.ContentLength <= 0 {
		return 0
	}
	return resp.ContentLength
}

// fetchSingle streams the whole file in one request.
func (e *Engine) fetchSingle(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return failed(FailureNetwork, err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return classifyNetErr(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return failed(FailureNetwork, fmt.Errorf("unexpected status %s", resp.Status))
	}

	// Local filesystem trouble is not a transfer failure, so it stays
	// outside the failure taxonomy.
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return classifyNetErr(err)
	}
	return f.Close()
}

// fetchParallel splits [0, size) into equal ranges, one segment file per
// worker. The first failure cancels the rest; no partial merge ever happens.
func (e *Engine) fetchParallel(ctx context.Context, url, dest string, size int64) error {
	n := e.connections
	if int64(n) > size {
		n = 1
	}
	part := size / int64(n)

	// Segments are removed unconditionally: on success they have been merged,
	// on failure they must not linger.
	defer func() {
		for i := 0; i < n; i++ {
			removeIfExists(segmentPath(dest, i))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		start := int64(i) * part
		end := start + part - 1
		if i == n-1 {
			end = size - 1 // remainder goes to the last worker
		}
		seg := segmentPath(dest, i)
		g.Go(func() error {
			return e.fetchRange(gctx, url, seg, start, end)
		})
	}
	if err := g.Wait(); err != nil {
		if isTimeout(err) {
			return failed(FailureTimeout, err)
		}
		return failed(FailureWorker, fmt.Errorf("range worker: %w", err))
	}

	if err := mergeSegments(dest, n); err != nil {
		return fmt.Errorf("merge segments: %w", err)
	}
	return nil
}

// fetchRange streams one byte range into its segment file.
func (e *Engine) fetchRange(ctx context.Context, url, seg string, start, end int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("range %d-%d: unexpected status %s", start, end, resp.Status)
	}

	f, err := os.Create(seg)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// acquireFallback runs the message-addressed fetch path under the overall
// fallback timeout, throttling progress emissions.
func (e *Engine) acquireFallback(ctx context.Context, src Source, dest string, progress ProgressFunc) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, fallbackTimeout)
	defer cancel()

	err := src.Fallback.Fetch(ctx, src.ChatID, src.MessageID, dest, throttleProgress(progress))
	if err != nil {
		removeIfExists(dest)
		observeDownload("fallback", "error", time.Since(start))
		// Any abnormal completion counts as a timeout here: the transfer
		// window is spent either way.
		return failed(FailureTimeout, err)
	}
	if _, statErr := os.Stat(dest); statErr != nil {
		observeDownload("fallback", "error", time.Since(start))
		return failed(FailureTimeout, fmt.Errorf("fallback produced no file: %w", statErr))
	}
	observeDownload("fallback", "success", time.Since(start))
	return nil
}

// mergeSegments concatenates segment files in range order into dest.
func mergeSegments(dest string, n int) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		seg, err := os.Open(segmentPath(dest, i))
		if err != nil {
			out.Close()
			return err
		}
		_, err = io.Copy(out, seg)
		seg.Close()
		if err != nil {
			out.Close()
			return err
		}
	}
	return out.Close()
}

func segmentPath(dest string, i int) string {
	return fmt.Sprintf("%s.part%d", dest, i)
}

// removeIfExists deletes path, tolerating repeated calls.
func removeIfExists(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("[download] remove %s: %v", path, err)
	}
}

func classifyNetErr(err error) *Error {
	if isTimeout(err) {
		return failed(FailureTimeout, err)
	}
	return failed(FailureNetwork, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// throttleProgress limits emissions to one per progressInterval, always
// letting the final emission (current == total) through.
func throttleProgress(fn ProgressFunc) ProgressFunc {
	if fn == nil {
		return nil
	}
	const progressInterval = 2 * time.Second
	var last time.Time
	return func(current, total int64) {
		now := time.Now()
		if now.Sub(last) < progressInterval && !(total > 0 && current >= total) {
			return
		}
		last = now
		fn(current, total)
	}
}
