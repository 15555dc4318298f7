package download

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// ExecFetcher shells out to an external downloader for files the platform's
// HTTP fetch path refuses. The command is invoked as
//
//	<command> <arg>... <chat_id> <message_id> <dest>
//
// and must exit 0 with dest fully written. Transfer progress is reported by
// polling the destination's size while the process runs.
type ExecFetcher struct {
	Command string
	Args    []string
	// ExpectedSize, when known, lets progress report a total. 0 means unknown.
	ExpectedSize int64
}

// Fetch implements FallbackFetcher.
func (f *ExecFetcher) Fetch(ctx context.Context, chatID int64, messageID int, dest string, progress ProgressFunc) error {
	args := append([]string{}, f.Args...)
	args = append(args,
		strconv.FormatInt(chatID, 10),
		strconv.Itoa(messageID),
		dest,
	)
	cmd := exec.CommandContext(ctx, f.Command, args...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", f.Command, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("%s: %w", f.Command, err)
			}
			if progress != nil {
				if fi, statErr := os.Stat(dest); statErr == nil {
					size := fi.Size()
					total := f.ExpectedSize
					if total == 0 {
						total = size
					}
					progress(size, total)
				}
			}
			return nil
		case <-ticker.C:
			if progress != nil {
				if fi, err := os.Stat(dest); err == nil {
					progress(fi.Size(), f.ExpectedSize)
				}
			}
		case <-ctx.Done():
			<-done
			return ctx.Err()
		}
	}
}
