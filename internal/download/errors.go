package download

import (
	"errors"
	"fmt"
)

// ErrSizeLimited is reported by a Source whose direct fetch path refused the
// file for being over the platform limit. Acquire reacts by switching to the
// fallback fetcher.
var ErrSizeLimited = errors.New("file exceeds platform size limit")

// FailureKind classifies an acquisition failure.
type FailureKind int

const (
	FailureNetwork FailureKind = iota
	FailureTimeout
	FailureSizeLimit
	FailureWorker
)

func (k FailureKind) String() string {
	switch k {
	case FailureNetwork:
		return "network"
	case FailureTimeout:
		return "timeout"
	case FailureSizeLimit:
		return "size-limit"
	case FailureWorker:
		return "worker"
	default:
		return "unknown"
	}
}

// Error is a failed acquisition with its classification.
type Error struct {
	Kind FailureKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("download failed (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// failed wraps err as an *Error of the given kind.
func failed(kind FailureKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
