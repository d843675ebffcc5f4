package client

import (
	"context"
	"errors"

	"github.com/famomatic/loomdl/internal/types"
)

var (
	// ErrPageUnreadable means the share page could not be fetched or its
	// state document could not be located or decoded.
	ErrPageUnreadable = types.ErrPageUnreadable
	// ErrNotFound means no downloadable stream could be located.
	ErrNotFound = types.ErrNotFound
	// ErrAuthExpired means the media host rejected the request with 403.
	ErrAuthExpired = types.ErrAuthExpired
	// ErrTransferFailure covers other media transfer failures.
	ErrTransferFailure = types.ErrTransferFailure
	// ErrToolMissing means the remux tool is not installed.
	ErrToolMissing = types.ErrToolMissing
	// ErrLedgerIO means the completion ledger could not be read or appended.
	ErrLedgerIO = types.ErrLedgerIO
	// ErrTranscriptUnavailable means a transcript-only task found no transcript.
	ErrTranscriptUnavailable = errors.New("transcript unavailable")
)

type (
	ResolutionError  = types.ResolutionError
	TransferError    = types.TransferError
	ToolMissingError = types.ToolMissingError
	LedgerError      = types.LedgerError
)

// ErrorCategory is a stable, loggable classification of a task failure.
type ErrorCategory string

const (
	ErrorCategoryNone                  ErrorCategory = "none"
	ErrorCategoryPageUnreadable        ErrorCategory = "page_unreadable"
	ErrorCategoryNotFound              ErrorCategory = "not_found"
	ErrorCategoryAuthExpired           ErrorCategory = "auth_expired"
	ErrorCategoryTransferFailure       ErrorCategory = "transfer_failure"
	ErrorCategoryToolMissing           ErrorCategory = "tool_missing"
	ErrorCategoryLedgerIO              ErrorCategory = "ledger_io"
	ErrorCategoryTranscriptUnavailable ErrorCategory = "transcript_unavailable"
	ErrorCategoryCanceled              ErrorCategory = "canceled"
	ErrorCategoryUnknown               ErrorCategory = "unknown"
)

// ClassifyError maps err to a category for logs and metrics labels.
func ClassifyError(err error) ErrorCategory {
	switch {
	case err == nil:
		return ErrorCategoryNone
	case errors.Is(err, ErrPageUnreadable):
		return ErrorCategoryPageUnreadable
	case errors.Is(err, ErrNotFound):
		return ErrorCategoryNotFound
	case errors.Is(err, ErrAuthExpired):
		return ErrorCategoryAuthExpired
	case errors.Is(err, ErrTransferFailure):
		return ErrorCategoryTransferFailure
	case errors.Is(err, ErrToolMissing):
		return ErrorCategoryToolMissing
	case errors.Is(err, ErrLedgerIO):
		return ErrorCategoryLedgerIO
	case errors.Is(err, ErrTranscriptUnavailable):
		return ErrorCategoryTranscriptUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorCategoryCanceled
	default:
		return ErrorCategoryUnknown
	}
}
