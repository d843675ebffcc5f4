package client

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/famomatic/loomdl/internal/types"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{name: "nil", err: nil, want: ErrorCategoryNone},
		{name: "page unreadable", err: &ResolutionError{Kind: types.ResolutionPageUnreadable, ID: "a"}, want: ErrorCategoryPageUnreadable},
		{name: "not found", err: &ResolutionError{Kind: types.ResolutionNotFound, ID: "a"}, want: ErrorCategoryNotFound},
		{name: "auth expired", err: &TransferError{StatusCode: 403, URLHost: "cdn"}, want: ErrorCategoryAuthExpired},
		{name: "transfer", err: &TransferError{StatusCode: 500, URLHost: "cdn"}, want: ErrorCategoryTransferFailure},
		{name: "tool missing", err: &ToolMissingError{Tool: "ffmpeg"}, want: ErrorCategoryToolMissing},
		{name: "ledger", err: &LedgerError{Op: "append", Path: "x", Err: errors.New("disk full")}, want: ErrorCategoryLedgerIO},
		{name: "transcript", err: fmt.Errorf("asset a: %w", ErrTranscriptUnavailable), want: ErrorCategoryTranscriptUnavailable},
		{name: "canceled", err: fmt.Errorf("fetch: %w", context.Canceled), want: ErrorCategoryCanceled},
		{name: "unknown", err: errors.New("boom"), want: ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		got := ClassifyError(tt.err)
		if got != tt.want {
			t.Fatalf("%s: ClassifyError()=%q want=%q", tt.name, got, tt.want)
		}
	}
}
