package types

import (
	"errors"
	"fmt"
)

var (
	// ErrPageUnreadable indicates the share page could not be fetched or its state document parsed.
	ErrPageUnreadable = errors.New("page unreadable")

	// ErrNotFound indicates no stream location could be discovered after all fallbacks.
	ErrNotFound = errors.New("stream not found")

	// ErrAuthExpired indicates a 403 on a binary transfer; the signed URL is likely stale.
	ErrAuthExpired = errors.New("auth expired")

	// ErrTransferFailure indicates any other non-success transfer status.
	ErrTransferFailure = errors.New("transfer failure")

	// ErrToolMissing indicates the external remux tool is not installed.
	ErrToolMissing = errors.New("tool missing")

	// ErrLedgerIO indicates the completion ledger could not be read or appended.
	ErrLedgerIO = errors.New("ledger io failure")
)

// ResolutionKind classifies a resolution failure.
type ResolutionKind string

const (
	ResolutionPageUnreadable ResolutionKind = "page_unreadable"
	ResolutionNotFound       ResolutionKind = "not_found"
)

// ResolutionError is returned by the asset resolver.
type ResolutionError struct {
	Kind ResolutionKind
	ID   AssetID
	Err  error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %s: %s: %v", e.ID, e.Kind, e.Err)
	}
	return fmt.Sprintf("resolve %s: %s", e.ID, e.Kind)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

func (e *ResolutionError) Is(target error) bool {
	switch e.Kind {
	case ResolutionPageUnreadable:
		return target == ErrPageUnreadable
	case ResolutionNotFound:
		return target == ErrNotFound
	}
	return false
}

// TransferError reports a non-success HTTP status on a stream transfer.
type TransferError struct {
	StatusCode int
	URLHost    string
}

func (e *TransferError) Error() string {
	if e.StatusCode == 403 {
		return fmt.Sprintf("transfer forbidden: status=403 host=%s (signed url likely expired)", e.URLHost)
	}
	return fmt.Sprintf("transfer failed: status=%d host=%s", e.StatusCode, e.URLHost)
}

func (e *TransferError) Is(target error) bool {
	if e.StatusCode == 403 {
		return target == ErrAuthExpired
	}
	return target == ErrTransferFailure
}

// ToolMissingError indicates an external executable could not be located.
type ToolMissingError struct {
	Tool     string
	Guidance string
}

func (e *ToolMissingError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Tool, e.Guidance)
}

func (e *ToolMissingError) Is(target error) bool { return target == ErrToolMissing }

// LedgerError wraps a completion ledger read or append failure.
type LedgerError struct {
	Op   string
	Path string
	Err  error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }

func (e *LedgerError) Is(target error) bool { return target == ErrLedgerIO }
