package dag

import "github.com/pkg/errors"

// ErrorKind classifies why the DAG engine rejected or deferred a block,
// matching the taxonomy in spec.md §7. It is not a type hierarchy —
// there is exactly one concrete error type (RuleError) tagged with a Kind.
type ErrorKind int

const (
	// ErrMalformed is a syntax/PoW/signature failure. Dropped silently
	// after a trace log; no peer action here.
	ErrMalformed ErrorKind = iota
	// ErrNotSolid means parents are missing. Recoverable via the OBC if
	// weakly solid; otherwise triggers a sync request. Never fatal.
	ErrNotSolid
	// ErrTooOld is a punctuality failure. Dropped; no OBC entry.
	ErrTooOld
	// ErrWrongTarget is a difficulty mismatch with the referenced
	// milestone. Dropped.
	ErrWrongTarget
	// ErrDuplicate means the block already exists in cache or Store.
	// Silently ignored.
	ErrDuplicate
	// ErrVerifyFailure means level-set verification of a proposed
	// milestone failed. The proposing block is rejected; Chain state is
	// unchanged.
	ErrVerifyFailure
	// ErrInvalidDistance is the sortition/valid-distance subtype of
	// ErrVerifyFailure (SPEC_FULL.md, supplemented from original_source/):
	// kept as its own Kind so a peer reply can eventually distinguish
	// "you're ahead of your miner-chain height" from a general ledger
	// failure.
	ErrInvalidDistance
	// ErrStoreFailure is a Store operation failure during flush. Fatal:
	// surfaced upward; the flush does not proceed.
	ErrStoreFailure
)

func (k ErrorKind) String() string {
	switch k {
	case ErrMalformed:
		return "Malformed"
	case ErrNotSolid:
		return "NotSolid"
	case ErrTooOld:
		return "TooOld"
	case ErrWrongTarget:
		return "WrongTarget"
	case ErrDuplicate:
		return "Duplicate"
	case ErrVerifyFailure:
		return "VerifyFailure"
	case ErrInvalidDistance:
		return "InvalidDistance"
	case ErrStoreFailure:
		return "StoreFailure"
	default:
		return "Unknown"
	}
}

// RuleError is the concrete error type returned by admission and
// verification. Callers that need to branch on the taxonomy use Kind(),
// mirroring the teacher's own RuleError pattern in blockdag/validate.go.
type RuleError struct {
	kind        ErrorKind
	description string
	cause       error
}

func (e *RuleError) Error() string {
	if e.cause != nil {
		return e.description + ": " + e.cause.Error()
	}
	return e.description
}

func (e *RuleError) Unwrap() error { return e.cause }

// Kind returns the error's taxonomy classification.
func (e *RuleError) Kind() ErrorKind { return e.kind }

func ruleError(kind ErrorKind, description string) error {
	return &RuleError{kind: kind, description: description}
}

func ruleErrorWrap(kind ErrorKind, description string, cause error) error {
	return &RuleError{kind: kind, description: description, cause: cause}
}

// KindOf extracts the ErrorKind from err if it (or something it wraps) is
// a *RuleError, and ok=false otherwise.
func KindOf(err error) (kind ErrorKind, ok bool) {
	var ruleErr *RuleError
	if errors.As(err, &ruleErr) {
		return ruleErr.kind, true
	}
	return 0, false
}
