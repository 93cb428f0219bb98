// Package shared contains common error types and utilities.
package shared

import (
	"context"
	"errors"
	"fmt"
)

// Database access errors shared by every layer of the application.
var (
	// ErrOpen indicates that a database handle could not be opened
	ErrOpen = errors.New("open failed")

	// ErrPrepare indicates that a statement could not be compiled
	ErrPrepare = errors.New("prepare failed")

	// ErrBind indicates that a parameter could not be bound to a statement
	ErrBind = errors.New("bind failed")

	// ErrStep indicates that the engine failed while executing a statement
	ErrStep = errors.New("step failed")

	// ErrConfig indicates invalid caller configuration
	ErrConfig = errors.New("invalid configuration")

	// ErrTransaction indicates that a transaction did not commit
	ErrTransaction = errors.New("transaction failed")

	// ErrRollbackFailed indicates that a compensating rollback did not complete
	ErrRollbackFailed = errors.New("rollback failed")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")
)

// Kind represents a category of error for easier classification and handling.
type Kind int

const (
	// KindUnknown represents an unclassified error
	KindUnknown Kind = iota
	// KindOpen represents handle open failures
	KindOpen
	// KindPrepare represents statement compilation failures
	KindPrepare
	// KindBind represents parameter binding failures
	KindBind
	// KindStep represents execution failures
	KindStep
	// KindConfig represents invalid caller configuration
	KindConfig
	// KindTransaction represents transactions that ended in rollback
	KindTransaction
	// KindRollback represents failed compensating rollbacks
	KindRollback
	// KindTimeout represents timeout errors
	KindTimeout
	// KindCanceled represents context cancellation
	KindCanceled
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindOpen:
		return "Open"
	case KindPrepare:
		return "Prepare"
	case KindBind:
		return "Bind"
	case KindStep:
		return "Step"
	case KindConfig:
		return "Config"
	case KindTransaction:
		return "Transaction"
	case KindRollback:
		return "Rollback"
	case KindTimeout:
		return "Timeout"
	case KindCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// kindToSentinel maps error kinds to their corresponding sentinel errors.
var kindToSentinel = map[Kind]error{
	KindOpen:        ErrOpen,
	KindPrepare:     ErrPrepare,
	KindBind:        ErrBind,
	KindStep:        ErrStep,
	KindConfig:      ErrConfig,
	KindTransaction: ErrTransaction,
	KindRollback:    ErrRollbackFailed,
	KindTimeout:     ErrTimeout,
}

// kindPriorities defines the deterministic order for error classification.
// A transaction failure caused by a step error classifies as KindStep.
var kindPriorities = []struct {
	kind Kind
	err  error
}{
	{KindCanceled, nil},
	{KindTimeout, ErrTimeout},
	{KindConfig, ErrConfig},
	{KindOpen, ErrOpen},
	{KindPrepare, ErrPrepare},
	{KindBind, ErrBind},
	{KindStep, ErrStep},
	{KindRollback, ErrRollbackFailed},
	{KindTransaction, ErrTransaction},
}

// KindOf returns the Kind of the given error by checking against known sentinel errors.
// It traverses the error chain and returns the first match in priority order:
//
//  1. KindCanceled (context.Canceled)
//  2. KindTimeout (context.DeadlineExceeded, ErrTimeout)
//  3. KindConfig, KindOpen, KindPrepare, KindBind, KindStep
//  4. KindRollback, KindTransaction
//
// Returns KindUnknown for unrecognized errors.
//
// Example:
//
//	switch shared.KindOf(err) {
//	case shared.KindOpen:
//	    return exitNoDatabase
//	case shared.KindPrepare, shared.KindBind:
//	    return exitUsage
//	default:
//	    return exitFailure
//	}
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	for _, priority := range kindPriorities {
		switch priority.kind {
		case KindCanceled:
			if IsCanceled(err) {
				return KindCanceled
			}
		case KindTimeout:
			if IsTimeout(err) {
				return KindTimeout
			}
		default:
			if errors.Is(err, priority.err) {
				return priority.kind
			}
		}
	}

	return KindUnknown
}

// HasKind reports whether the given error carries the specified kind anywhere in its chain.
// Unlike KindOf it is not limited to the highest priority kind, so a step error
// wrapped into a failed transaction has both KindStep and KindTransaction.
func HasKind(err error, kind Kind) bool {
	switch kind {
	case KindUnknown:
		return err != nil && KindOf(err) == KindUnknown
	case KindCanceled:
		return IsCanceled(err)
	case KindTimeout:
		return IsTimeout(err)
	}
	sentinel := ErrorOf(kind)
	return sentinel != nil && errors.Is(err, sentinel)
}

// ErrorOf returns the sentinel error for the given Kind.
// For KindUnknown and KindCanceled, it returns nil.
func ErrorOf(kind Kind) error {
	if sentinel, exists := kindToSentinel[kind]; exists {
		return sentinel
	}
	return nil
}

// MarkKind wraps an error with the sentinel for the given kind,
// preserving the original error through error wrapping.
// Both HasKind(MarkKind(err, kind), kind) and errors.Is(MarkKind(err, kind), err) hold.
// If err is nil, returns the sentinel error for the kind (or nil for unsupported kinds).
// If kind is KindUnknown or KindCanceled, returns the original error unchanged.
//
// Marking an error with a kind it already carries returns it unchanged.
func MarkKind(err error, kind Kind) error {
	if err == nil {
		return ErrorOf(kind)
	}

	sentinel := ErrorOf(kind)
	if sentinel == nil {
		return err
	}

	if errors.Is(err, sentinel) {
		return err
	}

	return fmt.Errorf("%w: %w", sentinel, err)
}

// Wrap wraps an error with additional context.
// It returns a new error that formats as "context: err".
// If err is nil, Wrap returns nil.
// If context is empty, returns the original error.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	if context == "" {
		return err
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Wrapf wraps an error with a formatted context message.
// If err is nil, Wrapf returns nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	context := fmt.Sprintf(format, args...)
	if context == "" {
		return err
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Configf builds a KindConfig error from a formatted message.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// IsCanceled reports whether the error indicates a canceled context.
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled)
}

// IsTimeout reports whether the error indicates a timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout)
}

// IsOpen reports whether the error is a handle open failure.
func IsOpen(err error) bool {
	return errors.Is(err, ErrOpen)
}

// IsPrepare reports whether the error is a statement compilation failure.
func IsPrepare(err error) bool {
	return errors.Is(err, ErrPrepare)
}

// IsBind reports whether the error is a parameter binding failure.
func IsBind(err error) bool {
	return errors.Is(err, ErrBind)
}

// IsStep reports whether the error is an execution failure.
func IsStep(err error) bool {
	return errors.Is(err, ErrStep)
}

// IsConfig reports whether the error is an invalid configuration.
func IsConfig(err error) bool {
	return errors.Is(err, ErrConfig)
}

// IsTransaction reports whether the error is a failed transaction.
func IsTransaction(err error) bool {
	return errors.Is(err, ErrTransaction)
}

// IsRollbackFailed reports whether a compensating rollback failed.
func IsRollbackFailed(err error) bool {
	return errors.Is(err, ErrRollbackFailed)
}
