// Package shared contains common error types and utilities for error handling
// across the application without domain-specific logic.
//
// # Error Types
//
// Sentinel errors describe the failure conditions of database access:
//
//   - ErrOpen: a handle could not be opened (missing file, missing schema, not a database)
//   - ErrPrepare: a statement could not be compiled (syntax error, unknown table)
//   - ErrBind: a parameter could not be bound
//   - ErrStep: the engine failed while executing a statement
//   - ErrConfig: the caller passed invalid configuration
//   - ErrTransaction: a transaction ended in rollback
//   - ErrRollbackFailed: a compensating rollback did not complete
//   - ErrTimeout: an operation timed out
//
// # Error Classification
//
// Use KindOf() to classify errors into categories:
//
//	switch shared.KindOf(err) {
//	case shared.KindOpen:
//	    // database missing or unreadable
//	case shared.KindStep:
//	    // constraint violation, busy database, read-only handle
//	}
//
// KindOf reports the single highest priority kind. HasKind reports whether a
// kind is present anywhere in the chain, which matters for failed transactions:
// they carry KindTransaction together with the kind of the operation that failed.
//
// # Kind Priority Table
//
//	Priority | Kind            | Description
//	---------|-----------------|------------------------------
//	1        | KindCanceled    | Context cancellation (highest)
//	2        | KindTimeout     | Timeout/deadline errors
//	3        | KindConfig      | Invalid caller configuration
//	4        | KindOpen        | Handle open failures
//	5        | KindPrepare     | Statement compilation failures
//	6        | KindBind        | Parameter binding failures
//	7        | KindStep        | Execution failures
//	8        | KindRollback    | Failed compensating rollback
//	9        | KindTransaction | Rolled back transaction (lowest)
//
// # Error Marking
//
// Mark third-party errors with a kind while preserving the original error:
//
//	if err := stmt.QueryContext(ctx, args...); err != nil {
//	    return shared.MarkKind(err, shared.KindStep)
//	}
//
// Error messages are lowercase without punctuation so they compose when wrapped.
package shared
