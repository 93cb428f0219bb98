// Package retry re-runs an operation with exponential backoff while its
// error is classified as retryable.
//
// The caller decides what is retryable. For database writes that is usually
// lock contention:
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func(ctx context.Context) error {
//	    return db.WriteTransaction(ctx, ops...)
//	}, sqlite.IsBusy)
//
// When every attempt fails with a retryable error, Do returns
// *RetriesExceededError wrapping the last error.
package retry
