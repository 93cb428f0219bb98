package shared_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"litequery/internal/shared"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		context  string
		expected string
		isNil    bool
	}{
		{name: "nil error", err: nil, context: "some context", isNil: true},
		{name: "simple error", err: errors.New("original"), context: "wrapper", expected: "wrapper: original"},
		{name: "empty context", err: errors.New("original"), context: "", expected: "original"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := shared.Wrap(tt.err, tt.context)
			if tt.isNil {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.Equal(t, tt.expected, result.Error())
			assert.True(t, errors.Is(result, tt.err))
		})
	}
}

func TestWrapf(t *testing.T) {
	original := errors.New("original")

	assert.Nil(t, shared.Wrapf(nil, "context %d", 42))
	assert.Equal(t, "page 3 of users: original", shared.Wrapf(original, "page %d of %s", 3, "users").Error())
	assert.Equal(t, "original", shared.Wrapf(original, "").Error())
	assert.ErrorIs(t, shared.Wrapf(original, "ctx"), original)
}

func TestConfigf(t *testing.T) {
	err := shared.Configf("buffer size must be positive, got %d", 0)

	assert.True(t, shared.IsConfig(err))
	assert.Equal(t, shared.KindConfig, shared.KindOf(err))
	assert.Equal(t, "invalid configuration: buffer size must be positive, got 0", err.Error())
}

func TestSentinelErrors(t *testing.T) {
	sentinels := []error{
		shared.ErrOpen,
		shared.ErrPrepare,
		shared.ErrBind,
		shared.ErrStep,
		shared.ErrConfig,
		shared.ErrTransaction,
		shared.ErrRollbackFailed,
		shared.ErrTimeout,
	}

	for i, a := range sentinels {
		require.NotEmpty(t, a.Error())
		for j, b := range sentinels {
			if i != j {
				assert.False(t, errors.Is(a, b), "%v must not match %v", a, b)
			}
		}
	}
}

func TestKindString(t *testing.T) {
	tests := map[shared.Kind]string{
		shared.KindUnknown:     "Unknown",
		shared.KindOpen:        "Open",
		shared.KindPrepare:     "Prepare",
		shared.KindBind:        "Bind",
		shared.KindStep:        "Step",
		shared.KindConfig:      "Config",
		shared.KindTransaction: "Transaction",
		shared.KindRollback:    "Rollback",
		shared.KindTimeout:     "Timeout",
		shared.KindCanceled:    "Canceled",
		shared.Kind(999):       "Unknown",
	}

	for kind, want := range tests {
		assert.Equal(t, want, kind.String())
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want shared.Kind
	}{
		{"nil", nil, shared.KindUnknown},
		{"plain", errors.New("boom"), shared.KindUnknown},
		{"open", shared.ErrOpen, shared.KindOpen},
		{"wrapped prepare", fmt.Errorf("compile: %w", shared.ErrPrepare), shared.KindPrepare},
		{"bind", shared.MarkKind(errors.New("bad value"), shared.KindBind), shared.KindBind},
		{"step", shared.MarkKind(errors.New("constraint"), shared.KindStep), shared.KindStep},
		{"config", shared.Configf("x"), shared.KindConfig},
		{"transaction only", shared.ErrTransaction, shared.KindTransaction},
		{"rollback", shared.ErrRollbackFailed, shared.KindRollback},
		{"canceled", context.Canceled, shared.KindCanceled},
		{"deadline", context.DeadlineExceeded, shared.KindTimeout},
		{"timeout sentinel", shared.ErrTimeout, shared.KindTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shared.KindOf(tt.err))
		})
	}
}

func TestKindPriorities(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want shared.Kind
	}{
		{
			name: "step inside transaction",
			err:  shared.MarkKind(shared.MarkKind(errors.New("UNIQUE constraint failed"), shared.KindStep), shared.KindTransaction),
			want: shared.KindStep,
		},
		{
			name: "canceled beats everything",
			err:  errors.Join(shared.ErrOpen, context.Canceled, shared.ErrConfig),
			want: shared.KindCanceled,
		},
		{
			name: "timeout beats config",
			err:  errors.Join(shared.ErrConfig, context.DeadlineExceeded),
			want: shared.KindTimeout,
		},
		{
			name: "config beats open",
			err:  errors.Join(shared.ErrOpen, shared.ErrConfig),
			want: shared.KindConfig,
		},
		{
			name: "rollback beats transaction",
			err:  errors.Join(shared.ErrTransaction, shared.ErrRollbackFailed),
			want: shared.KindRollback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 10; i++ {
				assert.Equal(t, tt.want, shared.KindOf(tt.err))
			}
		})
	}
}

func TestHasKind(t *testing.T) {
	stepInTx := shared.MarkKind(shared.MarkKind(errors.New("disk I/O error"), shared.KindStep), shared.KindTransaction)

	assert.True(t, shared.HasKind(stepInTx, shared.KindStep))
	assert.True(t, shared.HasKind(stepInTx, shared.KindTransaction))
	assert.False(t, shared.HasKind(stepInTx, shared.KindOpen))

	assert.True(t, shared.HasKind(fmt.Errorf("wait: %w", context.Canceled), shared.KindCanceled))
	assert.True(t, shared.HasKind(context.DeadlineExceeded, shared.KindTimeout))

	assert.True(t, shared.HasKind(errors.New("plain"), shared.KindUnknown))
	assert.False(t, shared.HasKind(nil, shared.KindUnknown))
	assert.False(t, shared.HasKind(shared.ErrBind, shared.KindUnknown))
}

func TestMarkKind(t *testing.T) {
	original := errors.New("near \"SELEC\": syntax error")

	marked := shared.MarkKind(original, shared.KindPrepare)
	assert.True(t, shared.IsPrepare(marked))
	assert.ErrorIs(t, marked, original)
	assert.Equal(t, "prepare failed: near \"SELEC\": syntax error", marked.Error())

	t.Run("idempotent", func(t *testing.T) {
		again := shared.MarkKind(marked, shared.KindPrepare)
		assert.Same(t, marked, again)
	})

	t.Run("nil error returns sentinel", func(t *testing.T) {
		assert.Equal(t, shared.ErrBind, shared.MarkKind(nil, shared.KindBind))
		assert.Nil(t, shared.MarkKind(nil, shared.KindUnknown))
	})

	t.Run("kinds without sentinel are ignored", func(t *testing.T) {
		assert.Same(t, original, shared.MarkKind(original, shared.KindUnknown))
		assert.Same(t, original, shared.MarkKind(original, shared.KindCanceled))
	})
}

func TestErrorOf(t *testing.T) {
	assert.Equal(t, shared.ErrOpen, shared.ErrorOf(shared.KindOpen))
	assert.Equal(t, shared.ErrRollbackFailed, shared.ErrorOf(shared.KindRollback))
	assert.Nil(t, shared.ErrorOf(shared.KindUnknown))
	assert.Nil(t, shared.ErrorOf(shared.KindCanceled))
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name  string
		pred  func(error) bool
		match error
	}{
		{"IsOpen", shared.IsOpen, shared.ErrOpen},
		{"IsPrepare", shared.IsPrepare, shared.ErrPrepare},
		{"IsBind", shared.IsBind, shared.ErrBind},
		{"IsStep", shared.IsStep, shared.ErrStep},
		{"IsConfig", shared.IsConfig, shared.ErrConfig},
		{"IsTransaction", shared.IsTransaction, shared.ErrTransaction},
		{"IsRollbackFailed", shared.IsRollbackFailed, shared.ErrRollbackFailed},
		{"IsTimeout", shared.IsTimeout, shared.ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.pred(tt.match))
			assert.True(t, tt.pred(fmt.Errorf("outer: %w", tt.match)))
			assert.True(t, tt.pred(errors.Join(errors.New("other"), tt.match)))
			assert.False(t, tt.pred(errors.New("unrelated")))
			assert.False(t, tt.pred(nil))
		})
	}
}
