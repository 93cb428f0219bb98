package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"litequery/internal/shared"
)

// TxContext - общий изменяемый контекст операций одной транзакции.
// Операции передают через него данные последующим операциям (например, id вставленной строки).
type TxContext map[string]any

// Set сохраняет значение по ключу.
func (c TxContext) Set(key string, value any) { c[key] = value }

// Get возвращает значение по ключу.
func (c TxContext) Get(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}

// Int64 возвращает целое значение по ключу.
func (c TxContext) Int64(key string) (int64, bool) {
	switch v := c[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	}
	return 0, false
}

// Operation - шаг транзакции. nil означает успех, ошибка останавливает транзакцию.
type Operation func(ctx context.Context, h *Handle, tx TxContext) error

// BeginFunc открывает хэндл и начинает транзакцию.
// При ошибке BeginFunc сама освобождает всё, что успела открыть.
type BeginFunc func(ctx context.Context) (*Handle, error)

// EndFunc завершает транзакцию: фиксирует при succeeded, иначе откатывает, и закрывает хэндл.
type EndFunc func(ctx context.Context, succeeded bool, h *Handle) error

// TxState - состояние транзакции.
type TxState string

const (
	TxIdle       TxState = "idle"
	TxBegun      TxState = "begun"
	TxCommitted  TxState = "committed"
	TxRolledBack TxState = "rolled_back"
	TxClosed     TxState = "closed"
)

// RunTransaction выполняет begin, затем операции по порядку, затем end ровно один раз.
//
// Первая неуспешная операция прерывает выполнение, оставшиеся не вызываются.
// end получает общий флаг успеха. Если операция паникует, end вызывается
// с succeeded = false, после чего паника продолжается.
// Возвращает nil только если все операции и end завершились успешно.
func RunTransaction(ctx context.Context, begin BeginFunc, ops []Operation, end EndFunc) error {
	return runTransaction(ctx, slog.New(slog.DiscardHandler), begin, ops, end)
}

func runTransaction(ctx context.Context, log *slog.Logger, begin BeginFunc, ops []Operation, end EndFunc) (err error) {
	if begin == nil || end == nil {
		return shared.Configf("transaction requires begin and end hooks")
	}

	log = log.With("tx_id", uuid.NewString())
	started := time.Now()

	h, err := begin(ctx)
	if err != nil {
		log.Debug("transaction not begun", "error", err)
		return shared.MarkKind(fmt.Errorf("begin: %w", err), shared.KindTransaction)
	}
	log.Debug("transaction begun", "state", TxBegun, "ops", len(ops))

	txCtx := TxContext{}
	ended := false
	endOnce := func(succeeded bool) error {
		ended = true
		// COMMIT/ROLLBACK должны выполниться даже после отмены ctx
		return end(context.WithoutCancel(ctx), succeeded, h)
	}

	defer func() {
		if ended {
			return
		}
		if r := recover(); r != nil {
			if endErr := endOnce(false); endErr != nil {
				log.Error("transaction end after panic failed", "error", endErr)
			}
			panic(r)
		}
	}()

	var opErr error
	for i, op := range ops {
		if op == nil {
			opErr = shared.Configf("operation %d is nil", i)
			break
		}
		if err := op(ctx, h, txCtx); err != nil {
			opErr = fmt.Errorf("operation %d: %w", i, err)
			break
		}
	}

	succeeded := opErr == nil
	endErr := endOnce(succeeded)

	state := TxCommitted
	if !succeeded || endErr != nil {
		state = TxRolledBack
	}
	log.Debug("transaction finished", "state", state, "duration", time.Since(started), "error", errors.Join(opErr, endErr))

	if opErr == nil && endErr == nil {
		return nil
	}
	return shared.MarkKind(errors.Join(opErr, endErr), shared.KindTransaction)
}

// BeginImmediate возвращает BeginFunc, которая открывает хэндл через open
// и выполняет BEGIN с указанным режимом блокировки.
func BeginImmediate(open func(ctx context.Context) (*Handle, error), lock TxLockMode) BeginFunc {
	if lock == "" {
		lock = TxLockImmediate
	}
	return func(ctx context.Context) (*Handle, error) {
		h, err := open(ctx)
		if err != nil {
			return nil, err
		}
		if err := h.exec(ctx, fmt.Sprintf("BEGIN %s", lock)); err != nil {
			_ = h.Close()
			return nil, err
		}
		return h, nil
	}
}

// CommitOrRollback возвращает EndFunc: COMMIT при успехе (ROLLBACK, если COMMIT не прошёл),
// ROLLBACK при неуспехе. Хэндл закрывается всегда.
func CommitOrRollback() EndFunc {
	return func(ctx context.Context, succeeded bool, h *Handle) error {
		var err error
		if succeeded {
			if err = h.exec(ctx, "COMMIT"); err != nil {
				err = errors.Join(err, h.exec(ctx, "ROLLBACK"))
			}
		} else {
			err = h.exec(ctx, "ROLLBACK")
		}
		return errors.Join(err, h.Close())
	}
}

// exec выполняет запрос без колбэков.
func (h *Handle) exec(ctx context.Context, query string, args ...any) error {
	var bind BindFunc
	if len(args) > 0 {
		bind = func(s *Stmt) error { return s.BindAll(args...) }
	}
	return h.Execute(ctx, query, bind, nil, nil)
}

// ExecOp возвращает операцию, выполняющую запрос с параметрами.
func ExecOp(query string, args ...any) Operation {
	return func(ctx context.Context, h *Handle, _ TxContext) error {
		return h.exec(ctx, query, args...)
	}
}

// InsertOp возвращает операцию вставки, сохраняющую rowid новой строки в контексте по ключу idKey.
func InsertOp(idKey, query string, args ...any) Operation {
	return func(ctx context.Context, h *Handle, tx TxContext) error {
		if err := h.exec(ctx, query, args...); err != nil {
			return err
		}
		id, err := h.LastInsertRowID(ctx)
		if err != nil {
			return err
		}
		tx.Set(idKey, id)
		return nil
	}
}

// SetVersionOp возвращает операцию записи версии схемы в рамках транзакции.
func SetVersionOp(version int32) Operation {
	return func(ctx context.Context, h *Handle, _ TxContext) error {
		return h.SetVersion(ctx, version)
	}
}

// WithinSavepoint выполняет fn внутри savepoint текущей транзакции.
// При ошибке изменения fn откатываются к savepoint, транзакция продолжается.
func (h *Handle) WithinSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	name := "sp_" + uuid.NewString()[:8]

	if err := h.exec(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to create savepoint %s: %w", name, err)
	}

	if err := fn(ctx); err != nil {
		if rollbackErr := h.exec(ctx, "ROLLBACK TO SAVEPOINT "+name); rollbackErr != nil {
			return fmt.Errorf("failed to rollback to savepoint %s: %v (original error: %w)", name, rollbackErr, err)
		}
		_ = h.exec(ctx, "RELEASE SAVEPOINT "+name)
		return err
	}

	if err := h.exec(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to release savepoint %s: %w", name, err)
	}
	return nil
}
