package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"litequery/internal/shared"
)

// Handle - открытый хэндл БД с одним закреплённым соединением.
// Хэндл не предназначен для одновременного использования из нескольких горутин.
type Handle struct {
	db       *sql.DB
	conn     *sql.Conn
	path     string
	mode     AccessMode
	lockMode TxLockMode
	log      *slog.Logger

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

// Path возвращает путь к файлу БД.
func (h *Handle) Path() string { return h.path }

// Mode возвращает режим, в котором открыт хэндл.
func (h *Handle) Mode() AccessMode { return h.mode }

// Close освобождает соединение и пул. Повторный вызов возвращает результат первого.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.closed = true
		h.closeErr = errors.Join(h.conn.Close(), h.db.Close())
		h.log.Debug("database handle closed", "path", h.path)
	})
	return h.closeErr
}

func (h *Handle) usable() error {
	if h == nil {
		return shared.Configf("database handle is nil")
	}
	if h.closed {
		return shared.MarkKind(ErrHandleClosed, shared.KindConfig)
	}
	return nil
}

// Version читает версию схемы из PRAGMA user_version.
func (h *Handle) Version(ctx context.Context) (int32, error) {
	var version int64
	err := h.Execute(ctx, "PRAGMA user_version", nil, func(s *Stmt, _ int) error {
		return s.Scan(&version)
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	// Движок хранит user_version как 32-битное знаковое целое
	return int32(version), nil
}

// SetVersion записывает версию схемы в PRAGMA user_version.
// Внутри транзакции запись откатывается вместе с ней.
func (h *Handle) SetVersion(ctx context.Context, version int32) error {
	// PRAGMA не принимает параметры, значение подставляется как литерал
	query := fmt.Sprintf("PRAGMA user_version = %d", version)
	if err := h.Execute(ctx, query, nil, nil, nil); err != nil {
		return fmt.Errorf("failed to write schema version: %w", err)
	}
	return nil
}

// LastInsertRowID возвращает rowid последней вставки на этом соединении.
func (h *Handle) LastInsertRowID(ctx context.Context) (int64, error) {
	var id int64
	err := h.Execute(ctx, "SELECT last_insert_rowid()", nil, func(s *Stmt, _ int) error {
		return s.Scan(&id)
	}, nil)
	return id, err
}
