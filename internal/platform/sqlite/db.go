package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"litequery/internal/shared"
)

// TxLockMode определяет режим блокировки транзакций SQLite
type TxLockMode string

const (
	// TxLockDeferred - откладывает блокировку до первого чтения/записи (по умолчанию SQLite)
	TxLockDeferred TxLockMode = "DEFERRED"
	// TxLockImmediate - немедленно захватывает RESERVED блокировку для избежания SQLITE_BUSY при записи
	TxLockImmediate TxLockMode = "IMMEDIATE"
	// TxLockExclusive - немедленно захватывает EXCLUSIVE блокировку
	TxLockExclusive TxLockMode = "EXCLUSIVE"
)

// AccessMode определяет режим доступа к SQLite базе данных
type AccessMode string

const (
	// AccessModeReadOnly - только чтение, файл обязан существовать
	AccessModeReadOnly AccessMode = "ro"
	// AccessModeReadWrite - чтение и запись, файл и схема обязаны существовать
	AccessModeReadWrite AccessMode = "rw"
	// AccessModeReadWriteCreate - чтение/запись с созданием файла, если его нет
	AccessModeReadWriteCreate AccessMode = "rwc"
)

func (m AccessMode) valid() bool {
	switch m {
	case AccessModeReadOnly, AccessModeReadWrite, AccessModeReadWriteCreate:
		return true
	}
	return false
}

// DBOptions содержит настройки открытия SQLite хэндлов.
type DBOptions struct {
	// PingTimeout - таймаут установки соединения при открытии (0 - без таймаута)
	PingTimeout time.Duration
	// WALMode - использовать ли WAL режим (не применяется к read-only хэндлам)
	WALMode bool
	// ForeignKeys - включить ли проверку внешних ключей
	ForeignKeys bool
	// BusyTimeout - время ожидания движком снятия блокировки перед SQLITE_BUSY
	BusyTimeout time.Duration
	// TxLockMode - режим блокировки для транзакций записи
	TxLockMode TxLockMode
}

// DefaultDBOptions возвращает настройки по умолчанию.
// WAL выключен: журнал отката совместим с любыми файловыми системами и read-only копиями.
func DefaultDBOptions() DBOptions {
	return DBOptions{
		PingTimeout: 5 * time.Second,
		WALMode:     false,
		ForeignKeys: true,
		BusyTimeout: 5 * time.Second,
		TxLockMode:  TxLockImmediate,
	}
}

// Validate проверяет настройки и возвращает ошибку конфигурации.
func (o DBOptions) Validate() error {
	if o.PingTimeout < 0 {
		return shared.Configf("ping timeout must not be negative, got %s", o.PingTimeout)
	}
	if o.BusyTimeout < 0 {
		return shared.Configf("busy timeout must not be negative, got %s", o.BusyTimeout)
	}
	switch o.TxLockMode {
	case "", TxLockDeferred, TxLockImmediate, TxLockExclusive:
	default:
		return shared.Configf("unknown transaction lock mode %q", o.TxLockMode)
	}
	return nil
}

func (o DBOptions) lockMode() TxLockMode {
	if o.TxLockMode == "" {
		return TxLockImmediate
	}
	return o.TxLockMode
}

// OpenHandle открывает хэндл БД в указанном режиме.
//
// Хэндл закрепляет одно соединение движка: BEGIN, COMMIT и все запросы
// логической операции выполняются на нём. При любой ошибке всё открытое
// закрывается до возврата.
func OpenHandle(ctx context.Context, dbPath string, mode AccessMode, opts DBOptions) (*Handle, error) {
	return openHandle(ctx, dbPath, mode, opts, nil)
}

func openHandle(ctx context.Context, dbPath string, mode AccessMode, opts DBOptions, log *slog.Logger) (*Handle, error) {
	if dbPath == "" {
		return nil, shared.Configf("database path is empty")
	}
	if !mode.valid() {
		return nil, shared.Configf("unknown access mode %q", mode)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	if !isInMemory(dbPath) {
		if err := prepareFile(dbPath, mode); err != nil {
			return nil, openErr(dbPath, err)
		}
	}

	db, err := sql.Open(driverName, buildDSN(dbPath, mode))
	if err != nil {
		return nil, openErr(dbPath, err)
	}
	// Один хэндл - одно соединение
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	connCtx, cancel := withOptionalTimeout(ctx, opts.PingTimeout)
	defer cancel()

	conn, err := db.Conn(connCtx)
	if err != nil {
		_ = db.Close()
		return nil, openErr(dbPath, err)
	}
	if err := conn.PingContext(connCtx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, openErr(dbPath, err)
	}

	h := &Handle{
		db:       db,
		conn:     conn,
		path:     dbPath,
		mode:     mode,
		lockMode: opts.lockMode(),
		log:      log,
	}

	if err := applyPragmaSettings(ctx, conn, dbPath, mode, opts); err != nil {
		_ = h.Close()
		return nil, openErr(dbPath, err)
	}

	if err := h.probeSchema(ctx); err != nil {
		_ = h.Close()
		return nil, err
	}

	log.Debug("database handle opened", "path", dbPath, "mode", string(mode))
	return h, nil
}

// prepareFile проверяет наличие файла для ro/rw и создаёт директорию для rwc.
func prepareFile(dbPath string, mode AccessMode) error {
	if mode == AccessModeReadWriteCreate {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
		return nil
	}

	info, err := os.Stat(dbPath)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrFileNotFound
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", dbPath)
	}
	return nil
}

// probeSchema читает sqlite_master: так повреждённый файл или файл не-БД
// обнаруживается при открытии, а не на первом запросе.
func (h *Handle) probeSchema(ctx context.Context) error {
	var objects int64
	err := h.conn.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&objects)
	if err != nil {
		return openErr(h.path, err)
	}
	if h.mode == AccessModeReadWrite && objects == 0 {
		return openErr(h.path, ErrSchemaMissing)
	}
	return nil
}

// buildDSN строит URI для SQLite: режим доступа передаётся параметром mode,
// который движок учитывает только для имён вида "file:".
func buildDSN(dbPath string, mode AccessMode) string {
	if isInMemory(dbPath) {
		return "file::memory:?mode=" + string(mode)
	}

	uriPath := filepath.ToSlash(dbPath)

	// C:/path -> /C:/path для правильного URI
	if runtime.GOOS == "windows" && len(uriPath) >= 2 && uriPath[1] == ':' {
		uriPath = "/" + uriPath
	}

	uriPath = uriEscaper.Replace(uriPath)
	return "file:" + uriPath + "?mode=" + string(mode)
}

var uriEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

func isInMemory(dbPath string) bool {
	return dbPath == ":memory:"
}

// applyPragmaSettings применяет PRAGMA настройки к закреплённому соединению.
// PRAGMA действуют на соединение, поэтому применяются после его получения.
func applyPragmaSettings(ctx context.Context, conn *sql.Conn, dbPath string, mode AccessMode, opts DBOptions) error {
	pragmas := make([]string, 0, 4)

	if opts.ForeignKeys {
		pragmas = append(pragmas, "PRAGMA foreign_keys = ON")
	}

	if opts.BusyTimeout > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeout.Milliseconds()))
	}

	if mode != AccessModeReadOnly {
		pragmas = append(pragmas, "PRAGMA synchronous = NORMAL")
		// WAL не поддерживается для in-memory БД и требует записи в файл
		if opts.WALMode && !isInMemory(dbPath) {
			pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
		}
	}

	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
