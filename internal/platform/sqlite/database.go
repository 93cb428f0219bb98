package sqlite

import (
	"context"
	"log/slog"

	"litequery/internal/shared"
)

// Database описывает файл БД и настройки, с которыми для каждой операции
// открывается отдельный хэндл. Сам Database не держит соединений.
type Database struct {
	path string
	opts DBOptions
	log  *slog.Logger
}

// NewDatabase создаёт фасад для БД по пути path.
func NewDatabase(path string, opts DBOptions, log *slog.Logger) (*Database, error) {
	if path == "" {
		return nil, shared.Configf("database path is empty")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Database{path: path, opts: opts, log: log.With("db", path)}, nil
}

// Path возвращает путь к файлу БД.
func (d *Database) Path() string { return d.path }

// Open открывает хэндл в указанном режиме. Закрыть его обязан вызывающий.
func (d *Database) Open(ctx context.Context, mode AccessMode) (*Handle, error) {
	return openHandle(ctx, d.path, mode, d.opts, d.log)
}

// OpenReadOnly открывает хэндл только для чтения.
func (d *Database) OpenReadOnly(ctx context.Context) (*Handle, error) {
	return d.Open(ctx, AccessModeReadOnly)
}

// OpenReadWrite открывает хэндл для чтения и записи существующей БД со схемой.
func (d *Database) OpenReadWrite(ctx context.Context) (*Handle, error) {
	return d.Open(ctx, AccessModeReadWrite)
}

// OpenForCreate открывает хэндл с созданием файла, если его нет.
func (d *Database) OpenForCreate(ctx context.Context) (*Handle, error) {
	return d.Open(ctx, AccessModeReadWriteCreate)
}

// withHandle открывает хэндл, выполняет fn и закрывает хэндл на любом пути выхода.
func (d *Database) withHandle(ctx context.Context, mode AccessMode, fn func(h *Handle) error) (err error) {
	h, err := d.Open(ctx, mode)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := h.Close(); closeErr != nil && err == nil {
			err = shared.Wrap(closeErr, "close handle")
		}
	}()
	return fn(h)
}

// Version читает версию схемы через собственный read-only хэндл.
func (d *Database) Version(ctx context.Context) (version int32, err error) {
	err = d.withHandle(ctx, AccessModeReadOnly, func(h *Handle) error {
		version, err = h.Version(ctx)
		return err
	})
	return version, err
}

// SetVersion записывает версию схемы через собственный хэндл чтения/записи.
func (d *Database) SetVersion(ctx context.Context, version int32) error {
	return d.withHandle(ctx, AccessModeReadWrite, func(h *Handle) error {
		return h.SetVersion(ctx, version)
	})
}

// Query выполняет запрос на собственном read-only хэндле.
func (d *Database) Query(ctx context.Context, query string, bind BindFunc, onRow RowFunc, onComplete CompleteFunc) error {
	return d.withHandle(ctx, AccessModeReadOnly, func(h *Handle) error {
		return h.Execute(ctx, query, bind, onRow, onComplete)
	})
}

// Write выполняет запрос на собственном хэндле чтения/записи.
func (d *Database) Write(ctx context.Context, query string, bind BindFunc, onRow RowFunc, onComplete CompleteFunc) error {
	return d.withHandle(ctx, AccessModeReadWrite, func(h *Handle) error {
		return h.Execute(ctx, query, bind, onRow, onComplete)
	})
}

// Enumerate выполняет постраничный обход на собственном read-only хэндле.
func (d *Database) Enumerate(ctx context.Context, query, countQuery string, bufferSize int, bind BindFunc, onRow RowFunc, onComplete CompleteFunc) error {
	if bufferSize <= 0 {
		return shared.Configf("buffer size must be positive, got %d", bufferSize)
	}
	return d.withHandle(ctx, AccessModeReadOnly, func(h *Handle) error {
		return h.Enumerate(ctx, query, countQuery, bufferSize, bind, onRow, onComplete)
	})
}

// Transaction выполняет операции между произвольными begin и end.
func (d *Database) Transaction(ctx context.Context, begin BeginFunc, ops []Operation, end EndFunc) error {
	return runTransaction(ctx, d.log, begin, ops, end)
}

// WriteTransaction выполняет операции в транзакции на существующей БД.
func (d *Database) WriteTransaction(ctx context.Context, ops ...Operation) error {
	return d.Transaction(ctx, BeginImmediate(d.OpenReadWrite, d.opts.lockMode()), ops, CommitOrRollback())
}

// CreateTransaction выполняет операции в транзакции, создавая файл БД при необходимости.
func (d *Database) CreateTransaction(ctx context.Context, ops ...Operation) error {
	return d.Transaction(ctx, BeginImmediate(d.OpenForCreate, d.opts.lockMode()), ops, CommitOrRollback())
}
