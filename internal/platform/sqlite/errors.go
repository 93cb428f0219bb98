package sqlite

import (
	"errors"
	"fmt"
	"strings"

	"litequery/internal/shared"
)

// Основные коды результата SQLite (sqlite3.h).
const (
	codeError      = 1
	codeBusy       = 5
	codeLocked     = 6
	codeReadOnly   = 8
	codeCantOpen   = 14
	codeConstraint = 19
	codeMismatch   = 20
	codeRange      = 25
	codeNotADB     = 26
)

var (
	// ErrFileNotFound - файл БД отсутствует, а режим доступа не разрешает его создание.
	ErrFileNotFound = errors.New("database file does not exist")
	// ErrSchemaMissing - в режиме чтения/записи БД не содержит ни одного объекта схемы.
	ErrSchemaMissing = errors.New("database schema is absent")
	// ErrHandleClosed - операция вызвана на уже закрытом хэндле.
	ErrHandleClosed = errors.New("database handle is closed")
)

// ResultCode возвращает основной код результата SQLite, если он есть в цепочке ошибки.
func ResultCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	return engineCode(err)
}

// IsBusy проверяет, является ли ошибка SQLITE_BUSY или SQLITE_LOCKED.
// Ядро не повторяет такие операции само, решение принимает вызывающий код.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}

	if code, ok := ResultCode(err); ok {
		return code == codeBusy || code == codeLocked
	}

	errStr := err.Error()
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "database table is locked")
}

// isBindFailure распознаёт ошибки привязки параметров, которые database/sql
// и драйверы сообщают при выполнении, а не при вызове Bind.
func isBindFailure(err error) bool {
	if code, ok := ResultCode(err); ok && (code == codeRange || code == codeMismatch) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "sql: converting argument") ||
		strings.Contains(msg, "sql: expected") ||
		strings.Contains(msg, "missing argument")
}

// classifyQueryErr классифицирует ошибку, полученную до первой строки результата.
// Драйвер modernc компилирует запрос лениво, поэтому синтаксические ошибки
// и ссылки на несуществующие таблицы приходят здесь с кодом SQLITE_ERROR.
func classifyQueryErr(query string, err error) error {
	switch {
	case isBindFailure(err):
		return shared.MarkKind(fmt.Errorf("bind %q: %w", query, err), shared.KindBind)
	case isCompileFailure(err):
		return shared.MarkKind(fmt.Errorf("prepare %q: %w", query, err), shared.KindPrepare)
	default:
		return stepErr(query, err)
	}
}

func isCompileFailure(err error) bool {
	code, ok := ResultCode(err)
	return ok && code == codeError
}

func prepareErr(query string, err error) error {
	return shared.MarkKind(fmt.Errorf("prepare %q: %w", query, err), shared.KindPrepare)
}

func stepErr(query string, err error) error {
	return shared.MarkKind(fmt.Errorf("step %q: %w", query, err), shared.KindStep)
}

func openErr(path string, err error) error {
	return shared.MarkKind(fmt.Errorf("open %s: %w", path, err), shared.KindOpen)
}
