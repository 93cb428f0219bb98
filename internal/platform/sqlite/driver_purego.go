//go:build !cgo_sqlite

package sqlite

import (
	"errors"

	"modernc.org/sqlite"
)

// driverName - имя драйвера database/sql (modernc.org/sqlite, чистый Go).
const driverName = "sqlite"

// engineCode извлекает основной код результата SQLite из ошибки драйвера.
func engineCode(err error) (int, bool) {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		// Расширенные коды несут основной код в младшем байте
		return sqliteErr.Code() & 0xff, true
	}
	return 0, false
}
