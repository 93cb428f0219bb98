//go:build cgo_sqlite

package sqlite

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// driverName - имя драйвера database/sql (mattn/go-sqlite3, требует CGO).
const driverName = "sqlite3"

// engineCode извлекает основной код результата SQLite из ошибки драйвера.
func engineCode(err error) (int, bool) {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return int(sqliteErr.Code), true
	}
	return 0, false
}
