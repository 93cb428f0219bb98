package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

// TestDB представляет тестовую SQLite базу данных с удобными хелперами.
// Все хелперы работают через Handle.Execute, как и рабочий код.
type TestDB struct {
	*Database
	Path string
}

// NewTestDatabase создает файловую БД во временной директории теста.
// Файл создаётся сразу, но схема пуста. Директория удаляется после теста.
func NewTestDatabase(t testing.TB) *TestDB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	opts := DefaultDBOptions()
	// Тесты с конкурирующими хэндлами не должны ждать долго
	opts.BusyTimeout = 0

	db, err := NewDatabase(path, opts, nil)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	h, err := db.OpenForCreate(context.Background())
	if err != nil {
		t.Fatalf("Failed to create test database file: %v", err)
	}
	_ = h.Close()

	return &TestDB{Database: db, Path: path}
}

// OpenCreate открывает хэндл с созданием и закрывает его после теста.
func (tdb *TestDB) OpenCreate(t testing.TB) *Handle {
	t.Helper()

	h, err := tdb.OpenForCreate(context.Background())
	if err != nil {
		t.Fatalf("Failed to open handle: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

// Exec выполняет запрос и завершает тест при ошибке.
func (tdb *TestDB) Exec(t testing.TB, query string, args ...any) {
	t.Helper()

	err := tdb.withHandle(context.Background(), AccessModeReadWriteCreate, func(h *Handle) error {
		return h.exec(context.Background(), query, args...)
	})
	if err != nil {
		t.Fatalf("Failed to execute query %q: %v", query, err)
	}
}

// MustSeedData выполняет несколько запросов для заполнения тестовыми данными.
func (tdb *TestDB) MustSeedData(t testing.TB, queries ...string) {
	t.Helper()

	for _, query := range queries {
		tdb.Exec(t, query)
	}
}

// CountRows возвращает количество строк в таблице.
func (tdb *TestDB) CountRows(t testing.TB, tableName string) int {
	t.Helper()

	var count int
	err := tdb.Query(context.Background(), "SELECT COUNT(*) FROM "+tableName, nil, func(s *Stmt, _ int) error {
		return s.Scan(&count)
	}, nil)
	if err != nil {
		t.Fatalf("Failed to count rows in table %s: %v", tableName, err)
	}
	return count
}

// TableExists проверяет существование таблицы.
func (tdb *TestDB) TableExists(t testing.TB, tableName string) bool {
	t.Helper()

	var count int
	err := tdb.Query(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
		func(s *Stmt) error { return s.Bind(1, tableName) },
		func(s *Stmt, _ int) error { return s.Scan(&count) },
		nil,
	)
	if err != nil {
		t.Fatalf("Failed to check table existence: %v", err)
	}
	return count > 0
}
