// Package sqlite предоставляет слой доступа к однофайловой SQLite базе данных.
//
// Основные возможности:
// - Хэндлы в трёх режимах: только чтение, чтение/запись, создание схемы
// - Выполнение запросов через колбэки привязки, строк и завершения
// - Постраничный обход больших выборок через LIMIT/OFFSET
// - Транзакции из упорядоченных операций с общим контекстом
// - Миграции с проверкой результата и компенсирующим откатом
// - Версия схемы в PRAGMA user_version
//
// Хэндл и подготовленный запрос освобождаются на любом пути выхода.
// Автоматических повторов нет: SQLITE_BUSY возвращается вызывающему (см. IsBusy).
//
// # Быстрый старт
//
//	db, err := sqlite.NewDatabase("app.db", sqlite.DefaultDBOptions(), logger)
//	if err != nil {
//		return err
//	}
//
//	err = db.Query(ctx, "SELECT id, name FROM users WHERE age > ?",
//		func(s *sqlite.Stmt) error { return s.Bind(1, 18) },
//		func(s *sqlite.Stmt, row int) error {
//			var id int64
//			var name string
//			return s.Scan(&id, &name)
//		},
//		nil,
//	)
//
// # Транзакции
//
//	err = db.WriteTransaction(ctx,
//		sqlite.InsertOp("user_id", "INSERT INTO users (name) VALUES (?)", "John"),
//		func(ctx context.Context, h *sqlite.Handle, tx sqlite.TxContext) error {
//			id, _ := tx.Int64("user_id")
//			return h.Execute(ctx, "INSERT INTO profiles (user_id) VALUES (?)",
//				func(s *sqlite.Stmt) error { return s.Bind(1, id) }, nil, nil)
//		},
//	)
//
// Внутри операции используйте переданный хэндл: открытие второго хэндла
// на запись во время транзакции упрётся в блокировку.
//
// # Постраничный обход
//
//	err = db.Enumerate(ctx,
//		"SELECT id FROM events ORDER BY id",
//		"SELECT COUNT(*) FROM events",
//		500, nil,
//		func(s *sqlite.Stmt, row int) error { ... },
//		func() { log.Info("done") },
//	)
//
// # Миграции
//
//	outcome, err := db.Migrate(ctx, db.VersionMigration(0, 1,
//		sqlite.ExecOp("CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)"),
//	))
//
// Файловые миграции golang-migrate:
//
//	outcome, err := db.Migrate(ctx, sqlite.FileMigration("app.db", "file://migrations", 3))
//
// # Драйвер
//
// По умолчанию используется modernc.org/sqlite (чистый Go). Сборка с тегом
// cgo_sqlite переключает на github.com/mattn/go-sqlite3.
package sqlite
