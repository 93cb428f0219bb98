package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// BuildMigrateURL строит корректный URL для golang-migrate с учётом особенностей ОС.
// На Windows для путей вида "C:\..." создаёт "sqlite:///C:/...",
// на Unix для "/..." создаёт "sqlite:///...".
func BuildMigrateURL(dbPath string) (string, error) {
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	urlPath := filepath.ToSlash(absPath)

	// C:/path -> /C:/path для правильного URL
	if runtime.GOOS == "windows" && len(urlPath) >= 2 && urlPath[1] == ':' {
		urlPath = "/" + urlPath
	}

	if !strings.HasPrefix(urlPath, "/") {
		urlPath = "/" + urlPath
	}

	return "sqlite://" + urlPath, nil
}

// FileMigration строит миграцию из файлов golang-migrate (например, "file://migrations").
//
// Миграция выполняется, если текущая версия отличается от target. target = 0
// означает откат всех миграций. Проверка требует версию target без флага dirty.
// Откат снимает dirty (принудительно ставит предыдущую версию из источника)
// и возвращает БД к версии, с которой миграция началась.
func FileMigration(dbPath, sourceURL string, target uint) Migration {
	var start migrationState

	return Migration{
		Name: fmt.Sprintf("%s -> %d", sourceURL, target),
		Preconditions: func(ctx context.Context) (bool, error) {
			state, err := readMigrationState(ctx, dbPath, sourceURL)
			if err != nil {
				return false, err
			}
			if state.dirty {
				return false, fmt.Errorf("database is dirty at migration version %d", state.version)
			}
			start = state
			return !state.at(target), nil
		},
		Perform: func(ctx context.Context) error {
			return withMigrate(ctx, dbPath, sourceURL, func(m *migrate.Migrate) error {
				return migrateTo(m, target, target == 0)
			})
		},
		Verify: func(ctx context.Context) (bool, error) {
			state, err := readMigrationState(ctx, dbPath, sourceURL)
			if err != nil {
				return false, err
			}
			return !state.dirty && state.at(target), nil
		},
		Rollback: func(ctx context.Context) error {
			return withMigrate(ctx, dbPath, sourceURL, func(m *migrate.Migrate) error {
				version, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) && start.nilVersion {
					return nil
				}
				if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
					return err
				}
				if dirty {
					prev, err := previousVersion(sourceURL, version)
					if err != nil {
						return err
					}
					if err := m.Force(prev); err != nil {
						return fmt.Errorf("failed to force version %d: %w", prev, err)
					}
				}
				return migrateTo(m, start.version, start.nilVersion)
			})
		},
	}
}

// LatestMigrationVersion возвращает наибольшую версию в источнике миграций.
func LatestMigrationVersion(sourceURL string) (uint, error) {
	src, err := source.Open(sourceURL)
	if err != nil {
		return 0, fmt.Errorf("failed to open migration source: %w", err)
	}
	defer src.Close()

	version, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("migration source is empty: %w", err)
	}
	for {
		next, err := src.Next(version)
		if errors.Is(err, fs.ErrNotExist) {
			return version, nil
		}
		if err != nil {
			return 0, err
		}
		version = next
	}
}

type migrationState struct {
	version    uint
	dirty      bool
	nilVersion bool
}

func (s migrationState) at(target uint) bool {
	if target == 0 {
		return s.nilVersion
	}
	return !s.nilVersion && s.version == target
}

func readMigrationState(ctx context.Context, dbPath, sourceURL string) (migrationState, error) {
	var state migrationState
	err := withMigrate(ctx, dbPath, sourceURL, func(m *migrate.Migrate) error {
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			state.nilVersion = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get migration version: %w", err)
		}
		state.version, state.dirty = version, dirty
		return nil
	})
	return state, err
}

func migrateTo(m *migrate.Migrate, version uint, down bool) error {
	var err error
	if down {
		err = m.Down()
	} else {
		err = m.Migrate(version)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// previousVersion возвращает версию, предшествующую version в источнике,
// или database.NilVersion, если version первая.
func previousVersion(sourceURL string, version uint) (int, error) {
	src, err := source.Open(sourceURL)
	if err != nil {
		return 0, fmt.Errorf("failed to open migration source: %w", err)
	}
	defer src.Close()

	prev, err := src.Prev(version)
	if errors.Is(err, fs.ErrNotExist) {
		return database.NilVersion, nil
	}
	if err != nil {
		return 0, err
	}
	return int(prev), nil
}

// withMigrate создаёт отдельный экземпляр golang-migrate со своим соединением
// и закрывает его после fn. Отмена ctx останавливает миграцию между шагами.
func withMigrate(ctx context.Context, dbPath, sourceURL string, fn func(m *migrate.Migrate) error) error {
	databaseURL, err := BuildMigrateURL(dbPath)
	if err != nil {
		return fmt.Errorf("failed to build database URL: %w", err)
	}

	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		_, _ = m.Close()
	}()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	return fn(m)
}
