package sqlite

import (
	"context"
	"errors"
	"fmt"

	"litequery/internal/shared"
)

// Migration - шаги миграции схемы с проверкой результата и компенсацией.
// Обязательны Perform и Verify, остальные поля могут быть nil.
type Migration struct {
	Name string
	// Preconditions решает, нужна ли миграция. false - миграция не выполняется.
	Preconditions func(ctx context.Context) (bool, error)
	// Perform применяет изменения.
	Perform func(ctx context.Context) error
	// Verify проверяет результат Perform.
	Verify func(ctx context.Context) (bool, error)
	// Rollback компенсирует изменения, если проверка не прошла.
	Rollback func(ctx context.Context) error
	// OnComplete вызывается ровно один раз с итогом миграции.
	OnComplete func(didSucceed bool)
}

// MigrationOutcome - итог выполнения миграции.
type MigrationOutcome int

const (
	// MigrationSkipped - предусловия не выполнены, ничего не менялось
	MigrationSkipped MigrationOutcome = iota
	// MigrationApplied - изменения применены и проверены
	MigrationApplied
	// MigrationRolledBack - проверка не прошла, выполнен откат
	MigrationRolledBack
)

func (o MigrationOutcome) String() string {
	switch o {
	case MigrationApplied:
		return "applied"
	case MigrationRolledBack:
		return "rolled back"
	default:
		return "skipped"
	}
}

// Migrate выполняет миграцию: preconditions, perform, verify и при неудаче rollback.
//
// Ошибка Perform считается неудачей проверки: Verify не вызывается, Rollback выполняется.
// Ошибка Rollback возвращается как shared.ErrRollbackFailed. OnComplete вызывается
// ровно один раз на любом пути, включая отказ по предусловиям.
func (d *Database) Migrate(ctx context.Context, m Migration) (MigrationOutcome, error) {
	if m.Perform == nil || m.Verify == nil {
		return MigrationSkipped, shared.Configf("migration %q requires perform and verify steps", m.Name)
	}

	log := d.log.With("migration", m.Name)
	succeeded := false
	defer func() {
		if m.OnComplete != nil {
			m.OnComplete(succeeded)
		}
	}()

	if m.Preconditions != nil {
		ok, err := m.Preconditions(ctx)
		if err != nil {
			log.Warn("migration preconditions failed", "error", err)
			return MigrationSkipped, fmt.Errorf("migration %q preconditions: %w", m.Name, err)
		}
		if !ok {
			log.Info("migration skipped")
			return MigrationSkipped, nil
		}
	}

	verified, failure := performAndVerify(ctx, m)
	if verified {
		succeeded = true
		log.Info("migration applied")
		return MigrationApplied, nil
	}

	log.Warn("migration verification failed, rolling back", "error", failure)
	if m.Rollback != nil {
		if err := m.Rollback(ctx); err != nil {
			log.Error("migration rollback failed", "error", err)
			rollbackErr := shared.MarkKind(fmt.Errorf("migration %q: %w", m.Name, err), shared.KindRollback)
			return MigrationRolledBack, errors.Join(failure, rollbackErr)
		}
	}

	if failure != nil {
		return MigrationRolledBack, fmt.Errorf("migration %q: %w", m.Name, failure)
	}
	return MigrationRolledBack, nil
}

func performAndVerify(ctx context.Context, m Migration) (bool, error) {
	if err := m.Perform(ctx); err != nil {
		return false, fmt.Errorf("perform: %w", err)
	}
	ok, err := m.Verify(ctx)
	if err != nil {
		return false, fmt.Errorf("verify: %w", err)
	}
	return ok, nil
}

// VersionMigration строит миграцию, управляемую версией схемы (PRAGMA user_version).
//
// Миграция выполняется только при версии from. Операции и запись версии to
// выполняются одной транзакцией с созданием файла. Откат возвращает версию from,
// если она успела измениться.
func (d *Database) VersionMigration(from, to int32, ops ...Operation) Migration {
	currentVersion := func(ctx context.Context) (int32, error) {
		var version int32
		err := d.withHandle(ctx, AccessModeReadWriteCreate, func(h *Handle) (err error) {
			version, err = h.Version(ctx)
			return err
		})
		return version, err
	}

	return Migration{
		Name: fmt.Sprintf("schema %d -> %d", from, to),
		Preconditions: func(ctx context.Context) (bool, error) {
			version, err := currentVersion(ctx)
			return version == from, err
		},
		Perform: func(ctx context.Context) error {
			steps := append(append([]Operation{}, ops...), SetVersionOp(to))
			return d.CreateTransaction(ctx, steps...)
		},
		Verify: func(ctx context.Context) (bool, error) {
			version, err := currentVersion(ctx)
			return version == to, err
		},
		Rollback: func(ctx context.Context) error {
			version, err := currentVersion(ctx)
			if err != nil {
				return err
			}
			if version == from {
				return nil
			}
			return d.CreateTransaction(ctx, SetVersionOp(from))
		},
	}
}
