package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrIntegrity - PRAGMA quick_check/integrity_check нашёл повреждения.
var ErrIntegrity = errors.New("database integrity check failed")

// HealthCheckOptions содержит опции проверки здоровья БД.
type HealthCheckOptions struct {
	// Full - выполнять integrity_check вместо более быстрого quick_check
	Full bool
	// MaxErrors - сколько проблем движок сообщает максимум (0 - значение движка, 100)
	MaxErrors int
}

// HealthReport - результат проверки.
type HealthReport struct {
	Version  int32
	Problems []string
}

// OK возвращает true, если проблем не найдено.
func (r HealthReport) OK() bool { return len(r.Problems) == 0 }

// HealthCheck выполняет разовую проверку БД на хэндле только для чтения:
// открытие, чтение user_version и quick_check (или integrity_check).
// При найденных повреждениях возвращает отчёт и ошибку ErrIntegrity.
func (d *Database) HealthCheck(ctx context.Context, opts HealthCheckOptions) (HealthReport, error) {
	var report HealthReport

	pragma := "quick_check"
	if opts.Full {
		pragma = "integrity_check"
	}
	query := "PRAGMA " + pragma
	if opts.MaxErrors > 0 {
		query = fmt.Sprintf("PRAGMA %s(%d)", pragma, opts.MaxErrors)
	}

	err := d.withHandle(ctx, AccessModeReadOnly, func(h *Handle) error {
		version, err := h.Version(ctx)
		if err != nil {
			return err
		}
		report.Version = version

		return h.Execute(ctx, query, nil, func(s *Stmt, _ int) error {
			var line string
			if err := s.Scan(&line); err != nil {
				return err
			}
			if line != "ok" {
				report.Problems = append(report.Problems, line)
			}
			return nil
		}, nil)
	})
	if err != nil {
		return HealthReport{}, err
	}

	if !report.OK() {
		d.log.Warn("database integrity problems", "check", pragma, "problems", len(report.Problems))
		return report, fmt.Errorf("%w: %s", ErrIntegrity, strings.Join(report.Problems, "; "))
	}
	d.log.Debug("database healthy", "check", pragma, "version", report.Version)
	return report, nil
}
