package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"litequery/internal/shared"
)

// BindFunc привязывает параметры к подготовленному запросу. Вызывается ровно один раз.
type BindFunc func(s *Stmt) error

// RowFunc вызывается для каждой строки результата с её порядковым номером (с нуля).
type RowFunc func(s *Stmt, row int) error

// CompleteFunc вызывается один раз после финализации запроса.
type CompleteFunc func()

// Stmt - подготовленный запрос: параметры до выполнения, текущая строка во время шагов.
type Stmt struct {
	query     string
	args      []any
	executing bool
	rows      *sql.Rows
	cols      []string
}

// SQL возвращает текст запроса.
func (s *Stmt) SQL() string { return s.query }

// Bind привязывает значение к параметру "?" с позицией pos (нумерация с единицы).
// Непривязанные параметры получают NULL.
func (s *Stmt) Bind(pos int, v any) error {
	if s.executing {
		return shared.MarkKind(errors.New("statement is already executing"), shared.KindBind)
	}
	if pos < 1 {
		return shared.MarkKind(fmt.Errorf("parameter position %d out of range", pos), shared.KindBind)
	}
	if _, err := driver.DefaultParameterConverter.ConvertValue(v); err != nil {
		return shared.MarkKind(fmt.Errorf("parameter %d: %w", pos, err), shared.KindBind)
	}

	for len(s.args) < pos {
		s.args = append(s.args, nil)
	}
	s.args[pos-1] = v
	return nil
}

// BindAll привязывает значения к параметрам 1..len(values).
func (s *Stmt) BindAll(values ...any) error {
	for i, v := range values {
		if err := s.Bind(i+1, v); err != nil {
			return err
		}
	}
	return nil
}

// Columns возвращает имена колонок результата.
func (s *Stmt) Columns() []string { return s.cols }

// Scan читает колонки текущей строки в dest.
func (s *Stmt) Scan(dest ...any) error {
	if s.rows == nil {
		return errors.New("no current row")
	}
	return s.rows.Scan(dest...)
}

// Values читает текущую строку целиком.
func (s *Stmt) Values() ([]any, error) {
	values := make([]any, len(s.cols))
	ptrs := make([]any, len(s.cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := s.Scan(ptrs...); err != nil {
		return nil, err
	}
	return values, nil
}

// Execute подготавливает запрос, вызывает bind, проходит по всем строкам,
// финализирует запрос и вызывает onComplete. Любой из колбэков может быть nil.
//
// Ошибка onRow прерывает выполнение и возвращается обёрнутой.
// onComplete вызывается только при успешном завершении.
func (h *Handle) Execute(ctx context.Context, query string, bind BindFunc, onRow RowFunc, onComplete CompleteFunc) error {
	if err := h.usable(); err != nil {
		return err
	}
	if strings.TrimSpace(query) == "" {
		return shared.Configf("query is empty")
	}

	prepared, err := h.conn.PrepareContext(ctx, query)
	if err != nil {
		return prepareErr(query, err)
	}
	defer prepared.Close()

	stmt := &Stmt{query: query}
	if bind != nil {
		if err := bind(stmt); err != nil {
			return shared.MarkKind(fmt.Errorf("bind %q: %w", query, err), shared.KindBind)
		}
	}
	stmt.executing = true

	rows, err := prepared.QueryContext(ctx, stmt.args...)
	if err != nil {
		return classifyQueryErr(query, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return stepErr(query, err)
	}
	stmt.rows, stmt.cols = rows, cols
	defer func() { stmt.rows = nil }()

	row := 0
	for rows.Next() {
		if onRow != nil {
			if err := onRow(stmt, row); err != nil {
				return fmt.Errorf("row %d of %q: %w", row, query, err)
			}
		}
		row++
	}
	if err := rows.Err(); err != nil {
		if row == 0 {
			return classifyQueryErr(query, err)
		}
		return stepErr(query, err)
	}

	if err := rows.Close(); err != nil {
		return stepErr(query, err)
	}
	if err := prepared.Close(); err != nil {
		return stepErr(query, err)
	}

	if onComplete != nil {
		onComplete()
	}
	return nil
}
