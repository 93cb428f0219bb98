package sqlite

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"litequery/internal/shared"
)

// trailingLimit находит LIMIT верхнего уровня в конце запроса.
// LIMIT внутри подзапросов закрыт скобкой и не совпадает.
var trailingLimit = regexp.MustCompile(`(?is)\blimit\s+[^()]*$`)

// Enumerate выполняет query страницами по bufferSize строк.
//
// Сначала выполняется countQuery, его первое значение задаёт общее число строк T.
// Затем запрашиваются страницы "query LIMIT n OFFSET k*bufferSize", пока не
// будет выдано T строк или страница не окажется неполной. onRow получает
// сквозной номер строки. bind вызывается для countQuery и для каждой страницы.
// onComplete вызывается один раз, в том числе при T = 0.
func (h *Handle) Enumerate(ctx context.Context, query, countQuery string, bufferSize int, bind BindFunc, onRow RowFunc, onComplete CompleteFunc) error {
	if err := h.usable(); err != nil {
		return err
	}
	if bufferSize <= 0 {
		return shared.Configf("buffer size must be positive, got %d", bufferSize)
	}

	base := strings.TrimSpace(query)
	switch {
	case base == "":
		return shared.Configf("query is empty")
	case strings.TrimSpace(countQuery) == "":
		return shared.Configf("count query is empty")
	case strings.HasSuffix(base, ";"):
		return shared.Configf("query must not end with a statement terminator")
	case trailingLimit.MatchString(base):
		return shared.Configf("query must not carry its own LIMIT clause")
	}

	total, err := h.countRows(ctx, countQuery, bind)
	if err != nil {
		return err
	}

	var delivered int64
	for page := int64(0); delivered < total; page++ {
		limit := min(int64(bufferSize), total-delivered)
		pageSQL := fmt.Sprintf("%s LIMIT %d OFFSET %d", base, limit, page*int64(bufferSize))

		var fetched int64
		err := h.Execute(ctx, pageSQL, bind, func(s *Stmt, _ int) error {
			if onRow != nil {
				if err := onRow(s, int(delivered)); err != nil {
					return err
				}
			}
			delivered++
			fetched++
			return nil
		}, nil)
		if err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}

		h.log.Debug("page fetched", "page", page, "rows", fetched, "delivered", delivered, "total", total)

		// Строки удалены после подсчёта
		if fetched < limit {
			break
		}
	}

	if onComplete != nil {
		onComplete()
	}
	return nil
}

func (h *Handle) countRows(ctx context.Context, countQuery string, bind BindFunc) (int64, error) {
	var (
		total   int64
		counted bool
	)
	err := h.Execute(ctx, countQuery, bind, func(s *Stmt, row int) error {
		if row > 0 {
			return nil
		}
		counted = true
		return s.Scan(&total)
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	if !counted {
		return 0, shared.Configf("count query %q returned no rows", countQuery)
	}
	return max(total, 0), nil
}
