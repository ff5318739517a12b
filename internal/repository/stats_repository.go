package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/freva-org/freva-nextgen/internal/domain/model"
)

// StatsRepository персистирует StatsRecord в документохранилище.
// Append-only — нет Get/List, т.к. статистика не читается на горячем
// пути запроса.
type StatsRepository interface {
	Record(ctx context.Context, rec *model.StatsRecord) error
}

type statsRepo struct {
	db DBTX
}

// NewStatsRepository создаёт репозиторий статистики запросов.
func NewStatsRepository(db DBTX) StatsRepository {
	return &statsRepo{db: db}
}

func (r *statsRepo) Record(ctx context.Context, rec *model.StatsRecord) error {
	facets, err := json.Marshal(rec.Facets)
	if err != nil {
		return fmt.Errorf("сериализация facets статистики: %w", err)
	}

	query := `
		INSERT INTO searches (ts, route, principal, flavour, facets, result_count, duration_ms, aborted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.Exec(ctx, query,
		rec.Timestamp, rec.Route, rec.Principal, rec.Flavour, facets, rec.ResultCount, rec.DurationMS, rec.Aborted,
	)
	if err != nil {
		return fmt.Errorf("ошибка записи статистики: %w", err)
	}
	return nil
}
