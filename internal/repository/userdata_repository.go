package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// UserDataRecord — метаданные файла, добавленного пользователем вне
// основного индекса поиска (add-user-data).
type UserDataRecord struct {
	ID        int64
	Owner     string
	URI       string
	Facets    map[string]any
	CreatedAt time.Time
}

// UserDataRepository — CRUD над коллекцией user_data_meta.
type UserDataRepository interface {
	Add(ctx context.Context, r *UserDataRecord) error
	List(ctx context.Context, owner string) ([]*UserDataRecord, error)
	// DeleteByURIs удаляет записи по списку URI, принадлежащие owner.
	// Возвращает число удалённых строк. Политика "reject-all" при
	// смешанном владении проверяется до вызова, через CountOwners.
	DeleteByURIs(ctx context.Context, owner string, uris []string) (int, error)
	// CountOwners возвращает владельца каждого найденного URI (uri → owner) —
	// используется для обнаружения смешанного владения перед удалением.
	CountOwners(ctx context.Context, uris []string) (map[string]string, error)
}

type userDataRepo struct {
	db DBTX
}

// NewUserDataRepository создаёт репозиторий пользовательских метаданных.
func NewUserDataRepository(db DBTX) UserDataRepository {
	return &userDataRepo{db: db}
}

func (r *userDataRepo) Add(ctx context.Context, rec *UserDataRecord) error {
	facets, err := json.Marshal(rec.Facets)
	if err != nil {
		return fmt.Errorf("сериализация facets: %w", err)
	}

	query := `
		INSERT INTO user_data_meta (owner, uri, facets)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner, uri) DO UPDATE SET facets = EXCLUDED.facets
		RETURNING id, created_at`

	err = r.db.QueryRow(ctx, query, rec.Owner, rec.URI, facets).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка добавления пользовательских данных: %w", err)
	}
	return nil
}

func (r *userDataRepo) List(ctx context.Context, owner string) ([]*UserDataRecord, error) {
	query := `SELECT id, owner, uri, facets, created_at FROM user_data_meta WHERE owner = $1 ORDER BY uri`

	rows, err := r.db.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользовательских данных: %w", err)
	}
	defer rows.Close()

	var result []*UserDataRecord
	for rows.Next() {
		var raw []byte
		rec := &UserDataRecord{}
		if err := rows.Scan(&rec.ID, &rec.Owner, &rec.URI, &raw, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки пользовательских данных: %w", err)
		}
		if err := json.Unmarshal(raw, &rec.Facets); err != nil {
			return nil, fmt.Errorf("десериализация facets: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (r *userDataRepo) DeleteByURIs(ctx context.Context, owner string, uris []string) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM user_data_meta WHERE owner = $1 AND uri = ANY($2)`, owner, uris)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления пользовательских данных: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *userDataRepo) CountOwners(ctx context.Context, uris []string) (map[string]string, error) {
	rows, err := r.db.Query(ctx, `SELECT uri, owner FROM user_data_meta WHERE uri = ANY($1)`, uris)
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки владельцев: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var uri, owner string
		if err := rows.Scan(&uri, &owner); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки владельца: %w", err)
		}
		out[uri] = owner
	}
	return out, rows.Err()
}
