package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/freva-org/freva-nextgen/internal/domain/model"
)

// FlavourRepository — CRUD над персональными словарями user_flavours.
// Встроенные flavour не хранятся в БД — их отдаёт
// internal/flavour.Registry напрямую.
type FlavourRepository interface {
	Create(ctx context.Context, f *model.Flavour) error
	Get(ctx context.Context, owner, name string) (*model.Flavour, error)
	List(ctx context.Context, owner string) ([]*model.Flavour, error)
	Delete(ctx context.Context, owner, name string) error
	// Update переименовывает/обновляет flavour owner+oldName в f атомарно.
	// Возвращает ErrConflict, если f.Name уже занят у этого владельца.
	Update(ctx context.Context, owner, oldName string, f *model.Flavour) error
}

type flavourRepo struct {
	db DBTX
}

// NewFlavourRepository создаёт репозиторий персональных flavour.
func NewFlavourRepository(db DBTX) FlavourRepository {
	return &flavourRepo{db: db}
}

func (r *flavourRepo) Create(ctx context.Context, f *model.Flavour) error {
	mapping, err := json.Marshal(f.Mapping)
	if err != nil {
		return fmt.Errorf("сериализация mapping: %w", err)
	}

	query := `
		INSERT INTO user_flavours (owner, name, mapping, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING created_at`

	err = r.db.QueryRow(ctx, query, f.Owner, f.Name, mapping).Scan(&f.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: flavour %q уже существует у владельца %q", ErrConflict, f.Name, f.Owner)
		}
		return fmt.Errorf("ошибка создания flavour: %w", err)
	}
	return nil
}

func (r *flavourRepo) Get(ctx context.Context, owner, name string) (*model.Flavour, error) {
	query := `SELECT owner, name, mapping, created_at FROM user_flavours WHERE owner = $1 AND name = $2`

	var raw []byte
	f := &model.Flavour{}
	err := r.db.QueryRow(ctx, query, owner, name).Scan(&f.Owner, &f.Name, &raw, &f.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения flavour: %w", err)
	}
	if err := json.Unmarshal(raw, &f.Mapping); err != nil {
		return nil, fmt.Errorf("десериализация mapping: %w", err)
	}
	return f, nil
}

func (r *flavourRepo) List(ctx context.Context, owner string) ([]*model.Flavour, error) {
	query := `SELECT owner, name, mapping, created_at FROM user_flavours WHERE owner = $1 ORDER BY name`

	rows, err := r.db.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка flavour: %w", err)
	}
	defer rows.Close()

	var result []*model.Flavour
	for rows.Next() {
		var raw []byte
		f := &model.Flavour{}
		if err := rows.Scan(&f.Owner, &f.Name, &raw, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки flavour: %w", err)
		}
		if err := json.Unmarshal(raw, &f.Mapping); err != nil {
			return nil, fmt.Errorf("десериализация mapping: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *flavourRepo) Update(ctx context.Context, owner, oldName string, f *model.Flavour) error {
	mapping, err := json.Marshal(f.Mapping)
	if err != nil {
		return fmt.Errorf("сериализация mapping: %w", err)
	}

	query := `
		UPDATE user_flavours
		SET name = $3, mapping = $4
		WHERE owner = $1 AND name = $2
		RETURNING created_at`

	err = r.db.QueryRow(ctx, query, owner, oldName, f.Name, mapping).Scan(&f.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: flavour %q уже существует у владельца %q", ErrConflict, f.Name, owner)
		}
		return fmt.Errorf("ошибка обновления flavour: %w", err)
	}
	return nil
}

func (r *flavourRepo) Delete(ctx context.Context, owner, name string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM user_flavours WHERE owner = $1 AND name = $2`, owner, name)
	if err != nil {
		return fmt.Errorf("ошибка удаления flavour: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
