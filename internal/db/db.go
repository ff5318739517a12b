// Пакет db — подключение к PostgreSQL (document store: searches,
// user_flavours, user_data_meta) через pgxpool и применение миграций
// golang-migrate.
package db

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freva-org/freva-nextgen/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Connect создаёт пул подключений к PostgreSQL и проверяет доступность пингом.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		cfg.MongoUser, cfg.MongoPassword, cfg.MongoHost, cfg.MongoDB)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN документохранилища: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула подключений: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка подключения к документохранилищу: %w", err)
	}

	logger.Info("подключение к документохранилищу установлено", slog.String("database", cfg.MongoDB))
	return pool, nil
}

// Migrate применяет встроенные SQL-миграции коллекций searches,
// user_flavours, user_data_meta.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ошибка чтения миграций: %w", err)
	}

	dbURL := fmt.Sprintf("pgx5://%s:%s@%s/%s?sslmode=disable",
		cfg.MongoUser, cfg.MongoPassword, cfg.MongoHost, cfg.MongoDB)

	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("миграции документохранилища применены", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	return nil
}

// ReadinessChecker — проверка готовности документохранилища для /ready.
type ReadinessChecker struct {
	pool *pgxpool.Pool
}

// NewReadinessChecker создаёт проверку готовности.
func NewReadinessChecker(pool *pgxpool.Pool) *ReadinessChecker {
	return &ReadinessChecker{pool: pool}
}

// CheckReady пингует документохранилище.
func (c *ReadinessChecker) CheckReady(ctx context.Context) (string, string) {
	if err := c.pool.Ping(ctx); err != nil {
		return "fail", err.Error()
	}
	return "ok", ""
}
