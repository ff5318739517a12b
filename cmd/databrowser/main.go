// main.go — точка входа Databrowser Gateway: CLI на spf13/cobra
// (serve/validate-config), конфигурация из переменных окружения
// (config.Load).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/freva-org/freva-nextgen/internal/api/handlers"
	"github.com/freva-org/freva-nextgen/internal/auth"
	"github.com/freva-org/freva-nextgen/internal/auth/oidc"
	"github.com/freva-org/freva-nextgen/internal/auth/statestore"
	"github.com/freva-org/freva-nextgen/internal/cache"
	"github.com/freva-org/freva-nextgen/internal/config"
	"github.com/freva-org/freva-nextgen/internal/db"
	"github.com/freva-org/freva-nextgen/internal/flavour"
	"github.com/freva-org/freva-nextgen/internal/repository"
	"github.com/freva-org/freva-nextgen/internal/searchindex"
	"github.com/freva-org/freva-nextgen/internal/server"
	"github.com/freva-org/freva-nextgen/internal/stats"
	"github.com/freva-org/freva-nextgen/internal/zarr"
	"github.com/freva-org/freva-nextgen/internal/zarrclient"
)

// Коды завершения процесса.
const (
	exitOK          = 0
	exitConfigError = 1
	exitAuthError   = 2
	exitBackendDown = 3
)

var rootCmd = &cobra.Command{
	Use:   "databrowser",
	Short: "freva-databrowser — шлюз REST-доступа к климатическим датасетам",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запустить HTTP-сервер шлюза",
	RunE:  cmdServe,
}

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Проверить конфигурацию и завершиться, не запуская сервер",
	RunE:  cmdValidateConfig,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitBackendDown)
	}
	os.Exit(exitOK)
}

func cmdValidateConfig(cmd *cobra.Command, args []string) error {
	if _, err := config.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "конфигурация некорректна: %v\n", err)
		os.Exit(exitConfigError)
	}
	fmt.Println("конфигурация корректна")
	return nil
}

func cmdServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "конфигурация некорректна: %v\n", err)
		os.Exit(exitConfigError)
	}

	logger := config.SetupLogger(cfg)
	logger.Info("databrowser запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.Any("services", cfg.Services),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	pool, err := db.Connect(ctx, cfg, logger)
	if err != nil {
		return fatal(logger, "подключение к документохранилищу", exitBackendDown, err)
	}
	defer pool.Close()

	if err := db.Migrate(cfg, logger); err != nil {
		return fatal(logger, "применение миграций", exitBackendDown, err)
	}

	redisClient, err := cache.New(cache.Options{
		Addr:     cfg.RedisHost,
		Username: cfg.RedisUser,
		Password: cfg.RedisPassword,
		CertFile: cfg.RedisSSLCert,
		KeyFile:  cfg.RedisSSLKey,
	})
	if err != nil {
		return fatal(logger, "подключение к Redis", exitBackendDown, err)
	}
	defer redisClient.Close()

	flavourRepo := repository.NewFlavourRepository(pool)
	userDataRepo := repository.NewUserDataRepository(pool)
	statsRepo := repository.NewStatsRepository(pool)

	flavourRegistry := flavour.NewRegistry(flavourRepo, time.Minute)
	go flavourRegistry.RunRefreshLoop(ctx, func(err error) {
		logger.Error("ошибка обновления реестра flavour", slog.String("error", err.Error()))
	})

	statsQueue := stats.NewQueue(cfg.StatsQueueSize, statsRepo, logger)
	statsQueue.Start(ctx)
	defer statsQueue.Stop()

	indexClient := searchindex.NewClient(cfg.SolrHost, cfg.SolrCore)

	zarrBroker := zarr.NewBroker(redisClient, cfg.WorkerChannel, logger)
	streamService := zarrclient.NewStreamService(zarrBroker, logger)
	signer := zarrclient.NewSigner(cfg.ShareSigningKey)

	claimFilters, err := auth.CompileFilters(cfg.TokenClaims)
	if err != nil {
		return fatal(logger, "компиляция фильтров claim'ов", exitConfigError, err)
	}
	adminFilters, err := auth.CompileFilters(cfg.AdminClaims)
	if err != nil {
		return fatal(logger, "компиляция admin-фильтров claim'ов", exitConfigError, err)
	}

	var validator *auth.Validator
	var oidcClient *oidc.Client
	if cfg.OIDCDiscoveryURL != "" {
		oidcClient = oidc.NewClient(cfg.OIDCDiscoveryURL, cfg.OIDCClientID, cfg.OIDCClientSecret, cfg.Debug)

		doc, err := oidcClient.Discover(ctx)
		if err != nil {
			return fatal(logger, "обнаружение OIDC-провайдера", exitAuthError, err)
		}

		validator, err = auth.NewValidator(ctx, doc.JWKSURI, doc.Issuer, 15*time.Minute, 30*time.Second, claimFilters, logger)
		if err != nil {
			return fatal(logger, "инициализация JWT-валидатора", exitAuthError, err)
		}
	}

	stateStore := statestore.New(4096, stateStoreTTL)

	readiness := db.NewReadinessChecker(pool)

	h := handlers.New(
		logger, cfg.PublicURL, flavourRegistry, indexClient,
		userDataRepo, statsQueue,
		zarrBroker, streamService, signer,
		validator, adminFilters, oidcClient,
		stateStore, cfg.AuthPorts, cfg.AuthRedirectURIs,
		readiness, redisClient,
		cfg.BackendTimeout,
	)

	srv := server.New(cfg, logger, h)
	if err := srv.Run(); err != nil {
		return fatal(logger, "работа HTTP-сервера", exitBackendDown, err)
	}

	logger.Info("databrowser остановлен")
	return nil
}

const stateStoreTTL = 10 * time.Minute

func fatal(logger *slog.Logger, stage string, code int, err error) error {
	logger.Error("фатальная ошибка запуска", slog.String("stage", stage), slog.String("error", err.Error()))
	os.Exit(code)
	return nil
}
