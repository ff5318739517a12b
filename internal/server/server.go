// Пакет server — HTTP-сервер Databrowser Gateway с graceful shutdown.
// Без TLS — TLS termination на обратном прокси перед шлюзом.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/freva-org/freva-nextgen/internal/api/handlers"
	"github.com/freva-org/freva-nextgen/internal/api/middleware"
	"github.com/freva-org/freva-nextgen/internal/config"
)

// Server — HTTP-сервер Databrowser Gateway.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт сервер с настроенным роутером: databrowser, stacapi,
// data-portal и auth/v2 под общим ProxyPrefix.
func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handler) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Metrics())

	mount := router
	if cfg.ProxyPrefix != "" {
		mount = chi.NewRouter()
		router.Mount(cfg.ProxyPrefix, mount)
	}

	mount.Get("/health/live", h.Live)
	mount.Get("/health/ready", h.Ready)
	router.Handle("/metrics", promhttp.Handler())

	if cfg.ServiceEnabled("databrowser") {
		registerDatabrowserRoutes(mount, h)
	}
	if cfg.ServiceEnabled("stacapi") {
		registerStacRoutes(mount, h)
	}
	if cfg.ServiceEnabled("zarr-stream") {
		registerZarrRoutes(mount, h)
	}
	registerAuthRoutes(mount, h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{httpServer: srv, logger: logger, cfg: cfg}
}

// authMiddleware оборачивает Validator.Middleware, пропуская запросы
// без изменений, если OIDC не настроен (API_OIDC_DISCOVERY_URL пуст).
func authMiddleware(h *handlers.Handler) func(http.Handler) http.Handler {
	if h.Auth == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return h.Auth.Middleware
}

func registerDatabrowserRoutes(r chi.Router, h *handlers.Handler) {
	r.Route("/databrowser", func(r chi.Router) {
		r.Use(authMiddleware(h))

		r.Get("/data-search/{flavour}/{uniq_key}", func(w http.ResponseWriter, req *http.Request) {
			h.DataSearch(w, req, chi.URLParam(req, "flavour"), chi.URLParam(req, "uniq_key"))
		})
		r.Get("/metadata-search/{flavour}/{uniq_key}", func(w http.ResponseWriter, req *http.Request) {
			h.MetadataSearch(w, req, chi.URLParam(req, "flavour"))
		})
		r.Get("/count", h.Count)
		r.Get("/intake-catalogue/{flavour}/{uniq_key}", func(w http.ResponseWriter, req *http.Request) {
			h.IntakeCatalogue(w, req, chi.URLParam(req, "flavour"), chi.URLParam(req, "uniq_key"))
		})

		r.Get("/flavours", h.ListFlavours)
		r.Post("/flavours", h.CreateFlavour)
		r.Put("/flavours/{name}", func(w http.ResponseWriter, req *http.Request) {
			h.UpdateFlavour(w, req, chi.URLParam(req, "name"))
		})
		r.Delete("/flavours/{name}", func(w http.ResponseWriter, req *http.Request) {
			h.DeleteFlavour(w, req, chi.URLParam(req, "name"))
		})

		r.Post("/userdata", h.AddUserData)
		r.Delete("/userdata", h.DeleteUserData)
	})
}

func registerStacRoutes(r chi.Router, h *handlers.Handler) {
	r.Route("/stacapi", func(r chi.Router) {
		r.Use(authMiddleware(h))

		r.Get("/", h.StacLandingPage)
		r.Get("/conformance", h.StacConformance)
		r.Get("/queryables", h.StacQueryables)
		r.Get("/collections", h.StacCollections)
		r.Get("/collections/{collection_id}", func(w http.ResponseWriter, req *http.Request) {
			h.StacCollection(w, req, chi.URLParam(req, "collection_id"))
		})
		r.Get("/collections/{collection_id}/items", func(w http.ResponseWriter, req *http.Request) {
			h.StacCollectionItems(w, req, chi.URLParam(req, "collection_id"))
		})
		r.Get("/collections/{collection_id}/items/{item_id}", func(w http.ResponseWriter, req *http.Request) {
			h.StacItem(w, req, chi.URLParam(req, "collection_id"), chi.URLParam(req, "item_id"))
		})
		r.Get("/search", h.StacSearch)
		r.Post("/search", h.StacSearch)
	})
}

func registerZarrRoutes(r chi.Router, h *handlers.Handler) {
	// Share-ссылки не проходят auth-middleware: доступ авторизуется
	// HMAC-подписью в самом URL.
	r.Get("/data-portal/share/{sig}/{expires}/{token}.zarr/*", func(w http.ResponseWriter, req *http.Request) {
		h.ShareChunk(w, req,
			chi.URLParam(req, "sig"),
			chi.URLParam(req, "expires"),
			chi.URLParam(req, "token"),
			chi.URLParam(req, "*"))
	})

	r.Route("/data-portal", func(r chi.Router) {
		r.Use(authMiddleware(h))

		r.Post("/zarr/convert", h.Convert)
		r.Get("/zarr/convert", h.Convert)
		r.Get("/zarr-utils/status", func(w http.ResponseWriter, req *http.Request) {
			h.ZarrStatus(w, req, req.URL.Query().Get("token"))
		})
		r.Get("/zarr/{token}.zarr/*", func(w http.ResponseWriter, req *http.Request) {
			h.ZarrChunk(w, req, chi.URLParam(req, "token"), chi.URLParam(req, "*"))
		})
		r.Post("/zarr/share-zarr", h.ShareZarr)
		r.Get("/zarr-utils/html", func(w http.ResponseWriter, req *http.Request) {
			h.ZarrHTMLPreview(w, req, req.URL.Query().Get("token"))
		})
	})
}

func registerAuthRoutes(r chi.Router, h *handlers.Handler) {
	r.Route("/auth/v2", func(r chi.Router) {
		r.Get("/.well-known/openid-configuration", h.OIDCDiscovery)
		r.Get("/login", h.Login)
		r.Get("/callback", h.Callback)
		r.Post("/token", h.Token)
		r.Post("/device", h.DeviceStart)
		r.Post("/device/token", h.DevicePoll)
		r.Post("/refresh", h.Refresh)
		r.Get("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(h))
			r.Get("/status", h.Status)
			r.Get("/userinfo", h.UserInfo)
			r.Get("/systemuser", h.SystemUser)
			r.Get("/checkuser", h.CheckUser)
		})
	})
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM),
// выполняя после него graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен", slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
