// Пакет handlers — обработчики HTTP-маршрутов Databrowser Gateway:
// один агрегатор (Handler) + файл на семейство маршрутов (search.go,
// catalogue.go, stac.go, userdata.go, flavours.go, zarr.go, auth.go).
package handlers

import (
	"log/slog"
	"time"

	"github.com/freva-org/freva-nextgen/internal/auth"
	"github.com/freva-org/freva-nextgen/internal/auth/oidc"
	"github.com/freva-org/freva-nextgen/internal/auth/statestore"
	"github.com/freva-org/freva-nextgen/internal/cache"
	"github.com/freva-org/freva-nextgen/internal/db"
	"github.com/freva-org/freva-nextgen/internal/flavour"
	"github.com/freva-org/freva-nextgen/internal/repository"
	"github.com/freva-org/freva-nextgen/internal/searchindex"
	"github.com/freva-org/freva-nextgen/internal/stats"
	"github.com/freva-org/freva-nextgen/internal/zarr"
	"github.com/freva-org/freva-nextgen/internal/zarrclient"
)

// Handler агрегирует зависимости, разделяемые всеми обработчиками маршрутов.
type Handler struct {
	Logger *slog.Logger

	PublicURL string

	Flavours *flavour.Registry
	Index    *searchindex.Client
	UserData repository.UserDataRepository
	Stats    *stats.Queue

	Broker *zarr.Broker
	Stream *zarrclient.StreamService
	Signer *zarrclient.Signer

	Auth *auth.Validator
	// AdminFilters — фильтры claim'ов (API_ADMIN_TOKEN_CLAIMS), дающие
	// административные права: запись global-flavour'ов, удаление чужих
	// user-data.
	AdminFilters []auth.ClaimFilter
	OIDC         *oidc.Client
	States       *statestore.Store

	// AuthPorts — localhost-порты, допустимые как redirect_uri в
	// Authorization Code flow; RedirectURIs — зарегистрированные
	// абсолютные redirect_uri.
	AuthPorts    []int
	RedirectURIs []string

	DB    *db.ReadinessChecker
	Cache *cache.Client

	BackendTimeout time.Duration
}

// New создаёт Handler.
func New(
	logger *slog.Logger,
	publicURL string,
	flavours *flavour.Registry,
	index *searchindex.Client,
	userData repository.UserDataRepository,
	statsQueue *stats.Queue,
	broker *zarr.Broker,
	stream *zarrclient.StreamService,
	signer *zarrclient.Signer,
	validator *auth.Validator,
	adminFilters []auth.ClaimFilter,
	oidcClient *oidc.Client,
	states *statestore.Store,
	authPorts []int,
	redirectURIs []string,
	readiness *db.ReadinessChecker,
	cacheClient *cache.Client,
	backendTimeout time.Duration,
) *Handler {
	return &Handler{
		Logger:         logger,
		PublicURL:      publicURL,
		Flavours:       flavours,
		Index:          index,
		UserData:       userData,
		Stats:          statsQueue,
		Broker:         broker,
		Stream:         stream,
		Signer:         signer,
		Auth:           validator,
		AdminFilters:   adminFilters,
		OIDC:           oidcClient,
		States:         states,
		AuthPorts:      authPorts,
		RedirectURIs:   redirectURIs,
		DB:             readiness,
		Cache:          cacheClient,
		BackendTimeout: backendTimeout,
	}
}
