package handlers

import (
	"net/http"
	"time"

	"github.com/freva-org/freva-nextgen/internal/auth"
	"github.com/freva-org/freva-nextgen/internal/domain/model"
)

// principalName возвращает имя principal из контекста запроса, или ""
// для неаутентифицированных маршрутов.
func principalName(r *http.Request) string {
	claims := auth.FromContext(r.Context())
	if claims == nil {
		return ""
	}
	return claims.Subject
}

// recordStats кладёт StatsRecord в неблокирующую очередь статистики:
// учёт никогда не стоит на критическом пути запроса.
func (h *Handler) recordStats(r *http.Request, route, flavourName string, facets map[string]any, resultCount int, duration time.Duration, aborted bool) {
	if h.Stats == nil {
		return
	}

	var principal *string
	if name := principalName(r); name != "" {
		principal = &name
	}

	h.Stats.Publish(&model.StatsRecord{
		Timestamp:   time.Now(),
		Route:       route,
		Principal:   principal,
		Flavour:     flavourName,
		Facets:      facets,
		ResultCount: resultCount,
		DurationMS:  duration.Milliseconds(),
		Aborted:     aborted,
	})
}
