package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/freva-org/freva-nextgen/internal/apierrors"
	"github.com/freva-org/freva-nextgen/internal/auth"
	"github.com/freva-org/freva-nextgen/internal/domain/model"
	"github.com/freva-org/freva-nextgen/internal/repository"
	"github.com/freva-org/freva-nextgen/internal/search"
)

// addUserDataRequest — тело POST /databrowser/userdata.
type addUserDataRequest struct {
	Facets  map[string]string   `json:"facets"`
	Entries []map[string]string `json:"entries"`
}

// AddUserData — POST /databrowser/userdata: регистрирует пользовательские
// файлы в поисковом индексе (авторитетное хранилище) и дублирует метаданные
// владения в документохранилище. Записи без обязательных фасетов
// пропускаются, а не отклоняют весь запрос.
func (h *Handler) AddUserData(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	if claims == nil {
		apierrors.Write(w, apierrors.CodeUnauthenticated, "требуется аутентификация")
		return
	}

	var req addUserDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.Write(w, apierrors.CodeInvalidInput, "некорректное тело запроса")
		return
	}

	docs := make([]*model.SearchDocument, 0, len(req.Entries))
	ingested, skipped := 0, 0
	for _, entry := range req.Entries {
		merged := search.MergeEntryFacets(req.Facets, entry)
		merged["user"] = claims.Subject

		if err := search.ValidateUserDataEntry(merged); err != nil {
			skipped++
			continue
		}

		facets := make(map[string][]string, len(merged))
		for k, v := range merged {
			facets[k] = []string{v}
		}
		docs = append(docs, &model.SearchDocument{
			Facets: facets,
			File:   merged["file"],
			URI:    merged["file"],
		})
		ingested++
	}

	if len(docs) > 0 {
		if err := h.Index.Insert(r.Context(), "user-data", docs); err != nil {
			apierrors.WriteError(w, err)
			return
		}
		for _, doc := range docs {
			facetsAny := make(map[string]any, len(doc.Facets))
			for k, vals := range doc.Facets {
				if len(vals) > 0 {
					facetsAny[k] = vals[0]
				}
			}
			rec := &repository.UserDataRecord{
				Owner:  claims.Subject,
				URI:    doc.URI,
				Facets: facetsAny,
			}
			if err := h.UserData.Add(r.Context(), rec); err != nil {
				h.Logger.Warn("метаданные пользовательской записи не сохранены",
					slog.String("uri", doc.URI), slog.String("error", err.Error()))
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]int{"ingested": ingested, "skipped": skipped})
}

// deleteUserDataRequest — тело DELETE /databrowser/userdata.
type deleteUserDataRequest struct {
	Facets map[string]string `json:"facets"`
	URIs   []string          `json:"uris"`
	User   string            `json:"user"` // явный override владельца (только для админов)
}

// DeleteUserData — DELETE /databrowser/userdata: удаляет пользовательские
// записи, соответствующие uris, из индекса и документохранилища.
// Запрос, затрагивающий чужие записи, отклоняется целиком, если principal
// не проходит admin-фильтры.
func (h *Handler) DeleteUserData(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	if claims == nil {
		apierrors.Write(w, apierrors.CodeUnauthenticated, "требуется аутентификация")
		return
	}

	var req deleteUserDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.Write(w, apierrors.CodeInvalidInput, "некорректное тело запроса")
		return
	}
	if len(req.URIs) == 0 {
		apierrors.Write(w, apierrors.CodeInvalidInput, "uris не должен быть пустым")
		return
	}

	owners, err := h.UserData.CountOwners(r.Context(), req.URIs)
	if err != nil {
		apierrors.Write(w, apierrors.CodeBackendUnavailable, "документохранилище недоступно")
		return
	}

	ownerList := make([]string, 0, len(owners))
	for _, o := range owners {
		ownerList = append(ownerList, o)
	}

	if err := search.CheckDeleteOwnership(claims.Subject, h.isAdmin(claims), req.User, ownerList); err != nil {
		apierrors.WriteError(w, err)
		return
	}

	targetOwner := claims.Subject
	if req.User != "" {
		targetOwner = req.User
	}

	deleted, err := h.Index.Delete(r.Context(), "user-data", userDataDeleteQuery(targetOwner, req.URIs))
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}

	if _, err := h.UserData.DeleteByURIs(r.Context(), targetOwner, req.URIs); err != nil {
		apierrors.Write(w, apierrors.CodeBackendUnavailable, "документохранилище недоступно")
		return
	}

	start := time.Now()
	h.recordStats(r, "delete_user_data", "", nil, deleted, time.Since(start), false)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]int{"deleted": deleted})
}

// userDataDeleteQuery строит native-запрос удаления: владелец и любой из uri.
func userDataDeleteQuery(owner string, uris []string) string {
	quoted := make([]string, len(uris))
	for i, u := range uris {
		quoted[i] = fmt.Sprintf("%q", u)
	}
	return fmt.Sprintf("user:%q AND uri:(%s)", owner, strings.Join(quoted, " OR "))
}
