package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/freva-org/freva-nextgen/internal/apierrors"
	"github.com/freva-org/freva-nextgen/internal/auth"
	"github.com/freva-org/freva-nextgen/internal/domain/model"
)

// ListFlavours — GET /databrowser/flavours: встроенные + персональные
// flavour вызывающего principal.
func (h *Handler) ListFlavours(w http.ResponseWriter, r *http.Request) {
	out := h.Flavours.ListBuiltins()

	if claims := auth.FromContext(r.Context()); claims != nil {
		own, err := h.Flavours.List(r.Context(), claims.Subject)
		if err != nil {
			apierrors.WriteError(w, err)
			return
		}
		out = append(out, own...)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(out)
}

type createFlavourRequest struct {
	Name    string            `json:"flavour_name"`
	Owner   string            `json:"owner,omitempty"`
	Mapping map[string]string `json:"mapping"`
}

// isAdmin сообщает, проходит ли principal сконфигурированные
// API_ADMIN_TOKEN_CLAIMS фильтры — та же проверка, что DeleteUserData
// использует для override чужих owner-записей.
func (h *Handler) isAdmin(claims *auth.Claims) bool {
	return len(h.AdminFilters) > 0 && auth.Matches(claims, h.AdminFilters)
}

// CreateFlavour — POST /databrowser/flavours: регистрирует персональный
// либо (при наличии admin-claim'ов) общий словарь. Отклоняется,
// если имя совпадает со встроенным или owner="global" запрошен без
// admin-claim'ов.
func (h *Handler) CreateFlavour(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	if claims == nil {
		apierrors.Write(w, apierrors.CodeUnauthenticated, "требуется аутентификация")
		return
	}

	var req createFlavourRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.Write(w, apierrors.CodeInvalidInput, "некорректное тело запроса")
		return
	}

	owner := claims.Subject
	if req.Owner == model.GlobalOwner {
		if !h.isAdmin(claims) {
			apierrors.Write(w, apierrors.CodeForbidden, "создание общего (global) flavour требует admin-claim'ов")
			return
		}
		owner = model.GlobalOwner
	}

	fl := &model.Flavour{
		Name:      req.Name,
		Owner:     owner,
		Mapping:   req.Mapping,
		CreatedAt: time.Now(),
	}
	if err := h.Flavours.Create(r.Context(), fl); err != nil {
		apierrors.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(fl)
}

// updateFlavourRequest — тело PUT /databrowser/flavours/{name}.
// flavour_name при наличии переименовывает словарь; mapping отсутствующий
// в теле сохраняет прежние значения.
type updateFlavourRequest struct {
	Name    string            `json:"flavour_name,omitempty"`
	Mapping map[string]string `json:"mapping,omitempty"`
}

// UpdateFlavour — PUT /databrowser/flavours/{name}: обновляет mapping
// персонального (либо, для admin-claim'ов, общего) словаря и/или
// переименовывает его атомарно, никогда не затирая существующее имя.
func (h *Handler) UpdateFlavour(w http.ResponseWriter, r *http.Request, name string) {
	claims := auth.FromContext(r.Context())
	if claims == nil {
		apierrors.Write(w, apierrors.CodeUnauthenticated, "требуется аутентификация")
		return
	}

	var req updateFlavourRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.Write(w, apierrors.CodeInvalidInput, "некорректное тело запроса")
		return
	}

	owner := claims.Subject
	if r.URL.Query().Get("owner") == model.GlobalOwner {
		if !h.isAdmin(claims) {
			apierrors.Write(w, apierrors.CodeForbidden, "изменение общего (global) flavour требует admin-claim'ов")
			return
		}
		owner = model.GlobalOwner
	}

	existing, err := h.Flavours.Resolve(r.Context(), resolveFlavourEntry(name, owner))
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}

	newName := name
	if req.Name != "" {
		newName = req.Name
	}
	mapping := existing.Mapping
	if req.Mapping != nil {
		mapping = req.Mapping
	}

	fl := &model.Flavour{
		Name:    newName,
		Owner:   owner,
		Mapping: mapping,
	}
	if err := h.Flavours.Update(r.Context(), owner, name, fl); err != nil {
		apierrors.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(fl)
}

// DeleteFlavour — DELETE /databrowser/flavours/{name}: удаляет персональный
// словарь вызывающего principal.
func (h *Handler) DeleteFlavour(w http.ResponseWriter, r *http.Request, name string) {
	claims := auth.FromContext(r.Context())
	if claims == nil {
		apierrors.Write(w, apierrors.CodeUnauthenticated, "требуется аутентификация")
		return
	}

	if err := h.Flavours.Delete(r.Context(), claims.Subject, name); err != nil {
		apierrors.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
