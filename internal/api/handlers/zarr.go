package handlers

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/freva-org/freva-nextgen/internal/apierrors"
	"github.com/freva-org/freva-nextgen/internal/auth"
	"github.com/freva-org/freva-nextgen/internal/domain/model"
	"github.com/freva-org/freva-nextgen/internal/zarrclient"
)

// convertRequest — тело POST .../zarr/convert.
type convertRequest struct {
	Paths   []string             `json:"path"`
	Options model.ConvertOptions `json:"options"`
}

// parseConvertRequest разбирает запрос конвертации: JSON-тело для POST,
// query-параметры для GET-алиаса с идентичной семантикой.
func parseConvertRequest(r *http.Request) (*convertRequest, error) {
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req := &convertRequest{Paths: q["path"]}
		req.Options.Aggregate = model.AggregateMode(q.Get("aggregate"))
		req.Options.Join = model.JoinMode(q.Get("join"))
		req.Options.Compat = model.CompatMode(q.Get("compat"))
		req.Options.DataVars = model.VarsMode(q.Get("data_vars"))
		req.Options.Coords = model.VarsMode(q.Get("coords"))
		req.Options.Dim = q.Get("dim")
		req.Options.GroupBy = q.Get("group_by")
		req.Options.Public = q.Get("public") == "true"
		if v := q.Get("ttl_seconds"); v != "" {
			ttl, err := strconv.Atoi(v)
			if err != nil {
				return nil, apierrors.New(apierrors.CodeInvalidInput, "ttl_seconds должен быть целым числом")
			}
			req.Options.TTLSeconds = ttl
		}
		return req, nil
	}

	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, apierrors.New(apierrors.CodeInvalidInput, "некорректное тело запроса")
	}
	return &req, nil
}

// Convert — POST/GET /data-portal/zarr/convert: ставит задание(я)
// преобразования в очередь, идемпотентно по (owner, paths, options).
// Без options.aggregate публикуется одно задание на каждый
// входной путь; с aggregate — одно общее задание на весь список путей.
// Возвращает по одному URL данных на каждый токен.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	if claims == nil {
		apierrors.Write(w, apierrors.CodeUnauthenticated, "требуется аутентификация")
		return
	}

	req, err := parseConvertRequest(r)
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}
	if len(req.Paths) == 0 {
		apierrors.Write(w, apierrors.CodeInvalidInput, "список путей для конвертации пуст")
		return
	}

	pathGroups := [][]string{req.Paths}
	if req.Options.Aggregate == model.AggregateNone {
		pathGroups = make([][]string, len(req.Paths))
		for i, p := range req.Paths {
			pathGroups[i] = []string{p}
		}
	}

	urls := make([]string, 0, len(pathGroups))
	for _, paths := range pathGroups {
		job, err := h.Broker.Submit(r.Context(), claims.Subject, paths, req.Options)
		if err != nil {
			apierrors.WriteError(w, err)
			return
		}
		urls = append(urls, fmt.Sprintf("%s/data-portal/zarr/%s.zarr", h.PublicURL, job.Token))
	}

	w.Header().Set("Content-Type", "application/json")
	if len(urls) == 1 {
		w.Header().Set("Location", urls[0])
	}
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"urls": urls})
}

// ZarrStatus — GET /data-portal/zarr-utils/status?token=<token>: текущее
// состояние задания преобразования: {status: 1..4, reason}.
func (h *Handler) ZarrStatus(w http.ResponseWriter, r *http.Request, token string) {
	job, err := h.Broker.Get(r.Context(), token)
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}

	out := map[string]any{"status": int(job.Status)}
	if job.Reason != "" {
		out["reason"] = job.Reason
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(out)
}

// ZarrChunk — GET /data-portal/zarr/{token}.zarr/{key}: отдаёт байты
// одного ключа готового Zarr-хранилища. Неаутентифицированный
// доступ разрешён только к public-заданиям с неистёкшим сроком; всё
// остальное без bearer'а — 401.
func (h *Handler) ZarrChunk(w http.ResponseWriter, r *http.Request, token, key string) {
	if auth.FromContext(r.Context()) == nil {
		job, err := h.Broker.Get(r.Context(), token)
		if err != nil {
			apierrors.WriteError(w, err)
			return
		}
		if !job.Options.Public || job.Expired(time.Now()) {
			apierrors.Write(w, apierrors.CodeUnauthenticated, "требуется аутентификация")
			return
		}
	}

	if err := h.Stream.ServeChunk(w, r, token, key); err != nil {
		apierrors.WriteError(w, err)
		return
	}
}

// ShareChunk — GET /data-portal/share/{sig}/{expires}/{token}.zarr/{key}:
// отдаёт ключ Zarr-хранилища по подписанной share-ссылке без
// Authorization-заголовка. Подделанная или просроченная
// подпись — 401.
func (h *Handler) ShareChunk(w http.ResponseWriter, r *http.Request, sig, expiresRaw, token, key string) {
	expires, err := zarrclient.ParseExpires(expiresRaw)
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}
	if err := h.Signer.Verify(http.MethodGet, token, sig, expires); err != nil {
		apierrors.WriteError(w, err)
		return
	}

	if err := h.Stream.ServeChunk(w, r, token, key); err != nil {
		apierrors.WriteError(w, err)
		return
	}
}

// shareRequest — тело POST .../zarr/share-zarr.
type shareRequest struct {
	Path       string `json:"path"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// tokenFromZarrPath извлекает токен из URL/пути вида
// .../data-portal/zarr/<token>.zarr[/...].
func tokenFromZarrPath(path string) (string, error) {
	const marker = "/data-portal/zarr/"
	idx := strings.Index(path, marker)
	if idx < 0 {
		return "", apierrors.New(apierrors.CodeInvalidInput, "path должен указывать на токен под /data-portal/zarr/")
	}
	rest := path[idx+len(marker):]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	token := strings.TrimSuffix(rest, ".zarr")
	if token == "" || token == rest {
		return "", apierrors.New(apierrors.CodeInvalidInput, "path должен оканчиваться на <token>.zarr")
	}
	return token, nil
}

// ShareZarr — POST /data-portal/zarr/share-zarr: выдаёт подписанную
// ссылку, допускающую неаутентифицированный доступ к токену.
func (h *Handler) ShareZarr(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	if claims == nil {
		apierrors.Write(w, apierrors.CodeUnauthenticated, "требуется аутентификация")
		return
	}

	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.Write(w, apierrors.CodeInvalidInput, "некорректное тело запроса")
		return
	}

	token, err := tokenFromZarrPath(req.Path)
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}

	job, err := h.Broker.Get(r.Context(), token)
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}
	if job.Owner != claims.Subject {
		apierrors.Write(w, apierrors.CodeForbidden, "вызывающий не является владельцем данного токена")
		return
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	grant := h.Signer.Issue(token, ttl)

	url := fmt.Sprintf("%s/data-portal/share/%s/%d/%s.zarr", h.PublicURL, grant.Sig, grant.Expires.Unix(), grant.Token)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"url":     url,
		"sig":     grant.Sig,
		"token":   grant.Token,
		"expires": grant.Expires.Unix(),
		"method":  grant.Method,
	})
}

// ZarrHTMLPreview — GET /data-portal/zarr-utils/html: обзорная HTML-страница
// для готового токена: статус задания и список ключей Zarr-хранилища.
func (h *Handler) ZarrHTMLPreview(w http.ResponseWriter, r *http.Request, token string) {
	job, err := h.Broker.Get(r.Context(), token)
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}
	if job.Status != model.JobReady {
		apierrors.Write(w, apierrors.CodeConflict, fmt.Sprintf("задание %q ещё не готово (статус %s)", token, job.Status))
		return
	}

	chunks, err := h.Stream.ListChunks(r, token)
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	safeToken := html.EscapeString(token)
	fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>%s</title></head><body>", safeToken)
	fmt.Fprintf(w, "<h1>Zarr dataset %s</h1><p>Status: %s</p><ul>", safeToken, job.Status)
	for _, c := range chunks {
		fmt.Fprintf(w, "<li>%s</li>", html.EscapeString(c))
	}
	fmt.Fprint(w, "</ul></body></html>")
}
