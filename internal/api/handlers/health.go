package handlers

import (
	"encoding/json"
	"net/http"
)

// Live отвечает на liveness-проверку оркестратора: процесс жив.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Ready отвечает на readiness-проверку: документохранилище и кэш/брокер
// Zarr доступны. Возвращает 503, если хотя бы одна критичная зависимость "fail".
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	result := map[string]string{}
	overall := "ok"

	if h.DB != nil {
		status, detail := h.DB.CheckReady(r.Context())
		result["document_store"] = withDetail(status, detail)
		if status != "ok" {
			overall = "fail"
		}
	}
	if h.Cache != nil {
		status, detail := h.Cache.CheckReady(r.Context())
		result["cache"] = withDetail(status, detail)
		if status != "ok" {
			overall = "fail"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if overall != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(map[string]any{"status": overall, "dependencies": result})
}

func withDetail(status, detail string) string {
	if detail == "" {
		return status
	}
	return status + ": " + detail
}
