package main

import (
	"encoding/json"
	"net/http"

	"github.com/cyverse-de/placement-notifier/common"
	"github.com/cyverse-de/placement-notifier/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// binder is the part of the handler set used by the session endpoints.
type binder interface {
	Bind(identity *model.Identity)
	Release()
}

type sessionHandlers struct {
	binder binder
}

// newRouter returns the HTTP handler for the service. Binding and releasing are asynchronous,
// so the session endpoints respond with 202 Accepted.
func newRouter(b binder) http.Handler {
	h := &sessionHandlers{binder: b}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Put("/session", h.bindSession)
	r.Delete("/session", h.releaseSession)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// PUT /session
func (h *sessionHandlers) bindSession(w http.ResponseWriter, r *http.Request) {
	var identity model.Identity
	if err := json.NewDecoder(r.Body).Decode(&identity); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := common.ValidateIdentity(&identity); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.binder.Bind(&identity)
	writeJSON(w, http.StatusAccepted, map[string]string{"user": identity.User})
}

// DELETE /session
func (h *sessionHandlers) releaseSession(w http.ResponseWriter, r *http.Request) {
	h.binder.Release()
	w.WriteHeader(http.StatusAccepted)
}

// GET /healthz
func (h *sessionHandlers) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
