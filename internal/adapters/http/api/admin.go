// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
)

// AdminHandler exposes operator actions. Authentication is the outer
// application's reverse proxy / session layer; the core only checks the
// method.
type AdminHandler struct {
	rec Reconciler
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(rec Reconciler) *AdminHandler {
	return &AdminHandler{rec: rec}
}

// HandleReconcile handles POST /admin/reconcile requests by running one
// reconciliation pass synchronously.
func (h *AdminHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if h.rec == nil {
		writeError(w, http.StatusServiceUnavailable, "no_reconciler", ErrNoReconciler)
		return
	}
	if err := h.rec.RunOnce(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "reconcile_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
