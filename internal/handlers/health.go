package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/roomchat/chat-server/internal/repo"
)

type HealthHandler struct {
	store repo.Store
}

func NewHealthHandler(store repo.Store) *HealthHandler { return &HealthHandler{store: store} }

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	st := h.store.Status(ctx)
	if st.Error != "" {
		respondJSON(w, http.StatusServiceUnavailable, st)
		return
	}
	respondJSON(w, http.StatusOK, st)
}
