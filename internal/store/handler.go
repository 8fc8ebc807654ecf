package store

import (
	"errors"
	"net/http"

	"paylive-be/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/stores/{slug}", h.getStore)
	r.Get("/api/stores/{slug}/stock/search", h.searchStock)
}

func (h *Handler) getStore(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) searchStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.SearchStock(r.Context(), chi.URLParam(r, "slug"), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, items)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrStoreNotFound):
		utils.WriteJSONError(w, "Boutique introuvable", http.StatusNotFound)
	case errors.Is(err, ErrInvalidStoreRef):
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		utils.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
	}
}
