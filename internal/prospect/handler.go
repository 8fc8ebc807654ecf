package prospect

import (
	"encoding/json"
	"errors"
	"net/http"

	"paylive-be/internal/apperr"
	"paylive-be/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.With(auth).Post("/api/admin/prospect", h.send)
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	if err := h.svc.Send(r.Context(), req); err != nil {
		switch {
		case errors.Is(err, ErrInvalidEmail):
			apperr.Respond(w, apperr.BadRequest(err.Error()))
		case errors.Is(err, ErrNotConfigured):
			apperr.Respond(w, apperr.Wrap(http.StatusInternalServerError, err.Error(), err))
		default:
			apperr.Respond(w, apperr.Upstream(0, ErrSendFailed.Error(), err))
		}
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]bool{"sent": true})
}
