package forms

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

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/forms/responses", h.submit)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var resp Response
	if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
		utils.WriteJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	saved, err := h.svc.Submit(r.Context(), resp)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingFormID), errors.Is(err, ErrMissingAnswers), errors.Is(err, ErrInvalidEmail):
			apperr.Respond(w, apperr.BadRequest(err.Error()))
		default:
			apperr.Respond(w, apperr.Wrap(http.StatusInternalServerError, err.Error(), err))
		}
		return
	}

	utils.WriteJSON(w, http.StatusCreated, saved)
}
