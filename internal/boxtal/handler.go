package boxtal

import (
	"encoding/json"
	"errors"
	"net/http"

	"paylive-be/internal/apperr"
	"paylive-be/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	client Client
}

func NewHandler(client Client) *Handler {
	return &Handler{client: client}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/boxtal/parcel-points", h.parcelPoints)
}

func (h *Handler) parcelPoints(w http.ResponseWriter, r *http.Request) {
	var q SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		utils.WriteJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	points, err := h.client.SearchParcelPoints(r.Context(), q)
	if err != nil {
		var upstream *UpstreamError
		switch {
		case errors.Is(err, ErrMissingCountry), errors.Is(err, ErrMissingPostalCode):
			apperr.Respond(w, apperr.BadRequest(err.Error()))
		case errors.Is(err, ErrNotConfigured):
			apperr.Respond(w, apperr.Wrap(http.StatusInternalServerError, err.Error(), err))
		case errors.As(err, &upstream):
			apperr.Respond(w, apperr.Upstream(upstream.Status, "Recherche de points relais impossible", err))
		default:
			apperr.Respond(w, apperr.Wrap(http.StatusInternalServerError, "Recherche de points relais impossible", err))
		}
		return
	}

	utils.WriteJSON(w, http.StatusOK, SearchResponse{ParcelPoints: points})
}
