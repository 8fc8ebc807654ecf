package registry

import (
	"encoding/json"
	"errors"
	"net/http"

	"paylive-be/internal/apperr"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/insee/siret/{siret}", h.siret)
	r.Get("/api/insee-bce/{number}", h.bce)
}

func (h *Handler) siret(w http.ResponseWriter, r *http.Request) {
	h.respond(w, func() (json.RawMessage, error) {
		return h.svc.LookupSIRET(r.Context(), chi.URLParam(r, "siret"))
	})
}

func (h *Handler) bce(w http.ResponseWriter, r *http.Request) {
	h.respond(w, func() (json.RawMessage, error) {
		return h.svc.LookupBCE(r.Context(), chi.URLParam(r, "number"))
	})
}

func (h *Handler) respond(w http.ResponseWriter, lookup func() (json.RawMessage, error)) {
	doc, err := lookup()
	if err != nil {
		apperr.Respond(w, classify(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// classify renders registry errors with the INSEE envelope
// {"header": {"statut", "message"}} next to "error".
func classify(err error) *apperr.Error {
	status := http.StatusInternalServerError
	var upstream *UpstreamError
	switch {
	case errors.Is(err, ErrInvalidSIRET), errors.Is(err, ErrInvalidBCE):
		status = http.StatusBadRequest
	case errors.As(err, &upstream):
		status = apperr.Upstream(upstream.Status, "", nil).Status
	}

	e := apperr.Wrap(status, err.Error(), err)
	e.Payload = map[string]any{
		"header": map[string]any{
			"statut":  status,
			"message": err.Error(),
		},
	}
	return e
}
