package shipment

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

// RegisterRoutes mounts the edit-lock endpoints behind auth.
func (h *Handler) RegisterRoutes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Route("/api/shipments", func(r chi.Router) {
		r.Use(auth)
		r.Post("/open-shipment-by-payment", h.open)
		r.Post("/cancel-open-shipment", h.cancel)
		r.Post("/rebuild-carts-from-payment", h.rebuild)
		r.Get("/active-open-shipment", h.active)
	})
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	var params OpenParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		utils.WriteJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	res, err := h.svc.OpenByPayment(r.Context(), params.PaymentID, params.Force)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	var params CancelParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		utils.WriteJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	n, err := h.svc.CancelOpen(r.Context(), params.StoreID, params.ShipmentID)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, CancelResult{Released: n})
}

func (h *Handler) rebuild(w http.ResponseWriter, r *http.Request) {
	var params RebuildParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		utils.WriteJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	res, err := h.svc.RebuildCarts(r.Context(), params.PaymentID)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) active(w http.ResponseWriter, r *http.Request) {
	storeID, err := utils.ParseInt64(r.URL.Query().Get("storeId"))
	if err != nil {
		utils.WriteJSONError(w, "storeId is required", http.StatusBadRequest)
		return
	}

	active, err := h.svc.ActiveOpen(r.Context(), storeID)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, ActiveResponse{OpenShipment: active})
}

func writeError(w http.ResponseWriter, err error) {
	var conflict *ConflictError
	switch {
	case errors.As(err, &conflict):
		apperr.Respond(w, apperr.Conflict(conflict.Error(), map[string]any{
			"shipment_id": conflict.ShipmentID,
			"payment_id":  conflict.PaymentID,
		}))
	case errors.Is(err, ErrShipmentAlreadyOpen):
		apperr.Respond(w, apperr.Conflict(err.Error(), nil))
	case errors.Is(err, ErrShipmentNotFound):
		apperr.Respond(w, apperr.New(http.StatusNotFound, err.Error()))
	case errors.Is(err, ErrMissingPayment), errors.Is(err, ErrMissingStore):
		apperr.Respond(w, apperr.BadRequest(err.Error()))
	default:
		apperr.Respond(w, apperr.Wrap(http.StatusInternalServerError, err.Error(), err))
	}
}
