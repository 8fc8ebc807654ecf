package payment

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
	r.Route("/api/stripe", func(r chi.Router) {
		r.Get("/get-customer-details", h.getCustomerDetails)
		r.Post("/create-checkout-session", h.createCheckoutSession)
		r.With(auth).Post("/delete-coupon", h.deleteCoupon)
	})
}

func (h *Handler) getCustomerDetails(w http.ResponseWriter, r *http.Request) {
	customer, err := h.svc.GetCustomerDetails(r.Context(), r.URL.Query().Get("customerEmail"))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, customer)
}

func (h *Handler) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req CheckoutSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	res, err := h.svc.CreateCheckoutSession(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	var req DeleteCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	if err := h.svc.DeleteCoupon(r.Context(), req.CouponID); err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func writeError(w http.ResponseWriter, err error) {
	var se *StripeError
	switch {
	case IsValidation(err):
		apperr.Respond(w, apperr.BadRequest(err.Error()))
	case errors.Is(err, ErrCartItemsMissing), errors.Is(err, ErrCartItemPaid):
		apperr.Respond(w, apperr.Conflict(err.Error(), nil))
	case errors.Is(err, ErrCartItemForeign):
		apperr.Respond(w, apperr.New(http.StatusForbidden, err.Error()))
	case errors.Is(err, ErrGatewayNotConfigured):
		apperr.Respond(w, apperr.Wrap(http.StatusInternalServerError, err.Error(), err))
	case errors.As(err, &se):
		apperr.Respond(w, apperr.Upstream(se.Status, se.Message, err))
	case errors.Is(err, ErrStripe):
		apperr.Respond(w, apperr.Upstream(0, err.Error(), err))
	default:
		apperr.Respond(w, apperr.Wrap(http.StatusInternalServerError, err.Error(), err))
	}
}
