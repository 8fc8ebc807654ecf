package cart

import (
	"encoding/json"
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
	r.Route("/api/carts", func(r chi.Router) {
		r.Get("/summary", h.summary)
		r.Post("/", h.create)
		r.Put("/{id}", h.updateQuantity)
		r.Delete("/{id}", h.remove)
	})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var paymentID *string
	if p := q.Get("paymentId"); p != "" {
		paymentID = &p
	}

	groups, err := h.svc.Summary(r.Context(), q.Get("stripeId"), paymentID)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, groups)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var params CreateCartItemParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		utils.WriteJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	item, err := h.svc.AddToCart(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, item)
}

func (h *Handler) updateQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseInt64(chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteJSONError(w, "invalid cart item id", http.StatusBadRequest)
		return
	}

	var params UpdateQuantityParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		utils.WriteJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	item, err := h.svc.UpdateQuantity(r.Context(), id, params.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseInt64(chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteJSONError(w, "invalid cart item id", http.StatusBadRequest)
		return
	}

	if err := h.svc.RemoveFromCart(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrCartItemAlreadyExist):
		utils.WriteJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrCartItemNotFound):
		utils.WriteJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidReference),
		errors.Is(err, ErrInvalidValue),
		errors.Is(err, ErrMissingCustomer),
		errors.Is(err, ErrMissingStore):
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		utils.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
	}
}
