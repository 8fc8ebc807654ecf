package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateCartItem(ctx context.Context, params CreateCartItemParams) (*CartItem, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CartItem), args.Error(1)
}

func (m *MockRepository) GetByID(ctx context.Context, id int64) (*CartItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CartItem), args.Error(1)
}

func (m *MockRepository) GetByIDs(ctx context.Context, ids []int64) ([]CartItem, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]CartItem), args.Error(1)
}

func (m *MockRepository) FindByReference(ctx context.Context, storeID int64, customer, reference string, paymentID *string) (*CartItem, error) {
	args := m.Called(ctx, storeID, customer, reference, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CartItem), args.Error(1)
}

func (m *MockRepository) UpdateQuantity(ctx context.Context, id int64, quantity int) (*CartItem, error) {
	args := m.Called(ctx, id, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CartItem), args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepository) ListSummaryRows(ctx context.Context, customer string, paymentID *string) ([]summaryRow, error) {
	args := m.Called(ctx, customer, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]summaryRow), args.Error(1)
}

func (m *MockRepository) ListByPayment(ctx context.Context, paymentID string) ([]CartItem, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]CartItem), args.Error(1)
}

func (m *MockRepository) AttachPayment(ctx context.Context, ids []int64, paymentID string) (int64, error) {
	args := m.Called(ctx, ids, paymentID)
	return args.Get(0).(int64), args.Error(1)
}

func TestService_AddToCart(t *testing.T) {
	ctx := context.Background()
	params := CreateCartItemParams{
		StoreID:          1,
		CustomerStripeID: "cus_123",
		ProductReference: " A1 ",
		Value:            10,
		Quantity:         2,
	}
	trimmed := params
	trimmed.ProductReference = "A1"

	t.Run("Success", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo)

		repo.On("FindByReference", ctx, int64(1), "cus_123", "A1", (*string)(nil)).Return(nil, nil)
		repo.On("CreateCartItem", ctx, trimmed).Return(&CartItem{ID: 1, ProductReference: "A1", Quantity: 2}, nil)

		item, err := svc.AddToCart(ctx, params)

		require.NoError(t, err)
		assert.Equal(t, int64(1), item.ID)
		repo.AssertExpectations(t)
	})

	t.Run("DuplicateReferenceCaseInsensitive", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo)

		repo.On("FindByReference", ctx, int64(1), "cus_123", "A1", (*string)(nil)).
			Return(&CartItem{ID: 9, ProductReference: "a1"}, nil)

		_, err := svc.AddToCart(ctx, params)

		assert.ErrorIs(t, err, ErrCartItemAlreadyExist)
		assert.Equal(t, "La référence A1 est déjà dans le panier", err.Error())
		repo.AssertNotCalled(t, "CreateCartItem", mock.Anything, mock.Anything)
	})

	t.Run("Validation", func(t *testing.T) {
		svc := NewService(new(MockRepository))

		bad := params
		bad.Quantity = 0
		_, err := svc.AddToCart(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidQuantity)

		bad = params
		bad.ProductReference = "   "
		_, err = svc.AddToCart(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidReference)

		bad = params
		bad.CustomerStripeID = ""
		_, err = svc.AddToCart(ctx, bad)
		assert.ErrorIs(t, err, ErrMissingCustomer)
	})
}

func TestService_Summary(t *testing.T) {
	ctx := context.Background()

	t.Run("GroupsByStore", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo)

		rows := []summaryRow{
			{CartItem: CartItem{ID: 1, StoreID: 1, ProductReference: "A1", Value: 10, Quantity: 2}, StoreSlug: "demo", StoreName: "Demo"},
			{CartItem: CartItem{ID: 2, StoreID: 2, ProductReference: "X", Value: 5, Quantity: 1}, StoreSlug: "other", StoreName: "Other"},
			{CartItem: CartItem{ID: 3, StoreID: 1, ProductReference: "B2", Value: 25, Quantity: 1}, StoreSlug: "demo", StoreName: "Demo"},
		}
		repo.On("ListSummaryRows", ctx, "cus_123", (*string)(nil)).Return(rows, nil)

		empty := ""
		groups, err := svc.Summary(ctx, "cus_123", &empty)

		require.NoError(t, err)
		require.Len(t, groups, 2)
		assert.Equal(t, "demo", groups[0].Store.Slug)
		assert.Len(t, groups[0].Items, 2)
		assert.Equal(t, 45.0, groups[0].Total)
		assert.Equal(t, 5.0, groups[1].Total)
	})

	t.Run("MissingCustomer", func(t *testing.T) {
		_, err := NewService(new(MockRepository)).Summary(ctx, "", nil)
		assert.ErrorIs(t, err, ErrMissingCustomer)
	})
}

func TestService_AttachPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("NoItems", func(t *testing.T) {
		repo := new(MockRepository)
		assert.NoError(t, NewService(repo).AttachPayment(ctx, nil, "pi_1"))
		repo.AssertNotCalled(t, "AttachPayment", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Error", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("AttachPayment", ctx, []int64{1}, "pi_1").Return(int64(0), ErrFailedAttachPayment)

		assert.ErrorIs(t, NewService(repo).AttachPayment(ctx, []int64{1}, "pi_1"), ErrFailedAttachPayment)
	})
}

func newTestRouter(repo Repository) http.Handler {
	r := chi.NewRouter()
	NewHandler(NewService(repo)).RegisterRoutes(r)
	return r
}

func TestHandler_Create(t *testing.T) {
	t.Run("ConflictMessagePassedThrough", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("FindByReference", mock.Anything, int64(1), "cus_123", "A1", (*string)(nil)).
			Return(&CartItem{ID: 4}, nil)

		body, _ := json.Marshal(CreateCartItemParams{StoreID: 1, CustomerStripeID: "cus_123", ProductReference: "A1", Quantity: 1, Value: 3})
		w := httptest.NewRecorder()
		newTestRouter(repo).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/carts", bytes.NewReader(body)))

		assert.Equal(t, http.StatusConflict, w.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "La référence A1 est déjà dans le panier", resp["error"])
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		w := httptest.NewRecorder()
		newTestRouter(new(MockRepository)).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/carts", bytes.NewBufferString("{")))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_UpdateAndDelete(t *testing.T) {
	repo := new(MockRepository)
	repo.On("UpdateQuantity", mock.Anything, int64(5), 3).Return(&CartItem{ID: 5, Quantity: 3}, nil)
	repo.On("Delete", mock.Anything, int64(5)).Return(nil)
	repo.On("Delete", mock.Anything, int64(6)).Return(ErrCartItemNotFound)
	router := newTestRouter(repo)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/carts/5", bytes.NewBufferString(`{"quantity":3}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/carts/5", bytes.NewBufferString(`{"quantity":0}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/carts/5", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/carts/6", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/carts/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Summary(t *testing.T) {
	repo := new(MockRepository)
	pid := "pi_7"
	repo.On("ListSummaryRows", mock.Anything, "cus_1", &pid).Return([]summaryRow{}, nil)
	repo.On("ListSummaryRows", mock.Anything, "cus_err", (*string)(nil)).Return(nil, errors.New("boom"))
	router := newTestRouter(repo)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/carts/summary?stripeId=cus_1&paymentId=pi_7", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/carts/summary?stripeId=cus_err", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/carts/summary", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
