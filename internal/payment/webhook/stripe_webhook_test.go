package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"paylive-be/internal/cart"
	"paylive-be/internal/payment"
	"paylive-be/internal/shipment"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGateway struct {
	payment.Gateway
	mock.Mock
}

func (m *MockGateway) VerifyWebhook(payload []byte, header string) error {
	return m.Called(payload, header).Error(0)
}

type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) SaveWebhookEvent(ctx context.Context, eventID, eventType, externalID string, payload json.RawMessage) (int64, bool, error) {
	args := m.Called(ctx, eventID, eventType, externalID, payload)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *MockEventRepository) MarkWebhookProcessed(ctx context.Context, webhookID int64) error {
	return m.Called(ctx, webhookID).Error(0)
}

func (m *MockEventRepository) MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error {
	return m.Called(ctx, webhookID, reason).Error(0)
}

type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) GetItems(ctx context.Context, ids []int64) ([]cart.CartItem, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]cart.CartItem), args.Error(1)
}

func (m *MockCartService) AttachPayment(ctx context.Context, ids []int64, paymentID string) error {
	return m.Called(ctx, ids, paymentID).Error(0)
}

type MockShipmentService struct {
	mock.Mock
}

func (m *MockShipmentService) RecordPaid(ctx context.Context, s *shipment.Shipment) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockShipmentService) GetByPaymentID(ctx context.Context, paymentID string) (*shipment.Shipment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shipment.Shipment), args.Error(1)
}

func (m *MockShipmentService) CancelOpen(ctx context.Context, storeID int64, shipmentID *uuid.UUID) (int64, error) {
	args := m.Called(ctx, storeID, shipmentID)
	return args.Get(0).(int64), args.Error(1)
}

type fixture struct {
	gw        *MockGateway
	events    *MockEventRepository
	carts     *MockCartService
	shipments *MockShipmentService
	h         *Handler
}

func newFixture() *fixture {
	f := &fixture{
		gw:        new(MockGateway),
		events:    new(MockEventRepository),
		carts:     new(MockCartService),
		shipments: new(MockShipmentService),
	}
	f.h = NewWebhookHandler(f.gw, f.events, f.carts, f.shipments)
	return f
}

func completedEvent(metadata map[string]string) []byte {
	body, _ := json.Marshal(map[string]any{
		"id":   "evt_1",
		"type": "checkout.session.completed",
		"data": map[string]any{
			"object": map[string]any{
				"id":             "cs_1",
				"payment_intent": "pi_new",
				"customer":       "cus_1",
				"payment_status": "paid",
				"metadata":       metadata,
			},
		},
	})
	return body
}

func serve(h *Handler, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", bytes.NewReader(body))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	w := httptest.NewRecorder()
	h.PaymentWebhookHandler(w, req)
	return w
}

func TestPaymentWebhookHandler(t *testing.T) {
	items := []cart.CartItem{
		{ID: 1, ProductReference: "A1", Value: 10, Quantity: 2},
		{ID: 2, ProductReference: "B2", Value: 25, Quantity: 1},
	}
	oldID := uuid.New()

	t.Run("Success_CheckoutCompleted", func(t *testing.T) {
		f := newFixture()
		body := completedEvent(map[string]string{"store_id": "7", "cart_item_ids": "1,2"})

		f.gw.On("VerifyWebhook", body, "t=1,v1=abc").Return(nil)
		f.events.On("SaveWebhookEvent", mock.Anything, "evt_1", "checkout.session.completed", "cs_1", mock.Anything).
			Return(int64(5), false, nil)
		f.carts.On("GetItems", mock.Anything, []int64{1, 2}).Return(items, nil)
		f.carts.On("AttachPayment", mock.Anything, []int64{1, 2}, "pi_new").Return(nil)
		f.shipments.On("RecordPaid", mock.Anything, mock.MatchedBy(func(s *shipment.Shipment) bool {
			return s.StoreID == 7 && s.PaymentID == "pi_new" && s.PaidValueCents == 4500 && len(s.Items) == 2
		})).Return(nil)
		f.events.On("MarkWebhookProcessed", mock.Anything, int64(5)).Return(nil)

		w := serve(f.h, body)

		assert.Equal(t, http.StatusOK, w.Code)
		f.shipments.AssertNotCalled(t, "CancelOpen", mock.Anything, mock.Anything, mock.Anything)
		f.events.AssertExpectations(t)
		f.carts.AssertExpectations(t)
	})

	t.Run("Success_ModifiedOrderReleasesLock", func(t *testing.T) {
		f := newFixture()
		body := completedEvent(map[string]string{
			"store_id":                 "7",
			"cart_item_ids":            "1,2",
			"open_shipment_payment_id": "pi_old",
		})

		f.gw.On("VerifyWebhook", body, mock.Anything).Return(nil)
		f.events.On("SaveWebhookEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(int64(6), false, nil)
		f.carts.On("GetItems", mock.Anything, []int64{1, 2}).Return(items, nil)
		f.carts.On("AttachPayment", mock.Anything, []int64{1, 2}, "pi_new").Return(nil)
		f.shipments.On("RecordPaid", mock.Anything, mock.Anything).Return(nil)
		f.shipments.On("GetByPaymentID", mock.Anything, "pi_old").Return(&shipment.Shipment{ID: oldID, StoreID: 7}, nil)
		f.shipments.On("CancelOpen", mock.Anything, int64(7), mock.MatchedBy(func(id *uuid.UUID) bool {
			return id != nil && *id == oldID
		})).Return(int64(1), nil)
		f.events.On("MarkWebhookProcessed", mock.Anything, int64(6)).Return(nil)

		w := serve(f.h, body)

		assert.Equal(t, http.StatusOK, w.Code)
		f.shipments.AssertExpectations(t)
		f.shipments.AssertNotCalled(t, "CancelOpen", mock.Anything, int64(7), (*uuid.UUID)(nil))
	})

	t.Run("Success_ModifiedOrderKeepsOtherLock", func(t *testing.T) {
		f := newFixture()
		body := completedEvent(map[string]string{
			"store_id":                 "7",
			"cart_item_ids":            "1,2",
			"open_shipment_payment_id": "pi_old",
		})

		// The store lock moved to another payment: closing by pi_old's id releases nothing.
		f.gw.On("VerifyWebhook", body, mock.Anything).Return(nil)
		f.events.On("SaveWebhookEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(int64(7), false, nil)
		f.carts.On("GetItems", mock.Anything, []int64{1, 2}).Return(items, nil)
		f.carts.On("AttachPayment", mock.Anything, []int64{1, 2}, "pi_new").Return(nil)
		f.shipments.On("RecordPaid", mock.Anything, mock.Anything).Return(nil)
		f.shipments.On("GetByPaymentID", mock.Anything, "pi_old").Return(&shipment.Shipment{ID: oldID, StoreID: 7}, nil)
		f.shipments.On("CancelOpen", mock.Anything, int64(7), &oldID).Return(int64(0), nil)
		f.events.On("MarkWebhookProcessed", mock.Anything, int64(7)).Return(nil)

		w := serve(f.h, body)

		assert.Equal(t, http.StatusOK, w.Code)
		f.shipments.AssertExpectations(t)
	})

	t.Run("Success_ModifiedOrderWithoutShipment", func(t *testing.T) {
		f := newFixture()
		body := completedEvent(map[string]string{
			"store_id":                 "7",
			"cart_item_ids":            "1,2",
			"open_shipment_payment_id": "pi_old",
		})

		f.gw.On("VerifyWebhook", body, mock.Anything).Return(nil)
		f.events.On("SaveWebhookEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(int64(8), false, nil)
		f.carts.On("GetItems", mock.Anything, []int64{1, 2}).Return(items, nil)
		f.carts.On("AttachPayment", mock.Anything, []int64{1, 2}, "pi_new").Return(nil)
		f.shipments.On("RecordPaid", mock.Anything, mock.Anything).Return(nil)
		f.shipments.On("GetByPaymentID", mock.Anything, "pi_old").Return(nil, shipment.ErrShipmentNotFound)
		f.events.On("MarkWebhookProcessed", mock.Anything, int64(8)).Return(nil)

		w := serve(f.h, body)

		assert.Equal(t, http.StatusOK, w.Code)
		f.shipments.AssertNotCalled(t, "CancelOpen", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("InvalidSignature", func(t *testing.T) {
		f := newFixture()
		body := completedEvent(nil)
		f.gw.On("VerifyWebhook", body, mock.Anything).Return(payment.ErrInvalidSignature)

		w := serve(f.h, body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		f.events.AssertNotCalled(t, "SaveWebhookEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Duplicate", func(t *testing.T) {
		f := newFixture()
		body := completedEvent(map[string]string{"store_id": "7", "cart_item_ids": "1"})
		f.gw.On("VerifyWebhook", body, mock.Anything).Return(nil)
		f.events.On("SaveWebhookEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(int64(0), true, nil)

		w := serve(f.h, body)

		assert.Equal(t, http.StatusOK, w.Code)
		f.carts.AssertNotCalled(t, "AttachPayment", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("IgnoredEventType", func(t *testing.T) {
		f := newFixture()
		body := []byte(`{"id":"evt_2","type":"customer.updated","data":{"object":{}}}`)
		f.gw.On("VerifyWebhook", body, mock.Anything).Return(nil)

		w := serve(f.h, body)

		assert.Equal(t, http.StatusOK, w.Code)
		f.events.AssertNotCalled(t, "SaveWebhookEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ProcessingFailureMarksEvent", func(t *testing.T) {
		f := newFixture()
		body := completedEvent(map[string]string{"store_id": "7", "cart_item_ids": "1,2"})
		f.gw.On("VerifyWebhook", body, mock.Anything).Return(nil)
		f.events.On("SaveWebhookEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(int64(8), false, nil)
		f.carts.On("GetItems", mock.Anything, []int64{1, 2}).Return(nil, errors.New("db down"))
		f.events.On("MarkWebhookFailed", mock.Anything, int64(8), "db down").Return(nil)

		w := serve(f.h, body)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		f.events.AssertExpectations(t)
	})

	t.Run("BadMetadata", func(t *testing.T) {
		f := newFixture()
		body := completedEvent(map[string]string{"store_id": "x", "cart_item_ids": "1"})
		f.gw.On("VerifyWebhook", body, mock.Anything).Return(nil)
		f.events.On("SaveWebhookEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(int64(9), false, nil)
		f.events.On("MarkWebhookFailed", mock.Anything, int64(9), mock.Anything).Return(nil)

		w := serve(f.h, body)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs("1, 2,3")
	assert.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	_, err = parseIDs("")
	assert.Error(t, err)

	_, err = parseIDs("1,x")
	assert.Error(t, err)
}

func TestPaymentWebhookHandler_RedeliveryAfterFailure(t *testing.T) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	f := newFixture()
	f.h = NewWebhookHandler(f.gw, payment.NewRepository(db), f.carts, f.shipments)

	body := completedEvent(map[string]string{"store_id": "7", "cart_item_ids": "1"})
	items := []cart.CartItem{{ID: 1, ProductReference: "A1", Value: 10, Quantity: 1}}

	f.gw.On("VerifyWebhook", body, mock.Anything).Return(nil)
	f.carts.On("GetItems", mock.Anything, []int64{1}).Return(nil, errors.New("db down")).Once()
	f.carts.On("GetItems", mock.Anything, []int64{1}).Return(items, nil).Once()
	f.carts.On("AttachPayment", mock.Anything, []int64{1}, "pi_new").Return(nil).Once()
	f.shipments.On("RecordPaid", mock.Anything, mock.Anything).Return(nil).Once()

	// First delivery fails after the event row is written.
	sqlMock.ExpectQuery(`INSERT INTO payment_webhooks`).
		WithArgs("STRIPE", "checkout.session.completed", "evt_1", "cs_1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "processed"}).AddRow(21, false))
	sqlMock.ExpectExec(`UPDATE payment_webhooks SET process_error = \$2 WHERE id = \$1`).
		WithArgs(int64(21), "db down").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Stripe retries: the same row comes back unprocessed and is handled.
	sqlMock.ExpectQuery(`INSERT INTO payment_webhooks`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "processed"}).AddRow(21, false))
	sqlMock.ExpectExec(`UPDATE payment_webhooks SET processed_at = now\(\) WHERE id = \$1`).
		WithArgs(int64(21)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// A late retry after success is a duplicate.
	sqlMock.ExpectQuery(`INSERT INTO payment_webhooks`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "processed"}).AddRow(21, true))

	assert.Equal(t, http.StatusInternalServerError, serve(f.h, body).Code)
	assert.Equal(t, http.StatusOK, serve(f.h, body).Code)
	assert.Equal(t, http.StatusOK, serve(f.h, body).Code)

	f.carts.AssertNumberOfCalls(t, "GetItems", 2)
	f.carts.AssertNumberOfCalls(t, "AttachPayment", 1)
	f.shipments.AssertNumberOfCalls(t, "RecordPaid", 1)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}
