package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"paylive-be/internal/cart"
	"paylive-be/internal/payment"
	"paylive-be/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCartSync_Refresh(t *testing.T) {
	b := new(MockBackend)
	cs := NewCartSync(b, testStore, " Buyer@Example.com ")

	b.On("GetCustomerDetails", mock.Anything, "buyer@example.com").
		Return(&payment.Customer{StripeID: "cus_1", Email: "buyer@example.com"}, nil).Once()
	b.On("CartSummary", mock.Anything, "cus_1", (*string)(nil)).
		Return(group(item(1, "A1", 2, 10), item(2, "B2", 1, 25)), nil)

	items, err := cs.Refresh(context.Background())

	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, "cus_1", cs.StripeID())
	assert.Equal(t, 45.0, cs.Total())

	// customer id is primed, not looked up again
	_, err = cs.Refresh(context.Background())
	require.NoError(t, err)
	b.AssertExpectations(t)
}

func TestCartSync_RefreshScopedToPayment(t *testing.T) {
	b := new(MockBackend)
	cs := newSync(b)
	pid := "pi_123"
	cs.SetPaymentScope(&pid)

	b.On("CartSummary", mock.Anything, "cus_1", mock.MatchedBy(func(p *string) bool {
		return p != nil && *p == "pi_123"
	})).Return([]cart.StoreGroup{}, nil)

	items, err := cs.Refresh(context.Background())

	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCartSync_Add(t *testing.T) {
	t.Run("duplicate reference surfaces the server message unmodified", func(t *testing.T) {
		b := new(MockBackend)
		cs := newSync(b)
		b.On("CartSummary", mock.Anything, "cus_1", (*string)(nil)).Return(group(item(1, "A1", 1, 10)), nil)
		_, err := cs.Refresh(context.Background())
		require.NoError(t, err)

		msg := "La référence a1 est déjà dans le panier"
		b.On("AddCartItem", mock.Anything, mock.MatchedBy(func(p cart.CreateCartItemParams) bool {
			return p.ProductReference == "a1" && p.StoreID == testStore.ID && p.CustomerStripeID == "cus_1"
		})).Return(nil, &httpError{status: 409, message: msg})

		_, err = cs.Add(context.Background(), NewItem{Reference: "a1", Value: 10, Quantity: 1})

		require.Error(t, err)
		assert.Equal(t, msg, err.Error())
		assert.Equal(t, []int64{1}, cs.IDs())
	})

	t.Run("server item replaces the optimistic one", func(t *testing.T) {
		b := new(MockBackend)
		cs := newSync(b)
		created := item(42, "C3", 2, 5)
		b.On("AddCartItem", mock.Anything, mock.Anything).Return(&created, nil)

		got, err := cs.Add(context.Background(), NewItem{Reference: " C3 ", Value: 5, Quantity: 2})

		require.NoError(t, err)
		assert.Equal(t, int64(42), got.ID)
		assert.Equal(t, []int64{42}, cs.IDs())
	})

	t.Run("invalid quantity", func(t *testing.T) {
		cs := newSync(new(MockBackend))
		_, err := cs.Add(context.Background(), NewItem{Reference: "A1", Quantity: 0})
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	})
}

func TestCartSync_UpdateQuantityRollsBack(t *testing.T) {
	b := new(MockBackend)
	cs := newSync(b)
	b.On("CartSummary", mock.Anything, "cus_1", (*string)(nil)).Return(group(item(1, "A1", 1, 10)), nil)
	_, err := cs.Refresh(context.Background())
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	b.On("UpdateCartItem", mock.Anything, int64(1), 3).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(nil, errors.New("boom"))

	done := make(chan error, 1)
	go func() { done <- cs.UpdateQuantity(context.Background(), 1, 3) }()

	<-started
	assert.Equal(t, 3, cs.Items()[0].Quantity, "optimistic value is visible while in flight")
	close(release)

	assert.EqualError(t, <-done, "boom")
	assert.Equal(t, 1, cs.Items()[0].Quantity)
}

func TestCartSync_UpdateQuantitySuccess(t *testing.T) {
	b := new(MockBackend)
	cs := newSync(b)
	b.On("CartSummary", mock.Anything, "cus_1", (*string)(nil)).Return(group(item(1, "A1", 1, 10)), nil)
	_, err := cs.Refresh(context.Background())
	require.NoError(t, err)

	updated := item(1, "A1", 4, 10)
	b.On("UpdateCartItem", mock.Anything, int64(1), 4).Return(&updated, nil)

	require.NoError(t, cs.UpdateQuantity(context.Background(), 1, 4))
	assert.Equal(t, 4, cs.Items()[0].Quantity)

	assert.ErrorIs(t, cs.UpdateQuantity(context.Background(), 1, 0), ErrInvalidQuantity)
	assert.ErrorIs(t, cs.UpdateQuantity(context.Background(), 99, 2), ErrItemNotInCart)
}

func TestCartSync_Remove(t *testing.T) {
	setup := func() (*MockBackend, *CartSync) {
		b := new(MockBackend)
		cs := newSync(b)
		b.On("CartSummary", mock.Anything, "cus_1", (*string)(nil)).
			Return(group(item(1, "A1", 1, 10), item(2, "B2", 1, 25)), nil)
		_, err := cs.Refresh(context.Background())
		require.NoError(t, err)
		return b, cs
	}

	t.Run("failure restores the item in place", func(t *testing.T) {
		b, cs := setup()
		b.On("DeleteCartItem", mock.Anything, int64(1)).Return(errors.New("unavailable"))

		err := cs.Remove(context.Background(), 1)

		assert.Error(t, err)
		assert.Equal(t, []int64{1, 2}, cs.IDs())
	})

	t.Run("already gone counts as removed", func(t *testing.T) {
		b, cs := setup()
		b.On("DeleteCartItem", mock.Anything, int64(2)).Return(&httpError{status: 404, message: "not found"})

		require.NoError(t, cs.Remove(context.Background(), 2))
		assert.Equal(t, []int64{1}, cs.IDs())
	})
}

func stock(ref string, qty int) []store.StockItem {
	return []store.StockItem{{Reference: ref, Title: ref, Quantity: qty, Price: 10}}
}

func TestCartSync_ValidateStock(t *testing.T) {
	load := func(b *MockBackend, items ...cart.CartItem) *CartSync {
		cs := newSync(b)
		b.On("CartSummary", mock.Anything, "cus_1", (*string)(nil)).Return(group(items...), nil)
		_, err := cs.Refresh(context.Background())
		require.NoError(t, err)
		return cs
	}

	t.Run("insufficient stock blocks payment", func(t *testing.T) {
		b := new(MockBackend)
		cs := load(b, item(1, "A1", 2, 10), item(2, "B2", 1, 25))
		b.On("SearchStock", mock.Anything, testStore.Slug, "A1").Return(stock("A1", 1), nil)
		b.On("SearchStock", mock.Anything, testStore.Slug, "B2").Return(stock("B2", 3), nil)

		err := cs.ValidateStock(context.Background())

		var se *StockError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "Stock insuffisant pour A1 (demandé 2, disponible 1)", err.Error())
	})

	t.Run("unknown reference is out of stock", func(t *testing.T) {
		b := new(MockBackend)
		cs := load(b, item(1, "X", 1, 10))
		b.On("SearchStock", mock.Anything, testStore.Slug, "X").Return(stock("X-LONG", 9), nil)

		err := cs.ValidateStock(context.Background())

		assert.EqualError(t, err, "Rupture de stock pour X")
	})

	t.Run("enough stock", func(t *testing.T) {
		b := new(MockBackend)
		cs := load(b, item(1, "a1", 2, 10))
		b.On("SearchStock", mock.Anything, testStore.Slug, "a1").Return(stock("A1", 2), nil)

		assert.NoError(t, cs.ValidateStock(context.Background()))
	})

	t.Run("lookup failure", func(t *testing.T) {
		b := new(MockBackend)
		cs := load(b, item(1, "A1", 1, 10))
		b.On("SearchStock", mock.Anything, testStore.Slug, "A1").Return(nil, errors.New("timeout"))

		assert.ErrorContains(t, cs.ValidateStock(context.Background()), "timeout")
	})

	t.Run("at most four lookups in flight", func(t *testing.T) {
		b := new(MockBackend)
		var items []cart.CartItem
		for i := 1; i <= 12; i++ {
			items = append(items, item(int64(i), fmt.Sprintf("R%d", i), 1, 1))
		}
		cs := load(b, items...)

		var inFlight, peak int32
		b.On("SearchStock", mock.Anything, testStore.Slug, mock.Anything).
			Run(func(mock.Arguments) {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
			}).
			Return(stock("none", 0), nil)

		_ = cs.ValidateStock(context.Background())

		assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(maxStockLookups))
		b.AssertNumberOfCalls(t, "SearchStock", 12)
	})
}

func TestCartSync_VerifyAgainstServer(t *testing.T) {
	t.Run("item removed server-side", func(t *testing.T) {
		b := new(MockBackend)
		cs := newSync(b)
		b.On("CartSummary", mock.Anything, "cus_1", (*string)(nil)).
			Return(group(item(1, "A1", 1, 10), item(2, "B2", 1, 25)), nil).Once()
		_, err := cs.Refresh(context.Background())
		require.NoError(t, err)

		b.On("CartSummary", mock.Anything, "cus_1", (*string)(nil)).
			Return(group(item(1, "A1", 1, 10)), nil).Once()

		err = cs.VerifyAgainstServer(context.Background())

		var missing *MissingItemError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, "B2", missing.Reference)
	})

	t.Run("duplicate reference", func(t *testing.T) {
		b := new(MockBackend)
		cs := newSync(b)
		b.On("CartSummary", mock.Anything, "cus_1", (*string)(nil)).
			Return(group(item(1, "A1", 1, 10), item(2, "a1", 1, 10)), nil)

		err := cs.VerifyAgainstServer(context.Background())

		var dup *DuplicateItemError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, "a1", dup.Reference)
	})
}

func TestCartSync_PrefetchSuggestions(t *testing.T) {
	b := new(MockBackend)
	cs := newSync(b)
	b.On("SearchStock", mock.Anything, testStore.Slug, "A").Return(stock("A1", 3), nil)
	b.On("SearchStock", mock.Anything, testStore.Slug, "B").Return(nil, errors.New("down"))

	got := cs.PrefetchSuggestions(context.Background(), []string{"A", "B", " "})

	assert.Len(t, got, 1)
	assert.Equal(t, "A1", got["A"][0].Reference)
}
