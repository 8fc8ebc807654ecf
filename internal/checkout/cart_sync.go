package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"paylive-be/internal/cart"
	"paylive-be/internal/logger"
	"paylive-be/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxStockLookups bounds concurrent stock searches against the store.
const maxStockLookups = 4

// CartSync mirrors one store's slice of the buyer's cart. Mutations are
// applied locally first; a failed call restores the last state confirmed by
// the server for that item.
type CartSync struct {
	backend   Backend
	storeID   int64
	storeSlug string
	email     string

	mu        sync.Mutex
	stripeID  string
	paymentID *string
	confirmed []cart.CartItem
	items     []cart.CartItem
	// pending maps an item id to the op currently in flight for it. Optimistic
	// adds use negative ids until the server assigns one.
	pending map[int64]uuid.UUID
	tempSeq int64
}

func NewCartSync(backend Backend, st *store.Store, email string) *CartSync {
	return &CartSync{
		backend:   backend,
		storeID:   st.ID,
		storeSlug: st.Slug,
		email:     strings.ToLower(strings.TrimSpace(email)),
		pending:   make(map[int64]uuid.UUID),
	}
}

// SetPaymentScope restricts the cart to items attached to paymentID, as
// when a paid order is being modified. nil returns to the open cart.
func (s *CartSync) SetPaymentScope(paymentID *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if paymentID != nil {
		p := *paymentID
		paymentID = &p
	}
	s.paymentID = paymentID
}

func (s *CartSync) StripeID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stripeID
}

// SetStripeID primes the customer id when it is already known.
func (s *CartSync) SetStripeID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stripeID = id
}

func (s *CartSync) Items() []cart.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]cart.CartItem(nil), s.items...)
}

func (s *CartSync) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total float64
	for _, it := range s.items {
		total += it.LineTotal()
	}
	return total
}

func (s *CartSync) resolveStripeID(ctx context.Context) (string, error) {
	s.mu.Lock()
	id := s.stripeID
	s.mu.Unlock()
	if id != "" {
		return id, nil
	}

	cust, err := s.backend.GetCustomerDetails(ctx, s.email)
	if err != nil {
		return "", err
	}
	if cust.StripeID == "" {
		return "", ErrNoCustomer
	}

	s.mu.Lock()
	s.stripeID = cust.StripeID
	s.mu.Unlock()
	return cust.StripeID, nil
}

func (s *CartSync) fetch(ctx context.Context) ([]cart.CartItem, error) {
	stripeID, err := s.resolveStripeID(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	paymentID := s.paymentID
	s.mu.Unlock()

	groups, err := s.backend.CartSummary(ctx, stripeID, paymentID)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.Store.ID == s.storeID {
			return g.Items, nil
		}
	}
	return []cart.CartItem{}, nil
}

// Refresh replaces the local cart with the server's view.
func (s *CartSync) Refresh(ctx context.Context) ([]cart.CartItem, error) {
	items, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmed = append([]cart.CartItem(nil), items...)
	s.items = append([]cart.CartItem(nil), items...)
	s.pending = make(map[int64]uuid.UUID)
	return append([]cart.CartItem(nil), items...), nil
}

type NewItem struct {
	Reference   string
	Description string
	Value       float64
	Quantity    int
	Weight      *float64
}

// Add shows the item immediately and persists it. A server refusal, such as
// a duplicate reference, removes it again and is returned unchanged.
func (s *CartSync) Add(ctx context.Context, in NewItem) (*cart.CartItem, error) {
	if in.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	stripeID, err := s.resolveStripeID(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.tempSeq++
	tempID := -s.tempSeq
	s.items = append(s.items, cart.CartItem{
		ID:               tempID,
		StoreID:          s.storeID,
		CustomerStripeID: stripeID,
		ProductReference: strings.TrimSpace(in.Reference),
		Description:      in.Description,
		Value:            in.Value,
		Quantity:         in.Quantity,
		Weight:           in.Weight,
		PaymentID:        s.paymentID,
	})
	op := uuid.New()
	s.pending[tempID] = op
	paymentID := s.paymentID
	s.mu.Unlock()

	created, err := s.backend.AddCartItem(ctx, cart.CreateCartItemParams{
		StoreID:          s.storeID,
		CustomerStripeID: stripeID,
		ProductReference: in.Reference,
		Description:      in.Description,
		Value:            in.Value,
		Quantity:         in.Quantity,
		Weight:           in.Weight,
		PaymentID:        paymentID,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, tempID)

	if err != nil {
		s.items = removeItem(s.items, tempID)
		logger.FromCtx(ctx).With(
			zap.String("service", "checkout"),
			zap.String("method", "CartSync.Add"),
		).Info("add to cart rolled back", zap.String("reference", in.Reference), zap.Error(err))
		return nil, err
	}

	s.confirmed = append(s.confirmed, *created)
	if idx := indexOf(s.items, tempID); idx >= 0 {
		s.items[idx] = *created
	} else {
		s.items = append(s.items, *created)
	}
	return created, nil
}

// UpdateQuantity applies quantity locally and persists it. When the call
// fails and no newer change was made meanwhile, the item goes back to its
// last confirmed quantity.
func (s *CartSync) UpdateQuantity(ctx context.Context, id int64, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	idx := indexOf(s.items, id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrItemNotInCart
	}
	if id < 0 {
		s.mu.Unlock()
		return ErrItemPending
	}
	s.items[idx].Quantity = quantity
	op := uuid.New()
	s.pending[id] = op
	s.mu.Unlock()

	updated, err := s.backend.UpdateCartItem(ctx, id, quantity)

	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.pending[id] == op
	if current {
		delete(s.pending, id)
	}

	if err != nil {
		if current {
			s.rollbackLocked(id)
		}
		return err
	}

	if ci := indexOf(s.confirmed, id); ci >= 0 {
		s.confirmed[ci] = *updated
	}
	if current {
		if li := indexOf(s.items, id); li >= 0 {
			s.items[li] = *updated
		}
	}
	return nil
}

// Remove hides the item and deletes it server-side. An item the server no
// longer has counts as removed.
func (s *CartSync) Remove(ctx context.Context, id int64) error {
	s.mu.Lock()
	if indexOf(s.items, id) < 0 {
		s.mu.Unlock()
		return ErrItemNotInCart
	}
	if id < 0 {
		s.mu.Unlock()
		return ErrItemPending
	}
	s.items = removeItem(s.items, id)
	op := uuid.New()
	s.pending[id] = op
	s.mu.Unlock()

	err := s.backend.DeleteCartItem(ctx, id)
	if isNotFound(err) {
		err = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.pending[id] == op
	if current {
		delete(s.pending, id)
	}

	if err != nil {
		if current {
			s.rollbackLocked(id)
		}
		return err
	}

	s.confirmed = removeItem(s.confirmed, id)
	return nil
}

// rollbackLocked restores item id to its confirmed state, at its confirmed
// position.
func (s *CartSync) rollbackLocked(id int64) {
	ci := indexOf(s.confirmed, id)
	if ci < 0 {
		s.items = removeItem(s.items, id)
		return
	}
	item := s.confirmed[ci]

	if li := indexOf(s.items, id); li >= 0 {
		s.items[li] = item
		return
	}

	pos := len(s.items)
	if ci < pos {
		pos = ci
	}
	s.items = append(s.items, cart.CartItem{})
	copy(s.items[pos+1:], s.items[pos:])
	s.items[pos] = item
}

// ValidateStock checks every distinct reference against live stock and
// returns a *StockError for the first cart line that cannot be served.
func (s *CartSync) ValidateStock(ctx context.Context) error {
	items := s.Items()

	refs := make([]string, 0, len(items))
	seen := make(map[string]bool)
	for _, it := range items {
		key := strings.ToLower(it.ProductReference)
		if !seen[key] {
			seen[key] = true
			refs = append(refs, it.ProductReference)
		}
	}

	available := make([]int, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxStockLookups)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			found, err := s.backend.SearchStock(gctx, s.storeSlug, ref)
			if err != nil {
				return fmt.Errorf("vérification du stock impossible pour %s: %w", ref, err)
			}
			for _, st := range found {
				if strings.EqualFold(st.Reference, ref) {
					available[i] = st.Quantity
					break
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	snapshot := make(map[string]int, len(refs))
	for i, ref := range refs {
		snapshot[strings.ToLower(ref)] = available[i]
	}

	requested := make(map[string]int, len(refs))
	for _, it := range items {
		requested[strings.ToLower(it.ProductReference)] += it.Quantity
	}

	for _, it := range items {
		key := strings.ToLower(it.ProductReference)
		avail := snapshot[key]
		if avail <= 0 || requested[key] > avail {
			return &StockError{Reference: it.ProductReference, Requested: requested[key], Available: avail}
		}
	}
	return nil
}

// VerifyAgainstServer re-reads the cart and fails if a local item is gone
// or a reference appears twice. On success the server view becomes the
// local one.
func (s *CartSync) VerifyAgainstServer(ctx context.Context) error {
	server, err := s.fetch(ctx)
	if err != nil {
		return err
	}

	byRef := make(map[string]bool, len(server))
	for _, it := range server {
		key := strings.ToLower(it.ProductReference)
		if byRef[key] {
			return &DuplicateItemError{Reference: it.ProductReference}
		}
		byRef[key] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, local := range s.items {
		if indexOf(server, local.ID) < 0 {
			return &MissingItemError{Reference: local.ProductReference}
		}
	}

	s.confirmed = append([]cart.CartItem(nil), server...)
	s.items = append([]cart.CartItem(nil), server...)
	return nil
}

// PrefetchSuggestions looks up stock for each query with the same
// concurrency bound as ValidateStock. Failed lookups are left out.
func (s *CartSync) PrefetchSuggestions(ctx context.Context, queries []string) map[string][]store.StockItem {
	out := make(map[string][]store.StockItem, len(queries))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxStockLookups)
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		q := q
		g.Go(func() error {
			found, err := s.backend.SearchStock(gctx, s.storeSlug, q)
			if err != nil {
				logger.FromCtx(ctx).Debug("stock suggestion failed", zap.String("query", q), zap.Error(err))
				return nil
			}
			mu.Lock()
			out[q] = found
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *CartSync) IDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.items))
	for _, it := range s.items {
		ids = append(ids, it.ID)
	}
	return ids
}

func indexOf(items []cart.CartItem, id int64) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func removeItem(items []cart.CartItem, id int64) []cart.CartItem {
	out := items[:0:0]
	for _, it := range items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}
