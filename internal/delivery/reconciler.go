package delivery

import (
	"context"
	"strings"
	"sync"

	"paylive-be/internal/boxtal"
	"paylive-be/internal/logger"
	"paylive-be/internal/store"
	"paylive-be/internal/utils"

	"go.uber.org/zap"
)

// PointSearcher finds carrier pickup points around an address.
type PointSearcher interface {
	SearchParcelPoints(ctx context.Context, q boxtal.SearchQuery) ([]boxtal.ParcelPoint, error)
}

type Contact struct {
	Email string
	Name  string
	Phone string
}

type Options struct {
	// DefaultMethod is the buyer's saved preference; legacy HOME/PICKUP/STORE
	// labels go through ParseType first.
	DefaultMethod Method
	// InitialNetwork preselects a network filter and, for home delivery, an
	// offer. It may be a network code or an offer code.
	InitialNetwork string
	// InitialParcelPointCode is reselected when it shows up in a search.
	InitialParcelPointCode string
	// ReturnMode fetches parcel points as soon as the address changes.
	ReturnMode   bool
	StoreAddress *store.Address
}

// State is a read-only snapshot of the reconciler.
type State struct {
	Country       string
	Method        Method
	Address       *store.Address
	ParcelPoint   *boxtal.ParcelPoint
	OfferCode     string
	NetworkFilter string
	Center        *Position
	NeedsRefresh  bool
	Loading       bool
	Error         string
}

// Reconciler keeps the delivery method, the selected parcel point and the
// shipping offer consistent with the shipping address.
type Reconciler struct {
	geo    Geocoder
	points PointSearcher

	mu            sync.Mutex
	returnMode    bool
	storeAddress  *store.Address
	address       *store.Address
	addressKey    string
	method        Method
	parcelPoint   *boxtal.ParcelPoint
	offerCode     string
	networkFilter string
	initialPoint  string
	results       []boxtal.ParcelPoint
	center        *Position
	needsRefresh  bool
	loading       bool
	errMsg        string
	// gen increments on every address change and refresh so that late
	// responses for an older address are ignored.
	gen uint64
}

func NewReconciler(geo Geocoder, points PointSearcher, opts Options) *Reconciler {
	r := &Reconciler{
		geo:           geo,
		points:        points,
		returnMode:    opts.ReturnMode,
		storeAddress:  opts.StoreAddress,
		networkFilter: NetworkAll,
		initialPoint:  opts.InitialParcelPointCode,
	}

	r.method = opts.DefaultMethod
	if !r.method.Valid() {
		r.method = MethodHome
	}
	if r.method == MethodStorePickup && r.storeAddress == nil {
		r.method = MethodHome
	}

	country := r.countryLocked()
	if n, ok := networkFor(country, opts.InitialNetwork); ok {
		r.networkFilter = n.Code
	}
	if r.method == MethodHome {
		if o, ok := homeOffer(country, opts.InitialNetwork); ok {
			r.offerCode = o.Code
		}
	}
	r.enforceCountryLocked()
	return r
}

func (r *Reconciler) countryLocked() string {
	if r.address == nil {
		return DefaultCountry
	}
	return normalizeCountry(r.address.Country)
}

// enforceCountryLocked drops selections the current country cannot serve.
func (r *Reconciler) enforceCountryLocked() {
	country := r.countryLocked()

	if r.method == MethodPickup && !PickupAvailable(country) {
		r.method = MethodHome
		r.parcelPoint = nil
		r.offerCode = ""
		r.results = nil
	}
	if r.networkFilter != NetworkAll {
		if _, ok := OfferCodeFor(country, r.networkFilter); !ok {
			r.networkFilter = NetworkAll
		}
	}
	if r.method == MethodHome && r.offerCode != "" {
		if _, ok := homeOffer(country, r.offerCode); !ok {
			r.offerCode = ""
		}
	}
}

func addressKey(a *store.Address) string {
	if a == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(a.Line1))
}

// SetAddress records a geocoded address. Only a change of line1 invalidates
// the parcel point search; in return mode the search runs right away.
func (r *Reconciler) SetAddress(ctx context.Context, addr *store.Address) error {
	r.mu.Lock()

	if addr != nil {
		cp := *addr
		cp.Country = normalizeCountry(cp.Country)
		addr = &cp
	}

	key := addressKey(addr)
	changed := key != r.addressKey
	r.address = addr
	r.addressKey = key

	if !changed {
		r.enforceCountryLocked()
		r.mu.Unlock()
		return nil
	}

	r.gen++
	r.results = nil
	r.center = nil
	r.loading = false
	r.errMsg = ""
	if r.method == MethodPickup {
		r.parcelPoint = nil
		r.offerCode = ""
	}
	r.enforceCountryLocked()

	refreshNow := addr != nil && r.returnMode && PickupAvailable(r.countryLocked())
	r.needsRefresh = addr != nil && !refreshNow && PickupAvailable(r.countryLocked())
	r.mu.Unlock()

	if refreshNow {
		return r.Refresh(ctx)
	}
	return nil
}

// Refresh geocodes the current address and searches parcel points around
// it. Failures are recorded in State().Error; nothing is retried.
func (r *Reconciler) Refresh(ctx context.Context) error {
	r.mu.Lock()
	if r.address == nil {
		r.mu.Unlock()
		return ErrNoAddress
	}
	country := r.countryLocked()
	if !PickupAvailable(country) {
		r.mu.Unlock()
		return ErrPickupUnavailable
	}
	r.gen++
	gen := r.gen
	addr := *r.address
	r.loading = true
	r.errMsg = ""
	r.mu.Unlock()

	log := logger.FromCtx(ctx).With(
		zap.String("service", "delivery"),
		zap.String("method", "Refresh"),
		zap.String("country", country),
	)

	pos, err := r.geo.Geocode(ctx, addr)
	if err != nil {
		log.Warn("geocoding failed", zap.Error(err))
		r.fail(gen, msgGeocodeFailed)
		return err
	}

	points, err := r.points.SearchParcelPoints(ctx, boxtal.SearchQuery{
		Country:    country,
		PostalCode: addr.PostalCode,
		City:       addr.City,
		Street:     addr.Line1,
		Networks:   networkCodes(country),
	})
	if err != nil {
		log.Warn("parcel point search failed", zap.Error(err))
		r.fail(gen, msgSearchFailed)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		log.Debug("dropping stale parcel point results")
		return nil
	}

	r.loading = false
	r.needsRefresh = false
	r.center = &pos
	r.results = points

	if r.parcelPoint == nil && r.initialPoint != "" && r.method == MethodPickup {
		for _, p := range points {
			if p.Code == r.initialPoint {
				if offer, ok := OfferCodeFor(country, p.Network); ok {
					pp := p
					r.parcelPoint = &pp
					r.offerCode = offer
				}
				break
			}
		}
	}
	return nil
}

func (r *Reconciler) fail(gen uint64, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return
	}
	r.loading = false
	r.errMsg = msg
}

// SelectParcelPoint switches to pickup delivery on p and derives the offer
// code from its network. Any home offer is cleared.
func (r *Reconciler) SelectParcelPoint(p boxtal.ParcelPoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	country := r.countryLocked()
	if !PickupAvailable(country) {
		return ErrPickupUnavailable
	}
	offer, ok := OfferCodeFor(country, p.Network)
	if !ok || excluded(country, p.Network) {
		return ErrUnknownNetwork
	}

	r.method = MethodPickup
	r.parcelPoint = &p
	r.offerCode = offer
	return nil
}

// SelectHomeOffer switches to home delivery with the given offer. Any
// selected parcel point is cleared.
func (r *Reconciler) SelectHomeOffer(code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := homeOffer(r.countryLocked(), code)
	if !ok {
		return ErrUnknownOffer
	}

	r.method = MethodHome
	r.parcelPoint = nil
	r.offerCode = o.Code
	return nil
}

func (r *Reconciler) SelectStorePickup() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.storeAddress == nil {
		return ErrNoStoreAddress
	}
	r.method = MethodStorePickup
	r.parcelPoint = nil
	r.offerCode = ""
	return nil
}

// SetMethod changes the delivery method. Switching resets the selection
// belonging to the previous method.
func (r *Reconciler) SetMethod(m Method) error {
	switch m {
	case MethodStorePickup:
		return r.SelectStorePickup()
	case MethodHome, MethodPickup:
	default:
		return ErrInvalidMethod
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if m == MethodPickup && !PickupAvailable(r.countryLocked()) {
		return ErrPickupUnavailable
	}
	if m == r.method {
		return nil
	}

	r.method = m
	r.parcelPoint = nil
	r.offerCode = ""
	return nil
}

// SetNetworkFilter restricts the visible parcel points to one network, or
// to every network with NetworkAll.
func (r *Reconciler) SetNetworkFilter(network string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	network = strings.ToUpper(strings.TrimSpace(network))
	if network == "" || network == NetworkAll {
		r.networkFilter = NetworkAll
		return nil
	}
	if _, ok := OfferCodeFor(r.countryLocked(), network); !ok {
		return ErrUnknownNetwork
	}
	r.networkFilter = network
	return nil
}

// FilteredParcelPoints applies the network filter and the per-country
// network exclusions to the last search results.
func (r *Reconciler) FilteredParcelPoints() []boxtal.ParcelPoint {
	r.mu.Lock()
	defer r.mu.Unlock()

	country := r.countryLocked()
	out := make([]boxtal.ParcelPoint, 0, len(r.results))
	for _, p := range r.results {
		if excluded(country, p.Network) {
			continue
		}
		if r.networkFilter != NetworkAll && !strings.EqualFold(p.Network, r.networkFilter) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Validate returns the first reason the checkout form is incomplete.
func (r *Reconciler) Validate(c Contact) error {
	if !utils.IsValidEmail(c.Email) {
		return ErrEmailRequired
	}
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Phone) == "" {
		return ErrContactIncomplete
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.method {
	case MethodHome:
		a := r.address
		if a == nil || strings.TrimSpace(a.Line1) == "" || strings.TrimSpace(a.PostalCode) == "" || strings.TrimSpace(a.City) == "" {
			return ErrAddressIncomplete
		}
		if r.offerCode == "" {
			return ErrOfferMissing
		}
	case MethodPickup:
		if r.parcelPoint == nil {
			return ErrParcelPointMissing
		}
		if r.offerCode == "" {
			return ErrOfferMissing
		}
	case MethodStorePickup:
		if r.storeAddress == nil {
			return ErrNoStoreAddress
		}
	default:
		return ErrInvalidMethod
	}
	return nil
}

func (r *Reconciler) IsComplete(c Contact) bool {
	return r.Validate(c) == nil
}

func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := State{
		Country:       r.countryLocked(),
		Method:        r.method,
		OfferCode:     r.offerCode,
		NetworkFilter: r.networkFilter,
		NeedsRefresh:  r.needsRefresh,
		Loading:       r.loading,
		Error:         r.errMsg,
	}
	if r.address != nil {
		a := *r.address
		s.Address = &a
	}
	if r.parcelPoint != nil {
		p := *r.parcelPoint
		s.ParcelPoint = &p
	}
	if r.center != nil {
		c := *r.center
		s.Center = &c
	}
	return s
}
