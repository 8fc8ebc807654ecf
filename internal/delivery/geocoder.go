package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"paylive-be/internal/logger"
	"paylive-be/internal/metrics"
	"paylive-be/internal/store"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const userAgent = "paylive-checkout/1.0 (contact@paylive.cc)"

type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Suggestion struct {
	Label    string        `json:"label"`
	Address  store.Address `json:"address"`
	Position Position      `json:"position"`
}

type Geocoder interface {
	Geocode(ctx context.Context, addr store.Address) (Position, error)
}

// Nominatim talks to an OpenStreetMap Nominatim instance. The public
// instance allows one request per second, which the limiter enforces.
type Nominatim struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewNominatim(baseURL string, timeout time.Duration) *Nominatim {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Nominatim{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Address     struct {
		HouseNumber string `json:"house_number"`
		Road        string `json:"road"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		Postcode    string `json:"postcode"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

func (p nominatimPlace) position() (Position, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return Position{}, fmt.Errorf("invalid latitude %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return Position{}, fmt.Errorf("invalid longitude %q: %w", p.Lon, err)
	}
	return Position{Lat: lat, Lon: lon}, nil
}

func (p nominatimPlace) address() store.Address {
	a := p.Address
	city := a.City
	if city == "" {
		city = a.Town
	}
	if city == "" {
		city = a.Village
	}
	return store.Address{
		Line1:      strings.TrimSpace(a.HouseNumber + " " + a.Road),
		City:       city,
		PostalCode: a.Postcode,
		Country:    strings.ToUpper(a.CountryCode),
	}
}

// Geocode resolves a structured address to coordinates.
func (n *Nominatim) Geocode(ctx context.Context, addr store.Address) (Position, error) {
	params := url.Values{}
	params.Set("street", addr.Line1)
	params.Set("city", addr.City)
	params.Set("postalcode", addr.PostalCode)
	params.Set("countrycodes", strings.ToLower(normalizeCountry(addr.Country)))
	params.Set("limit", "1")

	places, err := n.search(ctx, params)
	if err != nil {
		return Position{}, err
	}
	if len(places) == 0 {
		return Position{}, ErrAddressNotFound
	}
	return places[0].position()
}

// Suggest returns address candidates for free-text input.
func (n *Nominatim) Suggest(ctx context.Context, query, country string) ([]Suggestion, error) {
	query = strings.TrimSpace(query)
	if len(query) < 3 {
		return []Suggestion{}, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("addressdetails", "1")
	params.Set("limit", "5")
	if country != "" {
		params.Set("countrycodes", strings.ToLower(country))
	}

	places, err := n.search(ctx, params)
	if err != nil {
		return nil, err
	}

	out := make([]Suggestion, 0, len(places))
	for _, p := range places {
		pos, err := p.position()
		if err != nil {
			continue
		}
		out = append(out, Suggestion{Label: p.DisplayName, Address: p.address(), Position: pos})
	}
	return out, nil
}

func (n *Nominatim) search(ctx context.Context, params url.Values) ([]nominatimPlace, error) {
	log := logger.FromCtx(ctx).With(zap.String("client", "nominatim"))

	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params.Set("format", "jsonv2")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	timer := metrics.StartTimer()
	resp, err := n.httpClient.Do(req)
	metrics.Default.Observe("nominatim_request", timer.Duration())
	if err != nil {
		log.Error("Nominatim request failed", zap.Error(err))
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		metrics.Default.Inc("nominatim_error")
		log.Warn("Nominatim returned non-success status", zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("geocoding failed with status %d", resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, fmt.Errorf("failed decoding geocoding response: %w", err)
	}
	return places, nil
}
