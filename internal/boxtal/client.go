package boxtal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"paylive-be/internal/logger"
	"paylive-be/internal/metrics"

	"go.uber.org/zap"
)

const parcelPointPath = "/shipping/v3.1/parcel-point"

type Client interface {
	SearchParcelPoints(ctx context.Context, q SearchQuery) ([]ParcelPoint, error)
}

type client struct {
	accessKey  string
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

func NewClient(accessKey, secretKey, baseURL string, timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &client{
		accessKey:  accessKey,
		secretKey:  secretKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (q SearchQuery) validate() error {
	if len(strings.TrimSpace(q.Country)) != 2 {
		return ErrMissingCountry
	}
	if strings.TrimSpace(q.PostalCode) == "" && strings.TrimSpace(q.City) == "" {
		return ErrMissingPostalCode
	}
	return nil
}

func (c *client) SearchParcelPoints(ctx context.Context, q SearchQuery) ([]ParcelPoint, error) {
	if c.accessKey == "" || c.secretKey == "" {
		return nil, ErrNotConfigured
	}
	if err := q.validate(); err != nil {
		return nil, err
	}

	log := logger.FromCtx(ctx).With(
		zap.String("client", "boxtal"),
		zap.String("country", q.Country),
		zap.String("postal_code", q.PostalCode),
		zap.Strings("networks", q.Networks),
	)

	params := url.Values{}
	params.Set("countryIsoCode", strings.ToUpper(q.Country))
	if q.PostalCode != "" {
		params.Set("postalCode", q.PostalCode)
	}
	if q.City != "" {
		params.Set("city", q.City)
	}
	if q.Street != "" {
		params.Set("street", q.Street)
	}
	for _, n := range q.Networks {
		params.Add("searchNetworks", n)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+parcelPointPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.accessKey, c.secretKey)
	req.Header.Set("Accept", "application/json")

	timer := metrics.StartTimer()
	resp, err := c.httpClient.Do(req)
	metrics.Default.Observe("boxtal_request", timer.Duration())
	if err != nil {
		log.Error("Boxtal request failed", zap.Error(err))
		return nil, fmt.Errorf("boxtal request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read boxtal response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.Default.Inc("boxtal_error")
		log.Warn("Boxtal returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", body),
		)
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	var res apiSearchResponse
	if err := json.Unmarshal(body, &res); err != nil {
		log.Error("Failed decoding Boxtal response", zap.Error(err))
		return nil, err
	}

	points := make([]ParcelPoint, 0, len(res.Content))
	for _, p := range res.Content {
		points = append(points, p.toParcelPoint())
	}

	log.Info("parcel points found", zap.Int("count", len(points)))
	return points, nil
}

var weekdays = map[string]int{
	"MONDAY": 0, "TUESDAY": 1, "WEDNESDAY": 2, "THURSDAY": 3,
	"FRIDAY": 4, "SATURDAY": 5, "SUNDAY": 6,
}

func (p apiParcelPoint) toParcelPoint() ParcelPoint {
	pp := ParcelPoint{
		Code:    p.Code,
		Name:    p.Name,
		Network: p.Network,
		Location: Location{
			Street:     p.Location.Street,
			City:       p.Location.City,
			PostalCode: p.Location.PostalCode,
			Country:    p.Location.CountryIsoCode,
			Latitude:   p.Location.Position.Latitude,
			Longitude:  p.Location.Position.Longitude,
		},
		DistanceMeters: p.DistanceFromSearchLocation,
	}

	for day, slots := range p.OpeningDays {
		for _, s := range slots {
			pp.OpeningHours = append(pp.OpeningHours, OpeningHours{
				Day:   strings.ToUpper(day),
				Open:  s.OpeningTime,
				Close: s.ClosingTime,
			})
		}
	}
	sort.SliceStable(pp.OpeningHours, func(i, j int) bool {
		return weekdays[pp.OpeningHours[i].Day] < weekdays[pp.OpeningHours[j].Day]
	})
	return pp
}
