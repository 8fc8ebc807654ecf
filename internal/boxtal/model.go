package boxtal

type SearchQuery struct {
	Country    string   `json:"country"`
	PostalCode string   `json:"postal_code"`
	City       string   `json:"city,omitempty"`
	Street     string   `json:"street,omitempty"`
	Networks   []string `json:"networks,omitempty"`
	// Limit caps the number of points returned; zero means the API default.
	Limit int `json:"limit,omitempty"`
}

type Location struct {
	Street     string  `json:"street"`
	City       string  `json:"city"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

type OpeningHours struct {
	Day   string `json:"day"`
	Open  string `json:"open"`
	Close string `json:"close"`
}

type ParcelPoint struct {
	Code           string         `json:"code"`
	Name           string         `json:"name"`
	Network        string         `json:"network"`
	Location       Location       `json:"location"`
	OpeningHours   []OpeningHours `json:"opening_hours,omitempty"`
	DistanceMeters int            `json:"distance_meters,omitempty"`
}

type SearchResponse struct {
	ParcelPoints []ParcelPoint `json:"parcel_points"`
}

// apiParcelPoint mirrors the Boxtal v3 payload.
type apiParcelPoint struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Network  string `json:"network"`
	Location struct {
		Street         string `json:"street"`
		City           string `json:"city"`
		PostalCode     string `json:"postalCode"`
		CountryIsoCode string `json:"countryIsoCode"`
		Position       struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"position"`
	} `json:"location"`
	OpeningDays map[string][]struct {
		OpeningTime string `json:"openingTime"`
		ClosingTime string `json:"closingTime"`
	} `json:"openingDays"`
	DistanceFromSearchLocation int `json:"distanceFromSearchLocation"`
}

type apiSearchResponse struct {
	Content []apiParcelPoint `json:"content"`
}
