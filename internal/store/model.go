package store

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type Store struct {
	ID          int64    `json:"id"`
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Theme       string   `json:"theme"`
	OwnerEmail  string   `json:"owner_email"`
	Address     *Address `json:"address"`
	IsVerified  bool     `json:"is_verified"`
}

// StockItem is one row of a store's sellable stock, matched by reference.
type StockItem struct {
	Reference string  `json:"reference"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}
