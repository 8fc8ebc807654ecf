package delivery

import "strings"

const (
	DefaultCountry = "FR"
	NetworkAll     = "ALL"
)

// Network is a pickup-point carrier network and the Boxtal offer used to
// ship to its points.
type Network struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	OfferCode string `json:"offer_code"`
}

type HomeOffer struct {
	Code    string `json:"code"`
	Label   string `json:"label"`
	Carrier string `json:"carrier"`
}

// networkConfig lists the pickup networks offered per destination country.
// A country absent from the table has no pickup delivery.
var networkConfig = map[string][]Network{
	"FR": {
		{Code: "MONR", Name: "Mondial Relay", OfferCode: "MONR-CpourToi"},
		{Code: "CHRP", Name: "Chronopost", OfferCode: "CHRP-Chrono2ShopDirect"},
		{Code: "SOGP", Name: "Relais Colis", OfferCode: "SOGP-RelaisColis"},
		{Code: "COPR", Name: "Colis Privé", OfferCode: "COPR-CoPrRelaisRelaisNat"},
		{Code: "UPSE", Name: "UPS Access Point", OfferCode: "UPSE-StandardAccessPoint"},
	},
	"BE": {
		{Code: "MONR", Name: "Mondial Relay", OfferCode: "MONR-CpourToiEurope"},
		{Code: "CHRP", Name: "Chronopost", OfferCode: "CHRP-Chrono2ShopEurope"},
	},
	"LU": {
		{Code: "MONR", Name: "Mondial Relay", OfferCode: "MONR-CpourToiEurope"},
	},
	"NL": {
		{Code: "MONR", Name: "Mondial Relay", OfferCode: "MONR-CpourToiEurope"},
	},
	"ES": {
		{Code: "MONR", Name: "Mondial Relay", OfferCode: "MONR-CpourToiEurope"},
	},
}

var homeDeliveryConfig = map[string][]HomeOffer{
	"FR": {
		{Code: "POFR-ColissimoAccess", Label: "Colissimo domicile", Carrier: "La Poste"},
		{Code: "CHRP-Chrono18", Label: "Chronopost 18h", Carrier: "Chronopost"},
		{Code: "MONR-DomicileFrance", Label: "Mondial Relay domicile", Carrier: "Mondial Relay"},
	},
	"BE": {
		{Code: "POFR-ColissimoExpertInter", Label: "Colissimo international", Carrier: "La Poste"},
		{Code: "MONR-DomicileEurope", Label: "Mondial Relay domicile", Carrier: "Mondial Relay"},
	},
	"LU": {
		{Code: "POFR-ColissimoExpertInter", Label: "Colissimo international", Carrier: "La Poste"},
	},
	"NL": {
		{Code: "POFR-ColissimoExpertInter", Label: "Colissimo international", Carrier: "La Poste"},
	},
	"ES": {
		{Code: "POFR-ColissimoExpertInter", Label: "Colissimo international", Carrier: "La Poste"},
	},
	"CH": {
		{Code: "POFR-ColissimoExpertInter", Label: "Colissimo international", Carrier: "La Poste"},
	},
}

// excludedNetworks are dropped from search results even when the network
// filter names them.
var excludedNetworks = map[string][]string{
	"BE": {"UPSE", "DHLE"},
}

func normalizeCountry(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return DefaultCountry
	}
	return c
}

func Networks(country string) []Network {
	return networkConfig[normalizeCountry(country)]
}

func HomeOffers(country string) []HomeOffer {
	return homeDeliveryConfig[normalizeCountry(country)]
}

// PickupAvailable is false for countries without any configured network (CH).
func PickupAvailable(country string) bool {
	return len(Networks(country)) > 0
}

// OfferCodeFor returns the shipping offer for a pickup network in country.
func OfferCodeFor(country, network string) (string, bool) {
	for _, n := range Networks(country) {
		if strings.EqualFold(n.Code, network) {
			return n.OfferCode, true
		}
	}
	return "", false
}

func homeOffer(country, code string) (HomeOffer, bool) {
	for _, o := range HomeOffers(country) {
		if o.Code == code {
			return o, true
		}
	}
	return HomeOffer{}, false
}

// networkFor resolves either a network code ("MONR") or one of its offer
// codes ("MONR-CpourToi").
func networkFor(country, codeOrOffer string) (Network, bool) {
	for _, n := range Networks(country) {
		if strings.EqualFold(n.Code, codeOrOffer) || n.OfferCode == codeOrOffer {
			return n, true
		}
	}
	return Network{}, false
}

func networkCodes(country string) []string {
	nets := Networks(country)
	codes := make([]string, 0, len(nets))
	for _, n := range nets {
		codes = append(codes, n.Code)
	}
	return codes
}

func excluded(country, network string) bool {
	for _, n := range excludedNetworks[normalizeCountry(country)] {
		if strings.EqualFold(n, network) {
			return true
		}
	}
	return false
}
