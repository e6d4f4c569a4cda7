// Package realestate holds the listing and client profile shapes consumed by the matcher.
package realestate

import (
	"strconv"
	"strings"
)

const (
	OperationSale = "venta"
	OperationRent = "alquiler"
)

var operationSynonyms = map[string]string{
	"venta":                        OperationSale,
	"sell":                         OperationSale,
	"alquiler":                     OperationRent,
	"rent":                         OperationRent,
	"alquiler con opcion a compra": OperationRent,
}

// CanonicalOperation maps a normalized operation token to venta/alquiler when it is a known synonym.
func CanonicalOperation(token string) string {
	if canonical, ok := operationSynonyms[token]; ok {
		return canonical
	}
	return token
}

// Listing is one property snapshot taken from a portal. Missing numeric attributes are nil.
type Listing struct {
	ID             string   `json:"id"`
	Link           string   `json:"link"`
	Source         string   `json:"source"`
	Advertiser     string   `json:"advertiser"`
	Location       string   `json:"location"`
	LocationTokens []string `json:"location_tokens"`
	Operation      string   `json:"operation"`
	Type           string   `json:"type"`
	Rooms          *int     `json:"rooms,omitempty"`
	Baths          *int     `json:"baths,omitempty"`
	Area           *float64 `json:"area,omitempty"`
	Price          *float64 `json:"price,omitempty"`
}

// RoomsValue returns the room count as a float for range scoring.
func (l *Listing) RoomsValue() *float64 { return intToFloat(l.Rooms) }

// BathsValue returns the bath count as a float for range scoring.
func (l *Listing) BathsValue() *float64 { return intToFloat(l.Baths) }

// Listings is the catalog of one batch.
type Listings struct {
	Items []*Listing
}

func (l *Listings) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Items)
}

func (l *Listings) FindByID(id string) *Listing {
	if l == nil {
		return nil
	}
	for _, listing := range l.Items {
		if listing.ID == id {
			return listing
		}
	}
	return nil
}

// Range is an independent optional lower and upper bound.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// IsSet reports whether at least one bound is present.
func (r Range) IsSet() bool { return r.Min != nil || r.Max != nil }

// IsInverted reports whether both bounds are present and max is below min.
func (r Range) IsInverted() bool {
	return r.Min != nil && r.Max != nil && *r.Max < *r.Min
}

// String renders the range the way the brokerage writes requirements: "a - b", ">= a", "<= b" or "-".
func (r Range) String() string {
	switch {
	case r.Min != nil && r.Max != nil:
		if *r.Min == *r.Max {
			return formatNumber(*r.Min)
		}
		return formatNumber(*r.Min) + " - " + formatNumber(*r.Max)
	case r.Min != nil:
		return ">= " + formatNumber(*r.Min)
	case r.Max != nil:
		return "<= " + formatNumber(*r.Max)
	default:
		return "-"
	}
}

// ClientProfile is one prospective buyer or renter.
type ClientProfile struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Phone           string   `json:"phone"`
	Mail            string   `json:"mail"`
	IncludedAt      string   `json:"included_at"`
	CreatedInfo     string   `json:"created_info"`
	Operation       string   `json:"operation"`
	OperationTokens []string `json:"operation_tokens"`
	TypeTokens      []string `json:"type_tokens"`
	ConditionTokens []string `json:"condition_tokens"`
	LocationTokens  []string `json:"location_tokens"`
	FlagTokens      []string `json:"flag_tokens"`
	Rooms           Range    `json:"rooms"`
	Baths           Range    `json:"baths"`
	Living          Range    `json:"living"`
	Area            Range    `json:"area"`
	Price           Range    `json:"price"`
}

// Clients is the set of client profiles of one batch.
type Clients struct {
	Items []*ClientProfile
}

func (c *Clients) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Items)
}

func (c *Clients) FindByID(id string) *ClientProfile {
	if c == nil {
		return nil
	}
	for _, client := range c.Items {
		if client.ID == id {
			return client
		}
	}
	return nil
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

func intToFloat(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// JoinTokens renders tokens as "a, b" or "-" when there are none.
func JoinTokens(tokens []string) string {
	if len(tokens) == 0 {
		return "-"
	}
	return strings.Join(tokens, ", ")
}
