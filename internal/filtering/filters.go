package filtering

import (
	"slices"
	"strconv"

	"github.com/spigell/lead-matcher/internal/location"
	"github.com/spigell/lead-matcher/internal/realestate"
)

type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

type operationFilter struct {
	toggle
}

// NewOperation creates a filter rejecting listings whose operation the client did not ask for.
func NewOperation() Filter {
	return &operationFilter{}
}

func (f *operationFilter) Name() string { return "operation" }

func (f *operationFilter) Check(l *realestate.Listing, c *realestate.ClientProfile, reasons ReasonSet) {
	if l.Operation == "" {
		return
	}
	switch {
	case len(c.OperationTokens) > 0:
		if !slices.Contains(c.OperationTokens, l.Operation) {
			reasons.Add(ReasonOperationMismatch)
		}
	case c.Operation != "":
		if l.Operation != c.Operation {
			reasons.Add(ReasonOperationMismatch)
		}
	}
}

func (f *operationFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

type locationFilter struct {
	toggle
	resolver *location.Resolver
}

// NewLocation creates a filter rejecting listings outside the client's locations.
func NewLocation(resolver *location.Resolver) Filter {
	return &locationFilter{resolver: resolver}
}

func (f *locationFilter) Name() string { return "location" }

func (f *locationFilter) Check(l *realestate.Listing, c *realestate.ClientProfile, reasons ReasonSet) {
	if len(c.LocationTokens) == 0 {
		return
	}
	tokens := l.LocationTokens
	if len(tokens) == 0 {
		tokens = f.resolver.CollectText(l.Location)
	}
	if !f.resolver.Match(tokens, c.LocationTokens) {
		reasons.Add(ReasonLocationMismatch)
	}
}

func (f *locationFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"provinces": strconv.Itoa(len(f.resolver.Provinces()))},
	}
}

type priceFilter struct {
	toggle
	maxFactor float64
	minFactor float64
}

// NewPrice creates a filter rejecting listings priced outside the client's bounds scaled by the factors.
func NewPrice(maxFactor, minFactor float64) Filter {
	return &priceFilter{maxFactor: maxFactor, minFactor: minFactor}
}

func (f *priceFilter) Name() string { return "price" }

func (f *priceFilter) Check(l *realestate.Listing, c *realestate.ClientProfile, reasons ReasonSet) {
	if l.Price == nil {
		return
	}
	price := *l.Price
	if c.Price.Max != nil && price > *c.Price.Max*f.maxFactor {
		reasons.Add(ReasonPriceAboveMax)
	}
	if c.Price.Min != nil && price < *c.Price.Min*f.minFactor {
		reasons.Add(ReasonPriceBelowMin)
	}
}

func (f *priceFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{
			"max_factor": strconv.FormatFloat(f.maxFactor, 'f', -1, 64),
			"min_factor": strconv.FormatFloat(f.minFactor, 'f', -1, 64),
		},
	}
}

// minimumFilter rejects listings with fewer units than the client minimum minus a tolerance.
type minimumFilter struct {
	toggle
	name      string
	tolerance int
	code      Reason
	value     func(*realestate.Listing) *int
	minimum   func(*realestate.ClientProfile) *float64
}

// NewRooms creates the room count filter.
func NewRooms(tolerance int) Filter {
	return &minimumFilter{
		name:      "rooms",
		tolerance: tolerance,
		code:      ReasonRoomsBelowMin,
		value:     func(l *realestate.Listing) *int { return l.Rooms },
		minimum:   func(c *realestate.ClientProfile) *float64 { return c.Rooms.Min },
	}
}

// NewBaths creates the bath count filter.
func NewBaths(tolerance int) Filter {
	return &minimumFilter{
		name:      "baths",
		tolerance: tolerance,
		code:      ReasonBathsBelowMin,
		value:     func(l *realestate.Listing) *int { return l.Baths },
		minimum:   func(c *realestate.ClientProfile) *float64 { return c.Baths.Min },
	}
}

func (f *minimumFilter) Name() string { return f.name }

func (f *minimumFilter) Check(l *realestate.Listing, c *realestate.ClientProfile, reasons ReasonSet) {
	value, minimum := f.value(l), f.minimum(c)
	if value == nil || minimum == nil {
		return
	}
	if float64(*value) < max(0, *minimum-float64(f.tolerance)) {
		reasons.Add(f.code)
	}
}

func (f *minimumFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"tolerance": strconv.Itoa(f.tolerance)},
	}
}
