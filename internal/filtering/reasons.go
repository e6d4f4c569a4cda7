package filtering

import (
	"fmt"
	"sort"
	"strings"
)

// Reason is a stable code explaining why a listing was rejected for a client.
type Reason string

const (
	ReasonOperationMismatch Reason = "operation_mismatch"
	ReasonLocationMismatch  Reason = "location_mismatch"
	ReasonPriceAboveMax     Reason = "price_above_max"
	ReasonPriceBelowMin     Reason = "price_below_min"
	ReasonRoomsBelowMin     Reason = "rooms_below_min"
	ReasonBathsBelowMin     Reason = "baths_below_min"

	// Assigned by the unmatched analysis, never by a filter.
	ReasonScoreBelowThreshold Reason = "score_below_threshold"
	ReasonNoInventory         Reason = "sin_inventario"
)

var reasonLabels = map[Reason]string{
	ReasonOperationMismatch: "Operación distinta a la solicitada",
	ReasonLocationMismatch:  "Sin inmuebles en las ubicaciones solicitadas",
	ReasonPriceAboveMax:     "Precio por encima del máximo (con tolerancia)",
	ReasonPriceBelowMin:     "Precio por debajo del mínimo (con tolerancia)",
	ReasonRoomsBelowMin:     "Menos habitaciones de las requeridas",
	ReasonBathsBelowMin:     "Menos baños de los requeridos",
	ReasonNoInventory:       "Sin inmuebles disponibles tras filtros",
}

// Label returns the operator-facing text for a reason. Unknown codes are returned as is.
func (r Reason) Label() string {
	if label, ok := reasonLabels[r]; ok {
		return label
	}
	return string(r)
}

// LabelWithThreshold is Label, but spells out the score threshold for score_below_threshold.
func (r Reason) LabelWithThreshold(minScore float64) string {
	if r == ReasonScoreBelowThreshold {
		return fmt.Sprintf("Coincidencias con score < %g", minScore)
	}
	return r.Label()
}

// ReasonSet is an unordered set of reasons.
type ReasonSet map[Reason]struct{}

func NewReasonSet(reasons ...Reason) ReasonSet {
	s := make(ReasonSet, len(reasons))
	for _, r := range reasons {
		s[r] = struct{}{}
	}
	return s
}

func (s ReasonSet) Add(r Reason) { s[r] = struct{}{} }

func (s ReasonSet) Has(r Reason) bool {
	_, ok := s[r]
	return ok
}

// Merge adds every reason of other to s.
func (s ReasonSet) Merge(other ReasonSet) {
	for r := range other {
		s[r] = struct{}{}
	}
}

// Sorted returns the reasons ordered by code.
func (s ReasonSet) Sorted() []Reason {
	out := make([]Reason, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Codes joins the sorted codes with commas.
func (s ReasonSet) Codes() string {
	sorted := s.Sorted()
	codes := make([]string, len(sorted))
	for i, r := range sorted {
		codes[i] = string(r)
	}
	return strings.Join(codes, ",")
}

// Labels joins the sorted labels with "; ".
func (s ReasonSet) Labels(minScore float64) string {
	sorted := s.Sorted()
	labels := make([]string, len(sorted))
	for i, r := range sorted {
		labels[i] = r.LabelWithThreshold(minScore)
	}
	return strings.Join(labels, "; ")
}
