package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spigell/lead-matcher/internal/filtering"
	"github.com/spigell/lead-matcher/internal/matching"
)

// MatchColumns is the header of the matches table.
var MatchColumns = []string{
	"client_id", "client_name", "rank_client", "property_id", "link_inmueble", "web", "anunciante",
	"zona", "operacion", "tipo", "habitaciones", "banos", "m2", "precio", "score",
	"s_price", "s_area", "s_rooms", "s_baths", "s_operation", "zone_match", "type_match",
}

// UnmatchedColumns is the header of the unmatched table.
var UnmatchedColumns = []string{
	"client_id", "client_name", "candidate_source", "passes_filters", "score",
	"s_price", "s_area", "s_rooms", "s_baths", "s_operation",
	"prop_id", "prop_link", "prop_web", "prop_anunciante", "prop_operacion", "prop_tipo", "prop_zona",
	"prop_precio", "prop_m2", "prop_habitaciones", "prop_banos", "prop_zona_tokens",
	"filter_reasons", "filter_reason_labels", "client_reasons",
	"client_operation", "client_price_min_eur", "client_price_max_eur", "client_area_min_m2", "client_area_max_m2",
	"client_rooms_min", "client_rooms_max", "client_bath_min", "client_bath_max",
	"client_location_tokens", "client_type_tokens", "client_cond_tokens",
}

// WriteMatches writes the candidates to path, as JSON when path ends in .json and as CSV otherwise.
func WriteMatches(path string, m *matching.Matches) error {
	if FormatOf(path) == FormatJSON {
		return writeJSON(path, m.Items)
	}

	rows := make([][]string, 0, m.Len())
	for _, c := range m.Items {
		rows = append(rows, []string{
			c.ClientID,
			c.ClientName,
			strconv.Itoa(c.Rank),
			c.Listing.ID,
			c.Listing.Link,
			c.Listing.Source,
			c.Listing.Advertiser,
			c.Listing.Location,
			c.Listing.Operation,
			c.Listing.Type,
			formatInt(c.Listing.Rooms),
			formatInt(c.Listing.Baths),
			formatFloat(c.Listing.Area),
			formatFloat(c.Listing.Price),
			strconv.FormatFloat(c.Score, 'f', -1, 64),
			strconv.FormatFloat(c.Detail.Price, 'f', -1, 64),
			strconv.FormatFloat(c.Detail.Area, 'f', -1, 64),
			strconv.FormatFloat(c.Detail.Rooms, 'f', -1, 64),
			strconv.FormatFloat(c.Detail.Baths, 'f', -1, 64),
			strconv.FormatFloat(c.Detail.Operation, 'f', -1, 64),
			formatFlag(c.ZoneMatch),
			formatFlag(c.TypeMatch),
		})
	}
	return writeCSV(path, MatchColumns, rows)
}

type unmatchedRecord struct {
	*matching.UnmatchedReport
	ListingReasons []filtering.Reason `json:"filter_reasons"`
	Labels         string             `json:"filter_reason_labels"`
	Reasons        []filtering.Reason `json:"client_reasons"`
}

// WriteUnmatched writes one row per unmatched client. minScore is spelled out in the
// score_below_threshold label.
func WriteUnmatched(path string, reports []*matching.UnmatchedReport, minScore float64) error {
	if FormatOf(path) == FormatJSON {
		records := make([]unmatchedRecord, 0, len(reports))
		for _, r := range reports {
			records = append(records, unmatchedRecord{
				UnmatchedReport: r,
				ListingReasons:  r.ListingReasons.Sorted(),
				Labels:          r.ListingReasons.Labels(minScore),
				Reasons:         r.Reasons.Sorted(),
			})
		}
		return writeJSON(path, records)
	}

	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		l := r.Listing
		if l == nil {
			l = &matching.ListingSnapshot{}
		}
		c := r.Client
		rows = append(rows, []string{
			r.ClientID,
			r.ClientName,
			r.CandidateSource,
			strconv.FormatBool(r.PassesFilters),
			strconv.FormatFloat(r.Score, 'f', -1, 64),
			strconv.FormatFloat(r.Detail.Price, 'f', -1, 64),
			strconv.FormatFloat(r.Detail.Area, 'f', -1, 64),
			strconv.FormatFloat(r.Detail.Rooms, 'f', -1, 64),
			strconv.FormatFloat(r.Detail.Baths, 'f', -1, 64),
			strconv.FormatFloat(r.Detail.Operation, 'f', -1, 64),
			l.ID,
			l.Link,
			l.Source,
			l.Advertiser,
			l.Operation,
			l.Type,
			l.Location,
			formatFloat(l.Price),
			formatFloat(l.Area),
			formatInt(l.Rooms),
			formatInt(l.Baths),
			joinTokens(l.LocationTokens),
			r.ListingReasons.Codes(),
			r.ListingReasons.Labels(minScore),
			r.Reasons.Codes(),
			c.Operation,
			formatFloat(c.Price.Min),
			formatFloat(c.Price.Max),
			formatFloat(c.Area.Min),
			formatFloat(c.Area.Max),
			formatFloat(c.Rooms.Min),
			formatFloat(c.Rooms.Max),
			formatFloat(c.Baths.Min),
			formatFloat(c.Baths.Max),
			joinTokens(c.LocationTokens),
			joinTokens(c.TypeTokens),
			joinTokens(c.ConditionTokens),
		})
	}
	return writeCSV(path, UnmatchedColumns, rows)
}

func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

func writeJSON(path string, v any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return file.Close()
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatFlag(v *bool) string {
	switch {
	case v == nil:
		return ""
	case *v:
		return "1"
	default:
		return "0"
	}
}

func joinTokens(tokens []string) string {
	return strings.Join(tokens, ", ")
}
