package matching

import (
	"fmt"

	"github.com/spigell/lead-matcher/internal/realestate"
	"github.com/spigell/lead-matcher/internal/scoring"
)

// ListingSnapshot is the part of a listing copied into output rows.
type ListingSnapshot struct {
	ID             string   `json:"id"`
	Link           string   `json:"link"`
	Source         string   `json:"source"`
	Advertiser     string   `json:"advertiser"`
	Location       string   `json:"location"`
	LocationTokens []string `json:"location_tokens"`
	Operation      string   `json:"operation"`
	Type           string   `json:"type"`
	Rooms          *int     `json:"rooms"`
	Baths          *int     `json:"baths"`
	Area           *float64 `json:"area"`
	Price          *float64 `json:"price"`
}

func snapshot(l *realestate.Listing) ListingSnapshot {
	return ListingSnapshot{
		ID:             l.ID,
		Link:           l.Link,
		Source:         l.Source,
		Advertiser:     l.Advertiser,
		Location:       l.Location,
		LocationTokens: l.LocationTokens,
		Operation:      l.Operation,
		Type:           l.Type,
		Rooms:          l.Rooms,
		Baths:          l.Baths,
		Area:           l.Area,
		Price:          l.Price,
	}
}

// MatchCandidate is one listing that passed every hard filter for a client and met the threshold.
type MatchCandidate struct {
	ClientID   string          `json:"client_id"`
	ClientName string          `json:"client_name"`
	Rank       int             `json:"rank_client"`
	Listing    ListingSnapshot `json:"listing"`
	Score      float64         `json:"score"`
	Detail     scoring.Detail  `json:"detail"`
	// Audit flags, nil when the client gave no tokens to compare against.
	ZoneMatch *bool `json:"zone_match"`
	TypeMatch *bool `json:"type_match"`
}

// Matches is the flattened result of a batch, grouped by client in input order.
type Matches struct {
	Items []*MatchCandidate
}

func (m *Matches) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Items)
}

// ForClient returns the candidates of one client in rank order.
func (m *Matches) ForClient(clientID string) []*MatchCandidate {
	var out []*MatchCandidate
	for _, c := range m.Items {
		if c.ClientID == clientID {
			out = append(out, c)
		}
	}
	return out
}

// ReportByClient groups candidates by client for display.
func (m *Matches) ReportByClient() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, c := range m.Items {
		key := fmt.Sprintf("%s (%s)", c.ClientName, c.ClientID)
		report[key] = append(report[key], map[string]string{
			"rank":      fmt.Sprintf("%d", c.Rank),
			"id":        c.Listing.ID,
			"url":       c.Listing.Link,
			"location":  c.Listing.Location,
			"operation": c.Listing.Operation,
			"price":     formatOptional(c.Listing.Price, " EUR"),
			"area":      formatOptional(c.Listing.Area, " m2"),
			"score":     fmt.Sprintf("%.3f", c.Score),
			"breakdown": fmt.Sprintf("price=%.2f area=%.2f rooms=%.2f baths=%.2f op=%.2f",
				c.Detail.Price, c.Detail.Area, c.Detail.Rooms, c.Detail.Baths, c.Detail.Operation),
		})
	}
	return report
}

// ClientSummary counts candidates of one client.
type ClientSummary struct {
	ClientID   string
	ClientName string
	Candidates int
}

// Summary returns per-client candidate counts in input order.
func (m *Matches) Summary() []ClientSummary {
	var out []ClientSummary
	index := make(map[string]int)
	for _, c := range m.Items {
		if i, ok := index[c.ClientID]; ok {
			out[i].Candidates++
			continue
		}
		index[c.ClientID] = len(out)
		out = append(out, ClientSummary{ClientID: c.ClientID, ClientName: c.ClientName, Candidates: 1})
	}
	return out
}

func formatOptional(v *float64, suffix string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f%s", *v, suffix)
}

func boolPtr(v bool) *bool { return &v }
