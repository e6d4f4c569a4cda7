package realestate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/spigell/lead-matcher/internal/location"
	"github.com/spigell/lead-matcher/internal/normalize"
)

const (
	ProblemMalformedNumber = "malformed number"
	ProblemInvertedRange   = "inverted range"
)

var listingIDNamespace = uuid.MustParse("3f0f6c1e-8a0e-4f4b-9a53-6d1c2b7e5a10")

// Portal exports disagree on a few column names.
var listingColumnAliases = map[string]string{
	"baños":             "banos",
	"baños_":            "banos",
	"metros_cuadrados":  "m2",
	"tipo_de_operacion": "operacion",
	"tipo_inmueble":     "tipo",
}

type listingRecord struct {
	ID         any `mapstructure:"id_inmueble"`
	Link       any `mapstructure:"link_inmueble"`
	Source     any `mapstructure:"web"`
	Advertiser any `mapstructure:"anunciante"`
	Location   any `mapstructure:"zona"`
	Operation  any `mapstructure:"operacion"`
	Type       any `mapstructure:"tipo"`
	Rooms      any `mapstructure:"habitaciones"`
	Baths      any `mapstructure:"banos"`
	Area       any `mapstructure:"m2"`
	Price      any `mapstructure:"precio"`
}

type clientRecord struct {
	ID          any `mapstructure:"id"`
	Name        any `mapstructure:"nombre"`
	Phone       any `mapstructure:"telefono"`
	Mail        any `mapstructure:"mail"`
	IncludedAt  any `mapstructure:"fecha_inclusion"`
	CreatedInfo any `mapstructure:"creado_info"`
	Operation   any `mapstructure:"operation"`
	Types       any `mapstructure:"types"`
	Conditions  any `mapstructure:"conditions"`
	RoomsMin    any `mapstructure:"rooms_min"`
	RoomsMax    any `mapstructure:"rooms_max"`
	BathMin     any `mapstructure:"bath_min"`
	BathMax     any `mapstructure:"bath_max"`
	LivingMin   any `mapstructure:"living_min"`
	LivingMax   any `mapstructure:"living_max"`
	AreaMin     any `mapstructure:"area_min_m2"`
	AreaMax     any `mapstructure:"area_max_m2"`
	PriceMin    any `mapstructure:"price_min_eur"`
	PriceMax    any `mapstructure:"price_max_eur"`
	Locations   any `mapstructure:"locations"`
	Flags       any `mapstructure:"flags"`
	ZoneStd     any `mapstructure:"zona_std"`
}

// DecodeIssue records a field that could not be used as given. The record is still kept.
type DecodeIssue struct {
	Record  int
	ID      string
	Field   string
	Raw     string
	Problem string
}

func (i DecodeIssue) String() string {
	return fmt.Sprintf("record %d (%s): %s %q: %s", i.Record, i.ID, i.Field, i.Raw, i.Problem)
}

// Decoder turns raw tabular records into Listings and ClientProfiles.
type Decoder struct {
	resolver *location.Resolver
}

func NewDecoder(resolver *location.Resolver) *Decoder {
	return &Decoder{resolver: resolver}
}

// Listings decodes every raw listing record.
func (d *Decoder) Listings(raws []map[string]any) (*Listings, []DecodeIssue, error) {
	out := &Listings{Items: make([]*Listing, 0, len(raws))}
	var issues []DecodeIssue
	for idx, raw := range raws {
		listing, recordIssues, err := d.Listing(idx, raw)
		if err != nil {
			return nil, nil, err
		}
		out.Items = append(out.Items, listing)
		issues = append(issues, recordIssues...)
	}
	return out, issues, nil
}

// Listing decodes one raw listing record. Unparseable numbers become absent values.
func (d *Decoder) Listing(idx int, raw map[string]any) (*Listing, []DecodeIssue, error) {
	var rec listingRecord
	if err := decodeRecord(canonicalKeys(raw, listingColumnAliases), &rec); err != nil {
		return nil, nil, fmt.Errorf("listing record %d: %w", idx, err)
	}

	l := &Listing{
		ID:         coerceString(rec.ID),
		Link:       coerceString(rec.Link),
		Source:     normalize.Text(coerceString(rec.Source)),
		Advertiser: normalize.Text(coerceString(rec.Advertiser)),
		Location:   coerceString(rec.Location),
		Operation:  normalize.Text(coerceString(rec.Operation)),
		Type:       normalize.Text(coerceString(rec.Type)),
	}
	if l.ID == "" {
		l.ID = ListingID(l.Link, l.Source)
	}
	l.LocationTokens = d.resolver.CollectTokens(normalize.ParseValue(rec.Location))

	issues := &issueCollector{record: idx, id: l.ID}
	l.Rooms = issues.int("habitaciones", rec.Rooms)
	l.Baths = issues.int("banos", rec.Baths)
	l.Area = issues.float("m2", rec.Area)
	l.Price = issues.float("precio", rec.Price)

	return l, issues.items, nil
}

// Clients decodes every raw client record.
func (d *Decoder) Clients(raws []map[string]any) (*Clients, []DecodeIssue, error) {
	out := &Clients{Items: make([]*ClientProfile, 0, len(raws))}
	var issues []DecodeIssue
	for idx, raw := range raws {
		client, recordIssues, err := d.Client(idx, raw)
		if err != nil {
			return nil, nil, err
		}
		out.Items = append(out.Items, client)
		issues = append(issues, recordIssues...)
	}
	return out, issues, nil
}

// Client decodes one raw client record.
func (d *Decoder) Client(idx int, raw map[string]any) (*ClientProfile, []DecodeIssue, error) {
	var rec clientRecord
	if err := decodeRecord(canonicalKeys(raw, nil), &rec); err != nil {
		return nil, nil, fmt.Errorf("client record %d: %w", idx, err)
	}

	c := &ClientProfile{
		ID:          coerceString(rec.ID),
		Name:        coerceString(rec.Name),
		Phone:       coerceString(rec.Phone),
		Mail:        strings.ToLower(coerceString(rec.Mail)),
		IncludedAt:  coerceString(rec.IncludedAt),
		CreatedInfo: coerceString(rec.CreatedInfo),
	}

	operation := normalize.ParseValue(rec.Operation)
	for _, token := range normalize.ValueTokens(operation) {
		c.OperationTokens = append(c.OperationTokens, CanonicalOperation(token))
	}
	c.OperationTokens = normalize.Unique(c.OperationTokens)
	if operation.Kind == normalize.KindScalar {
		c.Operation = CanonicalOperation(normalize.Text(operation.Scalar))
	} else {
		c.Operation = strings.Join(c.OperationTokens, ",")
	}

	c.TypeTokens = normalize.ValueTokens(normalize.ParseValue(rec.Types))
	c.ConditionTokens = normalize.ValueTokens(normalize.ParseValue(rec.Conditions))
	c.FlagTokens = normalize.ValueTokens(normalize.ParseValue(rec.Flags))

	locations := normalize.ParseValue(rec.Locations)
	if locations.IsEmpty() {
		locations = normalize.ParseValue(rec.ZoneStd)
	}
	c.LocationTokens = d.resolver.CollectTokens(locations)

	issues := &issueCollector{record: idx, id: c.ID}
	c.Rooms = issues.intRange("rooms", rec.RoomsMin, rec.RoomsMax)
	c.Baths = issues.intRange("bath", rec.BathMin, rec.BathMax)
	c.Living = issues.intRange("living", rec.LivingMin, rec.LivingMax)
	c.Area = issues.floatRange("area_m2", rec.AreaMin, rec.AreaMax)
	c.Price = issues.floatRange("price_eur", rec.PriceMin, rec.PriceMax)

	return c, issues.items, nil
}

// ListingID derives a stable identifier for listings exported without one.
func ListingID(link, source string) string {
	return uuid.NewSHA1(listingIDNamespace, []byte(link+"|"+source)).String()
}

func decodeRecord(raw map[string]any, result any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata: nil,
		Result:   result,
		TagName:  "mapstructure",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// canonicalKeys lowercases and trims column names and applies aliases. A canonical column
// wins over its alias when both are present.
func canonicalKeys(raw map[string]any, aliases map[string]string) map[string]any {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(raw))
	aliased := make(map[string]any)
	for _, k := range keys {
		key := strings.ToLower(strings.TrimSpace(k))
		if canonical, ok := aliases[key]; ok {
			if _, seen := aliased[canonical]; !seen {
				aliased[canonical] = raw[k]
			}
			continue
		}
		out[key] = raw[k]
	}
	for k, v := range aliased {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out
}

type issueCollector struct {
	record int
	id     string
	items  []DecodeIssue
}

func (c *issueCollector) add(field string, raw any, problem string) {
	c.items = append(c.items, DecodeIssue{
		Record:  c.record,
		ID:      c.id,
		Field:   field,
		Raw:     coerceString(raw),
		Problem: problem,
	})
}

func (c *issueCollector) float(field string, raw any) *float64 {
	v, ok := coerceFloat(raw)
	if !ok {
		c.add(field, raw, ProblemMalformedNumber)
	}
	return v
}

func (c *issueCollector) int(field string, raw any) *int {
	v, ok := coerceInt(raw)
	if !ok {
		c.add(field, raw, ProblemMalformedNumber)
	}
	return v
}

func (c *issueCollector) floatRange(field string, rawMin, rawMax any) Range {
	r := Range{
		Min: c.float(field+"_min", rawMin),
		Max: c.float(field+"_max", rawMax),
	}
	if r.IsInverted() {
		c.add(field, fmt.Sprintf("%s > %s", formatNumber(*r.Min), formatNumber(*r.Max)), ProblemInvertedRange)
	}
	return r
}

func (c *issueCollector) intRange(field string, rawMin, rawMax any) Range {
	r := Range{
		Min: intToFloat(c.int(field+"_min", rawMin)),
		Max: intToFloat(c.int(field+"_max", rawMax)),
	}
	if r.IsInverted() {
		c.add(field, fmt.Sprintf("%s > %s", formatNumber(*r.Min), formatNumber(*r.Max)), ProblemInvertedRange)
	}
	return r
}
