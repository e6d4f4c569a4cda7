// Package location resolves free-text locations into token sets and matches them hierarchically.
package location

import (
	"regexp"
	"sort"
	"strings"

	"github.com/spigell/lead-matcher/internal/normalize"
)

// Normalized text already carries slashes as commas.
var variantSeparator = regexp.MustCompile(`,|/| - | – | — `)

var municipalityKeys = []string{"municipio", "municipality"}

// Resolver expands and matches location tokens against immutable Tables.
// It is safe for concurrent use.
type Resolver struct {
	equivalents  map[string][]string
	provinceOf   map[string]string
	aliases      map[string][]string
	children     map[string]map[string]struct{}
	wildcards    map[string]struct{}
	provinceKeys []string
}

// New builds a Resolver. All table entries are normalized once here.
func New(t Tables) *Resolver {
	r := &Resolver{
		equivalents: make(map[string][]string, len(t.Equivalents)),
		provinceOf:  make(map[string]string, len(t.MunicipalityProvince)),
		aliases:     make(map[string][]string, len(t.ProvinceAliases)),
		children:    make(map[string]map[string]struct{}),
		wildcards:   make(map[string]struct{}, len(t.Wildcards)),
	}

	for k, vs := range t.Equivalents {
		key := normalize.Text(k)
		if key == "" {
			continue
		}
		r.equivalents[key] = normalize.Unique(append(r.equivalents[key], normalizeAll(vs)...))
	}

	for m, p := range t.MunicipalityProvince {
		if mk, pk := normalize.Text(m), normalize.Text(p); mk != "" && pk != "" {
			r.provinceOf[mk] = pk
		}
	}

	for p, as := range t.ProvinceAliases {
		if pk := normalize.Text(p); pk != "" {
			r.aliases[pk] = normalize.Unique(append(r.aliases[pk], normalizeAll(as)...))
		}
	}

	for _, w := range t.Wildcards {
		if wk := normalize.Text(w); wk != "" {
			r.wildcards[wk] = struct{}{}
		}
	}

	r.buildChildren(t.ProvinceChildren)
	return r
}

// buildChildren maps every province name, alias and their equivalents to the province's municipalities.
func (r *Resolver) buildChildren(provinceChildren map[string][]string) {
	provinces := make(map[string]struct{})
	for p := range r.aliases {
		provinces[p] = struct{}{}
	}

	normalizedChildren := make(map[string][]string, len(provinceChildren))
	for p, cs := range provinceChildren {
		pk := normalize.Text(p)
		if pk == "" {
			continue
		}
		provinces[pk] = struct{}{}
		normalizedChildren[pk] = append(normalizedChildren[pk], normalizeAll(cs)...)
	}

	for p := range provinces {
		children := normalizedChildren[p]
		if len(children) == 0 {
			continue
		}

		keys := r.closure(append([]string{p}, r.aliases[p]...))
		for _, k := range keys {
			set, ok := r.children[k]
			if !ok {
				set = make(map[string]struct{}, len(children))
				r.children[k] = set
			}
			for _, c := range children {
				set[c] = struct{}{}
			}
		}
	}

	for k := range r.children {
		r.provinceKeys = append(r.provinceKeys, k)
	}
	sort.Strings(r.provinceKeys)
}

// closure returns seeds plus every token reachable through the equivalence map, in discovery order.
func (r *Resolver) closure(seeds []string) []string {
	seen := make(map[string]struct{}, len(seeds))
	out := make([]string, 0, len(seeds))
	queue := make([]string, 0, len(seeds))

	for _, s := range seeds {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		queue = append(queue, s)
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		for _, eq := range r.equivalents[item] {
			if _, ok := seen[eq]; ok {
				continue
			}
			seen[eq] = struct{}{}
			out = append(out, eq)
			queue = append(queue, eq)
		}
	}
	return out
}

// ExpandVariant returns token, the parts it splits into on slash, comma and dash separators,
// and the transitive equivalents of all of them.
func (r *Resolver) ExpandVariant(token string) []string {
	token = normalize.Text(token)
	if token == "" {
		return nil
	}

	variants := []string{token}
	for _, part := range variantSeparator.Split(token, -1) {
		if part = strings.TrimSpace(part); part != "" {
			variants = append(variants, part)
		}
	}

	return r.closure(variants)
}

// CollectTokens extracts the location tokens of a raw field. Every textual leaf is split on
// commas (parenthetical groups are flattened into extra segments) and expanded. Municipalities
// given as a "municipio" attribute of a record also contribute the aliases of their province.
func (r *Resolver) CollectTokens(v normalize.Value) []string {
	var tokens []string
	add := func(items ...string) {
		tokens = append(tokens, items...)
	}

	for _, leaf := range v.Leaves() {
		base := normalize.Text(leaf)
		if base == "" {
			continue
		}

		segments := []string{base}
		if cleaned := strings.NewReplacer("(", ",", ")", ",").Replace(base); cleaned != base {
			segments = append(segments, cleaned)
		}

		for _, segment := range segments {
			for _, part := range strings.Split(segment, ",") {
				if part = strings.TrimSpace(part); part != "" {
					add(r.ExpandVariant(part)...)
				}
			}
		}
	}

	municipalities := extractMunicipalities(v)
	provinces := make(map[string]struct{})
	for _, m := range municipalities {
		add(r.ExpandVariant(m)...)
		if p, ok := r.provinceOf[m]; ok {
			provinces[p] = struct{}{}
		}
	}

	for _, p := range sortedKeys(provinces) {
		for _, alias := range r.aliases[p] {
			add(r.ExpandVariant(alias)...)
		}
	}

	return normalize.Unique(tokens)
}

// CollectText is CollectTokens for a plain text field.
func (r *Resolver) CollectText(s string) []string {
	return r.CollectTokens(normalize.ParseValue(s))
}

// Match reports whether a listing located at listingTokens satisfies a client asking for
// clientTokens. An empty client constraint and wildcard tokens match anything; a province
// token matches any of its municipalities but a municipality never matches its province.
func (r *Resolver) Match(listingTokens, clientTokens []string) bool {
	if len(clientTokens) == 0 {
		return true
	}

	listing := make(map[string]struct{}, len(listingTokens))
	for _, t := range listingTokens {
		if nt := normalize.Text(t); nt != "" {
			listing[nt] = struct{}{}
		}
	}
	if len(listing) == 0 {
		return false
	}

	var constrained []string
	for _, t := range clientTokens {
		nt := normalize.Text(t)
		if nt == "" {
			continue
		}
		if _, ok := r.wildcards[nt]; ok {
			continue
		}
		constrained = append(constrained, nt)
	}
	if len(constrained) == 0 {
		return true
	}

	for _, t := range constrained {
		if _, ok := listing[t]; ok {
			return true
		}
	}

	for _, t := range constrained {
		for child := range r.children[t] {
			if _, ok := listing[child]; ok {
				return true
			}
		}
	}

	return false
}

// IsProvince reports whether token names a province, through its name or an alias.
func (r *Resolver) IsProvince(token string) bool {
	_, ok := r.children[normalize.Text(token)]
	return ok
}

// Provinces lists every token that resolves to a province, sorted.
func (r *Resolver) Provinces() []string {
	return append([]string(nil), r.provinceKeys...)
}

func extractMunicipalities(v normalize.Value) []string {
	var out []string
	switch v.Kind {
	case normalize.KindRecord:
		for _, key := range municipalityKeys {
			if m, ok := v.Get(key); ok {
				if nm := normalize.Text(m.String()); nm != "" {
					out = append(out, nm)
				}
			}
		}
		for _, f := range v.Fields {
			out = append(out, extractMunicipalities(f.Value)...)
		}
	case normalize.KindList:
		for _, item := range v.Items {
			out = append(out, extractMunicipalities(item)...)
		}
	}
	return normalize.Unique(out)
}

func normalizeAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if n := normalize.Text(item); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
