package orchestrator

import (
	"net/url"
	"strings"

	"github.com/utafrali/marketsearch/internal/domain"
	"github.com/utafrali/marketsearch/internal/service"
)

// SearchPath is the address of the full search-results page.
const SearchPath = "/search"

// URL parameters mirrored by the full results page.
const (
	ParamQuery = "q"
	ParamMode  = "mode"
)

// Seed is the state a session starts from.
type Seed struct {
	Query      string
	Mode       domain.Mode
	Selections service.Selections
}

// SeedFromParams reads the initial query, mode and facet selections from URL
// parameters. An absent or invalid mode leaves Mode empty and facet
// parameters are read against fallback. Facets are only seeded when
// withFacets is set.
func SeedFromParams(params url.Values, fallback domain.Mode, withFacets bool) Seed {
	seed := Seed{
		Query:      params.Get(ParamQuery),
		Selections: service.Selections{},
	}
	if m, err := domain.ParseMode(params.Get(ParamMode)); err == nil {
		seed.Mode = m
	}
	if withFacets {
		mode := fallback
		if seed.Mode != "" {
			mode = seed.Mode
		}
		seed.Selections = service.SelectionsFromParams(mode, params)
	}
	return seed
}

// EncodeURL renders the page address for query and mode. Only q and mode are
// written; filter selections stay out of the URL after the initial load.
func EncodeURL(query string, mode domain.Mode) string {
	v := url.Values{}
	if q := strings.TrimSpace(query); q != "" {
		v.Set(ParamQuery, q)
	}
	v.Set(ParamMode, mode.String())
	return SearchPath + "?" + v.Encode()
}
