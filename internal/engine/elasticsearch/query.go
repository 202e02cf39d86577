package elasticsearch

import (
	"strings"

	"github.com/utafrali/marketsearch/internal/domain"
	"github.com/utafrali/marketsearch/internal/engine"
)

// clause is one query DSL fragment.
type clause = map[string]any

// searchRequest is the body of a _search call.
type searchRequest struct {
	Query          queryDSL               `json:"query"`
	From           int                    `json:"from"`
	Size           int                    `json:"size"`
	TrackTotalHits bool                   `json:"track_total_hits"`
	Sort           []clause               `json:"sort"`
	Source         []string               `json:"_source,omitempty"`
	Aggs           map[string]aggregation `json:"aggs,omitempty"`
}

type queryDSL struct {
	Bool boolQuery `json:"bool"`
}

// boolQuery ANDs its filter clauses; must carries the scored text match.
type boolQuery struct {
	Must   []clause `json:"must"`
	Filter []clause `json:"filter,omitempty"`
}

type aggregation struct {
	Terms termsAggregation `json:"terms"`
}

type termsAggregation struct {
	Field string `json:"field"`
	Size  int    `json:"size"`
}

func newSearchRequest(mode domain.Mode, text string, opts engine.SearchOptions) searchRequest {
	req := searchRequest{
		Query: queryDSL{Bool: boolQuery{
			Must:   []clause{textClause(mode, text)},
			Filter: filterClauses(opts.Filter),
		}},
		From:           opts.Offset,
		Size:           opts.Limit,
		TrackTotalHits: true,
		Sort:           sortClauses(opts.Sort),
		Source:         opts.AttributesToRetrieve,
	}
	if len(opts.Facets) > 0 {
		req.Aggs = make(map[string]aggregation, len(opts.Facets))
		for _, field := range opts.Facets {
			req.Aggs[field] = aggregation{Terms: termsAggregation{Field: field, Size: facetAggSize}}
		}
	}
	return req
}

// textClause matches every document for blank text and otherwise runs a
// fuzzy multi_match over the weighted fields of mode.
func textClause(mode domain.Mode, text string) clause {
	if strings.TrimSpace(text) == "" {
		return clause{"match_all": clause{}}
	}
	return clause{"multi_match": clause{
		"query":         text,
		"fields":        searchFields(mode),
		"type":          "best_fields",
		"fuzziness":     "AUTO",
		"prefix_length": 1,
	}}
}

// filterClauses renders one terms clause per active group. A terms clause
// matches any of its values.
func filterClauses(f engine.Filter) []clause {
	active := f.Active()
	if len(active) == 0 {
		return nil
	}
	out := make([]clause, len(active))
	for i, g := range active {
		out[i] = clause{"terms": clause{g.Field: g.Values}}
	}
	return out
}

// sortClauses orders by the numeric attribute behind the requested field,
// with relevance as tie-breaker. Documents without a value sort last.
func sortClauses(s domain.Sort) []clause {
	byScore := clause{"_score": "desc"}
	if s.IsRelevance() {
		return []clause{byScore}
	}
	order := "asc"
	if s.Desc {
		order = "desc"
	}
	return []clause{
		{domain.SortAttribute(s.Field): clause{"order": order, "missing": "_last", "unmapped_type": "double"}},
		byScore,
	}
}
