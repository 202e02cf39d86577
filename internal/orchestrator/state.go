package orchestrator

import (
	"slices"

	"github.com/utafrali/marketsearch/internal/domain"
)

// Status is the orchestrator's position in its state machine.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusDebouncing Status = "debouncing"
	StatusQuerying   Status = "querying"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

// State is a snapshot of one search session, as rendered by its surface.
type State struct {
	SessionID     string                 `json:"session_id"`
	Surface       string                 `json:"surface"`
	Status        Status                 `json:"status"`
	Query         string                 `json:"query"`
	Mode          domain.Mode            `json:"mode"`
	ActiveFilters map[string][]string    `json:"active_filters"`
	Sort          string                 `json:"sort"`
	Page          int                    `json:"page"`
	Results       []domain.UnifiedResult `json:"results"`
	FacetGroups   []domain.FacetGroup    `json:"facet_groups"`
	Total         int64                  `json:"total"`
	Loading       bool                   `json:"loading"`
	Error         string                 `json:"error,omitempty"`
	// URL is the replace-style address of the full results page.
	URL        string `json:"url,omitempty"`
	Generation uint64 `json:"generation"`
}

// clone returns a copy that shares nothing mutable with s.
func (s State) clone() State {
	out := s
	out.Results = slices.Clone(s.Results)
	out.FacetGroups = make([]domain.FacetGroup, len(s.FacetGroups))
	for i, g := range s.FacetGroups {
		g.Options = slices.Clone(g.Options)
		g.Selected = slices.Clone(g.Selected)
		out.FacetGroups[i] = g
	}
	out.ActiveFilters = make(map[string][]string, len(s.ActiveFilters))
	for k, v := range s.ActiveFilters {
		out.ActiveFilters[k] = slices.Clone(v)
	}
	if out.Results == nil {
		out.Results = []domain.UnifiedResult{}
	}
	return out
}
