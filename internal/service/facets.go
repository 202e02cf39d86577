package service

import (
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"

	"github.com/utafrali/marketsearch/internal/domain"
	"github.com/utafrali/marketsearch/internal/engine"
)

// Selections holds the active filter values per facet key. It has value
// semantics: every mutating method returns a new Selections and leaves the
// receiver untouched. Keys never map to an empty list.
type Selections map[string][]string

// NewSelections builds Selections from raw per-key values, dropping blanks,
// duplicates and empty groups.
func NewSelections(raw map[string][]string) Selections {
	out := make(Selections, len(raw))
	for key, values := range raw {
		for _, v := range values {
			v = strings.TrimSpace(v)
			if v == "" || slices.Contains(out[key], v) {
				continue
			}
			out[key] = append(out[key], v)
		}
	}
	return out
}

// Clone returns a deep copy.
func (s Selections) Clone() Selections {
	out := make(Selections, len(s))
	for k, v := range s {
		out[k] = slices.Clone(v)
	}
	return out
}

// Toggle flips membership of option in the key's selected list. Toggling the
// same pair twice yields an equal Selections.
func (s Selections) Toggle(key, option string) Selections {
	out := s.Clone()
	current := out[key]
	if i := slices.Index(current, option); i >= 0 {
		current = slices.Delete(current, i, i+1)
	} else {
		current = append(current, option)
	}
	if len(current) == 0 {
		delete(out, key)
	} else {
		out[key] = current
	}
	return out
}

// ClearAll empties every facet.
func (s Selections) ClearAll() Selections {
	return Selections{}
}

// Selected returns a copy of the values selected for key, never nil.
func (s Selections) Selected(key string) []string {
	if v := s[key]; len(v) > 0 {
		return slices.Clone(v)
	}
	return []string{}
}

// IsEmpty reports whether nothing is selected.
func (s Selections) IsEmpty() bool {
	for _, v := range s {
		if len(v) > 0 {
			return false
		}
	}
	return true
}

// Equal compares two Selections ignoring value order.
func (s Selections) Equal(o Selections) bool {
	if len(s) != len(o) {
		return false
	}
	for k, v := range s {
		w, ok := o[k]
		if !ok || len(v) != len(w) {
			return false
		}
		a, b := slices.Clone(v), slices.Clone(w)
		slices.Sort(a)
		slices.Sort(b)
		if !slices.Equal(a, b) {
			return false
		}
	}
	return true
}

// ResolveFacetKey maps a facet key or URL parameter to the index key used by
// mode.
func ResolveFacetKey(mode domain.Mode, keyOrParam string) (string, error) {
	def, ok := domain.LookupFacet(mode, keyOrParam)
	if !ok {
		return "", fmt.Errorf("%w: %q for %s", domain.ErrInvalidFacet, keyOrParam, mode)
	}
	return def.Key, nil
}

// SelectionsFromParams seeds Selections from the facet URL parameters of
// mode. Parameters may repeat or carry comma-separated values.
func SelectionsFromParams(mode domain.Mode, params url.Values) Selections {
	raw := make(map[string][]string)
	for _, def := range domain.FacetsFor(mode) {
		for _, v := range params[def.Param] {
			raw[def.Key] = append(raw[def.Key], strings.Split(v, ",")...)
		}
	}
	return NewSelections(raw)
}

// DeriveIndexFilters builds the engine filter for mode: one OR-group per
// facet with a selection, in facet display order. Keys that do not belong to
// mode are ignored.
func DeriveIndexFilters(mode domain.Mode, s Selections) engine.Filter {
	var f engine.Filter
	for _, def := range domain.FacetsFor(mode) {
		values := s[def.Key]
		if len(values) == 0 {
			continue
		}
		f.Groups = append(f.Groups, engine.FilterGroup{
			Field:  def.Key,
			Values: slices.Clone(values),
		})
	}
	return f
}

// DeriveFacetGroups builds the UI facet groups for mode from the engine's
// distribution for the current result set. Options are ordered by count
// descending, then name case-insensitively, then id. A facet with no
// distribution keeps its selection and has no options. Supplier source
// options are named by their resolved titles.
func DeriveFacetGroups(mode domain.Mode, s Selections, dist domain.FacetDistribution, titles domain.SourceTitleMap) []domain.FacetGroup {
	defs := domain.FacetsFor(mode)
	groups := make([]domain.FacetGroup, 0, len(defs))
	for _, def := range defs {
		values := dist[def.Key]
		options := make([]domain.FacetOption, 0, len(values))
		for value, count := range values {
			name := value
			if mode == domain.ModeSuppliers && def.Key == domain.FieldSourceID {
				name = titles.Title(value)
			}
			options = append(options, domain.FacetOption{ID: value, Name: name, Count: count})
		}
		sortOptions(options)
		groups = append(groups, domain.FacetGroup{
			Title:    def.Title,
			Key:      def.Key,
			Param:    def.Param,
			Options:  options,
			Selected: s.Selected(def.Key),
		})
	}
	return groups
}

func sortOptions(options []domain.FacetOption) {
	sort.Slice(options, func(i, j int) bool {
		a, b := options[i], options[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if an != bn {
			return an < bn
		}
		return a.ID < b.ID
	})
}

// facetSourceIDs lists the source ids present in the supplier source facet,
// sorted for a stable lookup.
func facetSourceIDs(dist domain.FacetDistribution) []string {
	values := dist[domain.FieldSourceID]
	ids := make([]string, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
