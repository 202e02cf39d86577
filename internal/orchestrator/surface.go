package orchestrator

import (
	"fmt"
	"strings"

	"github.com/utafrali/marketsearch/internal/domain"
	"github.com/utafrali/marketsearch/internal/engine"
)

// Surface describes one place a user can search from. Surfaces differ only in
// how many results they show and whether facets, sorting and paging apply.
type Surface struct {
	Name          string
	Limit         int
	ExposesFacets bool
}

// Transient reports whether the result list is a dropdown that closes once a
// result is selected.
func (s Surface) Transient() bool {
	return !s.ExposesFacets
}

var (
	// SurfaceQuick is the hero quick-search dropdown.
	SurfaceQuick = Surface{Name: "quick", Limit: 1}
	// SurfaceModal is the search modal.
	SurfaceModal = Surface{Name: "modal", Limit: 20}
	// SurfaceFull is the full search-results page.
	SurfaceFull = Surface{Name: "full", Limit: engine.MaxLimit, ExposesFacets: true}
)

// Surfaces returns every known surface.
func Surfaces() []Surface {
	return []Surface{SurfaceQuick, SurfaceModal, SurfaceFull}
}

// ParseSurface looks up a surface by name, case-insensitively.
func ParseSurface(name string) (Surface, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, s := range Surfaces() {
		if s.Name == n {
			return s, nil
		}
	}
	return Surface{}, fmt.Errorf("%w: %q", domain.ErrInvalidSurface, name)
}
