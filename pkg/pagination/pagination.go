package pagination

import (
	"net/http"
	"strconv"
)

const (
	// DefaultLimit is the page size used when the request names none.
	DefaultLimit = 20
	// MaxLimit is the largest page size a request may ask for.
	MaxLimit = 50
)

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page   int `json:"page"`
	Limit  int `json:"limit"`
	Offset int `json:"-"`
}

// DefaultParams returns sensible pagination defaults.
func DefaultParams() Params {
	return Params{
		Page:   1,
		Limit:  DefaultLimit,
		Offset: 0,
	}
}

// New builds Params from a page number and page size. Non-positive values
// fall back to the defaults; limit is clamped to MaxLimit.
func New(page, limit int) Params {
	p := DefaultParams()
	if page > 0 {
		p.Page = page
	}
	if limit > 0 {
		p.Limit = min(limit, MaxLimit)
	}
	p.Offset = (p.Page - 1) * p.Limit
	return p
}

// FromRequest extracts the page and limit query parameters from an HTTP
// request. Unparseable values are ignored.
func FromRequest(r *http.Request) Params {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return New(page, limit)
}

// TotalPages returns the number of pages needed to show total items.
func (p Params) TotalPages(total int64) int {
	if p.Limit <= 0 || total <= 0 {
		return 0
	}
	pages := total / int64(p.Limit)
	if total%int64(p.Limit) > 0 {
		pages++
	}
	return int(pages)
}
