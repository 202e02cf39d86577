package domain

import (
	"fmt"
	"strings"
)

// Mode selects which entity index is searched, which facet set applies and
// which normalization rules run.
type Mode string

const (
	ModeProducts  Mode = "products"
	ModeSuppliers Mode = "suppliers"
)

// DefaultMode is used whenever no valid stored preference exists.
const DefaultMode = ModeProducts

// ValidModes returns the list of supported search modes.
func ValidModes() []Mode {
	return []Mode{ModeProducts, ModeSuppliers}
}

// IsValid reports whether m is a supported mode.
func (m Mode) IsValid() bool {
	return m == ModeProducts || m == ModeSuppliers
}

func (m Mode) String() string {
	return string(m)
}

// ParseMode converts a user supplied value into a Mode. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
	return m, nil
}
