package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Validator is implemented by configs that check their own invariants after
// parsing.
type Validator interface {
	Validate() error
}

// Load parses environment variables into cfg, which must be a pointer to a
// struct with `env` tags, then validates it when cfg implements Validator.
// Errors are prefixed with "load <name> config".
//
//	type Config struct {
//	    Port int `env:"SEARCH_HTTP_PORT" envDefault:"8010"`
//	}
func Load(name string, cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("load %s config: %w", name, err)
	}
	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("load %s config: %w", name, err)
		}
	}
	return nil
}
