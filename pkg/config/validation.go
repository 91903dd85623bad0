package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the configuration for structural problems: missing required
// fields, out-of-range values, and cross-field consistency the struct tags
// cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, ve := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q validation", ve.Namespace(), ve.Tag()))
			}
			return fmt.Errorf("%s", strings.Join(msgs, "; "))
		}
		return err
	}

	if err := cfg.Catalog.Validate(); err != nil {
		return err
	}

	return validateAdapterWiring(cfg)
}

// validateAdapterWiring checks that adapter IDs are unique, that the
// canonical adapter is declared and filesystem-backed, and that every level
// references declared adapters.
func validateAdapterWiring(cfg *Config) error {
	seen := make(map[string]string, len(cfg.Adapters))
	for _, ac := range cfg.Adapters {
		if prev, dup := seen[ac.ID]; dup {
			return fmt.Errorf("adapter id %q declared twice (types %q and %q)", ac.ID, prev, ac.Type)
		}
		seen[ac.ID] = ac.Type
	}

	canonicalType, ok := seen[cfg.CanonicalAdapter]
	if !ok {
		return fmt.Errorf("canonical_adapter %q is not declared in adapters", cfg.CanonicalAdapter)
	}
	if canonicalType != "local" && canonicalType != "memory" {
		return fmt.Errorf("canonical_adapter %q must be filesystem-backed, got type %q",
			cfg.CanonicalAdapter, canonicalType)
	}

	for _, level := range cfg.Levels {
		for _, ref := range level.Adapters {
			declaredType, ok := seen[ref.ID]
			if !ok {
				// Adapter may still resolve from a per-adapter file at
				// runtime; only a type clash is fatal here.
				continue
			}
			if declaredType != ref.Type {
				return fmt.Errorf("level %q references adapter %q as type %q, but it is declared as %q",
					level.Name, ref.ID, ref.Type, declaredType)
			}
		}
	}
	return nil
}
