package config

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// newValidator returns a validator with the custom tags used by the config structs.
func newValidator() *validator.Validate {
	validate := validator.New()

	_ = validate.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "", "debug", "info", "warn", "error", "fatal", "panic":
			return true
		default:
			return false
		}
	})

	_ = validate.RegisterValidation("logformat", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "", "console", "text", "json":
			return true
		default:
			return false
		}
	})

	_ = validate.RegisterValidation("resourcekind", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "page", "pdf", "local_file":
			return true
		default:
			return false
		}
	})

	_ = validate.RegisterValidation("strategykind", func(fl validator.FieldLevel) bool {
		return slices.Contains(ValidStrategyKinds, fl.Field().String())
	})

	_ = validate.RegisterValidation("pricebasis", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "", DefaultPriceBasisTTC, DefaultPriceBasisHT:
			return true
		default:
			return false
		}
	})

	_ = validate.RegisterValidation("regexp", func(fl validator.FieldLevel) bool {
		_, err := regexp.Compile(fl.Field().String())
		return err == nil
	})

	return validate
}

// ValidateConfig performs validation on the GlobalConfig structure.
func ValidateConfig(cfg *GlobalConfig) error {
	if cfg == nil {
		return errors.New("configuration is nil")
	}

	err := newValidator().Struct(cfg)
	if err == nil {
		return validateProviderResources(cfg.Providers)
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return fmt.Errorf("configuration validation error: %w", err)
	}

	lines := make([]string, 0, len(errs))
	for _, e := range errs {
		line := fmt.Sprintf("%s: fails %q", strings.TrimPrefix(e.Namespace(), "GlobalConfig."), e.Tag())
		if e.Param() != "" {
			line += " " + e.Param()
		}
		if v := e.Value(); v != nil && v != "" {
			line += fmt.Sprintf(" (got %v)", v)
		}
		lines = append(lines, line)
	}
	return fmt.Errorf("configuration validation failed:\n  %s", strings.Join(lines, "\n  "))
}

// validateProviderResources checks the cross-field rules struct tags cannot express.
func validateProviderResources(providers []ProviderConfig) error {
	seen := make(map[string]struct{}, len(providers))
	for _, p := range providers {
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("configuration validation failed: duplicate provider '%s'", p.Name)
		}
		seen[p.Name] = struct{}{}

		for i, r := range p.Resources {
			if r.Location() == "" {
				return fmt.Errorf("configuration validation failed: provider '%s' resource %d has no url, page_url or path", p.Name, i)
			}
			if r.Kind == "local_file" && r.Path == "" {
				return fmt.Errorf("configuration validation failed: provider '%s' resource %d of kind local_file needs a path", p.Name, i)
			}
		}
	}
	return nil
}
