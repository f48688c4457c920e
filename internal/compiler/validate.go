package compiler

import (
	"fmt"
	"strings"

	"github.com/unisonui/unison/internal/binding"
	"github.com/unisonui/unison/internal/catalog"
)

// Validation error codes (E100-E199)
const (
	// Binding errors (E101-E109)
	ErrMalformedBindingKey = "E101" // key is not componentId.propertyName
	ErrDuplicateBindingKey = "E102" // binding declared twice
	ErrClassRequiresName   = "E103" // class kind without class name
	ErrInvalidBoolAttr     = "E104" // attr outside checked/selected/disabled
	ErrNoBindings          = "E105" // manifest has no bindings

	// Configuration errors (E110-E119)
	ErrNoConfigurations       = "E110" // manifest has no configurations
	ErrDuplicateConfiguration = "E111" // configuration name declared twice
	ErrEmptyConfiguration     = "E112" // configuration with no values
	ErrUnknownBindingKey      = "E113" // configuration references undeclared key
	ErrUnnamedConfiguration   = "E114" // configuration with a blank name

	// Transition errors (E120-E129)
	ErrUnknownEndpoint = "E120" // edge endpoint not a declared configuration
	ErrInvalidGuard    = "E121" // guard expression does not compile
)

// ValidationError represents a manifest validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled manifest against cross-reference rules.
// Returns all errors found (does not fail-fast), so a declaration author
// sees every problem in one pass.
func Validate(m *Manifest) []ValidationError {
	var errs []ValidationError

	declared := make(map[string]bool)

	if len(m.Bindings) == 0 {
		errs = append(errs, ValidationError{
			Field:   "bindings",
			Message: "at least one binding is required",
			Code:    ErrNoBindings,
		})
	}

	for _, d := range m.Bindings {
		field := fmt.Sprintf("bindings.%s", d.Key)

		if _, _, err := binding.ParseKey(d.Key); err != nil {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "key must have the form componentId.propertyName",
				Code:    ErrMalformedBindingKey,
			})
		}
		if declared[d.Key] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("binding %q declared more than once", d.Key),
				Code:    ErrDuplicateBindingKey,
			})
		}
		declared[d.Key] = true

		switch d.Kind {
		case binding.KindClass:
			if d.Class == "" {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: "class kind requires a class name",
					Code:    ErrClassRequiresName,
				})
			}
		case binding.KindBoolAttr:
			if d.Attr != "checked" && d.Attr != "selected" && d.Attr != "disabled" {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("attr must be checked, selected or disabled, got %q", d.Attr),
					Code:    ErrInvalidBoolAttr,
				})
			}
		}
	}

	if len(m.Configurations) == 0 {
		errs = append(errs, ValidationError{
			Field:   "configurations",
			Message: "at least one configuration is required",
			Code:    ErrNoConfigurations,
		})
	}

	names := make(map[string]bool)
	for _, cfg := range m.Configurations {
		field := fmt.Sprintf("configurations.%s", cfg.Name)

		if strings.TrimSpace(cfg.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   "configurations",
				Message: "configuration name must be non-empty",
				Code:    ErrUnnamedConfiguration,
			})
			continue
		}
		if names[cfg.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("configuration %q declared more than once", cfg.Name),
				Code:    ErrDuplicateConfiguration,
			})
		}
		names[cfg.Name] = true

		if len(cfg.Values) == 0 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "configuration must constrain at least one key",
				Code:    ErrEmptyConfiguration,
			})
		}

		for key := range cfg.Values {
			if !declared[key] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.values.%s", field, key),
					Message: fmt.Sprintf("key %q is not a declared binding", key),
					Code:    ErrUnknownBindingKey,
				})
			}
		}
	}

	for i, tr := range m.Transitions {
		field := fmt.Sprintf("transitions[%d]", i)

		if !names[tr.From] {
			errs = append(errs, ValidationError{
				Field:   field + ".from",
				Message: fmt.Sprintf("configuration %q not defined", tr.From),
				Code:    ErrUnknownEndpoint,
			})
		}
		if !names[tr.To] {
			errs = append(errs, ValidationError{
				Field:   field + ".to",
				Message: fmt.Sprintf("configuration %q not defined", tr.To),
				Code:    ErrUnknownEndpoint,
			})
		}
		if tr.When != "" {
			if _, err := catalog.CompileGuard(tr.When); err != nil {
				errs = append(errs, ValidationError{
					Field:   field + ".when",
					Message: err.Error(),
					Code:    ErrInvalidGuard,
				})
			}
		}
	}

	return errs
}
