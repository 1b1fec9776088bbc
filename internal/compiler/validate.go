package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/docq/internal/index"
	"github.com/roach88/docq/internal/model"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedType = "E100" // unsupported value for validation

	// Model errors (E101-E109)
	ErrModelTableEmpty     = "E101" // table is required
	ErrModelNoFields       = "E102" // at least one field required
	ErrDuplicateName       = "E103" // duplicate field or index name
	ErrInvalidIdentifier   = "E104" // table or field name unusable in SQL
	ErrUnknownIndexPolicy  = "E105" // index policy not registered
	ErrNoSecondaryIndex    = "E106" // policy configured without indexed fields
	ErrInvalidPolicyConfig = "E107" // composite/exclude refers to a non-indexed field

	// Cross-model errors (E110-E119)
	ErrDuplicateTable = "E110" // two models share a table
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks compiled models against schema rules.
// Returns all errors found (does not fail-fast).
// Accepts a model, a model pointer or a slice of model pointers.
func Validate(v any) []ValidationError {
	switch x := v.(type) {
	case *model.Model:
		return validateModel(x)
	case model.Model:
		return validateModel(&x)
	case []*model.Model:
		return validateModels(x)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type: %T", v),
			Code:    ErrUnsupportedType,
		}}
	}
}

func validateModels(models []*model.Model) []ValidationError {
	var errs []ValidationError
	tables := make(map[string]string)
	names := make(map[string]bool)
	for _, m := range models {
		for _, e := range validateModel(m) {
			e.Field = m.Name + "." + e.Field
			errs = append(errs, e)
		}

		if names[m.Name] {
			errs = append(errs, ValidationError{
				Field:   m.Name,
				Message: fmt.Sprintf("duplicate model name: %q", m.Name),
				Code:    ErrDuplicateName,
			})
		}
		names[m.Name] = true

		// E110: models sharing a table would share indexes
		if other, ok := tables[m.Table]; ok && m.Table != "" {
			errs = append(errs, ValidationError{
				Field:   m.Name + ".table",
				Message: fmt.Sprintf("table %q already used by model %s", m.Table, other),
				Code:    ErrDuplicateTable,
			})
		} else {
			tables[m.Table] = m.Name
		}
	}
	return errs
}

// validateModel validates a single model.
func validateModel(m *model.Model) []ValidationError {
	var errs []ValidationError

	// E101: table is required
	if strings.TrimSpace(m.Table) == "" {
		errs = append(errs, ValidationError{
			Field:   "table",
			Message: "table is required and must be non-empty",
			Code:    ErrModelTableEmpty,
		})
	} else if !isValidIdentifier(m.Table) {
		errs = append(errs, ValidationError{
			Field:   "table",
			Message: fmt.Sprintf("invalid table name %q", m.Table),
			Code:    ErrInvalidIdentifier,
		})
	}

	// E102: at least one field
	if len(m.Fields) == 0 {
		errs = append(errs, ValidationError{
			Field:   "fields",
			Message: "at least one field is required",
			Code:    ErrModelNoFields,
		})
	}

	seen := make(map[string]bool)
	for i, f := range m.Fields {
		if seen[f.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("fields[%d].name", i),
				Message: fmt.Sprintf("duplicate field name: %q", f.Name),
				Code:    ErrDuplicateName,
			})
		}
		seen[f.Name] = true

		// Index names join fields with ':'; a field containing it would be ambiguous.
		if !isValidFieldName(f.Name) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("fields[%d].name", i),
				Message: fmt.Sprintf("invalid field name %q", f.Name),
				Code:    ErrInvalidIdentifier,
			})
		}
	}

	// E105: policy must exist
	if _, err := index.Lookup(m.Policy()); err != nil {
		errs = append(errs, ValidationError{
			Field:   "index_policy",
			Message: fmt.Sprintf("unknown index policy %q, must be one of %s", m.Policy(), strings.Join(index.Names(), ", ")),
			Code:    ErrUnknownIndexPolicy,
		})
	}

	// E106: an explicit policy with nothing to index
	if m.IndexPolicy != "" && len(m.IndexedFields()) == 0 {
		errs = append(errs, ValidationError{
			Field:   "index_policy",
			Message: fmt.Sprintf("policy %q configured but no field is a secondary index", m.IndexPolicy),
			Code:    ErrNoSecondaryIndex,
		})
	}

	// E107: policy settings refer to indexed fields
	composites := make(map[string]bool)
	for i, c := range m.PolicySettings.Composite {
		if c.Name == "" || len(c.Fields) == 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("index_policy_settings.composite[%d]", i),
				Message: "composite index needs a name and at least one field",
				Code:    ErrInvalidPolicyConfig,
			})
		}
		if composites[c.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("index_policy_settings.composite[%d].name", i),
				Message: fmt.Sprintf("duplicate composite index name: %q", c.Name),
				Code:    ErrDuplicateName,
			})
		}
		composites[c.Name] = true
		for _, name := range c.Fields {
			if !m.IsSecondaryIndex(name) {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("index_policy_settings.composite[%d].fields", i),
					Message: fmt.Sprintf("field %q is not a secondary index", name),
					Code:    ErrInvalidPolicyConfig,
				})
			}
		}
	}
	for i, name := range m.PolicySettings.Exclude {
		if !m.IsSecondaryIndex(name) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("index_policy_settings.exclude[%d]", i),
				Message: fmt.Sprintf("field %q is not a secondary index", name),
				Code:    ErrInvalidPolicyConfig,
			})
		}
	}

	return errs
}

// identifierPattern matches names usable as SQLite tables.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// isValidIdentifier checks if a table name has valid format.
func isValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// isValidFieldName rejects names that break index names or JSON paths.
func isValidFieldName(name string) bool {
	return name != "" && !strings.ContainsAny(name, `:."'`)
}
