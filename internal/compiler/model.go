package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/docq/internal/model"
)

// CompileModel parses a CUE value into a model.Model.
// The CUE value should be the model struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`model: User: { table: "users", fields: { name: secondary_index: true } }`)
//	m, err := CompileModel(v.LookupPath(cue.ParsePath("model.User")))
//
// Fields keep their declaration order.
func CompileModel(v cue.Value) (*model.Model, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	m := &model.Model{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		m.Name = labels[len(labels)-1].String()
	}

	// table defaults to the model name
	m.Table = m.Name
	if tableVal := v.LookupPath(cue.ParsePath("table")); tableVal.Exists() {
		table, err := tableVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		m.Table = table
	}

	if policyVal := v.LookupPath(cue.ParsePath("index_policy")); policyVal.Exists() {
		policy, err := policyVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		m.IndexPolicy = policy
	}

	var err error
	m.Fields, err = parseFields(v)
	if err != nil {
		return nil, err
	}
	if len(m.Fields) == 0 {
		return nil, &CompileError{
			Field:   "fields",
			Message: "at least one field is required",
			Pos:     v.Pos(),
		}
	}

	settingsVal := v.LookupPath(cue.ParsePath("index_policy_settings"))
	if settingsVal.Exists() {
		m.PolicySettings, err = parseSettings(settingsVal)
		if err != nil {
			return nil, err
		}
	}

	return m, nil
}

// parseFields extracts the field declarations. A field is a bool (its
// secondary_index flag), a struct with an optional secondary_index
// member, or a bare CUE type.
func parseFields(v cue.Value) ([]model.Field, error) {
	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, nil
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var fields []model.Field
	for iter.Next() {
		field := model.Field{Name: iter.Label()}
		fv := iter.Value()

		switch {
		case fv.IncompleteKind() == cue.StructKind:
			flagVal := fv.LookupPath(cue.ParsePath("secondary_index"))
			if flagVal.Exists() {
				flag, err := flagVal.Bool()
				if err != nil {
					return nil, formatCUEError(err)
				}
				field.SecondaryIndex = flag
			}
		case fv.IsConcrete() && fv.Kind() == cue.BoolKind:
			flag, err := fv.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
			field.SecondaryIndex = flag
		case fv.IsConcrete():
			return nil, &CompileError{
				Field:   "fields." + field.Name,
				Message: fmt.Sprintf("must be a bool, a struct or a type, got %v", fv.Kind()),
				Pos:     fv.Pos(),
			}
		default:
			// type declarations such as `string` mark plain fields
		}

		fields = append(fields, field)
	}

	return fields, nil
}

// parseSettings extracts index_policy_settings: composite indexes and
// the exclusion list.
func parseSettings(v cue.Value) (model.PolicySettings, error) {
	var settings model.PolicySettings

	compositeVal := v.LookupPath(cue.ParsePath("composite"))
	if compositeVal.Exists() {
		iter, err := compositeVal.List()
		if err != nil {
			return settings, formatCUEError(err)
		}
		for iter.Next() {
			item := iter.Value()
			name, err := item.LookupPath(cue.ParsePath("name")).String()
			if err != nil {
				return settings, formatCUEError(err)
			}
			fields, err := parseStrings(item.LookupPath(cue.ParsePath("fields")))
			if err != nil {
				return settings, err
			}
			settings.Composite = append(settings.Composite, model.CompositeIndex{Name: name, Fields: fields})
		}
	}

	excludeVal := v.LookupPath(cue.ParsePath("exclude"))
	if excludeVal.Exists() {
		exclude, err := parseStrings(excludeVal)
		if err != nil {
			return settings, err
		}
		settings.Exclude = exclude
	}

	return settings, nil
}

func parseStrings(v cue.Value) ([]string, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
