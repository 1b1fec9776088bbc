package index

import (
	"slices"

	"github.com/roach88/docq/internal/model"
)

// Single maintains one index per secondary-index field and services a
// query with the index of its first indexed field.
type Single struct{}

// Name implements Policy.
func (Single) Name() string { return "single" }

// BuildIndexList implements Policy.
func (Single) BuildIndexList(m *model.Model) []Definition {
	return singles(m.IndexedFields())
}

// SelectSecondaryIndex implements Policy.
func (Single) SelectSecondaryIndex(m *model.Model, fields []string, _ bool) (string, []string) {
	indexed, _ := partition(m, fields)
	if len(indexed) == 0 {
		return "", residualOf(fields, nil)
	}
	return indexed[0], residualOf(fields, indexed[:1])
}

// SingleMore is Single plus the composite indexes configured in the
// model's policy settings.
type SingleMore struct{}

// Name implements Policy.
func (SingleMore) Name() string { return "singlemore" }

// BuildIndexList implements Policy.
func (SingleMore) BuildIndexList(m *model.Model) []Definition {
	defs := singles(m.IndexedFields())
	for _, c := range m.PolicySettings.Composite {
		if _, exists := Find(defs, c.Name); exists {
			continue
		}
		defs = append(defs, Definition{Name: c.Name, Fields: slices.Clone(c.Fields)})
	}
	return defs
}

// SelectSecondaryIndex implements Policy. The first configured composite
// whose fields all appear in the query wins; with ordered set, its fields
// must also be the leading fields of the query in the same order.
func (SingleMore) SelectSecondaryIndex(m *model.Model, fields []string, ordered bool) (string, []string) {
	indexed, _ := partition(m, fields)
	for _, c := range m.PolicySettings.Composite {
		if !covers(indexed, c.Fields) {
			continue
		}
		if ordered && (len(c.Fields) > len(indexed) || !slices.Equal(indexed[:len(c.Fields)], c.Fields)) {
			continue
		}
		return c.Name, residualOf(fields, c.Fields)
	}
	return Single{}.SelectSecondaryIndex(m, fields, ordered)
}

// covers reports whether every field of want appears in have.
func covers(have, want []string) bool {
	for _, f := range want {
		if !slices.Contains(have, f) {
			return false
		}
	}
	return true
}

// residualOf lists the distinct fields not covered, in query order.
func residualOf(fields, covered []string) []string {
	var out []string
	for _, f := range fields {
		if slices.Contains(covered, f) || slices.Contains(out, f) {
			continue
		}
		out = append(out, f)
	}
	return out
}
