package index

import (
	"slices"
	"sort"

	"github.com/roach88/docq/internal/model"
)

// Greedy maintains an index for every non-empty subset of the
// secondary-index fields, named after its sorted fields.
type Greedy struct{}

// Name implements Policy.
func (Greedy) Name() string { return "greedy" }

// BuildIndexList implements Policy.
func (Greedy) BuildIndexList(m *model.Model) []Definition {
	defs := powerSet(m.IndexedFields())
	sortDefinitions(defs)
	return defs
}

// SelectSecondaryIndex implements Policy.
//
// Unordered queries, and ordered queries whose fields are already sorted,
// get the index over all their indexed fields. Otherwise only the longest
// prefix of the requested order that agrees with the sorted order is
// serviced, since only that prefix matches a composite scan order. An
// empty prefix falls back to the single index of the first field.
func (Greedy) SelectSecondaryIndex(m *model.Model, fields []string, ordered bool) (string, []string) {
	indexed, _ := partition(m, fields)
	if len(indexed) == 0 {
		return "", residualOf(fields, nil)
	}
	covered := greedyCover(indexed, ordered)
	return JoinName(covered), residualOf(fields, covered)
}

func greedyCover(indexed []string, ordered bool) []string {
	sorted := slices.Clone(indexed)
	sort.Strings(sorted)
	if !ordered || slices.Equal(indexed, sorted) {
		return sorted
	}
	k := 0
	for k < len(indexed) && indexed[k] == sorted[k] {
		k++
	}
	if k == 0 {
		k = 1
	}
	return indexed[:k]
}

// powerSet returns one definition per non-empty subset of fields. Subset
// fields are sorted; duplicate field names collapse.
func powerSet(fields []string) []Definition {
	sorted := slices.Clone(fields)
	sort.Strings(sorted)
	sorted = slices.Compact(sorted)

	n := len(sorted)
	defs := make([]Definition, 0, (1<<n)-1)
	for mask := 1; mask < 1<<n; mask++ {
		subset := make([]string, 0, n)
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				subset = append(subset, sorted[i])
			}
		}
		defs = append(defs, Definition{Name: JoinName(subset), Fields: subset})
	}
	return defs
}

// GreedyLess is Greedy except that fields on the model's exclusion list
// are never combined with other fields.
type GreedyLess struct{}

// Name implements Policy.
func (GreedyLess) Name() string { return "greedyless" }

// BuildIndexList implements Policy.
func (GreedyLess) BuildIndexList(m *model.Model) []Definition {
	indexed := m.IndexedFields()
	var excluded []string
	for _, f := range indexed {
		if m.Excluded(f) {
			excluded = append(excluded, f)
		}
	}
	defs := append(powerSet(without(indexed, excluded...)), singles(excluded)...)
	sortDefinitions(defs)
	return defs
}

// SelectSecondaryIndex implements Policy.
//
// The first excluded field of the query is serviced by its single index
// and every other field is residual, in requested order.
func (GreedyLess) SelectSecondaryIndex(m *model.Model, fields []string, ordered bool) (string, []string) {
	indexed, _ := partition(m, fields)
	if len(indexed) == 0 {
		return "", residualOf(fields, nil)
	}
	i := slices.IndexFunc(indexed, m.Excluded)
	if i >= 0 {
		return indexed[i], residualOf(fields, indexed[i:i+1])
	}
	covered := greedyCover(indexed, ordered)
	return JoinName(covered), residualOf(fields, covered)
}
