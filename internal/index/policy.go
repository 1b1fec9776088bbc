// Package index implements the secondary index policies of docq.
//
// A policy turns the fields a model marks as secondary index into the list
// of indexes a backend maintains (BuildIndexList), and picks the index
// that services a query given the indexed fields it references
// (SelectSecondaryIndex). The selected index is always one of the
// indexes BuildIndexList declares for the same model.
//
// Four policies ship:
//
//	single      one index per field
//	singlemore  single plus explicitly configured composites
//	greedy      every non-empty subset of the indexed fields
//	greedyless  greedy, but excluded fields only get single indexes
package index

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/docq/internal/model"
)

// Separator joins field names into composite index names.
const Separator = ":"

// Definition is one maintained index.
type Definition struct {
	Name   string   `json:"name" yaml:"name"`
	Fields []string `json:"fields" yaml:"fields"`
}

// Policy is an index selection strategy.
type Policy interface {
	// Name returns the registry name of the policy.
	Name() string

	// BuildIndexList enumerates the indexes m maintains.
	BuildIndexList(m *model.Model) []Definition

	// SelectSecondaryIndex picks the index servicing a query on fields.
	// ordered requests an index whose scan order follows fields. residual
	// lists the fields the index does not cover, in query order. index
	// is empty when no field can be serviced.
	SelectSecondaryIndex(m *model.Model, fields []string, ordered bool) (index string, residual []string)
}

var policies = map[string]Policy{
	"single":     Single{},
	"singlemore": SingleMore{},
	"greedy":     Greedy{},
	"greedyless": GreedyLess{},
}

// Lookup returns the policy registered under name.
func Lookup(name string) (Policy, error) {
	p, ok := policies[name]
	if !ok {
		return nil, fmt.Errorf("unknown index policy %q", name)
	}
	return p, nil
}

// Names returns the registered policy names in sorted order.
func Names() []string {
	names := make([]string, 0, len(policies))
	for n := range policies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ForModel returns the policy configured on m.
func ForModel(m *model.Model) (Policy, error) {
	p, err := Lookup(m.Policy())
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", m.Name, err)
	}
	return p, nil
}

// Find returns the definition called name in defs.
func Find(defs []Definition, name string) (Definition, bool) {
	for _, d := range defs {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

// JoinName returns the index name of a field list.
func JoinName(fields []string) string {
	return strings.Join(fields, Separator)
}

// SplitName returns the fields of an index name.
func SplitName(name string) []string {
	if name == "" {
		return nil
	}
	return strings.Split(name, Separator)
}

// partition dedupes fields and separates the ones m indexes from the
// rest, keeping query order in both.
func partition(m *model.Model, fields []string) (indexed, rest []string) {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		if m.IsSecondaryIndex(f) {
			indexed = append(indexed, f)
		} else {
			rest = append(rest, f)
		}
	}
	return indexed, rest
}

// sortDefinitions orders by field count, then name.
func sortDefinitions(defs []Definition) {
	sort.SliceStable(defs, func(i, j int) bool {
		if len(defs[i].Fields) != len(defs[j].Fields) {
			return len(defs[i].Fields) < len(defs[j].Fields)
		}
		return defs[i].Name < defs[j].Name
	})
}

func singles(fields []string) []Definition {
	defs := make([]Definition, 0, len(fields))
	for _, f := range fields {
		defs = append(defs, Definition{Name: f, Fields: []string{f}})
	}
	return defs
}

func without(fields []string, drop ...string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if !slices.Contains(drop, f) {
			out = append(out, f)
		}
	}
	return out
}
