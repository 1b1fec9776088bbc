// Package model describes the document models queried through docq: their
// table, fields, secondary indexes and index policy.
//
// Models are read-only once registered. The query package never imports
// model; rows are stamped with their model name and index flag here and
// carried by value from then on.
package model

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/roach88/docq/internal/query"
)

// DefaultIndexPolicy is used when a model names no policy.
const DefaultIndexPolicy = "single"

// Field is one declared top-level field of a model.
type Field struct {
	Name           string `json:"name"`
	SecondaryIndex bool   `json:"secondary_index"`
}

// CompositeIndex is an explicitly configured multi-field index.
type CompositeIndex struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}

// PolicySettings configures the index policy of a model.
type PolicySettings struct {
	// Composite lists extra indexes for the singlemore policy.
	Composite []CompositeIndex `json:"composite,omitempty"`

	// Exclude lists fields the greedyless policy never combines.
	Exclude []string `json:"exclude,omitempty"`
}

// Model is the read-only surface of a document model.
type Model struct {
	Name           string         `json:"name"`
	Table          string         `json:"table"`
	Fields         []Field        `json:"fields"`
	IndexPolicy    string         `json:"index_policy"`
	PolicySettings PolicySettings `json:"index_policy_settings"`
}

// Field returns the declared field called name.
func (m *Model) Field(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// IsSecondaryIndex reports whether name is a field marked as secondary
// index.
func (m *Model) IsSecondaryIndex(name string) bool {
	f, ok := m.Field(name)
	return ok && f.SecondaryIndex
}

// IndexedFields returns the secondary-index fields in declaration order.
func (m *Model) IndexedFields() []string {
	var out []string
	for _, f := range m.Fields {
		if f.SecondaryIndex {
			out = append(out, f.Name)
		}
	}
	return out
}

// Policy returns the configured policy name, or DefaultIndexPolicy.
func (m *Model) Policy() string {
	if m.IndexPolicy == "" {
		return DefaultIndexPolicy
	}
	return m.IndexPolicy
}

// Row returns a row reference on path. The secondary-index flag is taken
// from the field declaration of the first segment.
func (m *Model) Row(path ...string) query.Row {
	return query.NewRow(m.Name, len(path) == 1 && m.IsSecondaryIndex(path[0]), path...)
}

// Scan returns a table scan over the model's table.
func (m *Model) Scan() *query.TableScan {
	return &query.TableScan{Table: m.Table, Model: m.Name}
}

// Validate checks the model for structural errors.
func (m *Model) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("model name is required")
	}
	if m.Table == "" {
		return fmt.Errorf("model %s: table is required", m.Name)
	}
	seen := make(map[string]bool, len(m.Fields))
	for _, f := range m.Fields {
		if f.Name == "" {
			return fmt.Errorf("model %s: field with empty name", m.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("model %s: duplicate field %q", m.Name, f.Name)
		}
		seen[f.Name] = true
	}
	for _, c := range m.PolicySettings.Composite {
		if c.Name == "" || len(c.Fields) == 0 {
			return fmt.Errorf("model %s: composite index needs a name and fields", m.Name)
		}
		for _, name := range c.Fields {
			if !m.IsSecondaryIndex(name) {
				return fmt.Errorf("model %s: composite index %s uses %q which is not a secondary index", m.Name, c.Name, name)
			}
		}
	}
	for _, name := range m.PolicySettings.Exclude {
		if !m.IsSecondaryIndex(name) {
			return fmt.Errorf("model %s: excluded field %q is not a secondary index", m.Name, name)
		}
	}
	return nil
}

// Excluded reports whether name is on the policy exclusion list.
func (m *Model) Excluded(name string) bool {
	return slices.Contains(m.PolicySettings.Exclude, name)
}

// Registry is the model lookup table. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
}

// NewRegistry creates a registry holding models.
func NewRegistry(models ...*Model) (*Registry, error) {
	r := &Registry{models: make(map[string]*Model)}
	for _, m := range models {
		if err := r.Register(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates m and adds it to the registry.
func (r *Registry) Register(m *Model) error {
	if err := m.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.models[m.Name]; exists {
		return fmt.Errorf("model %s already registered", m.Name)
	}
	r.models[m.Name] = m
	return nil
}

// Lookup returns the model called name.
func (r *Registry) Lookup(name string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// Names returns the registered model names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
