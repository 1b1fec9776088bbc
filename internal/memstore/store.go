package memstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/docq/internal/index"
	"github.com/roach88/docq/internal/ir"
	"github.com/roach88/docq/internal/model"
	"github.com/roach88/docq/internal/query"
)

// Store holds the documents and posting lists of every ensured model.
// It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table // model name -> table
}

type table struct {
	model   *model.Model
	docs    map[uint32]ir.IRObject
	all     *roaring.Bitmap
	nextID  uint32
	indexes map[string]*postings // index name -> postings
}

// postings maps the canonical key of an index tuple to its documents.
type postings struct {
	def     index.Definition
	entries map[string]*entry
}

type entry struct {
	tuple ir.IRObject // index fields present in the documents
	ids   *roaring.Bitmap
}

// New creates an empty store.
func New() *Store {
	return &Store{tables: make(map[string]*table)}
}

// Ensure registers m and (re)builds its posting lists, one per index of
// its policy. Existing documents are kept. Posting lists are built in
// parallel.
func (s *Store) Ensure(ctx context.Context, m *model.Model) error {
	if err := m.Validate(); err != nil {
		return err
	}
	policy, err := index.ForModel(m)
	if err != nil {
		return err
	}
	defs := policy.BuildIndexList(m)

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[m.Name]
	if !ok {
		t = &table{docs: make(map[uint32]ir.IRObject), all: roaring.New(), nextID: 1}
		s.tables[m.Name] = t
	}
	t.model = m

	built := make([]*postings, len(defs))
	g, ctx := errgroup.WithContext(ctx)
	for i, def := range defs {
		g.Go(func() error {
			p := &postings{def: def, entries: make(map[string]*entry)}
			it := t.all.Iterator()
			for it.HasNext() {
				if err := ctx.Err(); err != nil {
					return err
				}
				id := it.Next()
				p.add(id, t.docs[id])
			}
			built[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("ensure %s: %w", m.Name, err)
	}

	t.indexes = make(map[string]*postings, len(built))
	for _, p := range built {
		t.indexes[p.def.Name] = p
	}
	slog.Debug("model ensured", "model", m.Name, "policy", policy.Name(), "indexes", len(defs), "documents", t.all.GetCardinality())
	return nil
}

// Insert stores docs under m and returns their ids in order. Documents
// are normalized through canonical JSON, so later changes to docs do not
// affect the store.
func (s *Store) Insert(_ context.Context, m *model.Model, docs ...ir.IRObject) ([]uint32, error) {
	normalized := make([]ir.IRObject, len(docs))
	for i, doc := range docs {
		n, err := normalize(doc)
		if err != nil {
			return nil, fmt.Errorf("insert %s: document %d: %w", m.Name, i, err)
		}
		normalized[i] = n
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.tableLocked(m.Name)
	if err != nil {
		return nil, err
	}
	ids := make([]uint32, len(normalized))
	for i, doc := range normalized {
		id := t.nextID
		t.nextID++
		t.docs[id] = doc
		t.all.Add(id)
		for _, p := range t.indexes {
			p.add(id, doc)
		}
		ids[i] = id
	}
	return ids, nil
}

// Len returns the number of documents stored for the model.
func (s *Store) Len(modelName string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[modelName]
	if !ok {
		return 0
	}
	return int(t.all.GetCardinality())
}

// Postings returns the number of distinct tuples held by an index.
func (s *Store) Postings(modelName, indexName string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[modelName]
	if !ok {
		return 0
	}
	p, ok := t.indexes[indexName]
	if !ok {
		return 0
	}
	return len(p.entries)
}

// tableLocked returns the table of a model. Caller must hold s.mu.
func (s *Store) tableLocked(name string) (*table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("model %s: not ensured", name)
	}
	return t, nil
}

// update merges set into every document of ids and refreshes their
// postings.
func (s *Store) update(modelName string, ids *roaring.Bitmap, set map[string]ir.IRValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.tableLocked(modelName)
	if err != nil {
		return err
	}
	it := ids.Iterator()
	for it.HasNext() {
		id := it.Next()
		old, ok := t.docs[id]
		if !ok {
			continue
		}
		doc := make(ir.IRObject, len(old)+len(set))
		for k, v := range old {
			doc[k] = v
		}
		for k, v := range set {
			doc[k] = v
		}
		doc, err = normalize(doc)
		if err != nil {
			return fmt.Errorf("update %s: document %d: %w", modelName, id, err)
		}
		for _, p := range t.indexes {
			p.remove(id, old)
			p.add(id, doc)
		}
		t.docs[id] = doc
	}
	return nil
}

func (p *postings) tuple(doc ir.IRObject) (ir.IRObject, string) {
	tuple := make(ir.IRObject, len(p.def.Fields))
	for _, f := range p.def.Fields {
		if v, ok := doc[f]; ok {
			tuple[f] = v
		}
	}
	return tuple, ir.ValueKey(tuple)
}

func (p *postings) add(id uint32, doc ir.IRObject) {
	tuple, key := p.tuple(doc)
	e, ok := p.entries[key]
	if !ok {
		e = &entry{tuple: tuple, ids: roaring.New()}
		p.entries[key] = e
	}
	e.ids.Add(id)
}

func (p *postings) remove(id uint32, doc ir.IRObject) {
	_, key := p.tuple(doc)
	e, ok := p.entries[key]
	if !ok {
		return
	}
	e.ids.Remove(id)
	if e.ids.IsEmpty() {
		delete(p.entries, key)
	}
}

// lookup ORs the documents of every tuple satisfying all stmts.
func (p *postings) lookup(stmts []*query.Binary) (*roaring.Bitmap, error) {
	out := roaring.New()
	for _, e := range p.entries {
		ok := true
		for _, s := range stmts {
			match, err := s.Evaluate(e.tuple)
			if err != nil {
				return nil, err
			}
			if !match {
				ok = false
				break
			}
		}
		if ok {
			out.Or(e.ids)
		}
	}
	return out, nil
}

func normalize(doc ir.IRObject) (ir.IRObject, error) {
	data, err := ir.MarshalCanonical(doc)
	if err != nil {
		return nil, err
	}
	v, err := ir.UnmarshalIRValue(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("expected object, got %s", ir.Kind(v))
	}
	return obj, nil
}
