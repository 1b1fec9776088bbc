package memstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/roach88/docq/internal/ir"
	"github.com/roach88/docq/internal/parser"
	"github.com/roach88/docq/internal/query"
)

var _ parser.Executor[*Plan] = (*Store)(nil)

// Execute runs q. Pre-processing hooks run first and abort on error;
// post-processing hooks rewrite the fetched documents in order. With
// withoutFetch set only the pre-processing hooks run.
//
// Returned documents are shared with the store and must not be modified.
func (s *Store) Execute(ctx context.Context, q *Plan, withoutFetch bool) ([]ir.IRObject, error) {
	for _, hook := range q.Pre {
		if err := hook(ctx); err != nil {
			return nil, fmt.Errorf("pre-processing hook: %w", err)
		}
	}
	if withoutFetch {
		return nil, nil
	}

	rows, err := s.run(ctx, q)
	if err != nil {
		return nil, err
	}
	docs := make([]ir.IRObject, len(rows))
	for i, r := range rows {
		docs[i] = r.doc
	}
	slog.Debug("plan executed", "plan", q.String(), "documents", len(docs))

	for _, hook := range q.Post {
		if docs, err = hook(docs); err != nil {
			return nil, fmt.Errorf("post-processing hook: %w", err)
		}
	}
	return docs, nil
}

type row struct {
	id  uint32
	doc ir.IRObject
}

func (s *Store) selectIDs(ctx context.Context, q *Plan) (*roaring.Bitmap, error) {
	rows, err := s.run(ctx, q)
	if err != nil {
		return nil, err
	}
	ids := roaring.New()
	for _, r := range rows {
		ids.Add(r.id)
	}
	return ids, nil
}

// run selects the candidate documents of q in id order, filters them and
// folds the directives.
func (s *Store) run(ctx context.Context, q *Plan) ([]row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.tableLocked(q.Model)
	if err != nil {
		return nil, err
	}
	if q.Empty {
		return []row{}, nil
	}

	candidates := t.all
	if q.Index != nil {
		p, ok := t.indexes[q.Index.Name]
		if !ok {
			return nil, fmt.Errorf("model %s: index %s not maintained", q.Model, q.Index.Name)
		}
		if candidates, err = p.lookup(q.IndexStmts); err != nil {
			return nil, err
		}
	}

	rows := []row{}
	it := candidates.Iterator()
	for it.HasNext() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := it.Next()
		doc := t.docs[id]
		ok, err := matchAll(q.Filters, doc)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, row{id: id, doc: doc})
		}
	}

	for _, d := range q.Directives {
		rows = fold(rows, d)
	}
	return rows, nil
}

func matchAll(stmts []*query.Binary, doc ir.IRObject) (bool, error) {
	for _, s := range stmts {
		ok, err := s.Evaluate(doc)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// fold applies one directive to rows in id order.
func fold(rows []row, d query.Directive) []row {
	switch d.Kind {
	case query.DirectiveLimit:
		if d.Count < len(rows) {
			return rows[:d.Count]
		}
	case query.DirectiveSkip:
		if d.Count >= len(rows) {
			return []row{}
		}
		return rows[d.Count:]
	case query.DirectiveOrderBy:
		sorted := append([]row(nil), rows...)
		sort.SliceStable(sorted, func(i, j int) bool {
			for _, o := range d.Orders {
				a, _ := o.Row.Resolve(sorted[i].doc)
				b, _ := o.Row.Resolve(sorted[j].doc)
				c := compareValues(a, b)
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
		return sorted
	}
	return rows
}

// compareValues orders values the way SQLite orders json_extract
// results: missing and null first, then numbers, then text, then nested
// values.
func compareValues(a, b ir.IRValue) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	if c, ok := ir.Compare(a, b); ok {
		return c
	}
	return strings.Compare(ir.ValueKey(a), ir.ValueKey(b))
}

func rank(v ir.IRValue) int {
	switch v.(type) {
	case nil, ir.IRNull:
		return 0
	case ir.IRBool, ir.IRInt, ir.IRFloat:
		return 1
	case ir.IRString:
		return 2
	default:
		return 3
	}
}

// reduce computes one aggregate over docs. Missing and null values are
// ignored by every function except count(*).
func reduce(fn query.AggregateFunc, target *query.Row, docs []ir.IRObject) ir.IRValue {
	if fn == query.AggCount && target == nil {
		return ir.IRInt(len(docs))
	}
	var values []ir.IRValue
	for _, d := range docs {
		v, ok := target.Resolve(d)
		if ok {
			if _, null := v.(ir.IRNull); !null {
				values = append(values, v)
			}
		}
	}

	switch fn {
	case query.AggCount:
		return ir.IRInt(len(values))
	case query.AggSum, query.AggAvg:
		var isum int64
		var fsum float64
		n, floats := 0, false
		for _, v := range values {
			switch x := v.(type) {
			case ir.IRInt:
				isum += int64(x)
				fsum += float64(x)
				n++
			case ir.IRFloat:
				fsum += float64(x)
				floats = true
				n++
			}
		}
		if n == 0 {
			return ir.IRNull{}
		}
		if fn == query.AggAvg {
			return ir.IRFloat(fsum / float64(n))
		}
		if floats {
			return ir.IRFloat(fsum)
		}
		return ir.IRInt(isum)
	case query.AggMin, query.AggMax:
		var best ir.IRValue
		for _, v := range values {
			if best == nil {
				best = v
				continue
			}
			c := compareValues(v, best)
			if (fn == query.AggMin && c < 0) || (fn == query.AggMax && c > 0) {
				best = v
			}
		}
		if best == nil {
			return ir.IRNull{}
		}
		return best
	default:
		return ir.IRNull{}
	}
}

// groupReduce aggregates per distinct group tuple, ordered by tuple.
// Missing group values group as null.
func groupReduce(op *query.GroupAggregate, docs []ir.IRObject) []ir.IRObject {
	type group struct {
		tuple ir.IRArray
		docs  []ir.IRObject
	}
	groups := make(map[string]*group)
	var order []*group
	for _, d := range docs {
		tuple := make(ir.IRArray, len(op.GroupBy))
		for i, r := range op.GroupBy {
			v, ok := r.Resolve(d)
			if !ok {
				v = ir.IRNull{}
			}
			tuple[i] = v
		}
		key := ir.ValueKey(tuple)
		g, ok := groups[key]
		if !ok {
			g = &group{tuple: tuple}
			groups[key] = g
			order = append(order, g)
		}
		g.docs = append(g.docs, d)
	}

	sort.SliceStable(order, func(i, j int) bool {
		for k := range order[i].tuple {
			if c := compareValues(order[i].tuple[k], order[j].tuple[k]); c != 0 {
				return c < 0
			}
		}
		return false
	})

	out := make([]ir.IRObject, 0, len(order))
	for _, g := range order {
		obj := make(ir.IRObject, len(op.GroupBy)+1)
		for i, r := range op.GroupBy {
			obj[r.Name()] = g.tuple[i]
		}
		obj["value"] = reduce(op.Func, op.Row, g.docs)
		out = append(out, obj)
	}
	return out
}

func target(r *query.Row) string {
	if r == nil {
		return "*"
	}
	return r.Name()
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
