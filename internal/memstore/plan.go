package memstore

import (
	"fmt"
	"strings"

	"github.com/roach88/docq/internal/index"
	"github.com/roach88/docq/internal/parser"
	"github.com/roach88/docq/internal/query"
)

// Plan is the in-memory backend query: an optional index lookup, the
// statements evaluated per candidate document, and the sampling
// directives in declaration order.
type Plan struct {
	Model      string
	Empty      bool
	Index      *index.Definition
	IndexStmts []*query.Binary
	Filters    []*query.Binary
	Directives query.Sampling

	Pre  []parser.PreHook
	Post []parser.PostHook

	steps []string // post-processing steps, for String
}

// String renders the plan as a pipeline.
func (p *Plan) String() string {
	if p.Empty {
		return "empty(" + p.Model + ")"
	}
	parts := []string{"scan(" + p.Model + ")"}
	if p.Index != nil {
		parts = []string{fmt.Sprintf("index(%s) [%s]", p.Index.Name, joinStmts(p.IndexStmts))}
	}
	if len(p.Filters) > 0 {
		parts = append(parts, "filter ["+joinStmts(p.Filters)+"]")
	}
	for _, d := range p.Directives {
		parts = append(parts, d.String())
	}
	parts = append(parts, p.steps...)
	return strings.Join(parts, " | ")
}

func joinStmts(stmts []*query.Binary) string {
	out := make([]string, len(stmts))
	for i, s := range stmts {
		out[i] = s.String()
	}
	return strings.Join(out, ", ")
}

// clone copies the plan without its hooks.
func (p *Plan) clone() *Plan {
	c := *p
	c.IndexStmts = append([]*query.Binary(nil), p.IndexStmts...)
	c.Filters = append([]*query.Binary(nil), p.Filters...)
	c.Directives = append(query.Sampling(nil), p.Directives...)
	c.Pre, c.Post, c.steps = nil, nil, nil
	return &c
}
