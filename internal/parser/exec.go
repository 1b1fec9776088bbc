package parser

import (
	"context"
	"fmt"

	"github.com/roach88/docq/internal/ir"
	"github.com/roach88/docq/internal/query"
)

// Fetch parses stmt and executes the result on exec.
func Fetch[Q any](ctx context.Context, p *Parser[Q], exec Executor[Q], stmt query.Statement) ([]ir.IRObject, error) {
	res, err := p.Parse(stmt)
	if err != nil {
		return nil, err
	}
	docs, err := exec.Execute(ctx, res.Query, false)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", res.BuildID, err)
	}
	return docs, nil
}

// Apply parses op and executes it on exec. Updates run without fetching
// documents; every other operation returns its result rows.
func Apply[Q any](ctx context.Context, p *Parser[Q], exec Executor[Q], op query.Operation) ([]ir.IRObject, error) {
	res, err := p.ParseOperation(op)
	if err != nil {
		return nil, err
	}
	_, isUpdate := op.(*query.Update)
	docs, err := exec.Execute(ctx, res.Query, isUpdate)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", res.BuildID, err)
	}
	return docs, nil
}
