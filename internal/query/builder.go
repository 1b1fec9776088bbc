package query

// Builder assembles a statement fluently. The first error sticks: later
// calls are no-ops and Build reports it.
//
//	stmt, err := query.Where(age.Ge(18), age.Lt(65)).
//		And(name.Match("^a")).
//		OrderBy(query.Desc(age)).
//		Limit(10).
//		Build()
type Builder struct {
	stmt Statement
	err  error
}

// Where starts a builder from the conjunction of stmts.
func Where(stmts ...Statement) *Builder {
	b := &Builder{}
	for _, s := range stmts {
		b.And(s)
	}
	return b
}

// From starts a builder from a scan of table.
func From(table, model string) *Builder {
	return &Builder{stmt: &TableScan{Table: table, Model: model}}
}

// And conjoins s with the statement built so far.
func (b *Builder) And(s Statement) *Builder {
	if b.err != nil {
		return b
	}
	if b.stmt == nil {
		if err := deferredErr(s); err != nil {
			b.err = err
			return b
		}
		b.stmt = s
		return b
	}
	b.stmt, b.err = Conjoin(b.stmt, s)
	return b
}

// Limit appends a limit directive.
func (b *Builder) Limit(n int) *Builder { return b.directive(Limit(n)) }

// Skip appends a skip directive.
func (b *Builder) Skip(n int) *Builder { return b.directive(Skip(n)) }

// Sample appends a sample directive.
func (b *Builder) Sample(n int) *Builder { return b.directive(Sample(n)) }

// OrderBy appends an order_by directive.
func (b *Builder) OrderBy(orders ...Order) *Builder { return b.directive(OrderBy(orders...)) }

func (b *Builder) directive(d Directive) *Builder {
	if b.err != nil {
		return b
	}
	if b.stmt == nil {
		b.err = NewBuildError(ErrCodeMissingModel, "directive before any statement", "directive", d.Kind.String())
		return b
	}
	b.stmt, b.err = WithDirective(b.stmt, d)
	return b
}

// Build returns the statement, or the first error encountered.
func (b *Builder) Build() (Statement, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.stmt == nil {
		return nil, NewBuildError(ErrCodeMissingModel, "empty builder")
	}
	return b.stmt, nil
}
