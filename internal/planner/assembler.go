package planner

import (
	"fmt"

	"restfilter/internal/filter"

	sq "github.com/Masterminds/squirrel"
)

// Apply compiles tree against q's entity and attaches the result: the AND
// group and the OR group become two WHERE clauses combined by AND, joins are
// added once per (alias, relation), and parameters are bound under generated
// names.
//
// Compilation finishes before q is touched, so on error q is unchanged.
func Apply(q *Query, tree *filter.Tree) (Stats, error) {
	if q == nil {
		return Stats{}, fmt.Errorf("apply filter: nil query")
	}
	if tree.Empty() {
		return Stats{}, nil
	}

	c := newCompileContext(q)
	for _, m := range tree.And.Members {
		if err := c.compileMember(m, false); err != nil {
			return Stats{}, err
		}
	}
	for _, m := range tree.Or.Members {
		if err := c.compileMember(m, true); err != nil {
			return Stats{}, err
		}
	}

	where, err := c.root.renderWhere()
	if err != nil {
		return Stats{}, fmt.Errorf("render filter: %w", err)
	}
	c.commit(where)
	return c.stats, nil
}

func (c *compileContext) compileMember(m filter.Member, or bool) error {
	path := m.Path.String()
	op, ok := lookupOperator(m.Condition.Operator)
	if !ok {
		return &UnsupportedOperatorError{Operator: m.Condition.Operator, Path: path}
	}

	o := operand{path: path, op: op.name, ctx: c}
	if err := op.checkArity(o, m.Condition.Args); err != nil {
		return err
	}

	ref, err := c.resolve(c.root, m.Path, path, or)
	if err != nil {
		return err
	}
	o.ref = ref

	text, err := op.build(o, m.Condition.Args)
	if err != nil {
		return err
	}
	ref.scope.add(or, sq.Expr(text))
	c.stats.Conditions++
	return nil
}
