package planner

import (
	"fmt"
	"strings"

	"restfilter/internal/filter"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// ParseDirection accepts ASC or DESC in any case; empty means ASC.
func ParseDirection(raw string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "ASC":
		return Asc, nil
	case "DESC":
		return Desc, nil
	default:
		return "", fmt.Errorf("%w: sort direction must be ASC or DESC, got %q", ErrInvalidArgument, raw)
	}
}

// OrderBy is one sort key. Path may traverse to-one associations.
type OrderBy struct {
	Path      filter.FieldPath
	Direction Direction
}

// OrderBy appends sort keys. To-one hops reuse the joins the filter created;
// to-many paths are rejected because they have no single value per row.
func (q *Query) OrderBy(orders ...OrderBy) error {
	if len(orders) == 0 {
		return nil
	}
	c := newCompileContext(q)
	c.allowToMany = false

	exprs := make([]string, 0, len(orders))
	for _, o := range orders {
		ref, err := c.resolve(c.root, o.Path, o.Path.String(), false)
		if err != nil {
			return err
		}
		dir := o.Direction
		if dir == "" {
			dir = Asc
		}
		exprs = append(exprs, ref.sql()+" "+string(dir))
	}
	c.commit(nil)
	q.orderBy = append(q.orderBy, exprs...)
	return nil
}

// orderedBy reports whether expr (without direction) is already a sort key.
func (q *Query) orderedBy(column string) bool {
	for _, existing := range q.orderBy {
		if strings.HasPrefix(existing, column+" ") {
			return true
		}
	}
	return false
}
