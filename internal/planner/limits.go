package planner

import "fmt"

// DefaultPageSize is the page size used when a list request carries no range.
const DefaultPageSize = 25

// DefaultMaxPageSize caps a single page.
const DefaultMaxPageSize = 1000

// PlanLimits bounds list queries.
type PlanLimits struct {
	DefaultPageSize int
	MaxPageSize     int
}

func (l PlanLimits) withDefaults() PlanLimits {
	if l.DefaultPageSize <= 0 {
		l.DefaultPageSize = DefaultPageSize
	}
	if l.MaxPageSize <= 0 {
		l.MaxPageSize = DefaultMaxPageSize
	}
	if l.DefaultPageSize > l.MaxPageSize {
		l.DefaultPageSize = l.MaxPageSize
	}
	return l
}

// Range is an inclusive row window [Start, End].
type Range struct {
	Start int
	End   int
}

// Size returns the number of rows in the window.
func (r Range) Size() int {
	return r.End - r.Start + 1
}

// resolveRange validates r against limits; nil means the default first page.
func (l PlanLimits) resolveRange(r *Range) (Range, error) {
	l = l.withDefaults()
	if r == nil {
		return Range{Start: 0, End: l.DefaultPageSize - 1}, nil
	}
	if r.Start < 0 || r.End < r.Start {
		return Range{}, fmt.Errorf("%w: range [%d,%d] is not a valid window", ErrInvalidArgument, r.Start, r.End)
	}
	out := *r
	// End-Start cannot overflow once both are non-negative.
	if r.End-r.Start >= l.MaxPageSize {
		out.End = out.Start + l.MaxPageSize - 1
	}
	return out, nil
}
