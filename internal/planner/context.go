package planner

import (
	"fmt"
	"regexp"
)

// Stats summarizes one compile call.
type Stats struct {
	Conditions int
	Joins      int
	Subqueries int
}

type joinKey struct {
	parentAlias string
	relation    string
}

type subqueryKey struct {
	ownerAlias string
	target     string
	relation   string
}

// compileContext is the state of a single Apply or OrderBy call. Nothing in it
// outlives the call; the target query is only touched by commit.
type compileContext struct {
	query       *Query
	root        *scope
	counter     int
	params      map[string]any
	joinCache   map[joinKey]string
	aliases     map[string]struct{}
	subqueries  map[subqueryKey]*subquery
	allowToMany bool
	stats       Stats
}

func newCompileContext(q *Query) *compileContext {
	c := &compileContext{
		query:       q,
		root:        &scope{entity: q.entity, alias: q.alias},
		params:      map[string]any{},
		joinCache:   make(map[joinKey]string, len(q.joins)),
		aliases:     map[string]struct{}{q.alias: {}},
		subqueries:  map[subqueryKey]*subquery{},
		allowToMany: true,
	}
	// Joins from an earlier call on the same query are reused, never duplicated.
	for _, j := range q.joins {
		c.joinCache[joinKey{parentAlias: j.SourceAlias, relation: j.Relation}] = j.Alias
		c.aliases[j.Alias] = struct{}{}
	}
	return c
}

// uniqueAlias returns base, or base_2, base_3... when base is already taken.
func (c *compileContext) uniqueAlias(base string) string {
	alias := base
	for n := 2; ; n++ {
		if _, taken := c.aliases[alias]; !taken {
			break
		}
		alias = fmt.Sprintf("%s_%d", base, n)
	}
	c.aliases[alias] = struct{}{}
	return alias
}

// bind stores value under a fresh name derived from path and returns its placeholder.
func (c *compileContext) bind(path string, value any) string {
	base := sanitizeParamName(path)
	for {
		name := fmt.Sprintf("%s_%d", base, c.counter)
		c.counter++
		if _, taken := c.query.params[name]; taken {
			continue
		}
		c.params[name] = value
		return ":" + name
	}
}

// commit attaches everything compiled in this call to the target query.
func (c *compileContext) commit(where []string) {
	c.query.joins = append(c.query.joins, c.root.joins...)
	c.query.where = append(c.query.where, where...)
	for name, value := range c.params {
		c.query.params[name] = value
	}
}

var paramNameUnsafe = regexp.MustCompile(`[^A-Za-z0-9_]`)

func sanitizeParamName(path string) string {
	name := paramNameUnsafe.ReplaceAllString(path, "_")
	if name == "" || !isParamStart(name[0]) {
		name = "p" + name
	}
	return name
}
