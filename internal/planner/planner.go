// Package planner compiles normalized filter trees into parameterized
// MySQL queries over the entity registry. To-one paths become LEFT JOINs
// shared through a per-query alias cache; to-many paths become correlated
// EXISTS subqueries. Compilation is all-or-nothing: a failed Apply leaves
// the query untouched.
package planner
