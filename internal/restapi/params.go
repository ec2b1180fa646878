package restapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"restfilter/internal/filter"
	"restfilter/internal/metadata"
	"restfilter/internal/planner"
	"restfilter/internal/sqltype"
)

// ErrBadParameter marks a malformed sort, order, range or id parameter.
var ErrBadParameter = errors.New("invalid request parameter")

type listParams struct {
	Filter *filter.Tree
	Sort   []planner.OrderBy
	Range  *planner.Range
}

// parseListParams reads the react-admin list parameters:
//
//	filter={"status":"active"}
//	sort=["title","ASC"]  or  sort=["title","id"]&order=["ASC","DESC"]
//	range=[0,24]
func parseListParams(values url.Values) (listParams, error) {
	var p listParams

	tree, err := filter.ParseJSON([]byte(values.Get("filter")))
	if err != nil {
		return p, err
	}
	p.Filter = tree

	if p.Sort, err = parseSort(values.Get("sort"), values.Get("order")); err != nil {
		return p, err
	}
	if p.Range, err = parseRange(values.Get("range")); err != nil {
		return p, err
	}
	return p, nil
}

func parseSort(sortRaw, orderRaw string) ([]planner.OrderBy, error) {
	sortRaw = strings.TrimSpace(sortRaw)
	if sortRaw == "" {
		return nil, nil
	}
	fields, err := stringList("sort", sortRaw)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	var directions []string
	if len(fields) == 2 && strings.TrimSpace(orderRaw) == "" && isDirection(fields[1]) {
		directions = fields[1:]
		fields = fields[:1]
	} else if strings.TrimSpace(orderRaw) != "" {
		if directions, err = stringList("order", orderRaw); err != nil {
			return nil, err
		}
	}
	if len(directions) > 1 && len(directions) != len(fields) {
		return nil, fmt.Errorf("%w: order has %d entries for %d sort fields", ErrBadParameter, len(directions), len(fields))
	}

	out := make([]planner.OrderBy, 0, len(fields))
	for i, raw := range fields {
		path, err := filter.ParsePath(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: sort: %v", ErrBadParameter, err)
		}
		dirRaw := ""
		switch len(directions) {
		case 0:
		case 1:
			dirRaw = directions[0]
		default:
			dirRaw = directions[i]
		}
		dir, err := planner.ParseDirection(dirRaw)
		if err != nil {
			return nil, err
		}
		out = append(out, planner.OrderBy{Path: path, Direction: dir})
	}
	return out, nil
}

func isDirection(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ASC", "DESC":
		return true
	}
	return false
}

// stringList accepts a JSON array of strings or a bare string.
func stringList(param, raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "[") {
		return []string{raw}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%w: %s must be a JSON array of strings", ErrBadParameter, param)
	}
	return out, nil
}

func parseRange(raw string) (*planner.Range, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var bounds []int
	if err := json.Unmarshal([]byte(raw), &bounds); err != nil || len(bounds) != 2 {
		return nil, fmt.Errorf("%w: range must be [start,end]", ErrBadParameter)
	}
	return &planner.Range{Start: bounds[0], End: bounds[1]}, nil
}

// parseID converts a path id to the identifier's kind.
func parseID(entity *metadata.Entity, raw string) (any, error) {
	id := entity.IdentifierField()
	if id == nil {
		return nil, fmt.Errorf("entity %s has no identifier", entity.Name)
	}
	switch id.Kind {
	case sqltype.KindInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: id %q is not an integer", ErrBadParameter, raw)
		}
		return n, nil
	case sqltype.KindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: id %q is not a number", ErrBadParameter, raw)
		}
		return f, nil
	default:
		return raw, nil
	}
}
