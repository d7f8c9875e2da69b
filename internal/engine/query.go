package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maxdata-sh/max/internal/id"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// Op enumerates the comparison operators on a where leaf.
type Op string

const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpGt       Op = "gt"
	OpLt       Op = "lt"
	OpGte      Op = "gte"
	OpLte      Op = "lte"
	OpContains Op = "contains"
)

// BranchKind enumerates the where branch combinators.
type BranchKind string

const (
	BranchAnd BranchKind = "and"
	BranchOr  BranchKind = "or"
)

// WhereClause is a leaf comparison or a branch of clauses. A clause with an
// empty Kind is a leaf.
type WhereClause struct {
	Field id.FieldName `json:"field,omitempty"`
	Op    Op           `json:"op,omitempty"`
	Value any          `json:"value,omitempty"`

	Kind    BranchKind    `json:"kind,omitempty"`
	Clauses []WhereClause `json:"clauses,omitempty"`
}

// Ordering sorts query results by one field.
type Ordering struct {
	Field id.FieldName `json:"field"`
	Desc  bool         `json:"desc,omitempty"`
}

// Query is a filtered, ordered, paged read of one entity type.
type Query struct {
	Type       id.EntityType `json:"type"`
	Projection Projection    `json:"projection"`
	Where      *WhereClause  `json:"where,omitempty"`
	OrderBy    []Ordering    `json:"orderBy,omitempty"`
	Page       *Page         `json:"page,omitempty"`
}

var errBadQuery = maxerrors.Define(
	"query.bad_clause",
	"unsupported where clause: {detail}",
	maxerrors.BadInput,
)

// matches evaluates the clause against one entity's fields.
func (c *WhereClause) matches(fields map[id.FieldName]any) (bool, error) {
	if c == nil {
		return true, nil
	}
	switch c.Kind {
	case "":
		return compare(fields[c.Field], c.Op, c.Value)
	case BranchAnd:
		for i := range c.Clauses {
			ok, err := c.Clauses[i].matches(fields)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case BranchOr:
		for i := range c.Clauses {
			ok, err := c.Clauses[i].matches(fields)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	return false, errBadQuery.New(maxerrors.Props{"detail": fmt.Sprintf("kind %q", c.Kind)})
}

func compare(have any, op Op, want any) (bool, error) {
	switch op {
	case OpEq:
		return equalValues(have, want), nil
	case OpNe:
		return !equalValues(have, want), nil
	case OpContains:
		hs, ok1 := have.(string)
		ws, ok2 := want.(string)
		return ok1 && ok2 && strings.Contains(hs, ws), nil
	case OpGt, OpLt, OpGte, OpLte:
		cmp, ok := orderValues(have, want)
		if !ok {
			return false, nil
		}
		switch op {
		case OpGt:
			return cmp > 0, nil
		case OpLt:
			return cmp < 0, nil
		case OpGte:
			return cmp >= 0, nil
		default:
			return cmp <= 0, nil
		}
	}
	return false, errBadQuery.New(maxerrors.Props{"detail": fmt.Sprintf("op %q", op)})
}

func equalValues(a, b any) bool {
	if af, bf, ok := bothNumbers(a, b); ok {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b) && (a == nil) == (b == nil)
}

func orderValues(a, b any) (int, bool) {
	if af, bf, ok := bothNumbers(a, b); ok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	as, ok1 := a.(string)
	bs, ok2 := b.(string)
	if ok1 && ok2 {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func bothNumbers(a, b any) (float64, float64, bool) {
	af, ok1 := asNumber(a)
	bf, ok2 := asNumber(b)
	return af, bf, ok1 && ok2
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// sortResults orders entities by the orderings, falling back to entity id so
// results are stable under any given ordering.
func sortResults(entities []EntityResult, orderBy []Ordering) {
	sort.SliceStable(entities, func(i, j int) bool {
		for _, ord := range orderBy {
			cmp, ok := orderValues(entities[i].Fields[ord.Field], entities[j].Fields[ord.Field])
			if !ok || cmp == 0 {
				continue
			}
			if ord.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return entities[i].Ref.ID < entities[j].Ref.ID
	})
}
