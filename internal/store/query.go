package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/plaited/behavioral/internal/ir"
)

// Predicate filters the selections of a run.
//
// This is a sealed interface: only Equals and And implement it, so the
// compiler below can switch over every case.
type Predicate interface {
	predicateNode()
}

// Equals matches selections whose column equals a literal. Payload
// values must be objects and are compared in canonical form.
type Equals struct {
	Field string
	Value ir.IRValue
}

// And matches selections satisfying every predicate. An empty And
// matches everything.
type And struct {
	Predicates []Predicate
}

func (Equals) predicateNode() {}
func (And) predicateNode()    {}

// EventIs matches selections of the named event.
func EventIs(name string) Predicate {
	return Equals{Field: "event", Value: ir.IRString(name)}
}

// ThreadIs matches selections made by the named thread.
func ThreadIs(name string) Predicate {
	return Equals{Field: "thread", Value: ir.IRString(name)}
}

// selectionFields are the columns a predicate may name, with the IR
// type its value must have.
var selectionFields = map[string]string{
	"seq":      "int",
	"event":    "string",
	"thread":   "string",
	"priority": "int",
	"payload":  "object",
}

// SelectionQuery selects part of a run's trace.
type SelectionQuery struct {
	RunID  string
	Filter Predicate // nil selects every selection
	Limit  int       // 0 means no limit
}

// Validate checks that the query only names known columns with values of
// the right type. All errors are returned, not only the first.
func (q SelectionQuery) Validate() []error {
	var errs []error
	if q.RunID == "" {
		errs = append(errs, fmt.Errorf("run id is required"))
	}
	if q.Limit < 0 {
		errs = append(errs, fmt.Errorf("limit must not be negative, got %d", q.Limit))
	}
	return append(errs, validatePredicate(q.Filter, "filter")...)
}

func validatePredicate(p Predicate, path string) []error {
	switch pred := p.(type) {
	case nil:
		return nil
	case Equals:
		want, ok := selectionFields[pred.Field]
		if !ok {
			return []error{fmt.Errorf("%s: unknown field %q", path, pred.Field)}
		}
		if got := irKind(pred.Value); got != want {
			return []error{fmt.Errorf("%s: field %q takes %s values, got %s", path, pred.Field, want, got)}
		}
		return nil
	case And:
		var errs []error
		for i, sub := range pred.Predicates {
			errs = append(errs, validatePredicate(sub, fmt.Sprintf("%s.and[%d]", path, i))...)
		}
		return errs
	default:
		return []error{fmt.Errorf("%s: unsupported predicate %T", path, p)}
	}
}

func irKind(v ir.IRValue) string {
	switch v.(type) {
	case ir.IRString:
		return "string"
	case ir.IRInt:
		return "int"
	case ir.IRBool:
		return "bool"
	case ir.IRArray:
		return "array"
	case ir.IRObject:
		return "object"
	case nil, ir.IRNull:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// compile turns the query into parameterized SQL. Values are never
// interpolated and every query orders by seq.
func (q SelectionQuery) compile() (string, []any, error) {
	if errs := q.Validate(); len(errs) > 0 {
		return "", nil, fmt.Errorf("invalid selection query: %w", errs[0])
	}

	where := "run_id = ?"
	params := []any{q.RunID}
	if q.Filter != nil {
		sql, filterParams, err := compilePredicate(q.Filter)
		if err != nil {
			return "", nil, err
		}
		where += " AND " + sql
		params = append(params, filterParams...)
	}

	sql := "SELECT seq, event, payload, thread, priority FROM selections WHERE " + where + " ORDER BY seq ASC"
	if q.Limit > 0 {
		sql += " LIMIT ?"
		params = append(params, q.Limit)
	}
	return sql, params, nil
}

func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case Equals:
		param, err := predicateParam(pred)
		if err != nil {
			return "", nil, err
		}
		return pred.Field + " = ?", []any{param}, nil
	case And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil, nil
		}
		parts := make([]string, 0, len(pred.Predicates))
		var params []any
		for _, sub := range pred.Predicates {
			sql, subParams, err := compilePredicate(sub)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sql)
			params = append(params, subParams...)
		}
		return "(" + strings.Join(parts, " AND ") + ")", params, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// predicateParam converts a predicate value to its column representation.
func predicateParam(eq Equals) (any, error) {
	switch val := eq.Value.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRObject:
		return marshalPayload(val)
	default:
		return nil, fmt.Errorf("field %q: unsupported value type %T", eq.Field, eq.Value)
	}
}

// QuerySelections returns the selections of a run matching q, in seq
// order, with their bids.
func (s *Store) QuerySelections(ctx context.Context, q SelectionQuery) ([]Selection, error) {
	sql, params, err := q.compile()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, sql, params...)
	if err != nil {
		return nil, fmt.Errorf("query selections: %w", err)
	}
	defer rows.Close()

	selections := []Selection{}
	bySeq := make(map[int64]int)
	for rows.Next() {
		var sel Selection
		var payload string
		if err := rows.Scan(&sel.Seq, &sel.Event, &payload, &sel.Thread, &sel.Priority); err != nil {
			return nil, fmt.Errorf("scan selection: %w", err)
		}
		if sel.Payload, err = unmarshalPayload(payload); err != nil {
			return nil, err
		}
		bySeq[sel.Seq] = len(selections)
		selections = append(selections, sel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate selections: %w", err)
	}
	if len(selections) == 0 {
		return selections, nil
	}

	bids, err := s.readBids(ctx, q.RunID)
	if err != nil {
		return nil, err
	}
	for _, b := range bids {
		if i, ok := bySeq[b.seq]; ok {
			selections[i].Bids = append(selections[i].Bids, b.Bid)
		}
	}
	return selections, nil
}
