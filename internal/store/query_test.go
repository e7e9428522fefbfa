package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaited/behavioral/internal/ir"
)

func TestSelectionQuery_CompileParameterizes(t *testing.T) {
	q := SelectionQuery{
		RunID:  "r1",
		Filter: And{Predicates: []Predicate{EventIs("hot"), ThreadIs("addHot")}},
	}

	sql, params, err := q.compile()
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE run_id = ? AND (event = ? AND thread = ?)")
	assert.Contains(t, sql, "ORDER BY seq ASC")
	assert.NotContains(t, sql, "hot")
	assert.Equal(t, []any{"r1", "hot", "addHot"}, params)
}

func TestSelectionQuery_CompileLimitAndEmptyAnd(t *testing.T) {
	sql, params, err := SelectionQuery{RunID: "r1", Filter: And{}, Limit: 2}.compile()
	require.NoError(t, err)

	assert.Contains(t, sql, "AND 1 = 1")
	assert.Contains(t, sql, "ORDER BY seq ASC LIMIT ?")
	assert.Equal(t, []any{"r1", 2}, params)
}

func TestSelectionQuery_PayloadIsCanonical(t *testing.T) {
	q := SelectionQuery{RunID: "r1", Filter: Equals{Field: "payload", Value: ir.IRObject{"b": ir.IRInt(1), "a": ir.IRString("x")}}}

	_, params, err := q.compile()
	require.NoError(t, err)
	assert.Equal(t, []any{"r1", `{"a":"x","b":1}`}, params)
}

func TestSelectionQuery_Validate(t *testing.T) {
	tests := []struct {
		name  string
		query SelectionQuery
		want  []string
	}{
		{"valid", SelectionQuery{RunID: "r", Filter: EventIs("x")}, nil},
		{"no run", SelectionQuery{}, []string{"run id is required"}},
		{"negative limit", SelectionQuery{RunID: "r", Limit: -1}, []string{"limit must not be negative"}},
		{"unknown field", SelectionQuery{RunID: "r", Filter: Equals{Field: "run_id; DROP TABLE runs", Value: ir.IRString("x")}}, []string{"unknown field"}},
		{"wrong type", SelectionQuery{RunID: "r", Filter: Equals{Field: "seq", Value: ir.IRString("1")}}, []string{`field "seq" takes int values, got string`}},
		{"nested", SelectionQuery{RunID: "r", Filter: And{Predicates: []Predicate{
			EventIs("x"),
			Equals{Field: "thread", Value: ir.IRBool(true)},
			Equals{Field: "payload", Value: ir.IRArray{}},
		}}}, []string{"filter.and[1]", "filter.and[2]"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.query.Validate()
			require.Len(t, errs, len(tt.want))
			for i, want := range tt.want {
				assert.Contains(t, errs[i].Error(), want)
			}
		})
	}
}

func TestSelectionQuery_CompileRejectsInvalid(t *testing.T) {
	_, _, err := SelectionQuery{RunID: "r", Filter: Equals{Field: "bogus", Value: ir.IRString("x")}}.compile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid selection query")
}

func TestQuerySelections_Filters(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	run := recordHotCold(t, s)

	hot, err := s.QuerySelections(ctx, SelectionQuery{RunID: run.ID, Filter: EventIs("hot")})
	require.NoError(t, err)
	require.Len(t, hot, 2)
	assert.Equal(t, int64(2), hot[0].Seq)
	assert.Equal(t, int64(4), hot[1].Seq)
	assert.NotEmpty(t, hot[0].Bids, "bids are attached")

	byThread, err := s.QuerySelections(ctx, SelectionQuery{RunID: run.ID, Filter: ThreadIs("addCold")})
	require.NoError(t, err)
	assert.Len(t, byThread, 2)

	byPayload, err := s.QuerySelections(ctx, SelectionQuery{
		RunID:  run.ID,
		Filter: Equals{Field: "payload", Value: ir.IRObject{"deg": ir.IRInt(90)}},
		Limit:  1,
	})
	require.NoError(t, err)
	require.Len(t, byPayload, 1)
	assert.Equal(t, "hot", byPayload[0].Event)

	none, err := s.QuerySelections(ctx, SelectionQuery{RunID: run.ID, Filter: EventIs("lukewarm")})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
