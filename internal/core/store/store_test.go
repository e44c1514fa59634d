package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/smsfilter/internal/core/db"
	"github.com/solatis/smsfilter/internal/rules"
	"github.com/solatis/smsfilter/internal/types"
)

func openTestQueries(t *testing.T) *db.Queries {
	t.Helper()

	conn, err := db.Open("sqlite://" + filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, db.MigrateUp(conn))

	q, err := db.LoadQueries(conn)
	require.NoError(t, err)
	return q
}

func mustRule(t *testing.T, action types.FilterAction, sender, body *types.PatternSpec) *rules.FilterRule {
	t.Helper()
	r, err := rules.Compile(&types.Rule{Action: action, Sender: sender, Body: body})
	require.NoError(t, err)
	return r
}

func TestRuleStore_PersistAndLoad(t *testing.T) {
	ctx := context.Background()
	s := NewRuleStore(openTestQueries(t))

	in := []*rules.FilterRule{
		mustRule(t, types.ActionBlock, &types.PatternSpec{Mode: types.ModeStartsWith, Pattern: "+1900"}, nil),
		mustRule(t, types.ActionAllow, nil, &types.PatternSpec{Mode: types.ModeContains, Pattern: "OTP", CaseSensitive: true}),
		mustRule(t, types.ActionBlock,
			&types.PatternSpec{Mode: types.ModeEquals, Pattern: "BANK"},
			&types.PatternSpec{Mode: types.ModeRegex, Pattern: `win\s+\d+`}),
	}

	stored, err := s.PersistRules(ctx, in)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for _, r := range stored {
		assert.False(t, r.ID().IsTransient())
	}

	loaded, err := s.LoadAllRules(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	for i := range in {
		assert.True(t, in[i].Equal(loaded[i]), "rule %d: %s != %s", i, in[i], loaded[i])
		assert.Equal(t, stored[i].ID(), loaded[i].ID())
	}
	assert.True(t, loaded[1].Body().CaseSensitive())
	assert.False(t, loaded[1].Sender().IsSet())

	// Appends go after the existing rules.
	more, err := s.PersistRules(ctx, in[:1])
	require.NoError(t, err)
	loaded, err = s.LoadAllRules(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 4)
	assert.Equal(t, more[0].ID(), loaded[3].ID())
}

func TestRuleStore_LoadEmpty(t *testing.T) {
	s := NewRuleStore(openTestQueries(t))

	loaded, err := s.LoadAllRules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestRuleStore_ReplaceRules(t *testing.T) {
	ctx := context.Background()
	s := NewRuleStore(openTestQueries(t))

	_, err := s.PersistRules(ctx, []*rules.FilterRule{
		mustRule(t, types.ActionBlock, &types.PatternSpec{Mode: types.ModeContains, Pattern: "old"}, nil),
		mustRule(t, types.ActionBlock, &types.PatternSpec{Mode: types.ModeContains, Pattern: "older"}, nil),
	})
	require.NoError(t, err)

	replacement := []*rules.FilterRule{
		mustRule(t, types.ActionAllow, nil, &types.PatternSpec{Mode: types.ModeEndsWith, Pattern: "new"}),
	}
	stored, err := s.ReplaceRules(ctx, replacement)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	loaded, err := s.LoadAllRules(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.True(t, replacement[0].Equal(loaded[0]))
}

func TestRuleStore_DeleteRule(t *testing.T) {
	ctx := context.Background()
	s := NewRuleStore(openTestQueries(t))

	stored, err := s.PersistRules(ctx, []*rules.FilterRule{
		mustRule(t, types.ActionBlock, &types.PatternSpec{Mode: types.ModeContains, Pattern: "a"}, nil),
		mustRule(t, types.ActionBlock, &types.PatternSpec{Mode: types.ModeContains, Pattern: "b"}, nil),
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteRule(ctx, stored[0].ID()))

	loaded, err := s.LoadAllRules(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, stored[1].ID(), loaded[0].ID())

	err = s.DeleteRule(ctx, stored[0].ID())
	assert.ErrorIs(t, err, types.ErrRuleNotFound)
}

func TestRuleStore_ReplaceRuleKeepsPosition(t *testing.T) {
	ctx := context.Background()
	s := NewRuleStore(openTestQueries(t))

	stored, err := s.PersistRules(ctx, []*rules.FilterRule{
		mustRule(t, types.ActionBlock, &types.PatternSpec{Mode: types.ModeContains, Pattern: "first"}, nil),
		mustRule(t, types.ActionBlock, &types.PatternSpec{Mode: types.ModeContains, Pattern: "second"}, nil),
		mustRule(t, types.ActionBlock, &types.PatternSpec{Mode: types.ModeContains, Pattern: "third"}, nil),
	})
	require.NoError(t, err)

	update := mustRule(t, types.ActionAllow, &types.PatternSpec{Mode: types.ModeEquals, Pattern: "updated"}, nil)
	updated, err := s.ReplaceRule(ctx, stored[1].ID(), update)
	require.NoError(t, err)
	assert.NotEqual(t, stored[1].ID(), updated.ID())

	loaded, err := s.LoadAllRules(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	assert.Equal(t, updated.ID(), loaded[1].ID())
	assert.True(t, update.Equal(loaded[1]))

	_, err = s.ReplaceRule(ctx, stored[1].ID(), update)
	assert.ErrorIs(t, err, types.ErrRuleNotFound)
}

// countCompiles wraps the store's row compiler and reports how many rows
// it has compiled.
func countCompiles(s *RuleStore) *int {
	n := new(int)
	inner := s.compile
	s.compile = func(row ruleRow) (*rules.FilterRule, error) {
		*n++
		return inner(row)
	}
	return n
}

func TestRuleStore_LoadReusesCompiledRules(t *testing.T) {
	ctx := context.Background()
	s := NewRuleStore(openTestQueries(t))
	compiles := countCompiles(s)

	_, err := s.PersistRules(ctx, []*rules.FilterRule{
		mustRule(t, types.ActionBlock, nil, &types.PatternSpec{Mode: types.ModeRegex, Pattern: `win\s+\d+`}),
		mustRule(t, types.ActionAllow, &types.PatternSpec{Mode: types.ModeEquals, Pattern: "mom"}, nil),
	})
	require.NoError(t, err)

	first, err := s.LoadAllRules(ctx)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 2, *compiles)

	second, err := s.LoadAllRules(ctx)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, 2, *compiles, "second load recompiled rules")
	for i := range first {
		assert.Same(t, first[i], second[i])
	}

	// Appending compiles only the new row.
	_, err = s.PersistRules(ctx, []*rules.FilterRule{
		mustRule(t, types.ActionBlock, nil, &types.PatternSpec{Mode: types.ModeContains, Pattern: "loan"}),
	})
	require.NoError(t, err)
	third, err := s.LoadAllRules(ctx)
	require.NoError(t, err)
	require.Len(t, third, 3)
	assert.Equal(t, 3, *compiles)
	assert.Same(t, first[0], third[0])
}

func TestRuleStore_MutationsEvictCompiledRules(t *testing.T) {
	ctx := context.Background()
	q := openTestQueries(t)
	s := NewRuleStore(q)
	compiles := countCompiles(s)

	stored, err := s.PersistRules(ctx, []*rules.FilterRule{
		mustRule(t, types.ActionBlock, &types.PatternSpec{Mode: types.ModeContains, Pattern: "first"}, nil),
		mustRule(t, types.ActionBlock, &types.PatternSpec{Mode: types.ModeContains, Pattern: "second"}, nil),
		mustRule(t, types.ActionBlock, &types.PatternSpec{Mode: types.ModeContains, Pattern: "third"}, nil),
	})
	require.NoError(t, err)
	_, err = s.LoadAllRules(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, *compiles)

	update := mustRule(t, types.ActionAllow, &types.PatternSpec{Mode: types.ModeEquals, Pattern: "updated"}, nil)
	updated, err := s.ReplaceRule(ctx, stored[1].ID(), update)
	require.NoError(t, err)
	assert.NotContains(t, s.compiled, stored[1].ID())

	loaded, err := s.LoadAllRules(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	assert.Equal(t, 4, *compiles)
	assert.Equal(t, updated.ID(), loaded[1].ID())
	assert.True(t, update.Equal(loaded[1]))

	require.NoError(t, s.DeleteRule(ctx, stored[0].ID()))
	assert.NotContains(t, s.compiled, stored[0].ID())
	loaded, err = s.LoadAllRules(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, 4, *compiles)

	// A row removed behind the store's back drops out on the next load.
	_, err = q.Exec(ctx, "delete-rule", string(stored[2].ID()))
	require.NoError(t, err)
	loaded, err = s.LoadAllRules(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.NotContains(t, s.compiled, stored[2].ID())

	_, err = s.ReplaceRules(ctx, []*rules.FilterRule{
		mustRule(t, types.ActionBlock, nil, &types.PatternSpec{Mode: types.ModeContains, Pattern: "fresh"}),
	})
	require.NoError(t, err)
	assert.Empty(t, s.compiled)
	loaded, err = s.LoadAllRules(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "fresh", loaded[0].Body().Pattern())
	assert.Equal(t, 5, *compiles)
}

func TestRuleStore_CorruptRowIsAnError(t *testing.T) {
	ctx := context.Background()
	q := openTestQueries(t)
	s := NewRuleStore(q)

	_, err := q.DB().Exec(`INSERT INTO filter_rules (rule_id, ordinal, action, sender_mode, sender_pattern, sender_case_sensitive, created_at)
		VALUES ('r1', 1, 'block', 'regex', '(unclosed', 0, '2024-01-01T00:00:00.000000000Z')`)
	require.NoError(t, err)

	_, err = s.LoadAllRules(ctx)
	assert.ErrorIs(t, err, types.ErrPatternCompile)
}

func TestRuleStore_FeedsEngine(t *testing.T) {
	ctx := context.Background()
	s := NewRuleStore(openTestQueries(t))

	_, err := s.PersistRules(ctx, []*rules.FilterRule{
		mustRule(t, types.ActionBlock, nil, &types.PatternSpec{Mode: types.ModeContains, Pattern: "prize"}),
		mustRule(t, types.ActionAllow, &types.PatternSpec{Mode: types.ModeEquals, Pattern: "mom"}, nil),
	})
	require.NoError(t, err)

	engine := rules.NewEngine(s, nil, nil)

	res, err := engine.Evaluate(ctx, types.CandidateMessage{Sender: "12345", Body: "You won a prize"})
	require.NoError(t, err)
	assert.Equal(t, types.DecisionBlock, res.Decision)

	res, err = engine.Evaluate(ctx, types.CandidateMessage{Sender: "Mom", Body: "prize for you"})
	require.NoError(t, err)
	assert.Equal(t, types.DecisionPass, res.Decision)
	assert.Equal(t, 2, res.MatchCount)
}
