package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/solatis/smsfilter/internal/core/db"
	"github.com/solatis/smsfilter/internal/rules"
	"github.com/solatis/smsfilter/internal/types"
)

// RuleStore keeps the rule set in filter_rules, ordered by ordinal.
// It satisfies rules.RuleSource and backup.RuleStore.
//
// Persisted rules are immutable and their IDs are never reused, so compiled
// rules are cached by ID. Every load still reads the rows, which keeps the
// order and membership current; only rows with an unseen ID are compiled.
type RuleStore struct {
	queries *db.Queries
	now     func() time.Time
	compile func(ruleRow) (*rules.FilterRule, error)

	mu       sync.RWMutex
	compiled map[types.RuleID]*rules.FilterRule
}

// NewRuleStore creates a rule store over loaded queries.
func NewRuleStore(queries *db.Queries) *RuleStore {
	return &RuleStore{
		queries:  queries,
		now:      time.Now,
		compile:  ruleRow.compile,
		compiled: make(map[types.RuleID]*rules.FilterRule),
	}
}

type ruleRow struct {
	RuleID              string         `db:"rule_id"`
	Ordinal             int64          `db:"ordinal"`
	Action              string         `db:"action"`
	SenderMode          sql.NullString `db:"sender_mode"`
	SenderPattern       sql.NullString `db:"sender_pattern"`
	SenderCaseSensitive sql.NullBool   `db:"sender_case_sensitive"`
	BodyMode            sql.NullString `db:"body_mode"`
	BodyPattern         sql.NullString `db:"body_pattern"`
	BodyCaseSensitive   sql.NullBool   `db:"body_case_sensitive"`
}

// LoadAllRules returns the persisted rule set in evaluation order. Rows
// already compiled are served from the cache; a row that does not compile
// is reported as an error rather than skipped.
func (s *RuleStore) LoadAllRules(ctx context.Context) ([]*rules.FilterRule, error) {
	var rows []ruleRow
	if err := s.queries.Select(ctx, "list-rules", &rows); err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}

	set := make([]*rules.FilterRule, len(rows))
	hits := 0
	s.mu.RLock()
	for i, row := range rows {
		if r, ok := s.compiled[types.RuleID(row.RuleID)]; ok {
			set[i] = r
			hits++
		}
	}
	stale := hits != len(s.compiled)
	s.mu.RUnlock()

	if hits == len(rows) && !stale {
		return set, nil
	}

	for i, row := range rows {
		if set[i] != nil {
			continue
		}
		r, err := s.compile(row)
		if err != nil {
			return nil, fmt.Errorf("stored rule %s: %w", row.RuleID, err)
		}
		set[i] = r
	}

	// The cache is rebuilt from the loaded set, which also drops rows
	// removed by another process.
	next := make(map[types.RuleID]*rules.FilterRule, len(set))
	for _, r := range set {
		next[r.ID()] = r
	}
	s.mu.Lock()
	s.compiled = next
	s.mu.Unlock()

	return set, nil
}

// forget evicts compiled rules by ID. A nil ids slice clears the cache.
func (s *RuleStore) forget(ids ...types.RuleID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ids == nil {
		s.compiled = make(map[types.RuleID]*rules.FilterRule)
		return
	}
	for _, id := range ids {
		delete(s.compiled, id)
	}
}

// PersistRules appends rules after the current last rule in one
// transaction and returns them with their new IDs.
func (s *RuleStore) PersistRules(ctx context.Context, set []*rules.FilterRule) ([]*rules.FilterRule, error) {
	var stored []*rules.FilterRule
	err := s.queries.InTx(ctx, func(tx *db.Queries) error {
		var count, last int64
		if err := tx.Get(ctx, "count-rules", &count); err != nil {
			return fmt.Errorf("failed to count rules: %w", err)
		}
		if count+int64(len(set)) > types.MaxRuleSetSize {
			return fmt.Errorf("%w: %d rules (max %d)", types.ErrTooManyRules, count+int64(len(set)), types.MaxRuleSetSize)
		}
		if err := tx.Get(ctx, "max-rule-ordinal", &last); err != nil {
			return fmt.Errorf("failed to read last ordinal: %w", err)
		}

		var err error
		stored, err = s.insertAll(ctx, tx, set, last+1)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// ReplaceRules swaps the whole rule set atomically. On error the previous
// rule set is left in place.
func (s *RuleStore) ReplaceRules(ctx context.Context, set []*rules.FilterRule) ([]*rules.FilterRule, error) {
	if len(set) > types.MaxRuleSetSize {
		return nil, fmt.Errorf("%w: %d rules (max %d)", types.ErrTooManyRules, len(set), types.MaxRuleSetSize)
	}

	var stored []*rules.FilterRule
	err := s.queries.InTx(ctx, func(tx *db.Queries) error {
		if _, err := tx.Exec(ctx, "delete-all-rules"); err != nil {
			return fmt.Errorf("failed to clear rules: %w", err)
		}
		var err error
		stored, err = s.insertAll(ctx, tx, set, 1)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.forget()
	return stored, nil
}

// DeleteRule removes one rule. Returns types.ErrRuleNotFound if absent.
func (s *RuleStore) DeleteRule(ctx context.Context, id types.RuleID) error {
	res, err := s.queries.Exec(ctx, "delete-rule", string(id))
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
	}
	s.forget(id)
	return nil
}

// ReplaceRule updates a rule by deleting it and storing the replacement at
// the same position under a new ID.
func (s *RuleStore) ReplaceRule(ctx context.Context, id types.RuleID, rule *rules.FilterRule) (*rules.FilterRule, error) {
	var stored []*rules.FilterRule
	err := s.queries.InTx(ctx, func(tx *db.Queries) error {
		var ordinal int64
		err := tx.Get(ctx, "get-rule-ordinal", &ordinal, string(id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("failed to look up rule: %w", err)
		}
		if _, err := tx.Exec(ctx, "delete-rule", string(id)); err != nil {
			return fmt.Errorf("failed to delete rule: %w", err)
		}
		stored, err = s.insertAll(ctx, tx, []*rules.FilterRule{rule}, ordinal)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.forget(id)
	return stored[0], nil
}

// insertAll writes rules with fresh IDs and consecutive ordinals starting
// at first.
func (s *RuleStore) insertAll(ctx context.Context, tx *db.Queries, set []*rules.FilterRule, first int64) ([]*rules.FilterRule, error) {
	created := formatTime(s.now())
	stored := make([]*rules.FilterRule, 0, len(set))

	for i, r := range set {
		id := types.NewRuleID()
		sMode, sPattern, sCase := patternColumns(r.Sender())
		bMode, bPattern, bCase := patternColumns(r.Body())

		_, err := tx.Exec(ctx, "insert-rule",
			string(id), first+int64(i), r.Action().String(),
			sMode, sPattern, sCase,
			bMode, bPattern, bCase,
			created,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert rule %d: %w", i, err)
		}
		stored = append(stored, r.WithID(id))
	}
	return stored, nil
}

func patternColumns(p rules.FieldPattern) (sql.NullString, sql.NullString, sql.NullBool) {
	if !p.IsSet() {
		return sql.NullString{}, sql.NullString{}, sql.NullBool{}
	}
	return sql.NullString{String: p.Mode().String(), Valid: true},
		sql.NullString{String: p.Pattern(), Valid: true},
		sql.NullBool{Bool: p.CaseSensitive(), Valid: true}
}

func (row ruleRow) compile() (*rules.FilterRule, error) {
	action, err := types.ParseFilterAction(row.Action)
	if err != nil {
		return nil, err
	}
	sender, err := patternSpec(row.SenderMode, row.SenderPattern, row.SenderCaseSensitive)
	if err != nil {
		return nil, fmt.Errorf("sender pattern: %w", err)
	}
	body, err := patternSpec(row.BodyMode, row.BodyPattern, row.BodyCaseSensitive)
	if err != nil {
		return nil, fmt.Errorf("body pattern: %w", err)
	}
	return rules.Compile(&types.Rule{
		ID:     types.RuleID(row.RuleID),
		Action: action,
		Sender: sender,
		Body:   body,
	})
}

func patternSpec(mode, pattern sql.NullString, caseSensitive sql.NullBool) (*types.PatternSpec, error) {
	if !mode.Valid {
		return nil, nil
	}
	m, err := types.ParseMatchMode(mode.String)
	if err != nil {
		return nil, err
	}
	return &types.PatternSpec{
		Mode:          m,
		Pattern:       pattern.String,
		CaseSensitive: caseSensitive.Valid && caseSensitive.Bool,
	}, nil
}
