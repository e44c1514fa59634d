package backup

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/solatis/smsfilter/internal/rules"
	"github.com/solatis/smsfilter/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	rules    []*rules.FilterRule
	replaces int
}

func (m *memoryStore) LoadAllRules(context.Context) ([]*rules.FilterRule, error) {
	return m.rules, nil
}

func (m *memoryStore) ReplaceRules(_ context.Context, set []*rules.FilterRule) ([]*rules.FilterRule, error) {
	m.replaces++
	persisted := make([]*rules.FilterRule, len(set))
	for i, r := range set {
		persisted[i] = r.WithID(types.NewRuleID())
	}
	m.rules = persisted
	return persisted, nil
}

func TestManager_ExportImport(t *testing.T) {
	ctx := context.Background()
	src := &memoryStore{rules: sampleRules(t)}
	m := NewManager(src, nil, nil)

	var buf bytes.Buffer
	n, err := m.ExportTo(ctx, &buf, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	dst := &memoryStore{}
	imported, err := NewManager(dst, nil, nil).ImportFrom(ctx, &buf, FormatJSON)
	require.NoError(t, err)
	assertSameRules(t, src.rules, imported)
	for _, r := range imported {
		assert.False(t, r.ID().IsTransient())
	}
}

func TestManager_RejectedImportLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	existing := sampleRules(t)
	st := &memoryStore{rules: existing}
	m := NewManager(st, nil, nil)

	doc := `{"filters": [
		{"action": "block", "body": {"mode": "contains", "pattern": "a", "caseSensitive": false}},
		{"action": "block", "body": {"mode": "regex", "pattern": "(", "caseSensitive": false}}
	]}`
	_, err := m.ImportFrom(ctx, strings.NewReader(doc), FormatJSON)
	require.ErrorIs(t, err, types.ErrPatternCompile)

	assert.Equal(t, 0, st.replaces)
	assert.Equal(t, existing, st.rules)
}
