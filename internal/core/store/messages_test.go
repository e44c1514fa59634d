package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/smsfilter/internal/types"
)

func TestMessageStore_ArchiveAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore(openTestQueries(t))
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return at }

	m, err := s.Archive(ctx, types.CandidateMessage{Sender: "+19005550000", Body: "Claim your prize"}, "rule-1")
	require.NoError(t, err)
	assert.False(t, m.Seen)

	got, err := s.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, "+19005550000", got.Sender)
	assert.Equal(t, "Claim your prize", got.Body)
	assert.Equal(t, types.RuleID("rule-1"), got.RuleID)
	assert.True(t, at.Equal(got.ReceivedAt))

	_, err = s.Get(ctx, types.NewMessageID())
	assert.ErrorIs(t, err, types.ErrMessageNotFound)
}

func TestMessageStore_TransientRule(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore(openTestQueries(t))

	m, err := s.Archive(ctx, types.CandidateMessage{Sender: "x", Body: "y"}, "")
	require.NoError(t, err)

	got, err := s.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.RuleID.IsTransient())
}

func TestMessageStore_ListAndSeen(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore(openTestQueries(t))

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var ids []types.MessageID
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return at }
		m, err := s.Archive(ctx, types.CandidateMessage{Sender: "s", Body: "b"}, "")
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	all, err := s.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID, "newest first")
	assert.Equal(t, ids[0], all[2].ID)

	require.NoError(t, s.SetSeen(ctx, ids[1], true))
	unseen, err := s.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, unseen, 2)
	for _, m := range unseen {
		assert.NotEqual(t, ids[1], m.ID)
	}

	n, err := s.MarkAllSeen(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	unseen, err = s.List(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, unseen)

	err = s.SetSeen(ctx, types.NewMessageID(), true)
	assert.ErrorIs(t, err, types.ErrMessageNotFound)
}

func TestMessageStore_DeleteAndRestore(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore(openTestQueries(t))

	a, err := s.Archive(ctx, types.CandidateMessage{Sender: "a", Body: "first"}, "")
	require.NoError(t, err)
	b, err := s.Archive(ctx, types.CandidateMessage{Sender: "b", Body: "second"}, "")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, a.ID))
	assert.ErrorIs(t, s.Delete(ctx, a.ID), types.ErrMessageNotFound)

	restored, err := s.Restore(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, types.CandidateMessage{Sender: "b", Body: "second"}, restored.Candidate())

	all, err := s.List(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = s.Restore(ctx, b.ID)
	assert.ErrorIs(t, err, types.ErrMessageNotFound)
}
