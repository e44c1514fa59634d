package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/smsfilter/internal/core/db"
	"github.com/solatis/smsfilter/internal/types"
)

// MessageStore archives blocked messages so they can be reviewed, marked
// seen, deleted or restored.
type MessageStore struct {
	queries *db.Queries
	now     func() time.Time
}

// NewMessageStore creates an archive over loaded queries.
func NewMessageStore(queries *db.Queries) *MessageStore {
	return &MessageStore{queries: queries, now: time.Now}
}

type messageRow struct {
	MessageID  string         `db:"message_id"`
	Sender     string         `db:"sender"`
	Body       string         `db:"body"`
	ReceivedAt string         `db:"received_at"`
	Seen       bool           `db:"seen"`
	RuleID     sql.NullString `db:"rule_id"`
}

func (row messageRow) message() (types.BlockedMessage, error) {
	received, err := parseTime(row.ReceivedAt)
	if err != nil {
		return types.BlockedMessage{}, fmt.Errorf("message %s: invalid received_at: %w", row.MessageID, err)
	}
	return types.BlockedMessage{
		ID:         types.MessageID(row.MessageID),
		Sender:     row.Sender,
		Body:       row.Body,
		ReceivedAt: received,
		Seen:       row.Seen,
		RuleID:     types.RuleID(row.RuleID.String),
	}, nil
}

// Archive stores a blocked message as unseen. ruleID may be empty.
func (s *MessageStore) Archive(ctx context.Context, msg types.CandidateMessage, ruleID types.RuleID) (types.BlockedMessage, error) {
	m := types.BlockedMessage{
		ID:         types.NewMessageID(),
		Sender:     msg.Sender,
		Body:       msg.Body,
		ReceivedAt: s.now().UTC(),
		RuleID:     ruleID,
	}
	_, err := s.queries.Exec(ctx, "insert-blocked-message",
		string(m.ID), m.Sender, m.Body, formatTime(m.ReceivedAt), false, nullString(string(ruleID)))
	if err != nil {
		return types.BlockedMessage{}, fmt.Errorf("failed to archive message: %w", err)
	}
	return m, nil
}

// Get returns one archived message or types.ErrMessageNotFound.
func (s *MessageStore) Get(ctx context.Context, id types.MessageID) (types.BlockedMessage, error) {
	return get(ctx, s.queries, id)
}

func get(ctx context.Context, q *db.Queries, id types.MessageID) (types.BlockedMessage, error) {
	var row messageRow
	err := q.Get(ctx, "get-blocked-message", &row, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.BlockedMessage{}, fmt.Errorf("%w: %s", types.ErrMessageNotFound, id)
	}
	if err != nil {
		return types.BlockedMessage{}, fmt.Errorf("failed to get message: %w", err)
	}
	return row.message()
}

// List returns archived messages, newest first.
func (s *MessageStore) List(ctx context.Context, unseenOnly bool) ([]types.BlockedMessage, error) {
	var rows []messageRow
	var err error
	if unseenOnly {
		err = s.queries.Select(ctx, "list-unseen-blocked-messages", &rows, false)
	} else {
		err = s.queries.Select(ctx, "list-blocked-messages", &rows)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	out := make([]types.BlockedMessage, 0, len(rows))
	for _, row := range rows {
		m, err := row.message()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// SetSeen updates the seen flag of one message.
func (s *MessageStore) SetSeen(ctx context.Context, id types.MessageID, seen bool) error {
	res, err := s.queries.Exec(ctx, "set-blocked-message-seen", seen, string(id))
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrMessageNotFound, id)
	}
	return nil
}

// MarkAllSeen marks every unseen message seen and returns how many changed.
func (s *MessageStore) MarkAllSeen(ctx context.Context) (int64, error) {
	res, err := s.queries.Exec(ctx, "mark-all-blocked-messages-seen", true, true)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages seen: %w", err)
	}
	return res.RowsAffected()
}

// Delete removes one message from the archive.
func (s *MessageStore) Delete(ctx context.Context, id types.MessageID) error {
	res, err := s.queries.Exec(ctx, "delete-blocked-message", string(id))
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrMessageNotFound, id)
	}
	return nil
}

// Restore removes a message from the archive and returns it so the caller
// can hand it back to the inbox.
func (s *MessageStore) Restore(ctx context.Context, id types.MessageID) (types.BlockedMessage, error) {
	var restored types.BlockedMessage
	err := s.queries.InTx(ctx, func(tx *db.Queries) error {
		m, err := get(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "delete-blocked-message", string(id)); err != nil {
			return fmt.Errorf("failed to delete message: %w", err)
		}
		restored = m
		return nil
	})
	if err != nil {
		return types.BlockedMessage{}, err
	}
	return restored, nil
}
