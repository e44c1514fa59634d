package types

import (
	"time"

	"github.com/google/uuid"
)

// NewRuleID generates a UUIDv7 rule identifier.
// Time-ordered IDs keep inserts clustered in B-tree pages.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRuleID() RuleID {
	return RuleID(uuid.Must(uuid.NewV7()).String())
}

// NewMessageID generates a UUIDv7 archive message identifier.
func NewMessageID() MessageID {
	return MessageID(uuid.Must(uuid.NewV7()).String())
}

// ParseRuleID validates and converts a string to RuleID.
func ParseRuleID(s string) (RuleID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return RuleID(s), nil
}

// ParseMessageID validates and converts a string to MessageID.
func ParseMessageID(s string) (MessageID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return MessageID(s), nil
}

// MessageIDTime extracts the archive time embedded in a UUIDv7 ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func MessageIDTime(id MessageID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
