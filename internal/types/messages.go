package types

import "time"

// BlockedMessage is an archived message that a BLOCK decision kept from
// delivery. RuleID is the deciding rule, empty when that rule was transient.
type BlockedMessage struct {
	ID         MessageID
	Sender     string
	Body       string
	ReceivedAt time.Time
	Seen       bool
	RuleID     RuleID
}

// Candidate returns the message in the form the evaluator takes.
func (m BlockedMessage) Candidate() CandidateMessage {
	return CandidateMessage{Sender: m.Sender, Body: m.Body}
}
