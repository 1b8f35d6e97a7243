package dispatcher

import (
	"regexp"

	"github.com/google/uuid"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// rejection reasons reported for invalid recipients
const (
	ReasonMissingEmail = "email is required"
	ReasonInvalidEmail = "email format is invalid"
	ReasonBothRefs     = "player_id and evaluator_id are mutually exclusive"
	ReasonNoRef        = "one of player_id or evaluator_id is required"
)

// RecipientCandidate is an unvalidated recipient as received from the caller.
type RecipientCandidate struct {
	PlayerID    *uuid.UUID `json:"player_id,omitempty"`
	EvaluatorID *uuid.UUID `json:"evaluator_id,omitempty"`
	Email       string     `json:"email"`
}

// RecipientRef identifies who a valid recipient is: a PlayerRecipient or an
// EvaluatorRecipient, never both.
type RecipientRef interface {
	recipientRef()
}

// PlayerRecipient references a player of the message's group.
type PlayerRecipient struct {
	PlayerID uuid.UUID
}

// EvaluatorRecipient references an evaluator user.
type EvaluatorRecipient struct {
	EvaluatorID uuid.UUID
}

func (PlayerRecipient) recipientRef()    {}
func (EvaluatorRecipient) recipientRef() {}

// ValidRecipient passed validation and may be persisted.
type ValidRecipient struct {
	Ref   RecipientRef
	Email string
}

// InvalidRecipient was dropped before persistence.
type InvalidRecipient struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// ValidationResult splits candidates into valid and invalid ones.
type ValidationResult struct {
	Valid   []ValidRecipient
	Invalid []InvalidRecipient
}

// ValidateRecipients checks every candidate's email and reference.
// It has no side effects and keeps the input order of valid recipients.
func ValidateRecipients(candidates []RecipientCandidate) ValidationResult {
	var res ValidationResult

	for _, c := range candidates {
		ref, reason := checkCandidate(c)
		if reason != "" {
			res.Invalid = append(res.Invalid, InvalidRecipient{Email: c.Email, Reason: reason})
			continue
		}
		res.Valid = append(res.Valid, ValidRecipient{Ref: ref, Email: c.Email})
	}

	return res
}

func checkCandidate(c RecipientCandidate) (RecipientRef, string) {
	if c.Email == "" {
		return nil, ReasonMissingEmail
	}
	if !emailPattern.MatchString(c.Email) {
		return nil, ReasonInvalidEmail
	}

	switch {
	case c.PlayerID != nil && c.EvaluatorID != nil:
		return nil, ReasonBothRefs
	case c.PlayerID != nil:
		return PlayerRecipient{PlayerID: *c.PlayerID}, ""
	case c.EvaluatorID != nil:
		return EvaluatorRecipient{EvaluatorID: *c.EvaluatorID}, ""
	default:
		return nil, ReasonNoRef
	}
}
