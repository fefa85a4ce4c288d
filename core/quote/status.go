package quote

import (
	qerrors "model-quote/internal/errors"
)

// Status is the quote lifecycle state
type Status string

const (
	StatusDraft     Status = "draft"
	StatusConfirmed Status = "confirmed"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusDraft: {StatusConfirmed, StatusCancelled, StatusExpired},
}

// ParseStatus validates a status string
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusDraft, StatusConfirmed, StatusExpired, StatusCancelled:
		return st, nil
	}
	return "", qerrors.Validation("status", "unknown status %q", s)
}

// CanTransition reports whether from → to is allowed
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves the quote to a new status
func (s *Sheet) Transition(to Status) error {
	if !CanTransition(s.Status, to) {
		return qerrors.Validation("status", "cannot change status from %s to %s", s.Status, to)
	}
	s.Status = to
	return nil
}

// requireDraft guards every edit of items, discount and descriptive fields
func (s *Sheet) requireDraft(action string) error {
	if s.Status != StatusDraft {
		return qerrors.Validation("status", "quote %s is %s, only draft quotes allow %s", s.QuoteNo, s.Status, action)
	}
	return nil
}
