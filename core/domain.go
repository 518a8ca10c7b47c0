package core

import "strings"

// VerificationStatus is the lifecycle state reported by the third party
// identity verifier.
type VerificationStatus string

const (
	VerificationStatusPending     VerificationStatus = "pending"
	VerificationStatusSent        VerificationStatus = "sent"
	VerificationStatusUnderReview VerificationStatus = "under_review"
	VerificationStatusReceived    VerificationStatus = "received"
	VerificationStatusFailed      VerificationStatus = "failed"
	VerificationStatusRejected    VerificationStatus = "rejected"
)

// IsTerminal reports whether no further transition can happen short of a
// resend.
func (s VerificationStatus) IsTerminal() bool {
	switch s {
	case VerificationStatusReceived, VerificationStatusFailed, VerificationStatusRejected:
		return true
	default:
		return false
	}
}

func (s VerificationStatus) IsFailure() bool {
	return s == VerificationStatusFailed || s == VerificationStatusRejected
}

func (s VerificationStatus) Valid() bool {
	switch s {
	case VerificationStatusPending,
		VerificationStatusSent,
		VerificationStatusUnderReview,
		VerificationStatusReceived,
		VerificationStatusFailed,
		VerificationStatusRejected:
		return true
	default:
		return false
	}
}

// ParseVerificationStatus accepts provider spellings such as "UNDER-REVIEW"
// or "Under Review".
func ParseVerificationStatus(raw string) (VerificationStatus, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "_")
	status := VerificationStatus(normalized)
	return status, status.Valid()
}

// SessionExpiry distinguishes why a session ended.
type SessionExpiry string

const (
	SessionExpiryHard SessionExpiry = "hard"
	SessionExpirySoft SessionExpiry = "soft"
)

// SessionExpiredEvent is published by the credential layer so presentation
// code can warn the merchant without the network layer depending on it.
type SessionExpiredEvent struct {
	Kind       SessionExpiry
	StatusCode int
	Path       string
	Reason     string
}

// LoggedOutEvent is published after a forced or explicit logout cleared the
// credential and identity state.
type LoggedOutEvent struct {
	Reason     string
	Redirected bool
	RedirectTo string
}
