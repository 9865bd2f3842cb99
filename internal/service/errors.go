package service

import "fmt"

// Code classifies a rejection.  Callers branch on the code to tell "full,
// try the waitlist" apart from "invalid request" and "not authorized".
type Code string

const (
	CodeNotFound         Code = "NOT_FOUND"
	CodeInvalidInput     Code = "INVALID_INPUT"
	CodeForbidden        Code = "FORBIDDEN"
	CodeQuotaExceeded    Code = "QUOTA_EXCEEDED"
	CodeCapacityExceeded Code = "CAPACITY_EXCEEDED"
	CodeConflict         Code = "CONFLICT"
)

// RemediationJoinWaitlist is suggested when a session instance is full.
const RemediationJoinWaitlist = "join_waitlist"

// Rejection is a typed, user-facing refusal of an engine operation.
type Rejection struct {
	Code        Code
	Message     string
	Limit       int    // set for QUOTA_EXCEEDED
	Remediation string // optional follow-up action for the caller
}

func (r *Rejection) Error() string {
	if r.Message == "" {
		return string(r.Code)
	}
	return string(r.Code) + ": " + r.Message
}

// Is matches any rejection with the same code, so errors.Is(err,
// ErrCapacityExceeded) holds for every capacity rejection.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Code == r.Code
}

// Sentinels for errors.Is.
var (
	ErrNotFound         = &Rejection{Code: CodeNotFound}
	ErrInvalidInput     = &Rejection{Code: CodeInvalidInput}
	ErrForbidden        = &Rejection{Code: CodeForbidden}
	ErrQuotaExceeded    = &Rejection{Code: CodeQuotaExceeded}
	ErrCapacityExceeded = &Rejection{Code: CodeCapacityExceeded}
	ErrConflict         = &Rejection{Code: CodeConflict}
)

func reject(code Code, format string, args ...any) *Rejection {
	return &Rejection{Code: code, Message: fmt.Sprintf(format, args...)}
}
