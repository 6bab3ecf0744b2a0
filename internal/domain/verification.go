package domain

import (
	"strings"
	"time"
)

// Verification kinds. A session is only valid for confirmation requests
// presenting the matching kind.
const (
	KindAdminInvite   = "admin_invite"
	KindPasswordReset = "password_reset"
	KindVerification  = "verification"
)

// Credential validity windows. Numeric codes are short-lived; emailed invite
// links stay valid for a day.
const (
	OTPWindow    = 10 * time.Minute
	InviteWindow = 24 * time.Hour
)

// VerificationSession is the persisted unit of truth for the invite and OTP
// workflows. PK: email (normalized). At most one active session exists per
// email — issuing a new credential overwrites any prior pending session,
// whatever its kind. Rows are never deleted on expiry; expiry is computed
// lazily from CreatedAt at confirmation time. Only an explicit invite
// decline removes the row.
type VerificationSession struct {
	Email     string    `json:"email" dynamodbav:"email"`
	Code      string    `json:"-" dynamodbav:"code"`
	Kind      string    `json:"kind" dynamodbav:"kind"`
	Verified  bool      `json:"verified" dynamodbav:"verified"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
}

// Window returns the validity window for the session's kind.
func (v *VerificationSession) Window() time.Duration {
	if v.Kind == KindAdminInvite {
		return InviteWindow
	}
	return OTPWindow
}

// ExpiredAt reports whether the session has aged out at the given instant.
func (v *VerificationSession) ExpiredAt(now time.Time) bool {
	return now.Sub(v.CreatedAt) > v.Window()
}

// ValidKind reports whether k is one of the supported verification kinds.
func ValidKind(k string) bool {
	switch k {
	case KindAdminInvite, KindPasswordReset, KindVerification:
		return true
	}
	return false
}

// NormalizeEmail lower-cases and trims an address. Every session and attempt
// row is keyed by the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
