package domain

// LockoutThreshold is the number of consecutive failed password logins after
// which an account is locked until a successful password reset.
const LockoutThreshold = 3

// LoginAttempt tracks consecutive failed password logins per email.
// PK: email (normalized). The counter is incremented atomically server-side
// and cleared by a successful login or a completed password reset.
type LoginAttempt struct {
	Email       string    `json:"email" dynamodbav:"email"`
	FailedCount int       `json:"failed_count" dynamodbav:"failed_count"`
	UpdatedAt   int64     `json:"updated_at" dynamodbav:"updated_at"`
}

// Locked reports whether the account has hit the lockout threshold.
func (a *LoginAttempt) Locked() bool {
	return a != nil && a.FailedCount >= LockoutThreshold
}
