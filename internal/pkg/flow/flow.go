// Package flow models the password-reset wizard as an explicit finite-state
// machine. Each step of the journey (login, lockout, code request, code
// entry, new password) is a named state with a single transition function,
// so illegal step orders are unrepresentable instead of being guarded by
// scattered boolean flags.
package flow

import (
	"fmt"
	"time"

	"github.com/emmegi/catalog-api/internal/domain"
)

type State int

const (
	// StateLogin: the account accepts password logins.
	StateLogin State = iota
	// StateLocked: too many failed logins; only the reset wizard proceeds.
	StateLocked
	// StateCodeSent: a reset code has been issued and is still pending.
	StateCodeSent
	// StateCodeVerified: the code was confirmed; a new password may be set.
	StateCodeVerified
	// StateDone: terminal; the wizard completed and the session is spent.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateLogin:
		return "login"
	case StateLocked:
		return "locked"
	case StateCodeSent:
		return "code_sent"
	case StateCodeVerified:
		return "code_verified"
	case StateDone:
		return "done"
	}
	return "unknown"
}

type Event int

const (
	EventLoginFailed Event = iota
	EventLoginSucceeded
	EventCodeRequested
	EventCodeVerified
	EventPasswordChanged
	// EventRestart models the user going "back": downstream wizard state is
	// fully discarded, there is no partial resume.
	EventRestart
)

// Next is the single transition function. It returns the successor state or
// an error when the event is illegal in the current state.
func Next(s State, e Event, failedCount int) (State, error) {
	switch e {
	case EventLoginFailed:
		if s != StateLogin {
			return s, illegal(s, "login_failed")
		}
		if failedCount >= domain.LockoutThreshold {
			return StateLocked, nil
		}
		return StateLogin, nil
	case EventLoginSucceeded:
		if s == StateLocked {
			return s, illegal(s, "login_succeeded")
		}
		return StateLogin, nil
	case EventCodeRequested:
		// Requesting a new code is legal from anywhere except the terminal
		// state; it restarts the wizard (the prior session is overwritten).
		if s == StateDone {
			return s, illegal(s, "code_requested")
		}
		return StateCodeSent, nil
	case EventCodeVerified:
		if s != StateCodeSent {
			return s, illegal(s, "code_verified")
		}
		return StateCodeVerified, nil
	case EventPasswordChanged:
		if s != StateCodeVerified {
			return s, illegal(s, "password_changed")
		}
		return StateDone, nil
	case EventRestart:
		return StateLogin, nil
	}
	return s, fmt.Errorf("unknown event %d", e)
}

// Derive reconstructs the wizard state from persisted records: the lockout
// counter and the current verification session. Stateless handlers re-derive
// it on every request — there is no in-memory wizard between calls.
func Derive(attempt *domain.LoginAttempt, sess *domain.VerificationSession, now time.Time) State {
	if sess != nil && sess.Kind == domain.KindPasswordReset && !sess.ExpiredAt(now) {
		if sess.Verified {
			return StateCodeVerified
		}
		return StateCodeSent
	}
	if attempt.Locked() {
		return StateLocked
	}
	return StateLogin
}

func illegal(s State, event string) error {
	return fmt.Errorf("event %s not allowed in state %s: %w", event, s, domain.ErrConflict)
}
