package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/emmegi/catalog-api/internal/config"
	"github.com/emmegi/catalog-api/internal/domain"
	"github.com/emmegi/catalog-api/internal/pkg/flow"
	"github.com/emmegi/catalog-api/internal/pkg/id"
	"github.com/emmegi/catalog-api/internal/pkg/token"
	"github.com/emmegi/catalog-api/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

const otpLength = 6

type VerificationRepo interface {
	Upsert(ctx context.Context, sess *domain.VerificationSession) error
	Get(ctx context.Context, email string) (*domain.VerificationSession, error)
	Claim(ctx context.Context, email, code, kind string) error
	Delete(ctx context.Context, email string) error
}

type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, fields map[string]interface{}) error
}

type AttemptRepo interface {
	Get(ctx context.Context, email string) (*domain.LoginAttempt, error)
	Reset(ctx context.Context, email string) error
}

type NotificationRepo interface {
	Put(ctx context.Context, n *domain.Notification) error
}

type Mailer interface {
	SendEmail(to, subject, body string) error
}

type AlertPublisher interface {
	PublishAlert(ctx context.Context, subject, message string) error
}

// Service implements the one-time code workflow: sending codes, verifying
// them, and completing the password change a verified code unlocks.
type Service struct {
	verifications VerificationRepo
	users         UserRepo
	attempts      AttemptRepo
	notifications NotificationRepo
	mailer        Mailer
	alerts        AlertPublisher
	cfg           *config.Config
	logger        *slog.Logger
	now           func() time.Time
}

func NewService(verifications VerificationRepo, users UserRepo, attempts AttemptRepo, notifications NotificationRepo, mailer Mailer, alerts AlertPublisher, cfg *config.Config, logger *slog.Logger) *Service {
	return &Service{
		verifications: verifications,
		users:         users,
		attempts:      attempts,
		notifications: notifications,
		mailer:        mailer,
		alerts:        alerts,
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
	}
}

// Send generates a fresh one-time code for the email and kind, replacing any
// previous pending session for that email, and delivers it by email. For
// password resets it additionally alerts the other fixed admins.
func (s *Service) Send(ctx context.Context, email, kind string) error {
	email = domain.NormalizeEmail(email)
	if err := validate.Email(email); err != nil {
		return fmt.Errorf("invalid email: %w", domain.ErrBadRequest)
	}
	if !domain.ValidKind(kind) {
		return fmt.Errorf("unknown verification kind %q: %w", kind, domain.ErrBadRequest)
	}

	code, err := token.NewOTP(otpLength)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	sess := &domain.VerificationSession{
		Email:     email,
		Code:      code,
		Kind:      kind,
		Verified:  false,
		CreatedAt: s.now(),
	}
	if err := s.verifications.Upsert(ctx, sess); err != nil {
		return fmt.Errorf("store verification session: %w", err)
	}

	body := fmt.Sprintf("<p>Your verification code is <strong>%s</strong>.</p><p>It expires in 10 minutes.</p>", code)
	if err := s.mailer.SendEmail(email, "Your verification code", body); err != nil {
		// Keep the session; a resend issues a fresh code over it anyway.
		s.logger.Error("failed to send verification code", "email", email, "error", err)
		return fmt.Errorf("send verification email: %w", err)
	}

	// Only resets for fixed-admin accounts are security-relevant; a regular
	// visitor's reset must not fan out to the admins.
	if kind == domain.KindPasswordReset && s.cfg.IsFixedAdmin(email) {
		s.alertPasswordReset(ctx, email)
	}

	s.logger.Info("verification code sent", "email", email, "kind", kind)
	return nil
}

// Verify checks the submitted code against the pending session. The code must
// match exactly for the same email and kind, be within its 10 minute window,
// and not have been used before. A successful check claims the session so the
// code cannot be replayed.
func (s *Service) Verify(ctx context.Context, email, code, kind string) error {
	email = domain.NormalizeEmail(email)

	sess, err := s.verifications.Get(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no pending code: %w", domain.ErrInvalidCode)
		}
		return err
	}
	if sess.Kind != kind || sess.Code != code {
		return fmt.Errorf("code mismatch: %w", domain.ErrInvalidCode)
	}
	if sess.ExpiredAt(s.now()) {
		return fmt.Errorf("code older than %s: %w", sess.Window(), domain.ErrExpired)
	}
	if sess.Verified {
		return fmt.Errorf("code already used: %w", domain.ErrInvalidCode)
	}

	if err := s.verifications.Claim(ctx, email, code, kind); err != nil {
		return fmt.Errorf("code already claimed: %w", domain.ErrInvalidCode)
	}

	if kind == domain.KindVerification {
		s.confirmEmail(ctx, email)
	}

	s.logger.Info("verification code accepted", "email", email, "kind", kind)
	return nil
}

// ChangePassword completes a password reset. It requires the wizard to be in
// the code-verified state, applies the new password, consumes the session, and
// clears the lockout counter so the account can log in again.
func (s *Service) ChangePassword(ctx context.Context, email, newPassword string) error {
	email = domain.NormalizeEmail(email)
	if err := validate.Password(newPassword); err != nil {
		return fmt.Errorf("weak password: %w", domain.ErrBadRequest)
	}

	sess, err := s.verifications.Get(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no verified session: %w", domain.ErrInvalidCode)
		}
		return err
	}

	attempt, err := s.attempts.Get(ctx, email)
	if err != nil {
		return err
	}
	if state := flow.Derive(attempt, sess, s.now()); state != flow.StateCodeVerified {
		return fmt.Errorf("password change requires a verified code, state is %s: %w", state, domain.ErrConflict)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.Update(ctx, user.UserID, map[string]interface{}{
		"password_hash": string(hash),
	}); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.verifications.Delete(ctx, email); err != nil {
		s.logger.Error("failed to consume verification session", "email", email, "error", err)
	}
	if err := s.attempts.Reset(ctx, email); err != nil {
		s.logger.Error("failed to clear lockout counter", "email", email, "error", err)
	}

	s.logger.Info("password changed", "email", email)
	return nil
}

// confirmEmail marks the user's email as confirmed after a successful
// verification-kind code. Missing user is not an error: verification codes
// can be sent ahead of account creation.
func (s *Service) confirmEmail(ctx context.Context, email string) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return
	}
	if err := s.users.Update(ctx, user.UserID, map[string]interface{}{
		"email_confirmed": true,
	}); err != nil {
		s.logger.Error("failed to mark email confirmed", "email", email, "error", err)
	}
}

// alertPasswordReset tells the other fixed admins that a reset started, by
// email and in-app notification, plus the SNS topic when configured. All of
// it is best effort.
func (s *Service) alertPasswordReset(ctx context.Context, email string) {
	message := fmt.Sprintf("A password reset was started for %s.", email)

	for _, admin := range s.cfg.OtherFixedAdmins(email) {
		if err := s.mailer.SendEmail(admin, "Password reset started", "<p>"+message+"</p>"); err != nil {
			s.logger.Error("failed to alert admin", "email", admin, "error", err)
		}
		if user, err := s.users.GetByEmail(ctx, admin); err == nil {
			n := &domain.Notification{
				NotificationID: id.New(),
				UserID:         user.UserID,
				Message:        message,
				CreatedAt:      s.now(),
				UpdatedAt:      s.now(),
			}
			if err := s.notifications.Put(ctx, n); err != nil {
				s.logger.Error("failed to store notification", "user_id", user.UserID, "error", err)
			}
		}
	}

	if s.alerts != nil {
		if err := s.alerts.PublishAlert(ctx, "Password reset started", message); err != nil {
			s.logger.Error("failed to publish security alert", "error", err)
		}
	}
}
