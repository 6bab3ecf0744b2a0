package invite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/emmegi/catalog-api/internal/config"
	"github.com/emmegi/catalog-api/internal/domain"
	"github.com/emmegi/catalog-api/internal/pkg/id"
	"github.com/emmegi/catalog-api/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

// VerificationRepo is the slice of the verification session store the invite
// workflow needs.
type VerificationRepo interface {
	Upsert(ctx context.Context, sess *domain.VerificationSession) error
	Get(ctx context.Context, email string) (*domain.VerificationSession, error)
	Claim(ctx context.Context, email, code, kind string) error
	Unclaim(ctx context.Context, email string) error
	Delete(ctx context.Context, email string) error
}

type UserRepo interface {
	Create(ctx context.Context, user *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, fields map[string]interface{}) error
}

type GrantRepo interface {
	Upsert(ctx context.Context, grant *domain.RoleGrant) error
	ListByRole(ctx context.Context, role string) ([]domain.RoleGrant, error)
}

type Mailer interface {
	SendEmail(to, subject, body string) error
}

// Service drives the admin invitation workflow: issuing invite links and
// handling the accept/decline confirmation.
type Service struct {
	verifications VerificationRepo
	users         UserRepo
	grants        GrantRepo
	mailer        Mailer
	cfg           *config.Config
	logger        *slog.Logger
	now           func() time.Time
}

func NewService(verifications VerificationRepo, users UserRepo, grants GrantRepo, mailer Mailer, cfg *config.Config, logger *slog.Logger) *Service {
	return &Service{
		verifications: verifications,
		users:         users,
		grants:        grants,
		mailer:        mailer,
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
	}
}

// Issue creates an admin invitation for the given email and sends the invite
// email with accept and decline links. Re-issuing for the same email replaces
// any previous pending invitation, so only the newest token is honored.
func (s *Service) Issue(ctx context.Context, email, invitedBy string) error {
	email = domain.NormalizeEmail(email)

	inviteToken, err := token.NewInviteToken()
	if err != nil {
		return fmt.Errorf("generate invite token: %w", err)
	}

	sess := &domain.VerificationSession{
		Email:     email,
		Code:      inviteToken,
		Kind:      domain.KindAdminInvite,
		Verified:  false,
		CreatedAt: s.now(),
	}
	if err := s.verifications.Upsert(ctx, sess); err != nil {
		return fmt.Errorf("store invitation: %w", err)
	}

	acceptURL := fmt.Sprintf("%s/v1/invites/confirm?email=%s&token=%s&action=accept", s.cfg.AppBaseURL, email, inviteToken)
	declineURL := fmt.Sprintf("%s/v1/invites/confirm?email=%s&token=%s&action=decline", s.cfg.AppBaseURL, email, inviteToken)

	body := fmt.Sprintf(`<p>You have been invited by %s to become an administrator.</p>
<p><a href="%s">Accept invitation</a></p>
<p><a href="%s">Decline invitation</a></p>
<p>This invitation expires in 24 hours.</p>`, invitedBy, acceptURL, declineURL)

	if err := s.mailer.SendEmail(email, "Administrator invitation", body); err != nil {
		// The invitation stays stored; the admin can re-issue to retry.
		s.logger.Error("failed to send invite email", "email", email, "error", err)
		return fmt.Errorf("send invite email: %w", err)
	}

	s.logger.Info("admin invitation issued", "email", email, "invited_by", invitedBy)
	return nil
}

// ConfirmResult reports the outcome of an accepted invitation. The one-time
// password is generated per acceptance and returned exactly once.
type ConfirmResult struct {
	Accepted        bool
	OneTimePassword string
}

// Confirm resolves an invitation link. Accepting claims the session first
// (single winner under concurrent clicks), then creates or updates the user
// with a freshly generated one-time password and records the role grant.
// Declining removes the pending invitation.
func (s *Service) Confirm(ctx context.Context, email, inviteToken, action string) (*ConfirmResult, error) {
	email = domain.NormalizeEmail(email)

	sess, err := s.verifications.Get(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("no pending invitation: %w", domain.ErrInvalidToken)
		}
		return nil, err
	}
	if sess.Kind != domain.KindAdminInvite || sess.Code != inviteToken {
		return nil, fmt.Errorf("token mismatch: %w", domain.ErrInvalidToken)
	}
	if sess.ExpiredAt(s.now()) {
		return nil, fmt.Errorf("invitation older than 24h: %w", domain.ErrExpired)
	}
	if sess.Verified {
		return nil, fmt.Errorf("invitation already used: %w", domain.ErrInvalidToken)
	}

	switch action {
	case "decline":
		if err := s.verifications.Delete(ctx, email); err != nil {
			return nil, fmt.Errorf("remove invitation: %w", err)
		}
		s.notifyAdmins(fmt.Sprintf("The invitation for %s was declined.", email))
		s.logger.Info("admin invitation declined", "email", email)
		return &ConfirmResult{Accepted: false}, nil

	case "accept":
		// Claim first: the conditional write makes exactly one concurrent
		// accept succeed; the loser sees a conflict.
		if err := s.verifications.Claim(ctx, email, inviteToken, domain.KindAdminInvite); err != nil {
			return nil, fmt.Errorf("invitation already claimed: %w", domain.ErrInvalidToken)
		}

		oneTimePassword, err := s.provisionAdmin(ctx, email)
		if err != nil {
			// Roll the claim back so the invitee can retry the same link.
			if uerr := s.verifications.Unclaim(ctx, email); uerr != nil {
				s.logger.Error("failed to release claimed invitation", "email", email, "error", uerr)
			}
			return nil, err
		}

		s.notifyAdmins(fmt.Sprintf("%s accepted the administrator invitation.", email))
		s.logger.Info("admin invitation accepted", "email", email)
		return &ConfirmResult{Accepted: true, OneTimePassword: oneTimePassword}, nil

	default:
		return nil, fmt.Errorf("unknown action %q: %w", action, domain.ErrBadRequest)
	}
}

// provisionAdmin creates the admin identity (or resets the password of an
// existing one) and records the role grant. Returns the generated one-time
// password the invitee must change on first login.
func (s *Service) provisionAdmin(ctx context.Context, email string) (string, error) {
	oneTimePassword, err := token.NewOneTimePassword(8)
	if err != nil {
		return "", fmt.Errorf("generate one-time password: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(oneTimePassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	var userID string
	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		userID = existing.UserID
		if err := s.users.Update(ctx, userID, map[string]interface{}{
			"password_hash": string(hash),
			"role":          domain.RoleAdmin,
		}); err != nil {
			return "", fmt.Errorf("update admin identity: %w", err)
		}
	case errors.Is(err, domain.ErrNotFound):
		userID = id.New()
		now := s.now()
		user := &domain.User{
			UserID:         userID,
			Email:          email,
			PasswordHash:   string(hash),
			Role:           domain.RoleAdmin,
			EmailConfirmed: true,
			AuthProvider:   "local",
			Enable:         true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return "", fmt.Errorf("create admin identity: %w", err)
		}
	default:
		return "", err
	}

	grant := &domain.RoleGrant{
		UserID:    userID,
		Role:      domain.RoleAdmin,
		GrantedBy: "invitation",
		CreatedAt: s.now(),
	}
	if err := s.grants.Upsert(ctx, grant); err != nil {
		return "", fmt.Errorf("record role grant: %w", err)
	}
	return oneTimePassword, nil
}

// notifyAdmins emails every fixed admin about the invitation outcome. Delivery
// failures are logged and do not affect the confirmation result.
func (s *Service) notifyAdmins(message string) {
	for _, admin := range s.cfg.AdminAlertEmails {
		if err := s.mailer.SendEmail(admin, "Administrator invitation update", "<p>"+message+"</p>"); err != nil {
			s.logger.Error("failed to notify admin", "email", admin, "error", err)
		}
	}
}

// Admin pairs a role grant with its user record for the dashboard listing.
type Admin struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	GrantedBy string    `json:"granted_by"`
	CreatedAt time.Time `json:"granted_at"`
}

// ListAdmins returns the users currently holding the admin role, joined with
// their grant records. Grants whose user row is missing are skipped.
func (s *Service) ListAdmins(ctx context.Context) ([]Admin, error) {
	grants, err := s.grants.ListByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	admins := make([]Admin, 0, len(grants))
	for _, g := range grants {
		user, err := s.users.Get(ctx, g.UserID)
		if err != nil {
			s.logger.Warn("admin grant without user record", "user_id", g.UserID)
			continue
		}
		admins = append(admins, Admin{
			UserID:    user.UserID,
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			GrantedBy: g.GrantedBy,
			CreatedAt: g.CreatedAt,
		})
	}
	return admins, nil
}
