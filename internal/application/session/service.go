package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/emmegi/catalog-api/internal/domain"
	"github.com/emmegi/catalog-api/internal/infrastructure/google"
	"github.com/emmegi/catalog-api/internal/pkg/id"
	"github.com/emmegi/catalog-api/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

const refreshWindow = 30 * 24 * time.Hour

type SessionRepo interface {
	Put(ctx context.Context, sess *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	GetByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error)
	RotateRefreshToken(ctx context.Context, sessionID, refreshToken string, expiresAt int64) error
	Update(ctx context.Context, sessionID string, fields map[string]interface{}) error
}

type UserRepo interface {
	Create(ctx context.Context, user *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, fields map[string]interface{}) error
}

type AttemptRepo interface {
	Get(ctx context.Context, email string) (*domain.LoginAttempt, error)
	Increment(ctx context.Context, email string) (int, error)
	Reset(ctx context.Context, email string) error
}

type VerificationRepo interface {
	Get(ctx context.Context, email string) (*domain.VerificationSession, error)
	Delete(ctx context.Context, email string) error
}

type GrantRepo interface {
	Upsert(ctx context.Context, grant *domain.RoleGrant) error
}

type TokenSigner interface {
	Sign(userID, role, sessionID string) (string, error)
}

type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (*google.Payload, error)
}

// Tokens is what a successful login or refresh hands back to the client.
type Tokens struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *domain.User `json:"user"`
}

// Service handles authentication: password login for admins with lockout,
// Google sign-in for visitors, and refresh token rotation.
type Service struct {
	sessions      SessionRepo
	users         UserRepo
	attempts      AttemptRepo
	verifications VerificationRepo
	grants        GrantRepo
	signer        TokenSigner
	googles       GoogleVerifier
	logger        *slog.Logger
	now           func() time.Time
}

func NewService(sessions SessionRepo, users UserRepo, attempts AttemptRepo, verifications VerificationRepo, grants GrantRepo, signer TokenSigner, googles GoogleVerifier, logger *slog.Logger) *Service {
	return &Service{
		sessions:      sessions,
		users:         users,
		attempts:      attempts,
		verifications: verifications,
		grants:        grants,
		signer:        signer,
		googles:       googles,
		logger:        logger,
		now:           time.Now,
	}
}

// Login authenticates with email and password. Three consecutive failures
// lock the account until a password reset clears the counter.
func (s *Service) Login(ctx context.Context, email, password string) (*Tokens, error) {
	email = domain.NormalizeEmail(email)

	attempt, err := s.attempts.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	if attempt.Locked() {
		return nil, fmt.Errorf("account locked after %d failures: %w", attempt.FailedCount, domain.ErrLocked)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, s.recordFailure(ctx, email)
		}
		return nil, err
	}
	if !user.Enable {
		return nil, fmt.Errorf("account disabled: %w", domain.ErrForbidden)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, s.recordFailure(ctx, email)
	}

	if err := s.attempts.Reset(ctx, email); err != nil {
		s.logger.Error("failed to reset attempt counter", "email", email, "error", err)
	}

	s.applyPendingInvite(ctx, user)

	return s.openSession(ctx, user)
}

// GoogleLogin signs a visitor in with a Google ID token, creating the user on
// first sight.
func (s *Service) GoogleLogin(ctx context.Context, idToken string) (*Tokens, error) {
	payload, err := s.googles.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}
	if !payload.EmailVerified {
		return nil, fmt.Errorf("google email not verified: %w", domain.ErrUnauthorized)
	}
	email := domain.NormalizeEmail(payload.Email)

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		now := s.now()
		user = &domain.User{
			UserID:         id.New(),
			Email:          email,
			Role:           domain.RoleUser,
			FirstName:      payload.FirstName,
			LastName:       payload.LastName,
			EmailConfirmed: true,
			AuthProvider:   "google",
			GoogleSub:      payload.Sub,
			Enable:         true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("create google user: %w", err)
		}
	case err != nil:
		return nil, err
	default:
		if !user.Enable {
			return nil, fmt.Errorf("account disabled: %w", domain.ErrForbidden)
		}
	}

	return s.openSession(ctx, user)
}

// Refresh exchanges a valid refresh token for a new token pair, rotating the
// stored refresh token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	sess, err := s.sessions.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("unknown refresh token: %w", domain.ErrUnauthorized)
	}
	if !sess.Enable {
		return nil, fmt.Errorf("session closed: %w", domain.ErrUnauthorized)
	}
	if s.now().Unix() > sess.RefreshExpiresAt {
		return nil, fmt.Errorf("refresh token expired: %w", domain.ErrUnauthorized)
	}

	user, err := s.users.Get(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}

	newRefresh, err := token.NewRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	expiresAt := s.now().Add(refreshWindow).Unix()
	if err := s.sessions.RotateRefreshToken(ctx, sess.SessionID, newRefresh, expiresAt); err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	access, err := s.signer.Sign(user.UserID, user.Role, sess.SessionID)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	return &Tokens{AccessToken: access, RefreshToken: newRefresh, User: user}, nil
}

// Logout disables the session so its refresh token stops working.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Update(ctx, sessionID, map[string]interface{}{
		"enable": false,
	})
}

// GetCurrent returns the session with its user loaded.
func (s *Service) GetCurrent(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Get(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	sess.User = user
	return sess, nil
}

func (s *Service) openSession(ctx context.Context, user *domain.User) (*Tokens, error) {
	refresh, err := token.NewRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	now := s.now()
	sess := &domain.Session{
		SessionID:        id.New(),
		UserID:           user.UserID,
		Enable:           true,
		RefreshToken:     refresh,
		RefreshExpiresAt: now.Add(refreshWindow).Unix(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	access, err := s.signer.Sign(user.UserID, user.Role, sess.SessionID)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	s.logger.Info("session opened", "user_id", user.UserID, "role", user.Role)
	return &Tokens{AccessToken: access, RefreshToken: refresh, User: user}, nil
}

// recordFailure bumps the failure counter and reports lockout once the
// threshold is crossed. The counter write is an atomic add, so concurrent
// failures cannot undercount.
func (s *Service) recordFailure(ctx context.Context, email string) error {
	count, err := s.attempts.Increment(ctx, email)
	if err != nil {
		s.logger.Error("failed to record login failure", "email", email, "error", err)
		return fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if count >= domain.LockoutThreshold {
		s.logger.Warn("account locked", "email", email, "failed_count", count)
		return fmt.Errorf("account locked after %d failures: %w", count, domain.ErrLocked)
	}
	return fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
}

// applyPendingInvite promotes the user if a verified admin invitation is
// waiting for this email. The grant was deferred to first login so the code
// path that verified the invite never needed the user to exist yet.
func (s *Service) applyPendingInvite(ctx context.Context, user *domain.User) {
	sess, err := s.verifications.Get(ctx, user.Email)
	if err != nil || sess.Kind != domain.KindAdminInvite || !sess.Verified {
		return
	}
	if err := s.users.Update(ctx, user.UserID, map[string]interface{}{
		"role": domain.RoleAdmin,
	}); err != nil {
		s.logger.Error("failed to promote invited admin", "user_id", user.UserID, "error", err)
		return
	}
	user.Role = domain.RoleAdmin
	grant := &domain.RoleGrant{
		UserID:    user.UserID,
		Role:      domain.RoleAdmin,
		GrantedBy: "invitation",
		CreatedAt: s.now(),
	}
	if err := s.grants.Upsert(ctx, grant); err != nil {
		s.logger.Error("failed to record role grant", "user_id", user.UserID, "error", err)
	}
	if err := s.verifications.Delete(ctx, user.Email); err != nil {
		s.logger.Error("failed to consume invite session", "email", user.Email, "error", err)
	}
}
