package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/finwise-app/finwise/internal/platform/httpx"
)

// Notifier delivers the password-reset link out of band. Implementations
// must not block on the actual delivery.
type Notifier interface {
	SendPasswordReset(ctx context.Context, email, link string) error
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	tokens   *TokenIssuer
	notifier Notifier
	baseURL  string
	resetTTL time.Duration
	logger   *slog.Logger
	clock    func() time.Time
}

// NewService constructs a new Service. notifier may be nil when no
// delivery channel is configured.
func NewService(repo Repository, tokens *TokenIssuer, notifier Notifier, baseURL string, resetTTL time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		tokens:   tokens,
		notifier: notifier,
		baseURL:  strings.TrimRight(baseURL, "/"),
		resetTTL: resetTTL,
		logger:   logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithClock overrides the time source, used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.clock = now
	return s
}

// NormalizeEmail trims and lowercases an address; all storage and lookup
// goes through this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and issues a session token. Duplicate
// emails surface as httpx.ErrDuplicate from the storage layer.
func (s *Service) Register(ctx context.Context, email, password, name string) (*Session, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &User{
		ID:           uuid.NewString(),
		Email:        NormalizeEmail(email),
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
		CreatedAt:    s.clock(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return s.newSession(user)
}

// Login validates credentials. Unknown emails and wrong passwords produce
// the same error so callers cannot enumerate accounts.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, errInvalidCredentials()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errInvalidCredentials()
	}
	return s.newSession(user)
}

// ChangePassword replaces the hash after verifying the current password.
// Previously issued session tokens stay valid until they expire.
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return fmt.Errorf("%w: current password does not match", httpx.ErrUnauthorized)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, user.ID, string(hash))
}

// ForgotPassword issues a single-use reset token valid for resetTTL,
// overwriting any previous token. The link is also handed to the
// notifier for out-of-band delivery.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	normalized := NormalizeEmail(email)
	user, err := s.repo.FindByEmail(ctx, normalized)
	if err != nil {
		return "", err
	}
	token := uuid.NewString()
	expiry := s.clock().Add(s.resetTTL)
	if err := s.repo.SetResetToken(ctx, user.ID, token, expiry); err != nil {
		return "", err
	}
	link := s.resetLink(normalized, token)
	if s.notifier != nil {
		if err := s.notifier.SendPasswordReset(ctx, normalized, link); err != nil {
			s.logger.Warn("enqueue reset mail", slog.Any("error", err))
		}
	}
	return link, nil
}

// ResetPassword consumes a reset token. The matching update rejects
// expired tokens with a strict comparison against the current time, and
// clearing the token columns in the same write makes reuse impossible.
func (s *Service) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	ok, err := s.repo.ConsumeResetToken(ctx, NormalizeEmail(email), token, string(hash), s.clock())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: invalid or expired reset token", httpx.ErrUnauthorized)
	}
	return nil
}

func (s *Service) newSession(user *User) (*Session, error) {
	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user.Public()}, nil
}

func (s *Service) resetLink(email, token string) string {
	query := url.Values{}
	query.Set("email", email)
	query.Set("token", token)
	return s.baseURL + "/reset-password?" + query.Encode()
}

func errInvalidCredentials() error {
	return fmt.Errorf("%w: invalid email or password", httpx.ErrUnauthorized)
}
