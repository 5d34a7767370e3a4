package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/archvault/archvault/internal/shared"
)

// ErrEmailTaken indicates a sign-up against an already registered email.
var ErrEmailTaken = errors.New("auth: email already registered")

const uniqueViolation = "23505"

// Mailer enqueues outbound mail. Delivery is out of band; sign-up must not
// fail because a mail job could not be queued.
type Mailer interface {
	EnqueueVerificationMail(ctx context.Context, email, fullName string) error
}

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	mailer Mailer
}

// NewService constructs a new Service.
func NewService(repo Repository, mailer Mailer) *Service {
	return &Service{repo: repo, mailer: mailer}
}

// Authenticate validates email/password credentials. Every failure collapses
// to ErrInvalidCredentials so callers can't probe which part was wrong.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// SignUp registers a new account with its profile and queues the
// verification email. Duplicate emails surface as ErrEmailTaken, a value the
// caller must branch on.
func (s *Service) SignUp(ctx context.Context, email, password, fullName string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.repo.CreateUser(ctx, email, string(hash), strings.TrimSpace(fullName))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	if s.mailer != nil {
		// Queued mail is best effort; the account already exists.
		_ = s.mailer.EnqueueVerificationMail(ctx, email, fullName)
	}
	return user, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
