// Package service provides the business logic for accounts and tasks,
// delegating persistence to repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/atinyakov/GophTasks/internal/credentials"
	"github.com/atinyakov/GophTasks/internal/models"
	"github.com/atinyakov/GophTasks/internal/repository"
	"github.com/atinyakov/GophTasks/internal/session"
)

// UserRepository defines the persistence operations
// required by the user service.
type UserRepository interface {
	// Create stores a new user. A taken email yields repository.ErrDuplicate.
	Create(ctx context.Context, email, passwordHash string) (*models.User, error)
	// FindByEmail returns repository.ErrNotFound when no user matches.
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// FindByID returns repository.ErrNotFound when no user matches.
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(digest, plaintext string) (bool, error)
}

// UserService is the user directory: registration, lookup and
// authentication.
type UserService struct {
	repo   UserRepository
	hasher PasswordHasher

	dummyMu     sync.Mutex
	dummyDigest string
}

// NewUserService constructs a UserService.
func NewUserService(repo UserRepository, hasher PasswordHasher) *UserService {
	return &UserService{repo: repo, hasher: hasher}
}

// Register creates a user with a hashed password. The email is stored as
// given and compared case-sensitively.
func (s *UserService) Register(ctx context.Context, email, password string) (*models.User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, invalid("email", "email is required")
	}

	existing, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		switch {
		case errors.Is(err, credentials.ErrEmptyPassword):
			return nil, invalid("password", "password is required")
		case errors.Is(err, credentials.ErrPasswordTooLong):
			return nil, invalid("password", fmt.Sprintf("password must be at most %d bytes", credentials.MaxPasswordBytes))
		}
		return nil, err
	}

	user, err := s.repo.Create(ctx, email, digest)
	if err != nil {
		// Lost a race with a concurrent registration.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("register user: %w", err)
	}
	return user, nil
}

// FindByEmail returns the user or nil when none exists.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

// FindByID returns the user or nil when none exists.
func (s *UserService) FindByID(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

// Authenticate returns the user when email and password match, and nil
// otherwise. Unknown email and wrong password are indistinguishable to the
// caller; both paths run one bcrypt comparison.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if user == nil {
		digest, err := s.dummy()
		if err != nil {
			return nil, err
		}
		if _, err := s.hasher.Verify(digest, password); err != nil {
			return nil, fmt.Errorf("verify dummy digest: %w", err)
		}
		return nil, nil
	}

	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("verify password for user %d: %w", user.ID, err)
	}
	if !ok {
		return nil, nil
	}
	return user, nil
}

// LoadIdentity resolves a session-bound user ID. It satisfies
// session.IdentityLoader.
func (s *UserService) LoadIdentity(ctx context.Context, id int64) (session.Identity, error) {
	u, err := s.FindByID(ctx, id)
	if err != nil || u == nil {
		return nil, err
	}
	return u, nil
}

// dummy returns the digest compared against for unknown emails. A failed
// hash is not cached, the next call retries.
func (s *UserService) dummy() (string, error) {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()

	if s.dummyDigest != "" {
		return s.dummyDigest, nil
	}
	digest, err := s.hasher.Hash("no-such-user-placeholder")
	if err != nil {
		return "", fmt.Errorf("prepare dummy digest: %w", err)
	}
	s.dummyDigest = digest
	return digest, nil
}
