package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"callbridge/internal/apperr"
	"callbridge/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound  = errors.New("auth: user not found")
	ErrDuplicateUser = errors.New("auth: username already exists")
)

// Repository is the persistence contract for users.
// Username uniqueness must be enforced by the store itself (unique index),
// not by a read-before-write in the service.
type Repository interface {
	Create(ctx context.Context, u User) error
	FindByUsername(ctx context.Context, username string) (User, error)
}

// Service registers and authenticates users.
type Service struct {
	repo   Repository
	hasher *Hasher
	clock  func() time.Time
}

func NewService(repo Repository, hasher *Hasher) *Service {
	if hasher == nil {
		hasher = NewHasher(0)
	}
	return &Service{repo: repo, hasher: hasher, clock: time.Now}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (Profile, error) {
	username := strings.TrimSpace(req.Username)
	mobile := strings.TrimSpace(req.Mobile)
	if username == "" || mobile == "" || req.Password == "" {
		return Profile{}, apperr.Validation("Username, mobile and password are required")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return Profile{}, apperr.Validation("Password must be at most 72 bytes")
		}
		return Profile{}, apperr.Internal(err)
	}

	u := User{
		ID:           uuid.NewString(),
		Username:     username,
		Mobile:       mobile,
		PasswordHash: hash,
		CreatedAt:    s.clock().UTC(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			return Profile{}, apperr.Conflict("Username already exists")
		}
		logger.From(ctx).Error("user create failed", "username", username, "err", err)
		return Profile{}, apperr.Internal(err)
	}

	logger.From(ctx).Info("user registered", "user_id", u.ID)
	return u.Profile(), nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (Profile, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return Profile{}, apperr.Validation("Username and password are required")
	}

	u, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Profile{}, apperr.Auth("Invalid username or password")
		}
		logger.From(ctx).Error("user lookup failed", "username", username, "err", err)
		return Profile{}, apperr.Internal(err)
	}
	if err := s.hasher.Compare(u.PasswordHash, req.Password); err != nil {
		return Profile{}, apperr.Auth("Invalid username or password")
	}
	return u.Profile(), nil
}
