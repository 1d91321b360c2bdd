package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fieldops/crewroster/internal/profile"
)

// ErrInvalidKey is returned when the provided API key does not match any profile.
var ErrInvalidKey = errors.New("invalid API key")

// ErrInvalidEmail is returned by Register for malformed e-mail addresses.
var ErrInvalidEmail = errors.New("invalid email address")

const (
	keyScheme    = "crew_"
	keyPrefixLen = 12
)

// Service provides authentication operations over user profiles.
type Service struct {
	profiles   profile.Repository
	bcryptCost int
}

// NewService creates a new auth Service.
func NewService(profiles profile.Repository, bcryptCost int) *Service {
	return &Service{
		profiles:   profiles,
		bcryptCost: bcryptCost,
	}
}

// GenerateKey creates a new API key. Returns the raw key, its lookup prefix,
// and the bcrypt hash. The raw key is: 32 random bytes -> base64url -> prepend "crew_".
func (s *Service) GenerateKey() (rawKey, prefix, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", fmt.Errorf("generating random bytes: %w", err)
	}

	rawKey = keyScheme + base64.RawURLEncoding.EncodeToString(b)
	prefix = rawKey[:keyPrefixLen]

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(rawKey), s.bcryptCost)
	if err != nil {
		return "", "", "", fmt.Errorf("hashing key: %w", err)
	}
	hash = string(hashBytes)

	return rawKey, prefix, hash, nil
}

// Authenticate resolves a raw API key to an Identity. It extracts the prefix,
// looks up candidates, and bcrypt-compares each one.
func (s *Service) Authenticate(ctx context.Context, rawKey string) (*Identity, error) {
	if len(rawKey) < keyPrefixLen {
		return nil, ErrInvalidKey
	}

	candidates, err := s.profiles.FindByPrefix(ctx, rawKey[:keyPrefixLen])
	if err != nil {
		return nil, fmt.Errorf("finding profiles by prefix: %w", err)
	}

	for _, p := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(p.APIKeyHash), []byte(rawKey)) == nil {
			return NewIdentity(&p), nil
		}
	}

	return nil, ErrInvalidKey
}

// IdentityFor reloads the profile behind a session so company membership
// changes made after the token was issued are visible.
func (s *Service) IdentityFor(ctx context.Context, userID uuid.UUID) (*Identity, error) {
	p, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("loading profile for session: %w", err)
	}
	return NewIdentity(p), nil
}

// Register creates an unlinked profile and returns it with its raw API key.
// The key is only available here.
func (s *Service) Register(ctx context.Context, email, displayName string) (*profile.Profile, string, error) {
	email = profile.NormalizeEmail(email)
	if !profile.ValidEmail(email) {
		return nil, "", ErrInvalidEmail
	}

	rawKey, prefix, hash, err := s.GenerateKey()
	if err != nil {
		return nil, "", err
	}

	p := &profile.Profile{
		Email:        email,
		DisplayName:  displayName,
		APIKeyPrefix: prefix,
		APIKeyHash:   hash,
	}
	if err := s.profiles.Create(ctx, p); err != nil {
		return nil, "", fmt.Errorf("creating profile: %w", err)
	}

	return p, rawKey, nil
}

// BootstrapSuperAdmin creates the first super admin profile if none exists.
// Returns the raw API key (only displayed once). If a super admin already
// exists, returns an empty string.
func (s *Service) BootstrapSuperAdmin(ctx context.Context, email string) (string, error) {
	count, err := s.profiles.CountSuperAdmins(ctx)
	if err != nil {
		return "", fmt.Errorf("counting super admins: %w", err)
	}

	if count > 0 {
		return "", nil
	}

	email = profile.NormalizeEmail(email)
	if !profile.ValidEmail(email) {
		return "", ErrInvalidEmail
	}

	rawKey, prefix, hash, err := s.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("generating super admin key: %w", err)
	}

	p := &profile.Profile{
		Email:        email,
		DisplayName:  "operator",
		IsSuperAdmin: true,
		APIKeyPrefix: prefix,
		APIKeyHash:   hash,
	}

	if err := s.profiles.Create(ctx, p); err != nil {
		return "", fmt.Errorf("creating super admin: %w", err)
	}

	slog.Info("super admin created", "email", email, "prefix", prefix)

	return rawKey, nil
}
