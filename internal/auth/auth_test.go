package auth_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/fieldops/crewroster/internal/access"
	"github.com/fieldops/crewroster/internal/auth"
	"github.com/fieldops/crewroster/internal/profile"
	"github.com/fieldops/crewroster/internal/store/memory"
)

const testBcryptCost = 4 // low cost for fast tests

func setupService(t *testing.T) (*auth.Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	return auth.NewService(st.Profiles(), testBcryptCost), st
}

// --- GenerateKey Tests ---

func TestGenerateKey_Format(t *testing.T) {
	svc, _ := setupService(t)

	rawKey, prefix, hash, err := svc.GenerateKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rawKey, "crew_"), "raw key should start with crew_")
	assert.Len(t, prefix, 12)
	assert.Equal(t, rawKey[:12], prefix)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte(rawKey)))
}

func TestGenerateKey_Uniqueness(t *testing.T) {
	svc, _ := setupService(t)

	key1, _, _, err := svc.GenerateKey()
	require.NoError(t, err)
	key2, _, _, err := svc.GenerateKey()
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2)
}

// --- Register / Authenticate Tests ---

func TestRegister_ThenAuthenticate(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	p, rawKey, err := svc.Register(ctx, "  Jane@X.com ", "Jane")
	require.NoError(t, err)
	assert.Equal(t, "jane@x.com", p.Email)
	assert.Nil(t, p.CompanyID)

	identity, err := svc.Authenticate(ctx, rawKey)
	require.NoError(t, err)
	assert.Equal(t, p.ID, identity.UserID)
	assert.Equal(t, "jane@x.com", identity.Email)
	assert.False(t, identity.IsSuperAdmin)
}

func TestRegister_InvalidEmail(t *testing.T) {
	svc, _ := setupService(t)

	_, _, err := svc.Register(context.Background(), "not-an-email", "Nobody")
	assert.ErrorIs(t, err, auth.ErrInvalidEmail)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "jane@x.com", "Jane")
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, "JANE@x.com", "Jane again")
	assert.ErrorIs(t, err, profile.ErrDuplicateEmail)
}

func TestAuthenticate_InvalidKey(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, rawKey, err := svc.Register(ctx, "jane@x.com", "Jane")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, rawKey[:12]+"tampered")
	assert.ErrorIs(t, err, auth.ErrInvalidKey)
}

func TestAuthenticate_ShortKey(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Authenticate(context.Background(), "crew_")
	assert.ErrorIs(t, err, auth.ErrInvalidKey)
}

func TestAuthenticate_ReflectsCompanyLink(t *testing.T) {
	svc, st := setupService(t)
	ctx := context.Background()

	p, rawKey, err := svc.Register(ctx, "jane@x.com", "Jane")
	require.NoError(t, err)

	companyID := uuid.New()
	require.NoError(t, st.Profiles().LinkCompany(ctx, p.ID, companyID, access.RoleSupervisor))

	identity, err := svc.Authenticate(ctx, rawKey)
	require.NoError(t, err)
	require.NotNil(t, identity.CompanyID)
	assert.Equal(t, companyID, *identity.CompanyID)
	assert.Equal(t, access.RoleSupervisor, identity.Role)
}

// --- BootstrapSuperAdmin Tests ---

func TestBootstrapSuperAdmin_CreatesOnce(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	rawKey, err := svc.BootstrapSuperAdmin(ctx, "ops@crewroster.io")
	require.NoError(t, err)
	require.NotEmpty(t, rawKey)

	identity, err := svc.Authenticate(ctx, rawKey)
	require.NoError(t, err)
	assert.True(t, identity.IsSuperAdmin)
	assert.True(t, identity.Caller().IsSuperAdmin)

	again, err := svc.BootstrapSuperAdmin(ctx, "other@crewroster.io")
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestBootstrapSuperAdmin_InvalidEmail(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.BootstrapSuperAdmin(context.Background(), "operator")
	assert.ErrorIs(t, err, auth.ErrInvalidEmail)
}

// --- Session Tests ---

func TestSessions_IssueAndParse(t *testing.T) {
	sessions := auth.NewSessions("test-secret", time.Hour)
	identity := &auth.Identity{UserID: uuid.New(), Email: "jane@x.com"}

	token, expiresAt, err := sessions.Issue(identity)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	userID, err := sessions.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, identity.UserID, userID)
}

func TestSessions_Expired(t *testing.T) {
	issuedAt := time.Now().Add(-2 * time.Hour)
	issuer := auth.NewSessions("test-secret", time.Hour, auth.WithSessionClock(func() time.Time { return issuedAt }))
	token, _, err := issuer.Issue(&auth.Identity{UserID: uuid.New()})
	require.NoError(t, err)

	_, err = auth.NewSessions("test-secret", time.Hour).Parse(token)
	assert.ErrorIs(t, err, auth.ErrInvalidSession)
}

func TestSessions_WrongSecret(t *testing.T) {
	token, _, err := auth.NewSessions("secret-a", time.Hour).Issue(&auth.Identity{UserID: uuid.New()})
	require.NoError(t, err)

	_, err = auth.NewSessions("secret-b", time.Hour).Parse(token)
	assert.ErrorIs(t, err, auth.ErrInvalidSession)
}

func TestSessions_RejectsNoneAlgorithm(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Issuer:    "crewroster",
		Subject:   uuid.New().String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = auth.NewSessions("test-secret", time.Hour).Parse(token)
	assert.ErrorIs(t, err, auth.ErrInvalidSession)
}

func TestIdentityFor_UnknownUser(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.IdentityFor(context.Background(), uuid.New())
	assert.ErrorIs(t, err, auth.ErrInvalidSession)
}
