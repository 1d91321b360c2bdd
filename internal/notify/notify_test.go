package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/crewroster/internal/access"
	"github.com/fieldops/crewroster/internal/notify"
)

func testEmail() notify.InvitationEmail {
	return notify.InvitationEmail{
		InvitationID:   uuid.New(),
		Email:          "jane@x.com",
		CompanyName:    "Acme Plumbing",
		CompanyCode:    "ABC234",
		InvitationCode: "ABC234XY",
		Role:           access.RoleSupervisor,
		ExpiresAt:      time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC),
	}
}

func TestHTTPDispatcher_SendInvitation(t *testing.T) {
	var gotAuth, gotContentType, gotCustom string
	var got notify.InvitationEmail

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotCustom = r.Header.Get("X-Source")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := notify.NewHTTPDispatcher(srv.URL, notify.WithHeader("X-Source", "crewroster"))
	msg := testEmail()

	err := d.SendInvitation(context.Background(), msg, "session-token")
	require.NoError(t, err)

	assert.Equal(t, "Bearer session-token", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "crewroster", gotCustom)
	assert.Equal(t, msg.InvitationID, got.InvitationID)
	assert.Equal(t, "ABC234XY", got.InvitationCode)
	assert.Equal(t, access.RoleSupervisor, got.Role)
	assert.True(t, msg.ExpiresAt.Equal(got.ExpiresAt))
}

func TestHTTPDispatcher_NoBearer(t *testing.T) {
	var hasAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasAuth = r.Header["Authorization"]
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := notify.NewHTTPDispatcher(srv.URL).SendInvitation(context.Background(), testEmail(), "")
	require.NoError(t, err)
	assert.False(t, hasAuth)
}

func TestHTTPDispatcher_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := notify.NewHTTPDispatcher(srv.URL).SendInvitation(context.Background(), testEmail(), "tok")
	require.Error(t, err)

	var statusErr *notify.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.Status)
}

func TestHTTPDispatcher_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := notify.NewHTTPDispatcher(srv.URL, notify.WithTimeout(20*time.Millisecond))
	err := d.SendInvitation(context.Background(), testEmail(), "tok")
	assert.Error(t, err)
}

func TestHTTPDispatcher_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := notify.NewHTTPDispatcher(url).SendInvitation(context.Background(), testEmail(), "tok")
	assert.Error(t, err)
}

func TestNoopDispatcher(t *testing.T) {
	err := notify.NoopDispatcher{}.SendInvitation(context.Background(), testEmail(), "tok")
	assert.ErrorIs(t, err, notify.ErrNotConfigured)
}
