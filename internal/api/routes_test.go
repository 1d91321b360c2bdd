package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	specpkg "github.com/fieldops/crewroster/api"
	"github.com/fieldops/crewroster/internal/access"
	"github.com/fieldops/crewroster/internal/api"
	"github.com/fieldops/crewroster/internal/auth"
	"github.com/fieldops/crewroster/internal/membership"
	"github.com/fieldops/crewroster/internal/notify"
	"github.com/fieldops/crewroster/internal/store/memory"
)

const testBcryptCost = 4

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []notify.InvitationEmail
}

func (d *recordingDispatcher) SendInvitation(_ context.Context, msg notify.InvitationEmail, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, msg)
	return nil
}

type testServer struct {
	t           *testing.T
	handler     http.Handler
	clock       *stubClock
	dispatcher  *recordingDispatcher
	operatorKey string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	clock := &stubClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	st := memory.New(memory.WithClock(clock.Now))
	authService := auth.NewService(st.Profiles(), testBcryptCost)
	sessions := auth.NewSessions("routes-test-secret", time.Hour, auth.WithSessionClock(clock.Now))

	operatorKey, err := authService.BootstrapSuperAdmin(context.Background(), "ops@crewroster.test")
	require.NoError(t, err)
	require.NotEmpty(t, operatorKey)

	dispatcher := &recordingDispatcher{}
	svc := membership.NewService(st,
		membership.WithClock(clock.Now),
		membership.WithDispatcher(dispatcher),
		membership.WithTokenIssuer(sessions),
	)

	router := api.NewRouter(api.RouterDeps{
		Store:       st,
		Version:     "test",
		OpenAPISpec: specpkg.OpenAPISpec,
		Auth:        authService,
		Sessions:    sessions,
		Membership:  svc,
		Actions:     access.NewTable(access.DefaultActions, false),
	})

	return &testServer{
		t:           t,
		handler:     router,
		clock:       clock,
		dispatcher:  dispatcher,
		operatorKey: operatorKey,
	}
}

type result struct {
	status int
	env    map[string]any
}

func (r result) data() map[string]any {
	d, _ := r.env["data"].(map[string]any)
	return d
}

func (r result) errorCode() string {
	e, _ := r.env["error"].(map[string]any)
	if e == nil {
		return ""
	}
	return e["code"].(string)
}

func (r result) meta() map[string]any {
	m, _ := r.env["meta"].(map[string]any)
	return m
}

// do sends a request authenticated with key (an API key, or "Bearer ..."
// for a session token) and decodes the envelope when there is a body.
func (s *testServer) do(method, path, key string, body any) result {
	s.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if len(key) > 7 && key[:7] == "Bearer " {
		req.Header.Set("Authorization", key)
	} else if key != "" {
		req.Header.Set("X-API-Key", key)
	}

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	res := result{status: w.Code}
	if w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &res.env), "body: %s", w.Body.String())
	}
	return res
}

func (s *testServer) register(email, name string) string {
	s.t.Helper()
	res := s.do(http.MethodPost, "/profiles", "", map[string]any{"email": email, "displayName": name})
	require.Equal(s.t, http.StatusCreated, res.status, "register %s: %v", email, res.env)
	return res.data()["apiKey"].(string)
}

// company creates a company whose owner has accepted the owner invitation.
// It returns the company id and the owner's API key.
func (s *testServer) company(name, ownerEmail string) (string, string) {
	s.t.Helper()

	res := s.do(http.MethodPost, "/companies", s.operatorKey, map[string]any{
		"name":       name,
		"ownerEmail": ownerEmail,
	})
	require.Equal(s.t, http.StatusCreated, res.status, "%v", res.env)
	companyID := res.data()["company"].(map[string]any)["id"].(string)
	ownerCode := res.data()["ownerInvitation"].(map[string]any)["code"].(string)

	ownerKey := s.register(ownerEmail, "Owner")
	res = s.do(http.MethodPost, "/invitations/accept", ownerKey, map[string]any{"code": ownerCode})
	require.Equal(s.t, http.StatusOK, res.status, "%v", res.env)

	return companyID, ownerKey
}

func (s *testServer) invite(companyID, ownerKey, email, role string) map[string]any {
	s.t.Helper()
	res := s.do(http.MethodPost, "/companies/"+companyID+"/invitations", ownerKey, map[string]any{
		"email": email,
		"role":  role,
	})
	require.Equal(s.t, http.StatusCreated, res.status, "%v", res.env)
	return res.data()["invitation"].(map[string]any)
}

// --- Health & docs ---

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	res := s.do(http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "healthy", res.data()["status"])
	assert.Equal(t, "test", res.data()["version"])
}

func TestOpenAPIDocument(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "Crew Roster API", doc["info"].(map[string]any)["title"])
}

// --- Profiles & sessions ---

func TestRegisterAndMe(t *testing.T) {
	s := newTestServer(t)

	key := s.register("Jane@Example.com", "Jane")
	res := s.do(http.MethodGet, "/me", key, nil)

	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "jane@example.com", res.data()["email"])
	assert.Nil(t, res.data()["companyId"])
	assert.Equal(t, false, res.data()["isSuperAdmin"])
}

func TestRegister_DuplicateEmail(t *testing.T) {
	s := newTestServer(t)
	s.register("jane@example.com", "Jane")

	res := s.do(http.MethodPost, "/profiles", "", map[string]any{"email": "JANE@example.com"})

	assert.Equal(t, http.StatusConflict, res.status)
	assert.Equal(t, "CONFLICT", res.errorCode())
}

func TestRegister_InvalidInput(t *testing.T) {
	s := newTestServer(t)

	res := s.do(http.MethodPost, "/profiles", "", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "INVALID_JSON", res.errorCode())

	res = s.do(http.MethodPost, "/profiles", "", map[string]any{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "VALIDATION_ERROR", res.errorCode())
}

func TestSessionToken(t *testing.T) {
	s := newTestServer(t)
	key := s.register("jane@example.com", "Jane")

	res := s.do(http.MethodPost, "/sessions", key, nil)
	require.Equal(t, http.StatusCreated, res.status)
	assert.Equal(t, "Bearer", res.data()["tokenType"])
	token := res.data()["token"].(string)

	res = s.do(http.MethodGet, "/me", "Bearer "+token, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "jane@example.com", res.data()["email"])

	s.clock.Advance(2 * time.Hour)
	res = s.do(http.MethodGet, "/me", "Bearer "+token, nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)
}

func TestMe_Unauthenticated(t *testing.T) {
	s := newTestServer(t)

	res := s.do(http.MethodGet, "/me", "", nil)

	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, "UNAUTHORIZED", res.errorCode())
}

// --- Companies ---

func TestCreateCompany_OperatorOnly(t *testing.T) {
	s := newTestServer(t)
	key := s.register("jane@example.com", "Jane")

	res := s.do(http.MethodPost, "/companies", key, map[string]any{"name": "Acme", "ownerEmail": "o@acme.test"})

	assert.Equal(t, http.StatusForbidden, res.status)
	assert.Equal(t, "FORBIDDEN", res.errorCode())
}

func TestCreateCompany_ValidationDetails(t *testing.T) {
	s := newTestServer(t)

	res := s.do(http.MethodPost, "/companies", s.operatorKey, map[string]any{"name": "", "ownerEmail": "nope"})

	require.Equal(t, http.StatusBadRequest, res.status)
	details := res.env["error"].(map[string]any)["details"].([]any)
	assert.Len(t, details, 2)
}

func TestCompanyLifecycle(t *testing.T) {
	s := newTestServer(t)

	res := s.do(http.MethodPost, "/companies", s.operatorKey, map[string]any{
		"name":       "Acme Plumbing",
		"ownerEmail": "olive@acme.test",
	})
	require.Equal(t, http.StatusCreated, res.status)
	assert.Equal(t, true, res.data()["emailSent"])
	company := res.data()["company"].(map[string]any)
	companyID := company["id"].(string)
	companyCode := company["code"].(string)
	assert.Len(t, companyCode, 6)
	assert.Nil(t, company["ownerId"])
	assert.Equal(t, "olive@acme.test", company["ownerPendingEmail"])
	require.Len(t, s.dispatcher.sent, 1)
	assert.Equal(t, "olive@acme.test", s.dispatcher.sent[0].Email)

	res = s.do(http.MethodGet, "/companies/lookup/"+companyCode, "", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "Acme Plumbing", res.data()["name"])
	assert.NotContains(t, res.data(), "ownerId")

	ownerCode := s.dispatcher.sent[0].InvitationCode
	res = s.do(http.MethodGet, "/invitations/verify/"+ownerCode, "", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "Acme Plumbing", res.data()["companyName"])
	assert.Equal(t, "admin", res.data()["role"])

	ownerKey := s.register("olive@acme.test", "Olive")
	res = s.do(http.MethodPost, "/invitations/accept", ownerKey, map[string]any{"code": ownerCode})
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "admin", res.data()["role"])

	res = s.do(http.MethodGet, "/me", ownerKey, nil)
	assert.Equal(t, companyID, res.data()["companyId"])
	assert.Equal(t, "admin", res.data()["role"])

	res = s.do(http.MethodGet, "/companies/"+companyID, ownerKey, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.NotNil(t, res.data()["ownerId"])

	res = s.do(http.MethodGet, "/companies/"+companyID+"/permissions", ownerKey, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, true, res.data()["isOwner"])
	assert.Equal(t, true, res.data()["canManageTeam"])

	res = s.do(http.MethodGet, "/invitations/verify/"+ownerCode, "", nil)
	assert.Equal(t, http.StatusConflict, res.status)
}

func TestGetCompany_Outsider(t *testing.T) {
	s := newTestServer(t)
	companyID, _ := s.company("Acme", "olive@acme.test")
	outsider := s.register("eve@example.com", "Eve")

	res := s.do(http.MethodGet, "/companies/"+companyID, outsider, nil)

	assert.Equal(t, http.StatusForbidden, res.status)
}

func TestGetCompany_InvalidID(t *testing.T) {
	s := newTestServer(t)

	res := s.do(http.MethodGet, "/companies/not-a-uuid", s.operatorKey, nil)

	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "INVALID_ID", res.errorCode())
}

func TestLookupCompany_Errors(t *testing.T) {
	s := newTestServer(t)

	res := s.do(http.MethodGet, "/companies/lookup/x", "", nil)
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = s.do(http.MethodGet, "/companies/lookup/ZZZZZZ", "", nil)
	assert.Equal(t, http.StatusNotFound, res.status)
}

// --- Invitations ---

func TestInvitationFlow(t *testing.T) {
	s := newTestServer(t)
	companyID, ownerKey := s.company("Acme", "olive@acme.test")

	inv := s.invite(companyID, ownerKey, "jane@acme.test", "technician")
	assert.Equal(t, "field_tech", inv["role"])
	assert.Equal(t, "pending", inv["status"])

	janeKey := s.register("jane@acme.test", "Jane")
	res := s.do(http.MethodPost, "/invitations/accept", janeKey, map[string]any{"code": inv["code"]})
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "field_tech", res.data()["role"])

	res = s.do(http.MethodGet, "/companies/"+companyID+"/invitations?status=accepted", ownerKey, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, float64(2), res.meta()["total"])

	res = s.do(http.MethodGet, "/companies/"+companyID+"/members", janeKey, nil)
	assert.Equal(t, http.StatusOK, res.status, "members can view the roster")

	res = s.do(http.MethodPost, "/companies/"+companyID+"/invitations", janeKey, map[string]any{
		"email": "joe@acme.test",
		"role":  "field_tech",
	})
	assert.Equal(t, http.StatusForbidden, res.status, "field techs cannot invite")
}

func TestCreateInvitation_DuplicatePending(t *testing.T) {
	s := newTestServer(t)
	companyID, ownerKey := s.company("Acme", "olive@acme.test")
	s.invite(companyID, ownerKey, "jane@acme.test", "field_tech")

	res := s.do(http.MethodPost, "/companies/"+companyID+"/invitations", ownerKey, map[string]any{
		"email": "JANE@acme.test",
		"role":  "supervisor",
	})

	assert.Equal(t, http.StatusConflict, res.status)
}

func TestCreateInvitation_Validation(t *testing.T) {
	s := newTestServer(t)
	companyID, ownerKey := s.company("Acme", "olive@acme.test")

	res := s.do(http.MethodPost, "/companies/"+companyID+"/invitations", ownerKey, map[string]any{
		"email": "bad",
		"role":  "janitor",
	})

	require.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "VALIDATION_ERROR", res.errorCode())
	assert.Len(t, res.env["error"].(map[string]any)["details"].([]any), 2)
}

func TestListInvitations_InvalidStatus(t *testing.T) {
	s := newTestServer(t)
	companyID, ownerKey := s.company("Acme", "olive@acme.test")

	res := s.do(http.MethodGet, "/companies/"+companyID+"/invitations?status=bogus", ownerKey, nil)

	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "INVALID_STATUS", res.errorCode())
}

func TestVerify_Errors(t *testing.T) {
	s := newTestServer(t)
	companyID, ownerKey := s.company("Acme", "olive@acme.test")
	inv := s.invite(companyID, ownerKey, "jane@acme.test", "field_tech")

	res := s.do(http.MethodGet, "/invitations/verify/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = s.do(http.MethodGet, "/invitations/verify/ABCDEFGH", "", nil)
	assert.Equal(t, http.StatusNotFound, res.status)

	s.clock.Advance(8 * 24 * time.Hour)
	res = s.do(http.MethodGet, "/invitations/verify/"+inv["code"].(string), "", nil)
	assert.Equal(t, http.StatusGone, res.status)
	assert.Equal(t, "EXPIRED", res.errorCode())
}

func TestAccept_WrongAccount(t *testing.T) {
	s := newTestServer(t)
	companyID, ownerKey := s.company("Acme", "olive@acme.test")
	inv := s.invite(companyID, ownerKey, "jane@acme.test", "field_tech")
	eve := s.register("eve@example.com", "Eve")

	res := s.do(http.MethodPost, "/invitations/accept", eve, map[string]any{"code": inv["code"]})

	assert.Equal(t, http.StatusForbidden, res.status)
}

func TestAccept_MissingCode(t *testing.T) {
	s := newTestServer(t)
	key := s.register("jane@example.com", "Jane")

	res := s.do(http.MethodPost, "/invitations/accept", key, map[string]any{})

	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "VALIDATION_ERROR", res.errorCode())
}

func TestRefreshAndCancel(t *testing.T) {
	s := newTestServer(t)
	companyID, ownerKey := s.company("Acme", "olive@acme.test")
	inv := s.invite(companyID, ownerKey, "jane@acme.test", "field_tech")
	id := inv["id"].(string)

	res := s.do(http.MethodPost, "/invitations/"+id+"/refresh", ownerKey, nil)
	require.Equal(t, http.StatusOK, res.status, "%v", res.env)
	newCode := res.data()["code"].(string)
	assert.NotEqual(t, inv["code"], newCode)

	res = s.do(http.MethodPost, "/invitations/"+id+"/refresh", ownerKey, map[string]any{"regenerateCode": false})
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, newCode, res.data()["code"])

	res = s.do(http.MethodDelete, "/invitations/"+id, ownerKey, nil)
	assert.Equal(t, http.StatusNoContent, res.status)

	res = s.do(http.MethodGet, "/invitations/verify/"+newCode, "", nil)
	assert.Equal(t, http.StatusNotFound, res.status)
}

// --- Team ---

func TestTeamRoster(t *testing.T) {
	s := newTestServer(t)
	companyID, ownerKey := s.company("Acme", "olive@acme.test")

	res := s.do(http.MethodPost, "/companies/"+companyID+"/members", ownerKey, map[string]any{
		"email": "jane@acme.test",
		"role":  "manager",
	})
	require.Equal(t, http.StatusCreated, res.status, "%v", res.env)
	m := res.data()["member"].(map[string]any)
	assert.Equal(t, "pending", m["status"])
	assert.Equal(t, "supervisor", m["role"])
	assert.Equal(t, true, m["emailSent"])
	memberID := m["id"].(string)

	res = s.do(http.MethodGet, "/companies/"+companyID+"/members", ownerKey, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, float64(2), res.meta()["total"])
	entries := res.env["data"].([]any)
	assert.Equal(t, true, entries[0].(map[string]any)["isOwner"], "owner is listed first")

	res = s.do(http.MethodPost, "/companies/"+companyID+"/members/"+memberID+"/resend", ownerKey, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, true, res.data()["emailSent"])

	res = s.do(http.MethodDelete, "/companies/"+companyID+"/members/"+memberID, ownerKey, nil)
	assert.Equal(t, http.StatusNoContent, res.status)

	res = s.do(http.MethodGet, "/companies/"+companyID+"/members", ownerKey, nil)
	assert.Equal(t, float64(1), res.meta()["total"])
}

func TestRemoveMember_Owner(t *testing.T) {
	s := newTestServer(t)
	companyID, ownerKey := s.company("Acme", "olive@acme.test")
	me := s.do(http.MethodGet, "/me", ownerKey, nil)

	res := s.do(http.MethodDelete, "/companies/"+companyID+"/members/"+me.data()["id"].(string), s.operatorKey, nil)

	assert.Equal(t, http.StatusConflict, res.status)
}

// --- Access ---

func TestAccessCheck(t *testing.T) {
	s := newTestServer(t)
	companyID, ownerKey := s.company("Acme", "olive@acme.test")
	inv := s.invite(companyID, ownerKey, "jane@acme.test", "field_tech")
	janeKey := s.register("jane@acme.test", "Jane")
	res := s.do(http.MethodPost, "/invitations/accept", janeKey, map[string]any{"code": inv["code"]})
	require.Equal(t, http.StatusOK, res.status)

	tests := []struct {
		name    string
		key     string
		action  string
		allowed bool
		mapped  bool
	}{
		{"admin opens settings", ownerKey, "/settings", true, true},
		{"tech opens jobs", janeKey, "/jobs/42", true, true},
		{"tech blocked from reports", janeKey, "/reports", false, true},
		{"unmapped denied", ownerKey, "/nowhere", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.do(http.MethodGet, "/access/check?action="+tt.action, tt.key, nil)
			require.Equal(t, http.StatusOK, res.status)
			assert.Equal(t, tt.allowed, res.data()["allowed"])
			assert.Equal(t, tt.mapped, res.data()["mapped"])
		})
	}

	res = s.do(http.MethodGet, "/access/check", ownerKey, nil)
	assert.Equal(t, http.StatusBadRequest, res.status)
}
