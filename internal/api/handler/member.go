package handler

import (
	"net/http"

	"github.com/fieldops/crewroster/internal/api/middleware"
	"github.com/fieldops/crewroster/internal/api/response"
	"github.com/fieldops/crewroster/internal/api/validation"
	"github.com/fieldops/crewroster/internal/member"
	"github.com/fieldops/crewroster/internal/membership"
)

type addMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type memberResponse struct {
	ID           string  `json:"id"`
	CompanyID    string  `json:"companyId"`
	Email        string  `json:"email"`
	UserID       *string `json:"userId"`
	Role         string  `json:"role"`
	Status       string  `json:"status"`
	InvitationID *string `json:"invitationId"`
	EmailSent    bool    `json:"emailSent"`
	EmailSentAt  *string `json:"emailSentAt"`
	CreatedAt    string  `json:"createdAt"`
}

type resendResponse struct {
	Invitation invitationResponse `json:"invitation"`
	EmailSent  bool               `json:"emailSent"`
}

func toMemberResponse(m *member.Member) memberResponse {
	return memberResponse{
		ID:           m.ID.String(),
		CompanyID:    m.CompanyID.String(),
		Email:        m.Email,
		UserID:       uuidPtrString(m.UserID),
		Role:         string(m.Role),
		Status:       string(m.Status),
		InvitationID: uuidPtrString(m.InvitationID),
		EmailSent:    m.EmailSent,
		EmailSentAt:  formatTimePtr(m.EmailSentAt),
		CreatedAt:    formatTime(m.CreatedAt),
	}
}

// MemberHandler handles team roster endpoints.
type MemberHandler struct {
	svc *membership.Service
}

// NewMemberHandler creates a new MemberHandler.
func NewMemberHandler(svc *membership.Service) *MemberHandler {
	return &MemberHandler{svc: svc}
}

// List handles GET /companies/{companyID}/members and returns the
// reconciled roster.
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	companyID, ok := uuidParam(w, r, "companyID")
	if !ok {
		return
	}

	entries, err := h.svc.ListMembers(r.Context(), middleware.GetIdentity(r.Context()), companyID)
	if err != nil {
		serviceError(w, r, err, "Failed to list team members")
		return
	}

	response.SuccessList(w, http.StatusOK, entries, len(entries), requestID)
}

// Add handles POST /companies/{companyID}/members: an invitation with a
// paired member row, e-mailed straight away.
func (h *MemberHandler) Add(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	companyID, ok := uuidParam(w, r, "companyID")
	if !ok {
		return
	}

	var req addMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if fieldErrors(w, r, validation.ValidateInviteRequest(validation.InviteRequest{
		Email: req.Email,
		Role:  req.Role,
	})) {
		return
	}

	res, err := h.svc.AddMember(r.Context(), middleware.GetIdentity(r.Context()), companyID, req.Email, req.Role)
	if err != nil {
		serviceError(w, r, err, "Failed to add team member")
		return
	}

	resp := createInvitationResponse{
		Invitation: toInvitationResponse(res.Invitation),
		EmailSent:  res.EmailSent,
	}
	if res.Member != nil {
		m := toMemberResponse(res.Member)
		resp.Member = &m
	}

	response.SuccessWithWarning(w, http.StatusCreated, resp, res.Warning, requestID)
}

// Remove handles DELETE /companies/{companyID}/members/{memberID}.
func (h *MemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	companyID, ok := uuidParam(w, r, "companyID")
	if !ok {
		return
	}
	memberID, ok := uuidParam(w, r, "memberID")
	if !ok {
		return
	}

	if err := h.svc.RemoveMember(r.Context(), middleware.GetIdentity(r.Context()), companyID, memberID); err != nil {
		serviceError(w, r, err, "Failed to remove team member")
		return
	}

	response.NoContent(w)
}

// Resend handles POST /companies/{companyID}/members/{memberID}/resend.
func (h *MemberHandler) Resend(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	companyID, ok := uuidParam(w, r, "companyID")
	if !ok {
		return
	}
	memberID, ok := uuidParam(w, r, "memberID")
	if !ok {
		return
	}

	res, err := h.svc.ResendInvite(r.Context(), middleware.GetIdentity(r.Context()), companyID, memberID)
	if err != nil {
		serviceError(w, r, err, "Failed to resend invitation")
		return
	}

	response.SuccessWithWarning(w, http.StatusOK, resendResponse{
		Invitation: toInvitationResponse(res.Invitation),
		EmailSent:  res.EmailSent,
	}, res.Warning, requestID)
}
