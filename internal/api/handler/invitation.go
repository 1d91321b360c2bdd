package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldops/crewroster/internal/api/middleware"
	"github.com/fieldops/crewroster/internal/api/response"
	"github.com/fieldops/crewroster/internal/api/validation"
	"github.com/fieldops/crewroster/internal/invitation"
	"github.com/fieldops/crewroster/internal/membership"
)

type createInvitationRequest struct {
	Email        string `json:"email"`
	Role         string `json:"role"`
	CreateMember bool   `json:"createMember"`
	SendEmail    *bool  `json:"sendEmail"`
}

type refreshInvitationRequest struct {
	RegenerateCode *bool `json:"regenerateCode"`
}

type acceptInvitationRequest struct {
	Code string `json:"code"`
}

type invitationResponse struct {
	ID         string  `json:"id"`
	CompanyID  string  `json:"companyId"`
	Email      string  `json:"email"`
	Role       string  `json:"role"`
	Code       string  `json:"code"`
	Status     string  `json:"status"`
	InvitedBy  string  `json:"invitedBy"`
	ExpiresAt  string  `json:"expiresAt"`
	AcceptedAt *string `json:"acceptedAt"`
	CreatedAt  string  `json:"createdAt"`
}

type createInvitationResponse struct {
	Invitation invitationResponse `json:"invitation"`
	Member     *memberResponse    `json:"member"`
	EmailSent  bool               `json:"emailSent"`
}

type acceptInvitationResponse struct {
	Invitation invitationResponse `json:"invitation"`
	Company    companyResponse    `json:"company"`
	Role       string             `json:"role"`
}

func toInvitationResponse(inv *invitation.Invitation) invitationResponse {
	return invitationResponse{
		ID:         inv.ID.String(),
		CompanyID:  inv.CompanyID.String(),
		Email:      inv.Email,
		Role:       string(inv.Role),
		Code:       inv.Code,
		Status:     string(inv.Status),
		InvitedBy:  inv.InvitedBy.String(),
		ExpiresAt:  formatTime(inv.ExpiresAt),
		AcceptedAt: formatTimePtr(inv.AcceptedAt),
		CreatedAt:  formatTime(inv.CreatedAt),
	}
}

// InvitationHandler handles invitation endpoints.
type InvitationHandler struct {
	svc *membership.Service
}

// NewInvitationHandler creates a new InvitationHandler.
func NewInvitationHandler(svc *membership.Service) *InvitationHandler {
	return &InvitationHandler{svc: svc}
}

// List handles GET /companies/{companyID}/invitations. An optional status
// query parameter filters the result.
func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	companyID, ok := uuidParam(w, r, "companyID")
	if !ok {
		return
	}

	var status *invitation.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := invitation.Status(raw)
		switch s {
		case invitation.StatusPending, invitation.StatusAccepted, invitation.StatusExpired, invitation.StatusCancelled:
			status = &s
		default:
			response.Err(w, http.StatusBadRequest, "INVALID_STATUS", "status must be one of: pending, accepted, expired, cancelled", requestID)
			return
		}
	}

	invitations, err := h.svc.ListInvitations(r.Context(), middleware.GetIdentity(r.Context()), companyID, status)
	if err != nil {
		serviceError(w, r, err, "Failed to list invitations")
		return
	}

	items := make([]invitationResponse, 0, len(invitations))
	for i := range invitations {
		items = append(items, toInvitationResponse(&invitations[i]))
	}

	response.SuccessList(w, http.StatusOK, items, len(items), requestID)
}

// Create handles POST /companies/{companyID}/invitations.
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	companyID, ok := uuidParam(w, r, "companyID")
	if !ok {
		return
	}

	var req createInvitationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if fieldErrors(w, r, validation.ValidateInviteRequest(validation.InviteRequest{
		Email: req.Email,
		Role:  req.Role,
	})) {
		return
	}

	res, err := h.svc.Create(r.Context(), middleware.GetIdentity(r.Context()), membership.CreateInput{
		CompanyID:    companyID,
		Email:        req.Email,
		Role:         req.Role,
		CreateMember: req.CreateMember,
		SendEmail:    req.SendEmail == nil || *req.SendEmail,
	})
	if err != nil {
		serviceError(w, r, err, "Failed to create invitation")
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

// Refresh handles POST /invitations/{invitationID}/refresh. A new code is
// issued unless the body sets regenerateCode to false.
func (h *InvitationHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	invitationID, ok := uuidParam(w, r, "invitationID")
	if !ok {
		return
	}

	var req refreshInvitationRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	inv, err := h.svc.Refresh(r.Context(), middleware.GetIdentity(r.Context()), invitationID, req.RegenerateCode == nil || *req.RegenerateCode)
	if err != nil {
		serviceError(w, r, err, "Failed to refresh invitation")
		return
	}

	response.Success(w, http.StatusOK, toInvitationResponse(inv), requestID)
}

// Cancel handles DELETE /invitations/{invitationID}.
func (h *InvitationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	invitationID, ok := uuidParam(w, r, "invitationID")
	if !ok {
		return
	}

	if err := h.svc.Cancel(r.Context(), middleware.GetIdentity(r.Context()), invitationID); err != nil {
		serviceError(w, r, err, "Failed to cancel invitation")
		return
	}

	response.NoContent(w)
}

// Verify handles GET /invitations/verify/{code}. It is public and returns
// only the preview an invitee needs to decide.
func (h *InvitationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	preview, err := h.svc.Verify(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		serviceError(w, r, err, "Failed to verify invitation")
		return
	}

	response.Success(w, http.StatusOK, preview, requestID)
}

// Accept handles POST /invitations/accept for the authenticated caller.
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "An API key or session token is required", requestID)
		return
	}

	var req acceptInvitationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if fieldErrors(w, r, validation.ValidateInvitationCode(req.Code)) {
		return
	}

	res, err := h.svc.Accept(r.Context(), identity, identity.UserID, req.Code)
	if err != nil {
		serviceError(w, r, err, "Failed to accept invitation")
		return
	}

	response.Success(w, http.StatusOK, acceptInvitationResponse{
		Invitation: toInvitationResponse(res.Invitation),
		Company:    toCompanyResponse(res.Company),
		Role:       string(res.Invitation.Role),
	}, requestID)
}
