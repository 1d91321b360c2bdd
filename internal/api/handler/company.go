package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldops/crewroster/internal/api/middleware"
	"github.com/fieldops/crewroster/internal/api/response"
	"github.com/fieldops/crewroster/internal/api/validation"
	"github.com/fieldops/crewroster/internal/company"
	"github.com/fieldops/crewroster/internal/membership"
)

type createCompanyRequest struct {
	Name        string `json:"name"`
	OwnerEmail  string `json:"ownerEmail"`
	IsProtected bool   `json:"isProtected"`
	SendEmail   *bool  `json:"sendEmail"`
}

type companyResponse struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Code              string  `json:"code"`
	OwnerID           *string `json:"ownerId"`
	OwnerPendingEmail *string `json:"ownerPendingEmail,omitempty"`
	IsActive          bool    `json:"isActive"`
	IsProtected       bool    `json:"isProtected"`
	CreatedAt         string  `json:"createdAt"`
}

// publicCompanyResponse is what an unauthenticated code lookup reveals.
type publicCompanyResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type createCompanyResponse struct {
	Company    companyResponse    `json:"company"`
	Invitation invitationResponse `json:"ownerInvitation"`
	EmailSent  bool               `json:"emailSent"`
}

func toCompanyResponse(c *company.Company) companyResponse {
	return companyResponse{
		ID:                c.ID.String(),
		Name:              c.Name,
		Code:              c.Code,
		OwnerID:           uuidPtrString(c.OwnerID),
		OwnerPendingEmail: c.OwnerPendingEmail,
		IsActive:          c.IsActive,
		IsProtected:       c.IsProtected,
		CreatedAt:         formatTime(c.CreatedAt),
	}
}

// CompanyHandler handles company endpoints.
type CompanyHandler struct {
	svc *membership.Service
}

// NewCompanyHandler creates a new CompanyHandler.
func NewCompanyHandler(svc *membership.Service) *CompanyHandler {
	return &CompanyHandler{svc: svc}
}

// Create handles POST /companies.
func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req createCompanyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if fieldErrors(w, r, validation.ValidateCreateCompanyRequest(validation.CreateCompanyRequest{
		Name:       req.Name,
		OwnerEmail: req.OwnerEmail,
	})) {
		return
	}

	res, err := h.svc.CreateCompany(r.Context(), middleware.GetIdentity(r.Context()), membership.CreateCompanyInput{
		Name:        req.Name,
		OwnerEmail:  req.OwnerEmail,
		IsProtected: req.IsProtected,
		SendEmail:   req.SendEmail == nil || *req.SendEmail,
	})
	if err != nil {
		serviceError(w, r, err, "Failed to create company")
		return
	}

	response.SuccessWithWarning(w, http.StatusCreated, createCompanyResponse{
		Company:    toCompanyResponse(res.Company),
		Invitation: toInvitationResponse(res.Invitation),
		EmailSent:  res.EmailSent,
	}, res.Warning, requestID)
}

// Get handles GET /companies/{companyID}.
func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	companyID, ok := uuidParam(w, r, "companyID")
	if !ok {
		return
	}

	c, err := h.svc.GetCompany(r.Context(), middleware.GetIdentity(r.Context()), companyID)
	if err != nil {
		serviceError(w, r, err, "Failed to load company")
		return
	}

	response.Success(w, http.StatusOK, toCompanyResponse(c), requestID)
}

// Lookup handles GET /companies/lookup/{code}. It is public.
func (h *CompanyHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	c, err := h.svc.LookupCompany(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		serviceError(w, r, err, "Failed to look up company")
		return
	}

	response.Success(w, http.StatusOK, publicCompanyResponse{
		ID:   c.ID.String(),
		Name: c.Name,
		Code: c.Code,
	}, requestID)
}

// Permissions handles GET /companies/{companyID}/permissions.
func (h *CompanyHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	companyID, ok := uuidParam(w, r, "companyID")
	if !ok {
		return
	}

	perms, err := h.svc.Permissions(r.Context(), middleware.GetIdentity(r.Context()), companyID)
	if err != nil {
		serviceError(w, r, err, "Failed to evaluate permissions")
		return
	}

	response.Success(w, http.StatusOK, perms, requestID)
}
