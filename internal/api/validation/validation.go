// Package validation checks request bodies before they reach a service and
// reports every problem at once as field errors.
package validation

import (
	"fmt"
	"strings"

	"github.com/fieldops/crewroster/internal/access"
	"github.com/fieldops/crewroster/internal/code"
	"github.com/fieldops/crewroster/internal/profile"
)

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

const (
	maxDisplayName = 120
	maxCompanyName = 200
)

func validateEmail(field, email string) []FieldError {
	email = profile.NormalizeEmail(email)
	if email == "" {
		return []FieldError{{Field: field, Message: field + " is required"}}
	}
	if !profile.ValidEmail(email) {
		return []FieldError{{Field: field, Message: field + " must be a valid email address"}}
	}
	return nil
}

func validateRole(field, role string) []FieldError {
	if strings.TrimSpace(role) == "" {
		return []FieldError{{Field: field, Message: field + " is required"}}
	}
	if _, err := access.ParseRole(role); err != nil {
		return []FieldError{{Field: field, Message: fmt.Sprintf("%s must be one of: %s", field, roleList())}}
	}
	return nil
}

func roleList() string {
	names := make([]string, 0, len(access.Roles))
	for _, r := range access.Roles {
		names = append(names, string(r))
	}
	return strings.Join(names, ", ")
}

// RegisterRequest mirrors the fields of POST /profiles.
type RegisterRequest struct {
	Email       string
	DisplayName string
}

// ValidateRegisterRequest validates a sign-up request.
func ValidateRegisterRequest(req RegisterRequest) []FieldError {
	errs := validateEmail("email", req.Email)
	if len(strings.TrimSpace(req.DisplayName)) > maxDisplayName {
		errs = append(errs, FieldError{Field: "displayName", Message: fmt.Sprintf("displayName must be at most %d characters", maxDisplayName)})
	}
	return errs
}

// InviteRequest mirrors the fields of the invitation and add-member bodies.
type InviteRequest struct {
	Email string
	Role  string
}

// ValidateInviteRequest validates an invitation request.
func ValidateInviteRequest(req InviteRequest) []FieldError {
	errs := validateEmail("email", req.Email)
	return append(errs, validateRole("role", req.Role)...)
}

// CreateCompanyRequest mirrors the fields of POST /companies.
type CreateCompanyRequest struct {
	Name       string
	OwnerEmail string
}

// ValidateCreateCompanyRequest validates a company creation request.
func ValidateCreateCompanyRequest(req CreateCompanyRequest) []FieldError {
	var errs []FieldError

	name := strings.TrimSpace(req.Name)
	if name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name is required"})
	} else if len(name) > maxCompanyName {
		errs = append(errs, FieldError{Field: "name", Message: fmt.Sprintf("name must be at most %d characters", maxCompanyName)})
	}

	return append(errs, validateEmail("ownerEmail", req.OwnerEmail)...)
}

// ValidateInvitationCode checks a code entered by the invitee.
func ValidateInvitationCode(raw string) []FieldError {
	c := code.Normalize(raw)
	if c == "" {
		return []FieldError{{Field: "code", Message: "code is required"}}
	}
	if !code.WellFormed(c, code.InvitationLength) {
		return []FieldError{{Field: "code", Message: fmt.Sprintf("code must be %d letters and digits", code.InvitationLength)}}
	}
	return nil
}
