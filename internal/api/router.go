package api

import (
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/go-chi/chi/v5"

	"github.com/fieldops/crewroster/internal/access"
	"github.com/fieldops/crewroster/internal/api/handler"
	"github.com/fieldops/crewroster/internal/api/middleware"
	"github.com/fieldops/crewroster/internal/auth"
	"github.com/fieldops/crewroster/internal/membership"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Store       handler.StorePinger
	Version     string
	OpenAPISpec []byte
	Auth        *auth.Service
	Sessions    *auth.Sessions
	Membership  *membership.Service
	Actions     *access.Table
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)

	healthHandler := handler.NewHealthHandler(deps.Store, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)

	if len(deps.OpenAPISpec) > 0 {
		openapiHandler := handler.NewOpenAPIHandler(deps.OpenAPISpec)
		r.Get("/openapi.json", openapiHandler.ServeHTTP)
	}

	if deps.Auth == nil || deps.Sessions == nil || deps.Membership == nil {
		return r
	}

	profileHandler := handler.NewProfileHandler(deps.Auth, deps.Sessions)
	companyHandler := handler.NewCompanyHandler(deps.Membership)
	memberHandler := handler.NewMemberHandler(deps.Membership)
	invitationHandler := handler.NewInvitationHandler(deps.Membership)

	// Public routes.
	r.Post("/profiles", profileHandler.Register)
	r.Get("/companies/lookup/{code}", companyHandler.Lookup)
	r.Get("/invitations/verify/{code}", invitationHandler.Verify)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(deps.Auth, deps.Sessions))

		r.Post("/sessions", profileHandler.CreateSession)
		r.Get("/me", profileHandler.Me)

		r.With(middleware.RequireSuperAdmin()).Post("/companies", companyHandler.Create)

		r.Route("/companies/{companyID}", func(r chi.Router) {
			r.Get("/", companyHandler.Get)
			r.Get("/permissions", companyHandler.Permissions)

			r.Get("/members", memberHandler.List)
			r.Post("/members", memberHandler.Add)
			r.Delete("/members/{memberID}", memberHandler.Remove)
			r.Post("/members/{memberID}/resend", memberHandler.Resend)

			r.Get("/invitations", invitationHandler.List)
			r.Post("/invitations", invitationHandler.Create)
		})

		r.Post("/invitations/accept", invitationHandler.Accept)
		r.Post("/invitations/{invitationID}/refresh", invitationHandler.Refresh)
		r.Delete("/invitations/{invitationID}", invitationHandler.Cancel)

		if deps.Actions != nil {
			accessHandler := handler.NewAccessHandler(deps.Actions)
			r.Get("/access/check", accessHandler.Check)
		}
	})

	return r
}
