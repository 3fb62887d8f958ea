package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/salescope/salescope/internal/api/middleware"
	"github.com/salescope/salescope/internal/api/response"
	"github.com/salescope/salescope/pkg/models"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler   http.HandlerFunc
	RegisterHandler http.HandlerFunc
	LoginHandler    http.HandlerFunc

	UploadDataset http.HandlerFunc
	ListDatasets  http.HandlerFunc
	GetDataset    http.HandlerFunc

	SubmitJob  http.HandlerFunc
	GetJob     http.HandlerFunc
	ListJobs   http.HandlerFunc
	JobMetrics http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
// Write paths carry an explicit allow-set of roles; reads require only an
// authenticated identity of any role.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public routes
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	r.Post("/api/v1/auth/register", orNotImplemented(deps.RegisterHandler))
	r.Post("/api/v1/auth/login", orNotImplemented(deps.LoginHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		// Reads: any authenticated role
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireMinRole(models.RoleViewer))

			r.Get("/api/v1/datasets", orNotImplemented(deps.ListDatasets))
			r.Get("/api/v1/datasets/{datasetID}", orNotImplemented(deps.GetDataset))

			r.Get("/api/v1/jobs", orNotImplemented(deps.ListJobs))
			r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.GetJob))
			r.Get("/api/v1/jobs/{jobID}/metrics", orNotImplemented(deps.JobMetrics))
		})

		// Writes: admins and analysts only
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireRole(models.RoleAdmin, models.RoleAnalyst))

			r.Post("/api/v1/datasets", orNotImplemented(deps.UploadDataset))
			r.Post("/api/v1/jobs", orNotImplemented(deps.SubmitJob))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
