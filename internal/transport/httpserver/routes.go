package httpserver

import (
	"net/http"
	"time"

	"family-circle-go/internal/config"
	"family-circle-go/internal/transport/httpserver/handler"
	authmw "family-circle-go/internal/transport/httpserver/middleware"
	"family-circle-go/pkg/logger"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type RouterDeps struct {
	Config   config.Config
	Handlers *handler.Handlers
	Auth     *authmw.Authenticator
	Logger   logger.Logger
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// UploadsDir is served under /uploads when images are stored on local disk.
	UploadsDir string
}

func NewRouter(deps RouterDeps) http.Handler {
	handlers := deps.Handlers
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(authmw.RequestLogger(deps.Logger))
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(authmw.NewCORS(deps.Config.CORSOrigins))

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	if deps.UploadsDir != "" {
		fs := http.StripPrefix("/uploads/", http.FileServer(http.Dir(deps.UploadsDir)))
		r.Method(http.MethodGet, "/uploads/*", fs)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Health)

		r.Route("/v1/family", func(r chi.Router) {
			r.Use(deps.Auth.Middleware)

			r.Post("/create-family", handlers.CreateFamily)
			r.Get("/user-in-family/{userId}/{familyId}", handlers.CheckUserInFamily)
			r.Post("/update-family-details", handlers.EditFamilyDetails)
			r.Post("/add-family-members", handlers.AddFamilyMembers)
			r.Get("/list-pending-requests", handlers.ListPendingRequests)
			r.Get("/get-family-list-user-can-join", handlers.GetFamiliesUserCanJoin)
			r.Get("/get-family-members", handlers.GetFamilyMembers)
			r.Get("/get-family-details/{id}", handlers.GetFamilyDetails)
			r.Get("/request-to-join-family/{familyId}", handlers.RequestToJoinFamily)
			r.Post("/accept-pending-requests", handlers.AcceptPendingRequest)
			r.Get("/get-users-family", handlers.GetUsersFamilies)
		})
	})

	return r
}
