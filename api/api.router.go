// FilePath: api/api.router.go
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/smartallotment/hub/api/middleware"
	"github.com/smartallotment/hub/api/resources"
	"github.com/smartallotment/hub/internal/hubservice"
	"github.com/smartallotment/hub/internal/monitoring"
)

type Router struct {
	router    *mux.Router
	auth      *middleware.AuthMiddleware
	resources *resources.Resources
}

func NewRouter(svc *hubservice.HubService, monitor *monitoring.Service) *Router {
	r := &Router{
		router:    mux.NewRouter(),
		auth:      middleware.NewAuthMiddleware(svc.Auth, monitor),
		resources: resources.NewResources(svc, monitor),
	}

	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	api := r.router.PathPrefix("/api").Subrouter()

	// Public routes
	api.HandleFunc("/health", r.resources.HealthCheck).Methods(http.MethodGet)
	api.HandleFunc("/metrics", r.resources.Metrics).Methods(http.MethodGet)
	api.HandleFunc("/auth/login", r.resources.Auth.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", r.resources.Auth.Logout).Methods(http.MethodPost)

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(r.auth.Authenticate)

	protected.HandleFunc("/auth/me", r.resources.Auth.Me).Methods(http.MethodGet)

	// Devices and readings
	protected.HandleFunc("/devices", r.resources.Devices.ListDevices).Methods(http.MethodGet)
	protected.HandleFunc("/latest/{deviceUid}", r.resources.Devices.GetLatest).Methods(http.MethodGet)
	protected.HandleFunc("/history/{deviceUid}", r.resources.Devices.GetHistory).Methods(http.MethodGet)
	protected.HandleFunc("/devices/{deviceUid}/assign-site/{siteId}", r.resources.Devices.AssignSite).Methods(http.MethodPost)

	// Sensors
	sensors := protected.PathPrefix("/sensors").Subrouter()
	sensors.HandleFunc("/list", r.resources.Sensors.ListSensors).Methods(http.MethodGet)
	sensors.HandleFunc("/register", r.resources.Sensors.RegisterSensor).Methods(http.MethodPost)
	sensors.HandleFunc("/{id}/activate", r.resources.Sensors.ActivateSensor).Methods(http.MethodPost)
	sensors.HandleFunc("/{id}/deactivate", r.resources.Sensors.DeactivateSensor).Methods(http.MethodPost)
	sensors.HandleFunc("/{id}/delete", r.resources.Sensors.DeleteSensor).Methods(http.MethodDelete)

	// Sites
	sites := protected.PathPrefix("/sites").Subrouter()
	sites.HandleFunc("", r.resources.Sites.ListSites).Methods(http.MethodGet)
	sites.HandleFunc("", r.resources.Sites.CreateSite).Methods(http.MethodPost)

	// Users
	users := protected.PathPrefix("/users").Subrouter()
	users.HandleFunc("/list", r.resources.Users.ListUsers).Methods(http.MethodGet)
	users.HandleFunc("/create", r.resources.Users.CreateUser).Methods(http.MethodPost)
	users.HandleFunc("/{id}", r.resources.Users.UpdateUser).Methods(http.MethodPut)
	users.HandleFunc("/{id}", r.resources.Users.DeleteUser).Methods(http.MethodDelete)
	users.HandleFunc("/{id}/sites", r.resources.Users.ListUserSites).Methods(http.MethodGet)
	users.HandleFunc("/{id}/assign-site/{siteId}", r.resources.Users.AssignSite).Methods(http.MethodPost)
	users.HandleFunc("/{id}/unassign-site/{siteId}", r.resources.Users.UnassignSite).Methods(http.MethodDelete)

	// API tokens
	tokens := protected.PathPrefix("/tokens").Subrouter()
	tokens.HandleFunc("", r.resources.Tokens.ListTokens).Methods(http.MethodGet)
	tokens.HandleFunc("", r.resources.Tokens.MintToken).Methods(http.MethodPost)
	tokens.HandleFunc("/{id}", r.resources.Tokens.RevokeToken).Methods(http.MethodDelete)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
