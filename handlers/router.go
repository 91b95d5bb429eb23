package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/CrowderSoup/task-tracker/session"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Sessions *session.Store
	Auth     *AuthHandler
	Tasks    *TaskHandler
	Goals    *GoalHandler
	Data     *DataHandler
	Limiter  *RateLimiter
	// StaticDir is served at / when set.
	StaticDir string
}

// NewRouter mounts the API routes.
func NewRouter(h Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestLogger)

	api := r.PathPrefix("/api").Subrouter()

	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/session", h.Auth.Session).Methods(http.MethodGet)
	auth.HandleFunc("/logout", h.Auth.Logout).Methods(http.MethodPost)
	auth.HandleFunc("/confirm", h.Auth.Confirm).Methods(http.MethodGet)

	limited := auth.NewRoute().Subrouter()
	if h.Limiter != nil {
		limited.Use(h.Limiter.Middleware)
	}
	limited.HandleFunc("/register", h.Auth.Register).Methods(http.MethodPost)
	limited.HandleFunc("/login", h.Auth.Login).Methods(http.MethodPost)

	// The socket also carries session events, so it is open to anonymous tabs.
	api.HandleFunc("/ws", h.Data.HandleWebSocket).Methods(http.MethodGet)

	data := api.NewRoute().Subrouter()
	data.Use(RequireSession(h.Sessions))

	data.HandleFunc("/tasks", h.Tasks.List).Methods(http.MethodGet)
	data.HandleFunc("/tasks", h.Tasks.Create).Methods(http.MethodPost)
	data.HandleFunc("/tasks/filters", h.Tasks.SetFilters).Methods(http.MethodPut)
	data.HandleFunc("/tasks/{id}", h.Tasks.Update).Methods(http.MethodPatch)
	data.HandleFunc("/tasks/{id}", h.Tasks.Delete).Methods(http.MethodDelete)

	data.HandleFunc("/goals", h.Goals.List).Methods(http.MethodGet)
	data.HandleFunc("/goals", h.Goals.Create).Methods(http.MethodPost)
	data.HandleFunc("/goals/options", h.Goals.Options).Methods(http.MethodGet)
	data.HandleFunc("/goals/progress", h.Goals.Progress).Methods(http.MethodGet)
	data.HandleFunc("/goals/{id}", h.Goals.Update).Methods(http.MethodPatch)
	data.HandleFunc("/goals/{id}", h.Goals.Delete).Methods(http.MethodDelete)

	data.HandleFunc("/dashboard", h.Data.Dashboard).Methods(http.MethodGet)
	data.HandleFunc("/export", h.Data.Export).Methods(http.MethodGet)

	if h.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(h.StaticDir)))
	}

	return r
}
