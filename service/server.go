// Package service is the activities service: it owns the activities, their
// rosters and the teacher sessions, and serves them as JSON.
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Bios-Marcel/mergington/data"
)

type Server struct {
	store       ActivityStore
	sessions    *Sessions
	teachers    []data.Teacher
	frontendURL string
	logger      *slog.Logger
}

type Config struct {
	Store       ActivityStore
	Sessions    *Sessions
	Teachers    []data.Teacher
	FrontendURL string
	Logger      *slog.Logger
}

func NewServer(cfg Config) *Server {
	server := &Server{
		store:       cfg.Store,
		sessions:    cfg.Sessions,
		teachers:    cfg.Teachers,
		frontendURL: cfg.FrontendURL,
		logger:      cfg.Logger,
	}
	if server.sessions == nil {
		server.sessions = NewSessions()
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (server *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	// Browsers may call from any origin, credentials included.
	router.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  func(*http.Request, string) bool { return true },
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	router.Get("/", server.root)
	router.Post("/login", server.login)
	router.Post("/logout", server.logout)
	router.Post("/verify-session", server.verifySession)
	router.Get("/activities", server.listActivities)
	router.Post("/activities/{activity}/signup", server.signup)
	router.Delete("/activities/{activity}/unregister", server.unregister)

	return router
}

func (server *Server) root(responseWriter http.ResponseWriter, request *http.Request) {
	if server.frontendURL == "" {
		http.NotFound(responseWriter, request)
		return
	}
	http.Redirect(responseWriter, request, server.frontendURL, http.StatusTemporaryRedirect)
}

func (server *Server) login(responseWriter http.ResponseWriter, request *http.Request) {
	username := request.FormValue("username")
	if err := Authenticate(server.teachers, username, request.FormValue("password")); err != nil {
		writeDetail(responseWriter, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := server.sessions.Create(username)
	if err != nil {
		server.internalError(responseWriter, request, err)
		return
	}
	writeJSON(responseWriter, http.StatusOK, map[string]string{
		"message":       "Login successful for " + username,
		"session_token": token,
		"username":      username,
	})
}

func (server *Server) logout(responseWriter http.ResponseWriter, request *http.Request) {
	if err := server.sessions.Delete(request.FormValue("session_token")); err != nil {
		writeDetail(responseWriter, http.StatusUnauthorized, "Invalid session token")
		return
	}
	writeJSON(responseWriter, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (server *Server) verifySession(responseWriter http.ResponseWriter, request *http.Request) {
	username, err := server.sessions.Username(request.FormValue("session_token"))
	if err != nil {
		writeJSON(responseWriter, http.StatusOK, map[string]any{"valid": false})
		return
	}
	writeJSON(responseWriter, http.StatusOK, map[string]any{"valid": true, "username": username})
}

func (server *Server) listActivities(responseWriter http.ResponseWriter, request *http.Request) {
	activities, err := server.store.List(request.Context())
	if err != nil {
		server.internalError(responseWriter, request, err)
		return
	}
	writeJSON(responseWriter, http.StatusOK, activities)
}

func (server *Server) signup(responseWriter http.ResponseWriter, request *http.Request) {
	username, ok := server.teacher(responseWriter, request, "Unauthorized. Only logged-in teachers can register students.")
	if !ok {
		return
	}
	activity := activityParam(request)
	email := request.URL.Query().Get("email")

	if err := server.store.AddParticipant(request.Context(), activity, email); err != nil {
		server.rosterError(responseWriter, request, err)
		return
	}
	server.logger.Info("signup", "teacher", username, "activity", activity, "email", email)
	writeJSON(responseWriter, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Teacher %s signed up %s for %s", username, email, activity),
	})
}

func (server *Server) unregister(responseWriter http.ResponseWriter, request *http.Request) {
	username, ok := server.teacher(responseWriter, request, "Unauthorized. Only logged-in teachers can unregister students.")
	if !ok {
		return
	}
	activity := activityParam(request)
	email := request.URL.Query().Get("email")

	if err := server.store.RemoveParticipant(request.Context(), activity, email); err != nil {
		server.rosterError(responseWriter, request, err)
		return
	}
	server.logger.Info("unregister", "teacher", username, "activity", activity, "email", email)
	writeJSON(responseWriter, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Teacher %s unregistered %s from %s", username, email, activity),
	})
}

// teacher resolves the session_token query parameter and answers 401 with
// detail when it does not name a session.
func (server *Server) teacher(responseWriter http.ResponseWriter, request *http.Request, detail string) (string, bool) {
	username, err := server.sessions.Username(request.URL.Query().Get("session_token"))
	if err != nil {
		writeDetail(responseWriter, http.StatusUnauthorized, detail)
		return "", false
	}
	return username, true
}

func (server *Server) rosterError(responseWriter http.ResponseWriter, request *http.Request, err error) {
	switch {
	case errors.Is(err, ErrActivityNotFound):
		writeDetail(responseWriter, http.StatusNotFound, "Activity not found")
	case errors.Is(err, ErrAlreadySignedUp):
		writeDetail(responseWriter, http.StatusBadRequest, "Student is already signed up")
	case errors.Is(err, ErrNotSignedUp):
		writeDetail(responseWriter, http.StatusBadRequest, "Student is not signed up for this activity")
	case errors.Is(err, ErrActivityFull):
		writeDetail(responseWriter, http.StatusBadRequest, "Activity is full")
	default:
		server.internalError(responseWriter, request, err)
	}
}

func (server *Server) internalError(responseWriter http.ResponseWriter, request *http.Request, err error) {
	server.logger.Error("internal_error", "path", request.URL.Path,
		"request_id", middleware.GetReqID(request.Context()), "error", err)
	writeDetail(responseWriter, http.StatusInternalServerError, "Internal server error")
}

// activityParam returns the decoded {activity} path segment. chi matches
// on the raw path only when one is present; otherwise the segment is
// already decoded.
func activityParam(request *http.Request) string {
	param := chi.URLParam(request, "activity")
	if request.URL.RawPath == "" {
		return param
	}
	if decoded, err := url.PathUnescape(param); err == nil {
		return decoded
	}
	return param
}

func writeDetail(responseWriter http.ResponseWriter, status int, detail string) {
	writeJSON(responseWriter, status, map[string]string{"detail": detail})
}

func writeJSON(responseWriter http.ResponseWriter, status int, body any) {
	responseWriter.Header().Set("Content-Type", "application/json")
	responseWriter.WriteHeader(status)
	_ = json.NewEncoder(responseWriter).Encode(body)
}
