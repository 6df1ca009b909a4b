// Package web serves the browser-facing pages.
package web

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Bios-Marcel/mergington/controller"
	"github.com/Bios-Marcel/mergington/data"
	"github.com/Bios-Marcel/mergington/store"
	"github.com/Bios-Marcel/mergington/views"
)

// ProfileCookie identifies the browser profile whose session is used.
const ProfileCookie = "profile"

// profileMaxAge keeps the profile for as long as browser local storage
// would.
const profileMaxAge = 400 * 24 * time.Hour

// Server holds what every request needs to build its controller.
type Server struct {
	api     controller.API
	storage controller.SessionStorage
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(server *Server) {
		server.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(server *Server) {
		server.now = now
	}
}

func NewServer(api controller.API, storage controller.SessionStorage, options ...Option) *Server {
	server := &Server{
		api:     api,
		storage: storage,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, option := range options {
		option(server)
	}
	return server
}

// Router wires the page and its form actions.
func (server *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.Get("/", server.index)
	router.Post("/ui/login", server.login)
	router.Post("/ui/logout", server.logout)
	router.Post("/ui/signup", server.signup)
	router.Post("/ui/unregister", server.unregister)
	router.Get("/healthz", func(responseWriter http.ResponseWriter, _ *http.Request) {
		responseWriter.WriteHeader(http.StatusNoContent)
	})

	return router
}

func (server *Server) index(responseWriter http.ResponseWriter, request *http.Request) {
	ctrl := server.controllerFor(responseWriter, request)
	if notice, ok := readFlash(responseWriter, request); ok {
		ctrl.Restore(notice)
	}
	ctrl.Load(request.Context())
	switch request.URL.Query().Get("login") {
	case "1":
		if ctrl.Mode() == data.ModeStudent {
			ctrl.OpenLogin()
		}
	case "0":
		ctrl.CloseLogin()
	}

	responseWriter.Header().Set("Content-Type", "text/html; charset=utf-8")
	responseWriter.Header().Set("Cache-Control", "no-store")
	views.WritePage(responseWriter, ctrl.Page())
}

func (server *Server) login(responseWriter http.ResponseWriter, request *http.Request) {
	ctrl := server.controllerFor(responseWriter, request)
	ctrl.Login(request.Context(), request.PostFormValue("username"), request.PostFormValue("password"))
	server.redirect(responseWriter, request, ctrl)
}

func (server *Server) logout(responseWriter http.ResponseWriter, request *http.Request) {
	ctrl := server.controllerFor(responseWriter, request)
	ctrl.Logout(request.Context())
	server.redirect(responseWriter, request, ctrl)
}

func (server *Server) signup(responseWriter http.ResponseWriter, request *http.Request) {
	ctrl := server.controllerFor(responseWriter, request)
	ctrl.Signup(request.Context(), request.PostFormValue("activity"), strings.TrimSpace(request.PostFormValue("email")))
	server.redirect(responseWriter, request, ctrl)
}

func (server *Server) unregister(responseWriter http.ResponseWriter, request *http.Request) {
	ctrl := server.controllerFor(responseWriter, request)
	ctrl.Unregister(request.Context(), request.PostFormValue("activity"), request.PostFormValue("email"))
	server.redirect(responseWriter, request, ctrl)
}

// redirect hands the action's outcome to the page through the flash
// cookie, so reloading the page never repeats the post.
func (server *Server) redirect(responseWriter http.ResponseWriter, request *http.Request, ctrl *controller.Controller) {
	writeFlash(responseWriter, request, ctrl.Notice())
	http.Redirect(responseWriter, request, "/", http.StatusSeeOther)
}

func (server *Server) controllerFor(responseWriter http.ResponseWriter, request *http.Request) *controller.Controller {
	profileID := server.profileID(responseWriter, request)
	logger := server.logger.With("request_id", middleware.GetReqID(request.Context()))
	return controller.New(server.api, server.storage, profileID,
		controller.WithLogger(logger), controller.WithClock(server.now), controller.DeferRefresh())
}

// profileID returns the request's profile, issuing a new one when the
// cookie is missing or malformed.
func (server *Server) profileID(responseWriter http.ResponseWriter, request *http.Request) string {
	if cookie, err := request.Cookie(ProfileCookie); err == nil {
		if value := strings.TrimSpace(cookie.Value); store.ValidProfileID(value) {
			return value
		}
	}

	profileID, err := store.NewProfileID()
	if err != nil {
		// Without randomness there is no profile to attach a session to;
		// the page still renders in student mode.
		server.logger.Error("new profile", "error", err)
		return ""
	}
	http.SetCookie(responseWriter, &http.Cookie{
		Name:     ProfileCookie,
		Value:    profileID,
		Path:     "/",
		MaxAge:   int(profileMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   request.TLS != nil,
	})
	return profileID
}
