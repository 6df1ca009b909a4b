// Package controller owns one browser profile's session and turns user
// events into calls against the activities service and a renderable page.
//
// A Controller is built per request and is not safe for concurrent use.
// Gating signup and unregister on the presence of a token is a convenience
// for the user only; the activities service authorizes every change itself.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Bios-Marcel/mergington/client"
	"github.com/Bios-Marcel/mergington/data"
	"github.com/Bios-Marcel/mergington/views"
)

const (
	SessionBannerDelay = 3 * time.Second
	RosterBannerDelay  = 5 * time.Second
)

const (
	msgLoginFailed           = "Login failed"
	msgLoginUnreachable      = "Failed to login. Please try again."
	msgLoggedOut             = "Logged out successfully"
	msgLoadFailed            = "Failed to load activities. Please try again later."
	msgGenericRejection      = "An error occurred"
	msgSignupGuard           = "You must be logged in as a teacher to register students"
	msgSignupUnreachable     = "Failed to sign up. Please try again."
	msgUnregisterGuard       = "You must be logged in as a teacher to unregister students"
	msgUnregisterUnreachable = "Failed to unregister. Please try again."
)

// API is the part of the activities service the controller needs.
type API interface {
	VerifySession(ctx context.Context, token string) (client.Verification, error)
	Login(ctx context.Context, username, password string) (data.Session, error)
	Logout(ctx context.Context, token string) error
	ListActivities(ctx context.Context) (data.Activities, error)
	Signup(ctx context.Context, activity, email, token string) (string, error)
	Unregister(ctx context.Context, activity, email, token string) (string, error)
}

// SessionStorage persists the session pair of a profile.
type SessionStorage interface {
	Load(profileID string) (data.Session, error)
	Save(profileID string, session data.Session) error
	Clear(profileID string) error
}

type banner struct {
	views.Banner
	until time.Time
}

// Controller is the single owner of a profile's session state.
type Controller struct {
	api       API
	storage   SessionStorage
	profileID string
	logger    *slog.Logger
	now       func() time.Time

	session data.Session

	activities []data.Activity
	loadError  string

	deferRefresh bool

	form   views.SignupForm
	login  views.LoginDialog
	banner *banner
}

type Option func(*Controller)

// WithLogger sets the diagnostic logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(controller *Controller) {
		controller.logger = logger
	}
}

// WithClock replaces time.Now, used for banner deadlines.
func WithClock(now func() time.Time) Option {
	return func(controller *Controller) {
		controller.now = now
	}
}

// DeferRefresh leaves the list fetch that follows a login, logout or
// roster change to the next Load. Callers that redirect to a freshly loaded
// page after every action use it to fetch the list once.
func DeferRefresh() Option {
	return func(controller *Controller) {
		controller.deferRefresh = true
	}
}

// New restores the profile's stored session. A storage failure is logged
// and treated as no session.
func New(api API, storage SessionStorage, profileID string, options ...Option) *Controller {
	controller := &Controller{
		api:       api,
		storage:   storage,
		profileID: profileID,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, option := range options {
		option(controller)
	}

	session, err := storage.Load(profileID)
	if err != nil {
		controller.logger.Error("load session", "profile", profileID, "error", err)
		session = data.Session{}
	}
	controller.session = session
	return controller
}

// Session returns the currently held session.
func (controller *Controller) Session() data.Session {
	return controller.session
}

// Mode is derived from the session on every call.
func (controller *Controller) Mode() data.Mode {
	return data.ModeFor(controller.session)
}

// Load is what happens when the page is opened: verify a stored session,
// then fetch the activity list.
func (controller *Controller) Load(ctx context.Context) {
	if controller.session.Present() {
		controller.Verify(ctx)
	}
	controller.Refresh(ctx)
}

// Verify checks the stored token. Anything but a positive answer clears
// the session silently.
func (controller *Controller) Verify(ctx context.Context) {
	if !controller.session.Present() {
		return
	}

	verification, err := controller.api.VerifySession(ctx, controller.session.Token)
	if err != nil {
		controller.logger.Error("verify session", "profile", controller.profileID, "error", err)
		controller.clearSession()
		return
	}
	if !verification.Valid {
		controller.clearSession()
		return
	}

	if verification.Username != "" && verification.Username != controller.session.Username {
		controller.session.Username = verification.Username
		controller.persistSession()
	}
}

// Login leaves the current session untouched on any failure.
func (controller *Controller) Login(ctx context.Context, username, password string) {
	session, err := controller.api.Login(ctx, username, password)
	if err != nil {
		controller.login = views.LoginDialog{Open: true, Username: username}
		if client.IsTransport(err) {
			controller.logger.Error("login", "username", username, "error", err)
			controller.login.Error = msgLoginUnreachable
		} else {
			controller.login.Error = client.DetailOr(err, msgLoginFailed)
		}
		return
	}

	controller.session = session
	controller.persistSession()
	controller.login = views.LoginDialog{}
	controller.showBanner(views.BannerSuccess, fmt.Sprintf("Welcome, %s!", session.Username), SessionBannerDelay)
	controller.afterChange(ctx)
}

// Logout tells the service on a best-effort basis and always drops the
// local session.
func (controller *Controller) Logout(ctx context.Context) {
	if controller.session.Present() {
		if err := controller.api.Logout(ctx, controller.session.Token); err != nil {
			controller.logger.Warn("logout", "profile", controller.profileID, "error", err)
		}
	}

	controller.clearSession()
	controller.showBanner(views.BannerSuccess, msgLoggedOut, SessionBannerDelay)
	controller.afterChange(ctx)
}

// Refresh replaces the activity snapshot with a fresh one.
func (controller *Controller) Refresh(ctx context.Context) {
	activities, err := controller.api.ListActivities(ctx)
	if err != nil {
		controller.logger.Error("list activities", "error", err)
		controller.activities = nil
		controller.loadError = msgLoadFailed
		return
	}
	controller.activities = activities.Sorted()
	controller.loadError = ""
}

// Signup registers email for activity.
func (controller *Controller) Signup(ctx context.Context, activity, email string) {
	controller.form = views.SignupForm{Activity: activity, Email: email}
	if !controller.session.Present() {
		controller.showBanner(views.BannerError, msgSignupGuard, RosterBannerDelay)
		return
	}

	message, err := controller.api.Signup(ctx, activity, email, controller.session.Token)
	if controller.rosterOutcome("signup", message, err, msgSignupUnreachable) {
		controller.form = views.SignupForm{}
		controller.afterChange(ctx)
	}
}

// Unregister removes email from activity.
func (controller *Controller) Unregister(ctx context.Context, activity, email string) {
	if !controller.session.Present() {
		controller.showBanner(views.BannerError, msgUnregisterGuard, RosterBannerDelay)
		return
	}

	message, err := controller.api.Unregister(ctx, activity, email, controller.session.Token)
	if controller.rosterOutcome("unregister", message, err, msgUnregisterUnreachable) {
		controller.afterChange(ctx)
	}
}

func (controller *Controller) afterChange(ctx context.Context) {
	if controller.deferRefresh {
		return
	}
	controller.Refresh(ctx)
}

// rosterOutcome shows the banner for a signup or unregister result and
// reports whether it succeeded.
func (controller *Controller) rosterOutcome(op, message string, err error, unreachable string) bool {
	switch {
	case err == nil:
		controller.showBanner(views.BannerSuccess, message, RosterBannerDelay)
		return true
	case client.IsTransport(err):
		controller.logger.Error(op, "profile", controller.profileID, "error", err)
		controller.showBanner(views.BannerError, unreachable, RosterBannerDelay)
	default:
		controller.showBanner(views.BannerError, client.DetailOr(err, msgGenericRejection), RosterBannerDelay)
	}
	return false
}

// OpenLogin shows the login dialog.
func (controller *Controller) OpenLogin() {
	controller.login.Open = true
}

// CloseLogin hides and resets the login dialog.
func (controller *Controller) CloseLogin() {
	controller.login = views.LoginDialog{}
}

// Notice is the transient part of the page: the banner, the signup form
// values and the login dialog. It is what survives a redirect.
type Notice struct {
	Banner *views.Banner     `json:"banner,omitempty"`
	Until  time.Time         `json:"until"`
	Form   views.SignupForm  `json:"form"`
	Login  views.LoginDialog `json:"login"`
}

// Empty reports whether there is nothing to carry over.
func (notice Notice) Empty() bool {
	return notice.Banner == nil && notice.Form == (views.SignupForm{}) && notice.Login == (views.LoginDialog{})
}

// Notice returns the transient state for the next page.
func (controller *Controller) Notice() Notice {
	notice := Notice{Form: controller.form, Login: controller.login}
	if controller.banner != nil {
		shown := controller.banner.Banner
		notice.Banner = &shown
		notice.Until = controller.banner.until
	}
	return notice
}

// Restore takes over the transient state of an earlier controller. The
// banner keeps its original deadline.
func (controller *Controller) Restore(notice Notice) {
	controller.form = notice.Form
	controller.login = notice.Login
	controller.banner = nil
	if notice.Banner != nil {
		controller.banner = &banner{Banner: *notice.Banner, until: notice.Until}
	}
}

// View renders the current state as of now. Banners past their deadline
// are left out.
func (controller *Controller) View(now time.Time) views.Page {
	mode := controller.Mode()
	page := views.Page{
		Mode:       mode,
		LoadError:  controller.loadError,
		ShowDelete: controller.session.Present(),
		Form:       controller.form,
		Login:      controller.login,
	}
	if mode == data.ModeTeacher {
		page.Username = controller.session.Username
	}

	page.Cards = make([]views.Card, 0, len(controller.activities))
	page.Options = make([]string, 0, len(controller.activities))
	for _, activity := range controller.activities {
		page.Cards = append(page.Cards, views.Card{
			Name:         activity.Name,
			Description:  activity.Description,
			Schedule:     activity.Schedule,
			SpotsLeft:    activity.SpotsLeft(),
			Participants: activity.Participants,
		})
		page.Options = append(page.Options, activity.Name)
	}

	if controller.banner != nil && now.Before(controller.banner.until) {
		shown := controller.banner.Banner
		page.Banner = &shown
	}
	return page
}

// Page renders the current state as of the controller's clock.
func (controller *Controller) Page() views.Page {
	return controller.View(controller.now())
}

// showBanner replaces any visible banner.
func (controller *Controller) showBanner(kind views.BannerKind, text string, delay time.Duration) {
	controller.banner = &banner{
		Banner: views.Banner{Kind: kind, Text: text, HideAfter: delay},
		until:  controller.now().Add(delay),
	}
}

func (controller *Controller) persistSession() {
	if err := controller.storage.Save(controller.profileID, controller.session); err != nil {
		controller.logger.Error("save session", "profile", controller.profileID, "error", err)
	}
}

func (controller *Controller) clearSession() {
	controller.session = data.Session{}
	if err := controller.storage.Clear(controller.profileID); err != nil {
		controller.logger.Error("clear session", "profile", controller.profileID, "error", err)
	}
}
