package web

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bios-Marcel/mergington/client"
	"github.com/Bios-Marcel/mergington/data"
	"github.com/Bios-Marcel/mergington/service"
	"github.com/Bios-Marcel/mergington/store"
)

// recorder counts and remembers the requests reaching the activities
// service.
type recorder struct {
	mu       sync.Mutex
	requests []string
	down     bool
}

func (r *recorder) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		r.mu.Lock()
		r.requests = append(r.requests, request.Method+" "+request.URL.RequestURI())
		down := r.down
		r.mu.Unlock()
		if down && request.URL.Path == "/logout" {
			panic(http.ErrAbortHandler)
		}
		next.ServeHTTP(responseWriter, request)
	})
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = nil
}

func (r *recorder) count(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, request := range r.requests {
		if strings.HasPrefix(request, prefix) {
			count++
		}
	}
	return count
}

func (r *recorder) has(request string) bool {
	return r.count(request) > 0
}

type harness struct {
	frontend *httptest.Server
	browser  *http.Client
	profiles *store.Store
	recorder *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	activities, err := service.OpenBolt(filepath.Join(t.TempDir(), "activities.db"), service.DefaultActivities())
	require.NoError(t, err)
	t.Cleanup(func() { activities.Close() })

	rec := &recorder{}
	backend := httptest.NewServer(rec.wrap(service.NewServer(service.Config{
		Store:    activities,
		Teachers: []data.Teacher{{Username: "ms.smith", Password: "secret"}},
		Logger:   logger,
	}).Router()))
	t.Cleanup(backend.Close)

	profiles, err := store.Open(filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, err)
	t.Cleanup(func() { profiles.Close() })

	frontend := httptest.NewServer(NewServer(client.New(backend.URL, backend.Client()), profiles, WithLogger(logger)).Router())
	t.Cleanup(frontend.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &harness{
		frontend: frontend,
		browser:  &http.Client{Jar: jar},
		profiles: profiles,
		recorder: rec,
	}
}

func (h *harness) get(t *testing.T, path string) string {
	t.Helper()
	response, err := h.browser.Get(h.frontend.URL + path)
	require.NoError(t, err)
	defer response.Body.Close()
	require.Equal(t, http.StatusOK, response.StatusCode)
	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	return string(body)
}

func (h *harness) post(t *testing.T, path string, form url.Values) string {
	t.Helper()
	response, err := h.browser.PostForm(h.frontend.URL+path, form)
	require.NoError(t, err)
	defer response.Body.Close()
	require.Equal(t, http.StatusOK, response.StatusCode)
	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	return string(body)
}

// noFollow shares the browser's cookies but stops at redirects.
func (h *harness) noFollow() *http.Client {
	return &http.Client{
		Jar: h.browser.Jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (h *harness) profileID(t *testing.T) string {
	t.Helper()
	frontendURL, err := url.Parse(h.frontend.URL)
	require.NoError(t, err)
	for _, cookie := range h.browser.Jar.Cookies(frontendURL) {
		if cookie.Name == ProfileCookie {
			return cookie.Value
		}
	}
	t.Fatal("no profile cookie")
	return ""
}

func (h *harness) login(t *testing.T) string {
	t.Helper()
	return h.post(t, "/ui/login", url.Values{"username": {"ms.smith"}, "password": {"secret"}})
}

func TestStudentPage(t *testing.T) {
	h := newHarness(t)

	page := h.get(t, "/")

	assert.Contains(t, page, `data-mode="student"`)
	assert.Equal(t, 9, strings.Count(page, `class="activity-card"`))
	assert.Equal(t, 0, strings.Count(page, `class="delete-btn"`))
	assert.Contains(t, page, `<span class="spots-left">10</span> spots left`)
	assert.Equal(t, 0, h.recorder.count("POST /verify-session"))
	assert.True(t, store.ValidProfileID(h.profileID(t)))
}

func TestLoginDialog(t *testing.T) {
	h := newHarness(t)

	assert.Contains(t, h.get(t, "/?login=1"), `id="login-modal"`)
	assert.NotContains(t, h.get(t, "/"), `id="login-modal"`)
}

func TestCloseLoginDropsFailedAttempt(t *testing.T) {
	h := newHarness(t)
	noFollow := h.noFollow()

	response, err := noFollow.PostForm(h.frontend.URL+"/ui/login", url.Values{"username": {"ms.smith"}, "password": {"wrong"}})
	require.NoError(t, err)
	response.Body.Close()
	require.Equal(t, http.StatusSeeOther, response.StatusCode)

	page := h.get(t, "/?login=0")
	assert.NotContains(t, page, `id="login-modal"`)
	assert.NotContains(t, page, `Invalid username or password`)
}

func TestLoginFlow(t *testing.T) {
	h := newHarness(t)
	h.get(t, "/")
	h.recorder.reset()

	page := h.login(t)

	assert.Contains(t, page, `data-mode="teacher"`)
	assert.Contains(t, page, `>Welcome, ms.smith!</div>`)
	assert.Contains(t, page, `data-hide-after="3000"`)
	assert.Equal(t, 18, strings.Count(page, `class="delete-btn"`))
	assert.Equal(t, 1, h.recorder.count("GET /activities"))

	session, err := h.profiles.Load(h.profileID(t))
	require.NoError(t, err)
	assert.Equal(t, "ms.smith", session.Username)
	assert.NotEmpty(t, session.Token)

	h.recorder.reset()
	reloaded := h.get(t, "/")
	assert.Contains(t, reloaded, `data-mode="teacher"`)
	assert.NotContains(t, reloaded, `Welcome, ms.smith!`)
	assert.True(t, h.recorder.has("POST /verify-session"))
}

func TestLoginSendsUsernameAsTyped(t *testing.T) {
	h := newHarness(t)

	page := h.post(t, "/ui/login", url.Values{"username": {" ms.smith "}, "password": {"secret"}})

	assert.Contains(t, page, `data-mode="student"`)
	assert.Contains(t, page, `value=" ms.smith "`)
	assert.Contains(t, page, `Invalid username or password`)
}

func TestLoginRejected(t *testing.T) {
	h := newHarness(t)

	page := h.post(t, "/ui/login", url.Values{"username": {"ms.smith"}, "password": {"wrong"}})

	assert.Contains(t, page, `data-mode="student"`)
	assert.Contains(t, page, `<div id="login-message" class="error message">Invalid username or password</div>`)
	assert.Equal(t, 9, strings.Count(page, `class="activity-card"`))

	session, err := h.profiles.Load(h.profileID(t))
	require.NoError(t, err)
	assert.False(t, session.Present())
}

func TestStaleSessionFallsBackToStudent(t *testing.T) {
	h := newHarness(t)
	h.get(t, "/")
	profileID := h.profileID(t)
	require.NoError(t, h.profiles.Save(profileID, data.Session{Token: "stale", Username: "ms.smith"}))

	page := h.get(t, "/")

	assert.Contains(t, page, `data-mode="student"`)
	assert.NotContains(t, page, `id="message"`)
	session, err := h.profiles.Load(profileID)
	require.NoError(t, err)
	assert.Equal(t, data.Session{}, session)
}

func TestSignupFlow(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.recorder.reset()

	page := h.post(t, "/ui/signup", url.Values{"activity": {"Chess Club"}, "email": {"a@b.com"}})

	session, err := h.profiles.Load(h.profileID(t))
	require.NoError(t, err)
	want := "POST /activities/Chess%20Club/signup?email=a%40b.com&session_token=" + url.QueryEscape(session.Token)
	assert.True(t, h.recorder.has(want), "requests: %v", h.recorder.requests)
	assert.Equal(t, 1, h.recorder.count("GET /activities"))

	assert.Contains(t, page, `>Teacher ms.smith signed up a@b.com for Chess Club</div>`)
	assert.Contains(t, page, `data-hide-after="5000"`)
	assert.Contains(t, page, `<span class="participant-email">a@b.com</span>`)
	assert.Contains(t, page, `placeholder="your-email@mergington.edu" value=""`)
	assert.NotContains(t, page, `<option value="Chess Club" selected>`)
}

func TestSignupRejectedKeepsForm(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.recorder.reset()

	page := h.post(t, "/ui/signup", url.Values{"activity": {"Chess Club"}, "email": {"michael@mergington.edu"}})

	assert.Contains(t, page, `<div id="message" class="error message" data-hide-after="5000">Student is already signed up</div>`)
	assert.Contains(t, page, `<option value="Chess Club" selected>`)
	assert.Contains(t, page, `value="michael@mergington.edu"`)
	assert.Equal(t, 1, h.recorder.count("GET /activities"))
}

func TestSignupWithoutSession(t *testing.T) {
	h := newHarness(t)

	page := h.post(t, "/ui/signup", url.Values{"activity": {"Chess Club"}, "email": {"a@b.com"}})

	assert.Contains(t, page, `You must be logged in as a teacher to register students`)
	assert.Equal(t, 0, h.recorder.count("POST /activities"))
}

func TestUnregisterFlow(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.recorder.reset()

	page := h.post(t, "/ui/unregister", url.Values{"activity": {"Chess Club"}, "email": {"michael@mergington.edu"}})

	assert.True(t, h.recorder.has("DELETE /activities/Chess%20Club/unregister?email=michael%40mergington.edu"))
	assert.Contains(t, page, `Teacher ms.smith unregistered michael@mergington.edu from Chess Club`)
	assert.NotContains(t, page, `<span class="participant-email">michael@mergington.edu</span>`)
	assert.Equal(t, 1, h.recorder.count("GET /activities"))
}

func TestLogoutFlow(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	page := h.post(t, "/ui/logout", nil)

	assert.Contains(t, page, `data-mode="student"`)
	assert.Contains(t, page, `>Logged out successfully</div>`)
	assert.Equal(t, 0, strings.Count(page, `class="delete-btn"`))
	session, err := h.profiles.Load(h.profileID(t))
	require.NoError(t, err)
	assert.Equal(t, data.Session{}, session)
}

func TestLogoutWhenServiceFails(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.recorder.mu.Lock()
	h.recorder.down = true
	h.recorder.mu.Unlock()

	page := h.post(t, "/ui/logout", nil)

	assert.Contains(t, page, `data-mode="student"`)
	assert.Contains(t, page, `>Logged out successfully</div>`)
	session, err := h.profiles.Load(h.profileID(t))
	require.NoError(t, err)
	assert.False(t, session.Present())
}

func TestRenderIsStable(t *testing.T) {
	h := newHarness(t)
	h.get(t, "/")

	assert.Equal(t, h.get(t, "/"), h.get(t, "/"))
}

func TestWithClock(t *testing.T) {
	now := time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)
	server := NewServer(nil, nil, WithClock(func() time.Time { return now }))
	assert.Equal(t, now, server.now())
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	response, err := h.browser.Get(h.frontend.URL + "/healthz")
	require.NoError(t, err)
	response.Body.Close()
	assert.Equal(t, http.StatusNoContent, response.StatusCode)
}

func TestActionsRedirect(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	noFollow := h.noFollow()

	response, err := noFollow.PostForm(h.frontend.URL+"/ui/signup", url.Values{"activity": {"Chess Club"}, "email": {"a@b.com"}})
	require.NoError(t, err)
	response.Body.Close()
	assert.Equal(t, http.StatusSeeOther, response.StatusCode)
	assert.Equal(t, "/", response.Header.Get("Location"))
	assert.Equal(t, 1, h.recorder.count("POST /activities/Chess%20Club/signup"))

	h.recorder.reset()
	page := h.get(t, "/")
	assert.Contains(t, page, `>Teacher ms.smith signed up a@b.com for Chess Club</div>`)
	assert.Equal(t, 0, h.recorder.count("POST /activities"))

	reloaded := h.get(t, "/")
	assert.NotContains(t, reloaded, `id="message"`)
	assert.Equal(t, 0, h.recorder.count("POST /activities"))
}
