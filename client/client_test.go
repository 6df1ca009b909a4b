package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bios-Marcel/mergington/data"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL+"/", server.Client())
}

func TestLogin(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/login", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "ms.smith", r.PostForm.Get("username"))
		assert.Equal(t, "secret", r.PostForm.Get("password"))
		_, _ = w.Write([]byte(`{"message":"Login successful for ms.smith","session_token":"T","username":"ms.smith"}`))
	})

	session, err := client.Login(context.Background(), "ms.smith", "secret")
	require.NoError(t, err)
	assert.Equal(t, data.Session{Token: "T", Username: "ms.smith"}, session)
}

func TestLoginRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Invalid credentials"}`))
	})

	_, err := client.Login(context.Background(), "ms.smith", "wrong")
	require.Error(t, err)

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusUnauthorized, rejected.Status)
	assert.Equal(t, "Invalid credentials", DetailOr(err, "Login failed"))
	assert.False(t, IsTransport(err))
}

func TestLoginRejectedWithoutDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.Login(context.Background(), "ms.smith", "secret")
	assert.Equal(t, "Login failed", DetailOr(err, "Login failed"))
}

func TestLoginWithoutToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"username":"ms.smith"}`))
	})

	_, err := client.Login(context.Background(), "ms.smith", "secret")
	assert.True(t, IsTransport(err))
}

func TestVerifySession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/verify-session", r.URL.Path)
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("session_token") == "T" {
			_, _ = w.Write([]byte(`{"valid":true,"username":"ms.smith"}`))
			return
		}
		_, _ = w.Write([]byte(`{"valid":false}`))
	})

	verification, err := client.VerifySession(context.Background(), "T")
	require.NoError(t, err)
	assert.Equal(t, Verification{Valid: true, Username: "ms.smith"}, verification)

	verification, err = client.VerifySession(context.Background(), "stale")
	require.NoError(t, err)
	assert.False(t, verification.Valid)
}

func TestMalformedBodyIsTransportError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	_, err := client.VerifySession(context.Background(), "T")
	assert.True(t, IsTransport(err))
	assert.Equal(t, "fallback", DetailOr(err, "fallback"))
}

func TestUnreachableIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	_, err := New(server.URL, nil).ListActivities(context.Background())
	assert.True(t, IsTransport(err))
}

func TestLogoutIgnoresBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/logout", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "T", r.PostForm.Get("session_token"))
		_, _ = w.Write([]byte(`not json`))
	})

	require.NoError(t, client.Logout(context.Background(), "T"))
}

func TestListActivities(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/activities", r.URL.Path)
		_, _ = w.Write([]byte(`{"Chess Club":{"description":"Learn strategies","schedule":"Fridays","max_participants":12,"participants":["michael@mergington.edu"]}}`))
	})

	activities, err := client.ListActivities(context.Background())
	require.NoError(t, err)
	require.Contains(t, activities, "Chess Club")
	assert.Equal(t, 11, activities["Chess Club"].SpotsLeft())
}

func TestSignupEncoding(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/activities/Chess%20Club/signup", r.URL.EscapedPath())
		assert.Equal(t, "email=a%40b.com&session_token=T", r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"message":"Teacher ms.smith signed up a@b.com for Chess Club"}`))
	})

	message, err := client.Signup(context.Background(), "Chess Club", "a@b.com", "T")
	require.NoError(t, err)
	assert.Equal(t, "Teacher ms.smith signed up a@b.com for Chess Club", message)
}

func TestUnregister(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/activities/Chess%20Club/unregister", r.URL.EscapedPath())
		assert.Equal(t, "a@b.com", r.URL.Query().Get("email"))
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"Student is not signed up for this activity"}`))
	})

	_, err := client.Unregister(context.Background(), "Chess Club", "a@b.com", "T")
	assert.Equal(t, "Student is not signed up for this activity", DetailOr(err, "An error occurred"))
}

func TestRosterURLEscapesSlash(t *testing.T) {
	client := New("http://activities", nil)
	assert.Equal(t,
		"http://activities/activities/Arts%2FCrafts/signup?email=a%40b.com&session_token=T",
		client.RosterURL("signup", "Arts/Crafts", "a@b.com", "T"))
}
