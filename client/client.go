// Package client talks to the activities service over HTTP.
//
// Every call is a single attempt: there are no retries, no caching and no
// de-duplication of identical requests. Failures are reported as either a
// *TransportError or a *RejectedError.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Bios-Marcel/mergington/data"
)

// Verification is the result of POST /verify-session.
type Verification struct {
	Valid    bool   `json:"valid"`
	Username string `json:"username,omitempty"`
}

type loginResponse struct {
	SessionToken string `json:"session_token"`
	Username     string `json:"username"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type detailResponse struct {
	Detail string `json:"detail"`
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the service at baseURL. A nil httpClient uses
// http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// VerifySession asks the service whether token still identifies a session.
func (client *Client) VerifySession(ctx context.Context, token string) (Verification, error) {
	var verification Verification
	err := client.postForm(ctx, "/verify-session", url.Values{"session_token": {token}}, &verification)
	return verification, err
}

// Login exchanges credentials for a session.
func (client *Client) Login(ctx context.Context, username, password string) (data.Session, error) {
	var response loginResponse
	if err := client.postForm(ctx, "/login", url.Values{
		"username": {username},
		"password": {password},
	}, &response); err != nil {
		return data.Session{}, err
	}
	if response.SessionToken == "" {
		return data.Session{}, &TransportError{Op: "login", Err: errMissingToken}
	}
	return data.Session{Token: response.SessionToken, Username: response.Username}, nil
}

// Logout invalidates token server-side. The response body is ignored.
func (client *Client) Logout(ctx context.Context, token string) error {
	return client.postForm(ctx, "/logout", url.Values{"session_token": {token}}, nil)
}

// ListActivities fetches the full activity snapshot.
func (client *Client) ListActivities(ctx context.Context) (data.Activities, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, client.baseURL+"/activities", nil)
	if err != nil {
		return nil, &TransportError{Op: "list activities", Err: err}
	}
	var activities data.Activities
	if err := client.do(request, "list activities", &activities); err != nil {
		return nil, err
	}
	if activities == nil {
		activities = data.Activities{}
	}
	return activities, nil
}

// Signup registers email for activity and returns the service's message.
func (client *Client) Signup(ctx context.Context, activity, email, token string) (string, error) {
	return client.rosterChange(ctx, http.MethodPost, "signup", activity, email, token)
}

// Unregister removes email from activity and returns the service's message.
func (client *Client) Unregister(ctx context.Context, activity, email, token string) (string, error) {
	return client.rosterChange(ctx, http.MethodDelete, "unregister", activity, email, token)
}

// RosterURL builds the signup/unregister URL. The activity name is path
// escaped and email and token are query escaped.
func (client *Client) RosterURL(action, activity, email, token string) string {
	query := url.Values{
		"email":         {email},
		"session_token": {token},
	}
	return client.baseURL + "/activities/" + url.PathEscape(activity) + "/" + action + "?" + query.Encode()
}

func (client *Client) rosterChange(ctx context.Context, method, action, activity, email, token string) (string, error) {
	request, err := http.NewRequestWithContext(ctx, method, client.RosterURL(action, activity, email, token), nil)
	if err != nil {
		return "", &TransportError{Op: action, Err: err}
	}
	var response messageResponse
	if err := client.do(request, action, &response); err != nil {
		return "", err
	}
	return response.Message, nil
}

func (client *Client) postForm(ctx context.Context, path string, form url.Values, target any) error {
	op := strings.TrimPrefix(path, "/")
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return client.do(request, op, target)
}

// do sends the request and decodes a 2xx body into target. A nil target
// discards the body.
func (client *Client) do(request *http.Request, op string, target any) error {
	request.Header.Set("Accept", "application/json")
	response, err := client.httpClient.Do(request)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		var detail detailResponse
		body, _ := io.ReadAll(io.LimitReader(response.Body, 64<<10))
		// A missing or malformed detail leaves the fallback to the caller.
		_ = json.Unmarshal(body, &detail)
		return &RejectedError{Op: op, Status: response.StatusCode, Detail: detail.Detail}
	}

	if target == nil {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(target); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
