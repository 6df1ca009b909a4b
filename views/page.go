// Package views renders the front end's single page.
//
// The writers follow quicktemplate's Stream/Write/String triple so callers
// can render into a pooled writer, any io.Writer, or a string.
package views

import (
	"io"
	"time"

	qt "github.com/valyala/quicktemplate"

	"github.com/Bios-Marcel/mergington/data"
)

// BannerKind selects the banner's styling.
type BannerKind string

const (
	BannerSuccess BannerKind = "success"
	BannerError   BannerKind = "error"
)

// Banner is a transient message hidden after HideAfter.
type Banner struct {
	Kind      BannerKind
	Text      string
	HideAfter time.Duration
}

// Card is one rendered activity.
type Card struct {
	Name         string
	Description  string
	Schedule     string
	SpotsLeft    int
	Participants []string
}

// SignupForm holds the values the signup form is rendered with.
type SignupForm struct {
	Activity string
	Email    string
}

// LoginDialog is the modal login form.
type LoginDialog struct {
	Open     bool
	Username string
	Error    string
}

// Page is everything the page is rendered from.
type Page struct {
	Mode     data.Mode
	Username string

	Cards     []Card
	LoadError string
	// Options feeds the signup dropdown, in the same order as Cards.
	Options []string
	// ShowDelete gates the per-participant delete controls.
	ShowDelete bool

	Form   SignupForm
	Login  LoginDialog
	Banner *Banner
}

// StreamPage writes the page to qw.
func StreamPage(qw *qt.Writer, page Page) {
	qw.N().S(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Mergington High School Activities</title>
<style>.hidden{display:none}</style>
</head>
<body>
<header>
<h1>Mergington High School</h1>
<h2>Extracurricular Activities</h2>
`)
	streamUserControls(qw, page)
	qw.N().S(`</header>
<main>
`)
	streamBanner(qw, page.Banner)
	qw.N().S(`<section id="activities-container">
<h3>Available Activities</h3>
<div id="activities-list">
`)
	streamActivities(qw, page)
	qw.N().S(`</div>
</section>
`)
	streamSignup(qw, page)
	qw.N().S(`</main>
`)
	streamLoginDialog(qw, page.Login)
	qw.N().S(`</body>
</html>
`)
}

// WritePage writes the page to w.
func WritePage(w io.Writer, page Page) {
	qw := qt.AcquireWriter(w)
	StreamPage(qw, page)
	qt.ReleaseWriter(qw)
}

// PageString renders the page to a string.
func PageString(page Page) string {
	buffer := qt.AcquireByteBuffer()
	WritePage(buffer, page)
	rendered := string(buffer.B)
	qt.ReleaseByteBuffer(buffer)
	return rendered
}

func streamUserControls(qw *qt.Writer, page Page) {
	if page.Mode == data.ModeTeacher {
		qw.N().S(`<div id="user-controls" data-mode="teacher">
<span id="user-info">Logged in as <strong id="username-display">`)
		qw.E().S(page.Username)
		qw.N().S(`</strong></span>
<form method="post" action="/ui/logout"><button id="logout-btn" type="submit">Logout</button></form>
</div>
`)
		return
	}
	qw.N().S(`<div id="user-controls" data-mode="student">
<a id="login-btn" href="/?login=1">Teacher Login</a>
</div>
`)
}

func streamBanner(qw *qt.Writer, banner *Banner) {
	if banner == nil {
		return
	}
	qw.N().S(`<div id="message" class="`)
	qw.E().S(string(banner.Kind))
	qw.N().S(` message" data-hide-after="`)
	qw.N().D(int(banner.HideAfter.Milliseconds()))
	qw.N().S(`">`)
	qw.E().S(banner.Text)
	qw.N().S(`</div>
<script>(function(){var m=document.getElementById("message");setTimeout(function(){m.classList.add("hidden")},+m.dataset.hideAfter)})();</script>
`)
}

func streamActivities(qw *qt.Writer, page Page) {
	if page.LoadError != "" {
		qw.N().S(`<p>`)
		qw.E().S(page.LoadError)
		qw.N().S(`</p>
`)
		return
	}
	for _, card := range page.Cards {
		qw.N().S(`<div class="activity-card">
<h4>`)
		qw.E().S(card.Name)
		qw.N().S(`</h4>
<p>`)
		qw.E().S(card.Description)
		qw.N().S(`</p>
<p><strong>Schedule:</strong> `)
		qw.E().S(card.Schedule)
		qw.N().S(`</p>
<p><strong>Availability:</strong> <span class="spots-left">`)
		qw.N().D(card.SpotsLeft)
		qw.N().S(`</span> spots left</p>
<div class="participants-container">
`)
		streamParticipants(qw, card, page.ShowDelete)
		qw.N().S(`</div>
</div>
`)
	}
}

func streamParticipants(qw *qt.Writer, card Card, showDelete bool) {
	if len(card.Participants) == 0 {
		qw.N().S(`<p><em>No participants yet</em></p>
`)
		return
	}
	qw.N().S(`<div class="participants-section">
<h5>Participants:</h5>
<ul class="participants-list">
`)
	for _, email := range card.Participants {
		qw.N().S(`<li><span class="participant-email">`)
		qw.E().S(email)
		qw.N().S(`</span>`)
		if showDelete {
			qw.N().S(`<form class="delete-form" method="post" action="/ui/unregister"><input type="hidden" name="activity" value="`)
			qw.E().S(card.Name)
			qw.N().S(`"><input type="hidden" name="email" value="`)
			qw.E().S(email)
			qw.N().S(`"><button class="delete-btn" type="submit" title="Unregister">&#10060;</button></form>`)
		}
		qw.N().S(`</li>
`)
	}
	qw.N().S(`</ul>
</div>
`)
}

func streamSignup(qw *qt.Writer, page Page) {
	if page.Mode != data.ModeTeacher {
		qw.N().S(`<section id="student-view">
<p>Only teachers can register students. <a id="login-link" href="/?login=1">Log in</a> to manage signups.</p>
</section>
`)
		return
	}
	qw.N().S(`<section id="teacher-only">
<h3>Register a Student</h3>
<form id="signup-form" method="post" action="/ui/signup">
<label for="email">Student Email:</label>
<input type="email" id="email" name="email" required placeholder="your-email@mergington.edu" value="`)
	qw.E().S(page.Form.Email)
	qw.N().S(`">
<label for="activity">Select Activity:</label>
<select id="activity" name="activity" required>
<option value="">-- Select an activity --</option>
`)
	for _, name := range page.Options {
		qw.N().S(`<option value="`)
		qw.E().S(name)
		qw.N().S(`"`)
		if name == page.Form.Activity {
			qw.N().S(` selected`)
		}
		qw.N().S(`>`)
		qw.E().S(name)
		qw.N().S(`</option>
`)
	}
	qw.N().S(`</select>
<button type="submit">Sign Up</button>
</form>
</section>
`)
}

func streamLoginDialog(qw *qt.Writer, login LoginDialog) {
	if !login.Open {
		return
	}
	qw.N().S(`<div id="login-modal" class="modal">
<div class="modal-content">
<a id="close-login" class="close" href="/?login=0">&times;</a>
<h3>Teacher Login</h3>
<form id="login-form" method="post" action="/ui/login">
<label for="login-username">Username:</label>
<input type="text" id="login-username" name="username" required autofocus value="`)
	qw.E().S(login.Username)
	qw.N().S(`">
<label for="login-password">Password:</label>
<input type="password" id="login-password" name="password" required>
<button type="submit">Login</button>
</form>
`)
	if login.Error != "" {
		qw.N().S(`<div id="login-message" class="error message">`)
		qw.E().S(login.Error)
		qw.N().S(`</div>
`)
	}
	qw.N().S(`</div>
</div>
`)
}
