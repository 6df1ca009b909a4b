package data

import "sort"

// Session is the pair persisted per browser profile. An empty token means
// there is no session.
type Session struct {
	Token    string `json:"session_token"`
	Username string `json:"username"`
}

// Present reports whether a session token is held.
func (session Session) Present() bool {
	return session.Token != ""
}

// Mode is the presentation state of the front end.
type Mode int

const (
	ModeStudent Mode = iota
	ModeTeacher
)

func (mode Mode) String() string {
	if mode == ModeTeacher {
		return "teacher"
	}
	return "student"
}

// ModeFor derives the mode from the session. It is recomputed on every
// render and never stored.
func ModeFor(session Session) Mode {
	if session.Present() {
		return ModeTeacher
	}
	return ModeStudent
}

// Activity is a named extracurricular offering. Name is the map key on the
// wire and is therefore not serialized.
type Activity struct {
	Name            string   `json:"-"`
	Description     string   `json:"description"`
	Schedule        string   `json:"schedule"`
	MaxParticipants int      `json:"max_participants"`
	Participants    []string `json:"participants"`
}

// SpotsLeft is displayed as-is and may be negative if the server ever
// returns an over-full roster.
func (activity Activity) SpotsLeft() int {
	return activity.MaxParticipants - len(activity.Participants)
}

// HasParticipant reports whether email is on the roster.
func (activity Activity) HasParticipant(email string) bool {
	for _, participant := range activity.Participants {
		if participant == email {
			return true
		}
	}
	return false
}

// Activities is the mapping returned by GET /activities.
type Activities map[string]Activity

// Sorted returns the activities ordered by name with Name filled in.
func (activities Activities) Sorted() []Activity {
	names := make([]string, 0, len(activities))
	for name := range activities {
		names = append(names, name)
	}
	sort.Strings(names)

	sorted := make([]Activity, 0, len(names))
	for _, name := range names {
		activity := activities[name]
		activity.Name = name
		sorted = append(sorted, activity)
	}
	return sorted
}

// Teacher represents an account allowed to log in to the activities
// service. Either Password or PasswordHash (bcrypt) is set.
type Teacher struct {
	Username     string `json:"username"`
	Password     string `json:"password,omitempty"`
	PasswordHash string `json:"password_hash,omitempty"`
}
