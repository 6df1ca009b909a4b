package service

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Bios-Marcel/mergington/data"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidSession     = errors.New("invalid session")
)

type teachersFile struct {
	Teachers []data.Teacher `json:"teachers"`
}

// LoadTeachers reads the teacher accounts. A missing file means nobody can
// log in.
func LoadTeachers(path string) ([]data.Teacher, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read teachers: %w", err)
	}

	var parsed teachersFile
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("cant parse teachers: %w", err)
	}
	return parsed.Teachers, nil
}

// Authenticate checks username and password against teachers. Bcrypt
// hashes take precedence over plain passwords.
func Authenticate(teachers []data.Teacher, username, password string) error {
	for _, teacher := range teachers {
		if teacher.Username != username {
			continue
		}
		if teacher.PasswordHash != "" {
			if bcrypt.CompareHashAndPassword([]byte(teacher.PasswordHash), []byte(password)) == nil {
				return nil
			}
			return ErrInvalidCredentials
		}
		if teacher.Password != "" && subtle.ConstantTimeCompare([]byte(teacher.Password), []byte(password)) == 1 {
			return nil
		}
		return ErrInvalidCredentials
	}
	return ErrInvalidCredentials
}

type teacherSession struct {
	username  string
	createdAt time.Time
}

// Sessions holds teacher sessions in memory; they do not survive a restart.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]teacherSession
	now      func() time.Time
}

func NewSessions() *Sessions {
	return &Sessions{
		sessions: map[string]teacherSession{},
		now:      time.Now,
	}
}

// Create issues a new opaque token for username.
func (sessions *Sessions) Create(username string) (string, error) {
	token, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}

	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	sessions.sessions[token.String()] = teacherSession{username: username, createdAt: sessions.now()}
	return token.String(), nil
}

// Username returns the teacher owning token.
func (sessions *Sessions) Username(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidSession
	}

	sessions.mu.RLock()
	defer sessions.mu.RUnlock()
	session, ok := sessions.sessions[token]
	if !ok {
		return "", ErrInvalidSession
	}
	return session.username, nil
}

// Delete invalidates token.
func (sessions *Sessions) Delete(token string) error {
	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	if _, ok := sessions.sessions[token]; !ok || token == "" {
		return ErrInvalidSession
	}
	delete(sessions.sessions, token)
	return nil
}
