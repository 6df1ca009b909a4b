// Package store persists the per-profile session pair in a bolt database.
//
// Each browser profile gets its own bucket under Profiles holding exactly
// the keys session_token and username, the server-side equivalent of the
// browser's local storage.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"github.com/gofrs/uuid"

	"github.com/Bios-Marcel/mergington/data"
)

const (
	KeySessionToken = "session_token"
	KeyUsername     = "username"
)

var profilesBucket = []byte("Profiles")

var ErrInvalidProfile = errors.New("invalid profile id")

type Store struct {
	db *bolt.DB
}

// Open opens, or creates, the database file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open profile db: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(profilesBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create profile bucket: %w", err)
	}

	return &Store{db: db}, nil
}

func (store *Store) Close() error {
	return store.db.Close()
}

// NewProfileID returns a fresh random profile id.
func NewProfileID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("generate profile id: %w", err)
	}
	return id.String(), nil
}

// ValidProfileID reports whether id looks like one NewProfileID produced.
func ValidProfileID(id string) bool {
	parsed, err := uuid.FromString(id)
	return err == nil && parsed.Version() == uuid.V4
}

// Load returns the stored session. Unknown profiles have an empty session.
func (store *Store) Load(profileID string) (data.Session, error) {
	if profileID == "" {
		return data.Session{}, ErrInvalidProfile
	}

	var session data.Session
	err := store.db.View(func(tx *bolt.Tx) error {
		profile := tx.Bucket(profilesBucket).Bucket([]byte(profileID))
		if profile == nil {
			return nil
		}
		session.Token = string(profile.Get([]byte(KeySessionToken)))
		session.Username = string(profile.Get([]byte(KeyUsername)))
		return nil
	})
	if err != nil {
		return data.Session{}, fmt.Errorf("load profile %s: %w", profileID, err)
	}
	return session, nil
}

// Save writes token and username together.
func (store *Store) Save(profileID string, session data.Session) error {
	if profileID == "" {
		return ErrInvalidProfile
	}

	err := store.db.Update(func(tx *bolt.Tx) error {
		profile, err := tx.Bucket(profilesBucket).CreateBucketIfNotExists([]byte(profileID))
		if err != nil {
			return err
		}
		if err := profile.Put([]byte(KeySessionToken), []byte(session.Token)); err != nil {
			return err
		}
		return profile.Put([]byte(KeyUsername), []byte(session.Username))
	})
	if err != nil {
		return fmt.Errorf("save profile %s: %w", profileID, err)
	}
	return nil
}

// Clear removes token and username together.
func (store *Store) Clear(profileID string) error {
	if profileID == "" {
		return ErrInvalidProfile
	}

	err := store.db.Update(func(tx *bolt.Tx) error {
		profile := tx.Bucket(profilesBucket).Bucket([]byte(profileID))
		if profile == nil {
			return nil
		}
		if err := profile.Delete([]byte(KeySessionToken)); err != nil {
			return err
		}
		return profile.Delete([]byte(KeyUsername))
	})
	if err != nil {
		return fmt.Errorf("clear profile %s: %w", profileID, err)
	}
	return nil
}

// keys lists the keys currently stored for a profile.
func (store *Store) keys(profileID string) ([]string, error) {
	var keys []string
	err := store.db.View(func(tx *bolt.Tx) error {
		profile := tx.Bucket(profilesBucket).Bucket([]byte(profileID))
		if profile == nil {
			return nil
		}
		return profile.ForEach(func(key, _ []byte) error {
			keys = append(keys, string(key))
			return nil
		})
	})
	return keys, err
}
