package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boltdb/bolt"

	"github.com/Bios-Marcel/mergington/data"
)

var activitiesBucket = []byte("Activities")

// BoltStore keeps one JSON document per activity, keyed by name.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens the database at path and seeds it with seed when the
// Activities bucket is empty.
func OpenBolt(path string, seed data.Activities) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open activity db: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(activitiesBucket)
		if err != nil {
			return err
		}
		if key, _ := bucket.Cursor().First(); key != nil {
			return nil
		}
		for name, activity := range seed {
			if err := putActivity(bucket, name, activity); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed activity db: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (store *BoltStore) Close() error {
	return store.db.Close()
}

func (store *BoltStore) List(ctx context.Context) (data.Activities, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	activities := data.Activities{}
	err := store.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(activitiesBucket).ForEach(func(key, raw []byte) error {
			var activity data.Activity
			if err := json.Unmarshal(raw, &activity); err != nil {
				return fmt.Errorf("cant parse activity %s: %w", key, err)
			}
			if activity.Participants == nil {
				activity.Participants = []string{}
			}
			activities[string(key)] = activity
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return activities, nil
}

func (store *BoltStore) AddParticipant(ctx context.Context, name, email string) error {
	return store.updateActivity(ctx, name, func(activity *data.Activity) error {
		if err := checkAdd(*activity, email); err != nil {
			return err
		}
		activity.Participants = append(activity.Participants, email)
		return nil
	})
}

func (store *BoltStore) RemoveParticipant(ctx context.Context, name, email string) error {
	return store.updateActivity(ctx, name, func(activity *data.Activity) error {
		for index, participant := range activity.Participants {
			if participant == email {
				activity.Participants = append(activity.Participants[:index], activity.Participants[index+1:]...)
				return nil
			}
		}
		return ErrNotSignedUp
	})
}

// updateActivity runs change inside one writable transaction, so rosters
// are read and written atomically.
func (store *BoltStore) updateActivity(ctx context.Context, name string, change func(*data.Activity) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return store.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(activitiesBucket)
		raw := bucket.Get([]byte(name))
		if raw == nil {
			return ErrActivityNotFound
		}
		var activity data.Activity
		if err := json.Unmarshal(raw, &activity); err != nil {
			return fmt.Errorf("cant parse activity %s: %w", name, err)
		}
		if err := change(&activity); err != nil {
			return err
		}
		return putActivity(bucket, name, activity)
	})
}

func putActivity(bucket *bolt.Bucket, name string, activity data.Activity) error {
	if activity.Participants == nil {
		activity.Participants = []string{}
	}
	raw, err := json.Marshal(activity)
	if err != nil {
		return err
	}
	return bucket.Put([]byte(name), raw)
}
