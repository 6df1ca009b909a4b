package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/Bios-Marcel/mergington/data"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS activities (
	name             TEXT PRIMARY KEY,
	description      TEXT NOT NULL,
	schedule         TEXT NOT NULL,
	max_participants INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS participants (
	activity TEXT NOT NULL REFERENCES activities(name) ON DELETE CASCADE,
	email    TEXT NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (activity, email)
);
`

// SQLiteStore keeps activities and rosters in two tables. Roster order is
// kept by an increasing position per activity.
type SQLiteStore struct {
	sqlDB *sql.DB
}

// OpenSQLite opens the database at path, creates the schema and seeds it
// with seed when there are no activities yet.
func OpenSQLite(ctx context.Context, path string, seed data.Activities) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Writers are serialized anyway; one connection keeps transactions
	// from tripping over SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.ExecContext(ctx, sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	store := &SQLiteStore{sqlDB: sqlDB}
	if err := store.seed(ctx, seed); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("seed activities: %w", err)
	}
	return store, nil
}

func (store *SQLiteStore) Close() error {
	return store.sqlDB.Close()
}

func (store *SQLiteStore) seed(ctx context.Context, seed data.Activities) error {
	return store.inTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities`).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		for _, activity := range seed.Sorted() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO activities (name, description, schedule, max_participants) VALUES (?, ?, ?, ?)`,
				activity.Name, activity.Description, activity.Schedule, activity.MaxParticipants,
			); err != nil {
				return err
			}
			for position, email := range activity.Participants {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO participants (activity, email, position) VALUES (?, ?, ?)`,
					activity.Name, email, position,
				); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (store *SQLiteStore) List(ctx context.Context) (data.Activities, error) {
	activities := data.Activities{}
	rows, err := store.sqlDB.QueryContext(ctx,
		`SELECT name, description, schedule, max_participants FROM activities`)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	for rows.Next() {
		var name string
		activity := data.Activity{Participants: []string{}}
		if err := rows.Scan(&name, &activity.Description, &activity.Schedule, &activity.MaxParticipants); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities[name] = activity
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list activities: %w", err)
	}
	rows.Close()

	rows, err = store.sqlDB.QueryContext(ctx,
		`SELECT activity, email FROM participants ORDER BY activity, position`)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, email string
		if err := rows.Scan(&name, &email); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		activity, ok := activities[name]
		if !ok {
			continue
		}
		activity.Participants = append(activity.Participants, email)
		activities[name] = activity
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return activities, nil
}

func (store *SQLiteStore) AddParticipant(ctx context.Context, name, email string) error {
	return store.inTx(ctx, func(tx *sql.Tx) error {
		activity, err := loadActivity(ctx, tx, name)
		if err != nil {
			return err
		}
		if err := checkAdd(activity, email); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO participants (activity, email, position)
			 VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM participants WHERE activity = ?))`,
			name, email, name)
		return err
	})
}

func (store *SQLiteStore) RemoveParticipant(ctx context.Context, name, email string) error {
	return store.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := loadActivity(ctx, tx, name); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx,
			`DELETE FROM participants WHERE activity = ? AND email = ?`, name, email)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotSignedUp
		}
		return nil
	})
}

func loadActivity(ctx context.Context, tx *sql.Tx, name string) (data.Activity, error) {
	activity := data.Activity{Name: name}
	err := tx.QueryRowContext(ctx,
		`SELECT description, schedule, max_participants FROM activities WHERE name = ?`, name,
	).Scan(&activity.Description, &activity.Schedule, &activity.MaxParticipants)
	if errors.Is(err, sql.ErrNoRows) {
		return data.Activity{}, ErrActivityNotFound
	}
	if err != nil {
		return data.Activity{}, fmt.Errorf("load activity %s: %w", name, err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT email FROM participants WHERE activity = ? ORDER BY position`, name)
	if err != nil {
		return data.Activity{}, fmt.Errorf("load participants %s: %w", name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return data.Activity{}, err
		}
		activity.Participants = append(activity.Participants, email)
	}
	return activity, rows.Err()
}

func (store *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := store.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
