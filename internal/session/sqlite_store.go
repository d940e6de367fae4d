package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the single current session in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("cannot create session directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open session database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("session migration failed: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS session (
		id           INTEGER PRIMARY KEY CHECK (id = 1),
		access_token TEXT NOT NULL,
		user_id      TEXT NOT NULL,
		cookies      TEXT NOT NULL DEFAULT '[]',
		updated_at   DATETIME NOT NULL
	)`)
	return err
}

func (s *SQLiteStore) Load(ctx context.Context) (*State, error) {
	var (
		token, userID, cookies string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT access_token, user_id, cookies FROM session WHERE id = 1`,
	).Scan(&token, &userID, &cookies)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	st := &State{AccessToken: token}
	if userID != "" {
		if st.UserID, err = uuid.Parse(userID); err != nil {
			return nil, fmt.Errorf("loading session: bad user id: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(cookies), &st.Cookies); err != nil {
		return nil, fmt.Errorf("loading session cookies: %w", err)
	}
	return st, nil
}

func (s *SQLiteStore) Save(ctx context.Context, st State) error {
	cookies, err := json.Marshal(st.Cookies)
	if err != nil {
		return fmt.Errorf("encoding session cookies: %w", err)
	}

	userID := ""
	if st.UserID != uuid.Nil {
		userID = st.UserID.String()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session (id, access_token, user_id, cookies, updated_at)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			user_id = excluded.user_id,
			cookies = excluded.cookies,
			updated_at = excluded.updated_at`,
		st.AccessToken, userID, string(cookies), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
