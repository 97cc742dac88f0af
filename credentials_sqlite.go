package apiflow

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	credentialKeyToken = "token"
	credentialKeyUser  = "user"
)

// SQLiteCredentialStore persists credentials in a local SQLite key/value table.
type SQLiteCredentialStore struct {
	db *sql.DB
}

// OpenSQLiteCredentialStore opens or creates the store at path. Parent
// directories are created if needed.
func OpenSQLiteCredentialStore(path string) (*SQLiteCredentialStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating credential directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening credential database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS credentials (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating credential schema: %w", err)
	}

	return &SQLiteCredentialStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteCredentialStore) Close() error {
	return s.db.Close()
}

// Token implements CredentialStore.
func (s *SQLiteCredentialStore) Token() (string, error) {
	return s.get(credentialKeyToken)
}

// SetToken implements CredentialStore. An empty token clears it.
func (s *SQLiteCredentialStore) SetToken(token string) error {
	if token == "" {
		return s.ClearToken()
	}
	return s.set(credentialKeyToken, token)
}

// ClearToken implements CredentialStore.
func (s *SQLiteCredentialStore) ClearToken() error {
	return s.remove(credentialKeyToken)
}

// User returns the stored user record.
func (s *SQLiteCredentialStore) User() (string, error) {
	return s.get(credentialKeyUser)
}

// SetUser stores the user record.
func (s *SQLiteCredentialStore) SetUser(user string) error {
	if user == "" {
		return s.ClearUser()
	}
	return s.set(credentialKeyUser, user)
}

// ClearUser implements CredentialStore.
func (s *SQLiteCredentialStore) ClearUser() error {
	return s.remove(credentialKeyUser)
}

func (s *SQLiteCredentialStore) get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM credentials WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteCredentialStore) set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO credentials (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// remove deletes key; deleting an absent key is not an error.
func (s *SQLiteCredentialStore) remove(key string) error {
	if _, err := s.db.Exec(`DELETE FROM credentials WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}
