package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"chatroom/internal/domain"
	"chatroom/internal/repository"
)

const createCredentialsTable = `
CREATE TABLE IF NOT EXISTS credentials (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`

type CredentialRepository struct {
	db *sql.DB
}

func NewCredentialRepository(db *sql.DB) repository.CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createCredentialsTable); err != nil {
		return fmt.Errorf("create credentials table: %w", err)
	}
	return nil
}

func (r *CredentialRepository) Exists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM credentials WHERE username = ?`, username)
}

func (r *CredentialRepository) Verify(ctx context.Context, username, password string) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM credentials WHERE username = ? AND password = ?`, username, password)
}

// Append relies on the UNIQUE constraint, so a duplicate username is reported
// as domain.ErrUserAlreadyExists instead of producing a second record.
func (r *CredentialRepository) Append(ctx context.Context, username, password string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO credentials (username, password, created_at)
VALUES (?, ?, ?)`,
		username,
		password,
		time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert credential: %w", domain.ErrUserAlreadyExists)
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (r *CredentialRepository) InsertIfAbsent(ctx context.Context, username, password string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO credentials (username, password, created_at)
VALUES (?, ?, ?)
ON CONFLICT(username) DO NOTHING`,
		username,
		password,
		time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("insert credential: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("credential rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *CredentialRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query credential: %w", err)
	}
	return true, nil
}

func isUniqueViolation(err error) bool {
	var serr *sqlitedriver.Error
	return errors.As(err, &serr) && serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
