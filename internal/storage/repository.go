// Package storage persists the domain model in SQLite. Every query that
// reads or mutates user data is scoped to the owning user; callers never
// see rows outside the requester's ownership chain.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JeremyJS20/PersonalFinanceManagement/internal/core"

	_ "modernc.org/sqlite"
)

// dateLayout is how transaction dates are stored (date only, no time part).
const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Needed for the ON DELETE behavior declared in the schema.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// withTx runs fn inside a transaction, rolling back on any error so
// mutation failures never leave partial state behind.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateUser persists a new user. A duplicate username is reported as
// core.ErrUsernameTaken.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u *core.User) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, first_name, last_name, email, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.Username, u.FirstName, u.LastName, u.Email, u.PasswordHash, now)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrUsernameTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create user id: %w", err)
	}
	u.ID = id
	u.CreatedAt = now

	slog.InfoContext(ctx, "User created", "user_id", u.ID, "username", u.Username)
	return nil
}

// GetUserByUsername looks up a user for login.
func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (*core.User, error) {
	u := &core.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, first_name, last_name, email, password_hash, created_at
		 FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (*core.User, error) {
	u := &core.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, first_name, last_name, email, password_hash, created_at
		 FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}
