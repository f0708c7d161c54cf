package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JeremyJS20/PersonalFinanceManagement/internal/core"

	"github.com/shopspring/decimal"
)

// CreateAccount persists a new account owned by a.UserID.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, a *core.Account) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (user_id, name, type, balance, include_in_totals, icon, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.Name, string(a.Type), a.Balance.StringFixed(2), a.IncludeInTotals, a.Icon, now, now)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create account id: %w", err)
	}
	a.ID = id
	a.CreatedAt = now
	a.UpdatedAt = now

	slog.InfoContext(ctx, "Account created",
		"account_id", a.ID, "user_id", a.UserID, "type", a.Type)
	return nil
}

// UpdateAccount updates an owned account; foreign ids read as not found.
func (r *SQLiteRepository) UpdateAccount(ctx context.Context, userID int64, a *core.Account) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts
		 SET name = ?, type = ?, balance = ?, include_in_totals = ?, icon = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		a.Name, string(a.Type), a.Balance.StringFixed(2), a.IncludeInTotals, a.Icon, now, a.ID, userID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account rows: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	a.UserID = userID
	a.UpdatedAt = now
	return nil
}

// DeleteAccount removes an owned account. Transactions that referenced it
// become unassigned rather than deleted; both steps commit atomically.
func (r *SQLiteRepository) DeleteAccount(ctx context.Context, userID, accountID int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var owned int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM accounts WHERE id = ? AND user_id = ?`, accountID, userID).Scan(&owned)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("resolve account: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions SET account_id = NULL WHERE account_id = ?`, accountID); err != nil {
			return fmt.Errorf("unassign account transactions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, accountID); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}

		slog.InfoContext(ctx, "Account deleted", "account_id", accountID, "user_id", userID)
		return nil
	})
}

// GetAccount returns an owned account.
func (r *SQLiteRepository) GetAccount(ctx context.Context, userID, accountID int64) (*core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, type, balance, include_in_totals, icon, created_at, updated_at
		 FROM accounts WHERE id = ? AND user_id = ?`, accountID, userID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get account: %w", err)
		}
		return nil, core.ErrNotFound
	}
	a, err := scanAccount(rows)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListAccounts returns all of the user's accounts ordered by name.
// Asset/liability filtering happens in the view layer via AccountType.
func (r *SQLiteRepository) ListAccounts(ctx context.Context, userID int64) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, type, balance, include_in_totals, icon, created_at, updated_at
		 FROM accounts WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

func scanAccount(rows *sql.Rows) (*core.Account, error) {
	a := &core.Account{}
	var accountType, balance string
	if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &accountType, &balance,
		&a.IncludeInTotals, &a.Icon, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.Type = core.AccountType(accountType)
	parsed, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parse account balance %q: %w", balance, err)
	}
	a.Balance = parsed
	return a, nil
}
