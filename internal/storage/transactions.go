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

// CreateTransaction persists a transaction after proving that the target
// category (and account, when assigned) belongs to the requester. Foreign
// parents fail with core.ErrUnauthorized before anything is written.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, userID int64, t *core.Transaction) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var owned int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM categories c
			 JOIN category_groups g ON g.id = c.group_id
			 WHERE c.id = ? AND g.user_id = ?`, t.CategoryID, userID).Scan(&owned)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrUnauthorized
		}
		if err != nil {
			return fmt.Errorf("resolve transaction category: %w", err)
		}

		if t.AccountID != nil {
			err := tx.QueryRowContext(ctx,
				`SELECT 1 FROM accounts WHERE id = ? AND user_id = ?`, *t.AccountID, userID).Scan(&owned)
			if errors.Is(err, sql.ErrNoRows) {
				return core.ErrUnauthorized
			}
			if err != nil {
				return fmt.Errorf("resolve transaction account: %w", err)
			}
		}

		now := time.Now().UTC()
		if t.Date.IsZero() {
			t.Date = now
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (user_id, account_id, category_id, amount, description, date, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			userID, t.AccountID, t.CategoryID, t.Amount.StringFixed(2),
			t.Description, t.Date.Format(dateLayout), now, now)
		if err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("create transaction id: %w", err)
		}
		t.ID = id
		t.UserID = userID
		t.CreatedAt = now
		t.UpdatedAt = now

		slog.InfoContext(ctx, "Transaction created",
			"transaction_id", t.ID, "category_id", t.CategoryID, "user_id", userID)
		return nil
	})
}

// DeleteTransaction removes an owned transaction.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, transactionID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND user_id = ?`, transactionID, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction rows: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Transaction deleted", "transaction_id", transactionID, "user_id", userID)
	return nil
}

// ListTransactions returns the user's transactions, most recent date
// first, ties broken by most recent creation first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, account_id, category_id, amount, description, date, created_at, updated_at
		 FROM transactions WHERE user_id = ?
		 ORDER BY date DESC, created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var accountID sql.NullInt64
		var amount string
		var date time.Time
		if err := rows.Scan(&t.ID, &t.UserID, &accountID, &t.CategoryID, &amount,
			&t.Description, &date, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if accountID.Valid {
			t.AccountID = &accountID.Int64
		}
		parsed, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse transaction amount %q: %w", amount, err)
		}
		t.Amount = parsed
		t.Date = date
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return transactions, nil
}
