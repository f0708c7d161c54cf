package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JeremyJS20/PersonalFinanceManagement/internal/core"
)

// CreateCategoryGroup persists a new group owned by g.UserID.
func (r *SQLiteRepository) CreateCategoryGroup(ctx context.Context, g *core.CategoryGroup) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO category_groups (user_id, name, icon, transaction_type, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.UserID, g.Name, g.Icon, string(g.TransactionType), nullableText(g.Description), now, now)
	if err != nil {
		return fmt.Errorf("create category group: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create category group id: %w", err)
	}
	g.ID = id
	g.CreatedAt = now
	g.UpdatedAt = now

	slog.InfoContext(ctx, "Category group created",
		"group_id", g.ID, "user_id", g.UserID, "transaction_type", g.TransactionType)
	return nil
}

// UpdateCategoryGroup updates an owned group. Ids outside the requester's
// scope come back as core.ErrNotFound, indistinguishable from nonexistent.
func (r *SQLiteRepository) UpdateCategoryGroup(ctx context.Context, userID int64, g *core.CategoryGroup) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE category_groups
		 SET name = ?, icon = ?, transaction_type = ?, description = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		g.Name, g.Icon, string(g.TransactionType), nullableText(g.Description), now, g.ID, userID)
	if err != nil {
		return fmt.Errorf("update category group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update category group rows: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	g.UserID = userID
	g.UpdatedAt = now
	return nil
}

// DeleteCategoryGroup deletes a group and cascades to its categories.
// The whole delete is refused when any contained category still has
// transactions; nothing is removed in that case.
func (r *SQLiteRepository) DeleteCategoryGroup(ctx context.Context, userID, groupID int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var owned int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM category_groups WHERE id = ? AND user_id = ?`, groupID, userID).Scan(&owned)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("resolve category group: %w", err)
		}

		var refs int64
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM transactions t
			 JOIN categories c ON c.id = t.category_id
			 WHERE c.group_id = ?`, groupID).Scan(&refs)
		if err != nil {
			return fmt.Errorf("count group transaction references: %w", err)
		}
		if refs > 0 {
			return core.ErrCategoryInUse
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE group_id = ?`, groupID); err != nil {
			return fmt.Errorf("delete group categories: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM category_groups WHERE id = ?`, groupID); err != nil {
			return fmt.Errorf("delete category group: %w", err)
		}

		slog.InfoContext(ctx, "Category group deleted", "group_id", groupID, "user_id", userID)
		return nil
	})
}

// GetCategoryGroup returns an owned group without its categories.
func (r *SQLiteRepository) GetCategoryGroup(ctx context.Context, userID, groupID int64) (*core.CategoryGroup, error) {
	g := &core.CategoryGroup{}
	var description sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, icon, transaction_type, description, created_at, updated_at
		 FROM category_groups WHERE id = ? AND user_id = ?`, groupID, userID).
		Scan(&g.ID, &g.UserID, &g.Name, &g.Icon, (*string)(&g.TransactionType), &description, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category group: %w", err)
	}
	g.Description = description.String
	return g, nil
}

// ListCategoryGroups returns the user's groups, each with its categories,
// both ordered by name.
func (r *SQLiteRepository) ListCategoryGroups(ctx context.Context, userID int64) ([]core.CategoryGroup, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, icon, transaction_type, description, created_at, updated_at
		 FROM category_groups WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list category groups: %w", err)
	}
	defer rows.Close()

	var groups []core.CategoryGroup
	index := make(map[int64]int)
	for rows.Next() {
		var g core.CategoryGroup
		var description sql.NullString
		if err := rows.Scan(&g.ID, &g.UserID, &g.Name, &g.Icon, (*string)(&g.TransactionType),
			&description, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category group: %w", err)
		}
		g.Description = description.String
		index[g.ID] = len(groups)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category groups: %w", err)
	}

	catRows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.group_id, c.name, c.icon, c.description, c.created_at, c.updated_at
		 FROM categories c
		 JOIN category_groups g ON g.id = c.group_id
		 WHERE g.user_id = ? ORDER BY c.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer catRows.Close()

	for catRows.Next() {
		var c core.Category
		var description sql.NullString
		if err := catRows.Scan(&c.ID, &c.GroupID, &c.Name, &c.Icon, &description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Description = description.String
		if i, ok := index[c.GroupID]; ok {
			groups[i].Categories = append(groups[i].Categories, c)
		}
	}
	if err := catRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	return groups, nil
}

// CreateCategory persists a category after proving the target group is in
// the requester's ownership chain. A group outside that chain yields
// core.ErrUnauthorized before anything is written.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, userID int64, c *core.Category) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var owned int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM category_groups WHERE id = ? AND user_id = ?`, c.GroupID, userID).Scan(&owned)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrUnauthorized
		}
		if err != nil {
			return fmt.Errorf("resolve parent group: %w", err)
		}

		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO categories (group_id, name, icon, description, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			c.GroupID, c.Name, c.Icon, nullableText(c.Description), now, now)
		if err != nil {
			return fmt.Errorf("create category: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("create category id: %w", err)
		}
		c.ID = id
		c.CreatedAt = now
		c.UpdatedAt = now

		slog.InfoContext(ctx, "Category created",
			"category_id", c.ID, "group_id", c.GroupID, "user_id", userID)
		return nil
	})
}

// UpdateCategory updates an owned category, including moving it to
// another group. The target group must be in the requester's ownership
// chain; a foreign group yields core.ErrUnauthorized and nothing is
// written.
func (r *SQLiteRepository) UpdateCategory(ctx context.Context, userID int64, c *core.Category) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var owned int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM category_groups WHERE id = ? AND user_id = ?`, c.GroupID, userID).Scan(&owned)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrUnauthorized
		}
		if err != nil {
			return fmt.Errorf("resolve parent group: %w", err)
		}

		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx,
			`UPDATE categories SET group_id = ?, name = ?, icon = ?, description = ?, updated_at = ?
			 WHERE id = ? AND group_id IN (SELECT id FROM category_groups WHERE user_id = ?)`,
			c.GroupID, c.Name, c.Icon, nullableText(c.Description), now, c.ID, userID)
		if err != nil {
			return fmt.Errorf("update category: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update category rows: %w", err)
		}
		if affected == 0 {
			return core.ErrNotFound
		}
		c.UpdatedAt = now
		return nil
	})
}

// DeleteCategory refuses to delete a category that still has transactions
// (core.ErrCategoryInUse); deletes are never cascaded onto transactions.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID, categoryID int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var owned int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM categories c
			 JOIN category_groups g ON g.id = c.group_id
			 WHERE c.id = ? AND g.user_id = ?`, categoryID, userID).Scan(&owned)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("resolve category: %w", err)
		}

		var refs int64
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM transactions WHERE category_id = ?`, categoryID).Scan(&refs)
		if err != nil {
			return fmt.Errorf("count category transaction references: %w", err)
		}
		if refs > 0 {
			return core.ErrCategoryInUse
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, categoryID); err != nil {
			return fmt.Errorf("delete category: %w", err)
		}

		slog.InfoContext(ctx, "Category deleted", "category_id", categoryID, "user_id", userID)
		return nil
	})
}

// GetCategory returns an owned category.
func (r *SQLiteRepository) GetCategory(ctx context.Context, userID, categoryID int64) (*core.Category, error) {
	c := &core.Category{}
	var description sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT c.id, c.group_id, c.name, c.icon, c.description, c.created_at, c.updated_at
		 FROM categories c
		 JOIN category_groups g ON g.id = c.group_id
		 WHERE c.id = ? AND g.user_id = ?`, categoryID, userID).
		Scan(&c.ID, &c.GroupID, &c.Name, &c.Icon, &description, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	c.Description = description.String
	return c, nil
}

// CountCategories returns how many categories the user has across all groups.
func (r *SQLiteRepository) CountCategories(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories c
		 JOIN category_groups g ON g.id = c.group_id
		 WHERE g.user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return count, nil
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
