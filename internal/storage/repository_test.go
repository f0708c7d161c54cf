package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/JeremyJS20/PersonalFinanceManagement/internal/core"

	"github.com/shopspring/decimal"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func createTestUser(t *testing.T, repo *SQLiteRepository, username string) *core.User {
	t.Helper()
	u := &core.User{Username: username, FirstName: "Test", LastName: "User",
		Email: username + "@example.com", PasswordHash: "x"}
	if err := repo.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return u
}

func createTestGroup(t *testing.T, repo *SQLiteRepository, userID int64, name string, tt core.TransactionType) *core.CategoryGroup {
	t.Helper()
	g := &core.CategoryGroup{UserID: userID, Name: name, Icon: core.DefaultGroupIcon, TransactionType: tt}
	if err := repo.CreateCategoryGroup(context.Background(), g); err != nil {
		t.Fatalf("CreateCategoryGroup(%s): %v", name, err)
	}
	return g
}

func createTestCategory(t *testing.T, repo *SQLiteRepository, userID, groupID int64, name string) *core.Category {
	t.Helper()
	c := &core.Category{GroupID: groupID, Name: name, Icon: core.DefaultCategoryIcon}
	if err := repo.CreateCategory(context.Background(), userID, c); err != nil {
		t.Fatalf("CreateCategory(%s): %v", name, err)
	}
	return c
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	repo := newTestRepo(t)
	createTestUser(t, repo, "alice")

	err := repo.CreateUser(context.Background(), &core.User{Username: "alice", PasswordHash: "y"})
	if !errors.Is(err, core.ErrUsernameTaken) {
		t.Fatalf("CreateUser duplicate = %v, want ErrUsernameTaken", err)
	}
}

func TestOwnershipIsolation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := createTestUser(t, repo, "alice")
	bob := createTestUser(t, repo, "bob")

	aliceGroup := createTestGroup(t, repo, alice.ID, "Groceries", core.Expenses)
	createTestCategory(t, repo, alice.ID, aliceGroup.ID, "Produce")

	// Bob's listings never contain Alice's rows.
	groups, err := repo.ListCategoryGroups(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ListCategoryGroups: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("bob sees %d of alice's groups", len(groups))
	}

	// Bob cannot update Alice's group; the outcome is not-found, not a leak.
	err = repo.UpdateCategoryGroup(ctx, bob.ID, &core.CategoryGroup{
		ID: aliceGroup.ID, Name: "Hijacked", Icon: "folder", TransactionType: core.Expenses})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("cross-owner update = %v, want ErrNotFound", err)
	}

	// Nor delete it.
	if err := repo.DeleteCategoryGroup(ctx, bob.ID, aliceGroup.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("cross-owner delete = %v, want ErrNotFound", err)
	}

	// Alice's row is untouched.
	g, err := repo.GetCategoryGroup(ctx, alice.ID, aliceGroup.ID)
	if err != nil {
		t.Fatalf("GetCategoryGroup: %v", err)
	}
	if g.Name != "Groceries" {
		t.Errorf("group name = %q, want Groceries", g.Name)
	}
}

func TestCreateCategoryUnderForeignGroup(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := createTestUser(t, repo, "alice")
	bob := createTestUser(t, repo, "bob")
	aliceGroup := createTestGroup(t, repo, alice.ID, "Groceries", core.Expenses)

	err := repo.CreateCategory(ctx, bob.ID, &core.Category{GroupID: aliceGroup.ID, Name: "Sneaky", Icon: "tag"})
	if !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("create under foreign group = %v, want ErrUnauthorized", err)
	}

	// No row was persisted.
	count, err := repo.CountCategories(ctx, alice.ID)
	if err != nil {
		t.Fatalf("CountCategories: %v", err)
	}
	if count != 0 {
		t.Errorf("categories = %d, want 0 after refused create", count)
	}
}

func TestUpdateCategoryMovesBetweenOwnedGroups(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	owner := createTestUser(t, repo, "owner")
	stranger := createTestUser(t, repo, "stranger")
	food := createTestGroup(t, repo, owner.ID, "Food", core.Expenses)
	travel := createTestGroup(t, repo, owner.ID, "Travel", core.Expenses)
	foreign := createTestGroup(t, repo, stranger.ID, "Theirs", core.Expenses)
	category := createTestCategory(t, repo, owner.ID, food.ID, "Lunch")

	t.Run("move to owned group persists", func(t *testing.T) {
		category.GroupID = travel.ID
		category.Name = "Trips"
		if err := repo.UpdateCategory(ctx, owner.ID, category); err != nil {
			t.Fatalf("UpdateCategory: %v", err)
		}

		stored, err := repo.GetCategory(ctx, owner.ID, category.ID)
		if err != nil {
			t.Fatalf("GetCategory: %v", err)
		}
		if stored.GroupID != travel.ID {
			t.Fatalf("stored group_id = %d, want %d", stored.GroupID, travel.ID)
		}
		if stored.Name != "Trips" {
			t.Fatalf("stored name = %q, want Trips", stored.Name)
		}
	})

	t.Run("move to foreign group is unauthorized and unpersisted", func(t *testing.T) {
		category.GroupID = foreign.ID
		err := repo.UpdateCategory(ctx, owner.ID, category)
		if !errors.Is(err, core.ErrUnauthorized) {
			t.Fatalf("UpdateCategory = %v, want ErrUnauthorized", err)
		}

		stored, err := repo.GetCategory(ctx, owner.ID, category.ID)
		if err != nil {
			t.Fatalf("GetCategory: %v", err)
		}
		if stored.GroupID != travel.ID {
			t.Fatalf("stored group_id = %d, want unchanged %d", stored.GroupID, travel.ID)
		}
	})
}

func TestGroupDeleteCascadesToCategories(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := createTestUser(t, repo, "alice")
	group := createTestGroup(t, repo, alice.ID, "Groceries", core.Expenses)
	createTestCategory(t, repo, alice.ID, group.ID, "Produce")
	createTestCategory(t, repo, alice.ID, group.ID, "Snacks")

	if err := repo.DeleteCategoryGroup(ctx, alice.ID, group.ID); err != nil {
		t.Fatalf("DeleteCategoryGroup: %v", err)
	}

	count, err := repo.CountCategories(ctx, alice.ID)
	if err != nil {
		t.Fatalf("CountCategories: %v", err)
	}
	if count != 0 {
		t.Errorf("categories = %d, want 0 after cascade", count)
	}
}

func TestReferentialProtection(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := createTestUser(t, repo, "alice")
	group := createTestGroup(t, repo, alice.ID, "Groceries", core.Expenses)
	category := createTestCategory(t, repo, alice.ID, group.ID, "Produce")

	txn := &core.Transaction{
		CategoryID:  category.ID,
		Amount:      decimal.RequireFromString("12.50"),
		Description: "weekly shop",
		Date:        time.Now(),
	}
	if err := repo.CreateTransaction(ctx, alice.ID, txn); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	// Category with transactions cannot be deleted.
	if err := repo.DeleteCategory(ctx, alice.ID, category.ID); !errors.Is(err, core.ErrCategoryInUse) {
		t.Fatalf("DeleteCategory = %v, want ErrCategoryInUse", err)
	}

	// The group delete is refused wholesale, fail-fast, nothing removed.
	if err := repo.DeleteCategoryGroup(ctx, alice.ID, group.ID); !errors.Is(err, core.ErrCategoryInUse) {
		t.Fatalf("DeleteCategoryGroup = %v, want ErrCategoryInUse", err)
	}
	if _, err := repo.GetCategory(ctx, alice.ID, category.ID); err != nil {
		t.Fatalf("category gone after refused group delete: %v", err)
	}

	// Deleting the transaction first unblocks both deletes.
	if err := repo.DeleteTransaction(ctx, alice.ID, txn.ID); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if err := repo.DeleteCategory(ctx, alice.ID, category.ID); err != nil {
		t.Fatalf("DeleteCategory after transaction removed: %v", err)
	}
}

func TestTransactionUnderForeignCategory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := createTestUser(t, repo, "alice")
	bob := createTestUser(t, repo, "bob")
	group := createTestGroup(t, repo, alice.ID, "Groceries", core.Expenses)
	category := createTestCategory(t, repo, alice.ID, group.ID, "Produce")

	err := repo.CreateTransaction(ctx, bob.ID, &core.Transaction{
		CategoryID: category.ID,
		Amount:     decimal.RequireFromString("5.00"),
		Date:       time.Now(),
	})
	if !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("transaction under foreign category = %v, want ErrUnauthorized", err)
	}
}

func TestAccountDeleteUnassignsTransactions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := createTestUser(t, repo, "alice")
	group := createTestGroup(t, repo, alice.ID, "Groceries", core.Expenses)
	category := createTestCategory(t, repo, alice.ID, group.ID, "Produce")

	account := &core.Account{
		UserID: alice.ID, Name: "Main Checking", Type: core.AccountChecking,
		Balance: decimal.RequireFromString("100.00"), IncludeInTotals: true, Icon: "landmark",
	}
	if err := repo.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	txn := &core.Transaction{
		AccountID:  &account.ID,
		CategoryID: category.ID,
		Amount:     decimal.RequireFromString("12.50"),
		Date:       time.Now(),
	}
	if err := repo.CreateTransaction(ctx, alice.ID, txn); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	if err := repo.DeleteAccount(ctx, alice.ID, account.ID); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	transactions, err := repo.ListTransactions(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(transactions) != 1 {
		t.Fatalf("transactions = %d, want 1 surviving the account delete", len(transactions))
	}
	if transactions[0].AccountID != nil {
		t.Error("transaction still assigned to deleted account")
	}
}

func TestListTransactionsOrdering(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := createTestUser(t, repo, "alice")
	group := createTestGroup(t, repo, alice.ID, "Groceries", core.Expenses)
	category := createTestCategory(t, repo, alice.ID, group.ID, "Produce")

	dates := []string{"2024-03-01", "2024-03-15", "2024-03-01"}
	var ids []int64
	for i, d := range dates {
		when, _ := time.Parse("2006-01-02", d)
		txn := &core.Transaction{
			CategoryID:  category.ID,
			Amount:      decimal.New(int64(i+1), 0),
			Description: d,
			Date:        when,
		}
		if err := repo.CreateTransaction(ctx, alice.ID, txn); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
		ids = append(ids, txn.ID)
	}

	got, err := repo.ListTransactions(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("transactions = %d, want 3", len(got))
	}
	// Most recent date first; same-date ties most recently created first.
	if got[0].ID != ids[1] {
		t.Errorf("first = %d, want id %d (latest date)", got[0].ID, ids[1])
	}
	if got[1].ID != ids[2] || got[2].ID != ids[0] {
		t.Errorf("tie order = [%d %d], want [%d %d]", got[1].ID, got[2].ID, ids[2], ids[0])
	}
}

func TestListCategoryGroupsNestsCategories(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := createTestUser(t, repo, "alice")
	expenses := createTestGroup(t, repo, alice.ID, "Groceries", core.Expenses)
	income := createTestGroup(t, repo, alice.ID, "Salary", core.Income)
	createTestCategory(t, repo, alice.ID, expenses.ID, "Snacks")
	createTestCategory(t, repo, alice.ID, expenses.ID, "Produce")

	groups, err := repo.ListCategoryGroups(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListCategoryGroups: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	// Name-ordered: Groceries before Salary; categories name-ordered too.
	if groups[0].ID != expenses.ID || groups[1].ID != income.ID {
		t.Fatalf("group order = [%d %d], want [%d %d]", groups[0].ID, groups[1].ID, expenses.ID, income.ID)
	}
	if len(groups[0].Categories) != 2 {
		t.Fatalf("categories = %d, want 2", len(groups[0].Categories))
	}
	if groups[0].Categories[0].Name != "Produce" || groups[0].Categories[1].Name != "Snacks" {
		t.Errorf("category order = [%s %s], want [Produce Snacks]",
			groups[0].Categories[0].Name, groups[0].Categories[1].Name)
	}
	if len(groups[1].Categories) != 0 {
		t.Errorf("income group has %d categories, want 0", len(groups[1].Categories))
	}
}

func TestAccountBalancePrecision(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := createTestUser(t, repo, "alice")

	account := &core.Account{
		UserID: alice.ID, Name: "Savings", Type: core.AccountSavings,
		Balance: decimal.RequireFromString("9999999999.99"), IncludeInTotals: true, Icon: "piggy-bank",
	}
	if err := repo.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	got, err := repo.GetAccount(ctx, alice.ID, account.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !got.Balance.Equal(account.Balance) {
		t.Errorf("balance = %s, want %s", got.Balance, account.Balance)
	}
}
