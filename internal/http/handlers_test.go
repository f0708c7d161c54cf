package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/JeremyJS20/PersonalFinanceManagement/internal/auth"
	"github.com/JeremyJS20/PersonalFinanceManagement/internal/core"
	"github.com/JeremyJS20/PersonalFinanceManagement/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.SQLiteRepository, *auth.Sessions) {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening repository: %v", err)
	}

	sessions := auth.NewSessions(strings.Repeat("s", 32), time.Hour)
	srv := NewServer(ServerOptions{
		Addr:          ":0",
		Store:         repo,
		Sessions:      sessions,
		CategoryLimit: 50,
	})

	t.Cleanup(func() {
		srv.rateLimiter.stop()
		_ = repo.Close()
	})
	return srv, repo, sessions
}

func createTestUser(t *testing.T, repo *storage.SQLiteRepository, username string) *core.User {
	t.Helper()

	hash, err := auth.HashPassword("sup3rsecret")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	user := &core.User{
		Username:     username,
		FirstName:    "Test",
		LastName:     "User",
		Email:        username + "@example.com",
		PasswordHash: hash,
	}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("creating user: %v", err)
	}
	return user
}

func sessionCookie(t *testing.T, sessions *auth.Sessions, userID int64) *http.Cookie {
	t.Helper()
	token, err := sessions.Issue(userID)
	if err != nil {
		t.Fatalf("issuing session: %v", err)
	}
	return &http.Cookie{Name: auth.SessionCookie, Value: token}
}

func postForm(srv *Server, path string, form url.Values, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, opt := range opts {
		opt(r)
	}
	w := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(w, r)
	return w
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(c) }
}

func withAJAX() func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("X-Requested-With", "XMLHttpRequest") }
}

func TestHealthEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		w := httptest.NewRecorder()
		srv.Server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, w.Code)
		}
	}
}

func TestAnonymousRedirectedToLogin(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, path := range []string{"/", "/dashboard/", "/categories/", "/accounts/", "/transactions/"} {
		w := httptest.NewRecorder()
		srv.Server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusFound {
			t.Errorf("GET %s = %d, want 302", path, w.Code)
		}
		if loc := w.Header().Get("Location"); loc != auth.LoginPath {
			t.Errorf("GET %s redirected to %q, want %q", path, loc, auth.LoginPath)
		}
	}
}

func TestSignupAndLogin(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := postForm(srv, "/signup/", url.Values{
		"username":   {"ada"},
		"first_name": {"Ada"},
		"last_name":  {"Lovelace"},
		"email":      {"ada@example.com"},
		"password1":  {"difference-engine"},
		"password2":  {"difference-engine"},
	})
	if w.Code != http.StatusFound {
		t.Fatalf("signup status = %d, want 302; body: %s", w.Code, w.Body.String())
	}
	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			session = c
		}
	}
	if session == nil || session.Value == "" {
		t.Fatal("signup should set the session cookie")
	}

	// The fresh session opens the dashboard.
	r := httptest.NewRequest(http.MethodGet, "/dashboard/", nil)
	r.AddCookie(session)
	wr := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(wr, r)
	if wr.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d, want 200", wr.Code)
	}

	t.Run("wrong password rejected", func(t *testing.T) {
		w := postForm(srv, "/login/", url.Values{
			"username": {"ada"},
			"password": {"wrong"},
		}, withAJAX())
		if w.Code != http.StatusBadRequest {
			t.Fatalf("login status = %d, want 400", w.Code)
		}
	})

	t.Run("correct password accepted", func(t *testing.T) {
		w := postForm(srv, "/login/", url.Values{
			"username": {"ada"},
			"password": {"difference-engine"},
		})
		if w.Code != http.StatusFound {
			t.Fatalf("login status = %d, want 302", w.Code)
		}
		if loc := w.Header().Get("Location"); loc != "/dashboard/" {
			t.Fatalf("login redirected to %q", loc)
		}
	})

	t.Run("duplicate username rejected", func(t *testing.T) {
		w := postForm(srv, "/signup/", url.Values{
			"username":   {"ada"},
			"first_name": {"Ada"},
			"last_name":  {"Again"},
			"email":      {"ada2@example.com"},
			"password1":  {"difference-engine"},
			"password2":  {"difference-engine"},
		}, withAJAX())
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		var body struct {
			Errors map[string]string `json:"errors"`
		}
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if body.Errors["username"] == "" {
			t.Fatalf("expected username error, got %v", body.Errors)
		}
	})
}

func TestCategoryGroupMutations(t *testing.T) {
	srv, repo, sessions := newTestServer(t)
	user := createTestUser(t, repo, "owner")
	cookie := sessionCookie(t, sessions, user.ID)

	t.Run("ajax create returns entity payload", func(t *testing.T) {
		w := postForm(srv, "/categories/group/create/", url.Values{
			"name":             {"Groceries"},
			"transaction_type": {"expenses"},
		}, withCookie(cookie), withAJAX())

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
		}
		var body struct {
			Status string    `json:"status"`
			Group  groupJSON `json:"group"`
		}
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if body.Status != "success" || body.Group.ID == 0 {
			t.Fatalf("unexpected body: %+v", body)
		}
		if body.Group.Icon != core.DefaultGroupIcon {
			t.Fatalf("icon = %q, want default %q", body.Group.Icon, core.DefaultGroupIcon)
		}
	})

	t.Run("standard create redirects", func(t *testing.T) {
		w := postForm(srv, "/categories/group/create/", url.Values{
			"name":             {"Salary"},
			"transaction_type": {"income"},
		}, withCookie(cookie))

		if w.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", w.Code)
		}
		if loc := w.Header().Get("Location"); loc != "/categories/" {
			t.Fatalf("location = %q", loc)
		}
	})

	t.Run("missing name is a field error", func(t *testing.T) {
		w := postForm(srv, "/categories/group/create/", url.Values{
			"transaction_type": {"expenses"},
		}, withCookie(cookie), withAJAX())

		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		var body struct {
			Errors map[string]string `json:"errors"`
		}
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if body.Errors["name"] != "This field is required." {
			t.Fatalf("name error = %q", body.Errors["name"])
		}
	})

	t.Run("foreign group update is not found", func(t *testing.T) {
		other := createTestUser(t, repo, "other")
		group := &core.CategoryGroup{UserID: other.ID, Name: "Theirs", Icon: "x", TransactionType: core.Expenses}
		if err := repo.CreateCategoryGroup(context.Background(), group); err != nil {
			t.Fatalf("creating group: %v", err)
		}

		w := postForm(srv, "/categories/group/"+itoa(group.ID)+"/update/", url.Values{
			"name":             {"Mine now"},
			"transaction_type": {"expenses"},
		}, withCookie(cookie), withAJAX())

		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", w.Code)
		}
	})
}

func TestCategoryDeletionGuard(t *testing.T) {
	srv, repo, sessions := newTestServer(t)
	user := createTestUser(t, repo, "owner")
	cookie := sessionCookie(t, sessions, user.ID)
	ctx := context.Background()

	group := &core.CategoryGroup{UserID: user.ID, Name: "Food", Icon: "f", TransactionType: core.Expenses}
	if err := repo.CreateCategoryGroup(ctx, group); err != nil {
		t.Fatalf("creating group: %v", err)
	}
	category := &core.Category{GroupID: group.ID, Name: "Lunch", Icon: "l"}
	if err := repo.CreateCategory(ctx, user.ID, category); err != nil {
		t.Fatalf("creating category: %v", err)
	}

	w := postForm(srv, "/transactions/create/", url.Values{
		"amount":   {"12.50"},
		"category": {itoa(category.ID)},
	}, withCookie(cookie), withAJAX())
	if w.Code != http.StatusOK {
		t.Fatalf("transaction create status = %d; body: %s", w.Code, w.Body.String())
	}

	t.Run("category with transactions returns conflict", func(t *testing.T) {
		w := postForm(srv, "/categories/"+itoa(category.ID)+"/delete/", nil, withCookie(cookie), withAJAX())
		if w.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", w.Code)
		}
	})

	t.Run("group containing that category also conflicts", func(t *testing.T) {
		w := postForm(srv, "/categories/group/"+itoa(group.ID)+"/delete/", nil, withCookie(cookie), withAJAX())
		if w.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", w.Code)
		}
	})

	t.Run("delete succeeds once transactions are gone", func(t *testing.T) {
		txns, err := repo.ListTransactions(ctx, user.ID)
		if err != nil || len(txns) != 1 {
			t.Fatalf("listing transactions: %v (%d)", err, len(txns))
		}
		wd := postForm(srv, "/transactions/"+itoa(txns[0].ID)+"/delete/", nil, withCookie(cookie), withAJAX())
		if wd.Code != http.StatusOK {
			t.Fatalf("transaction delete status = %d", wd.Code)
		}

		w := postForm(srv, "/categories/group/"+itoa(group.ID)+"/delete/", nil, withCookie(cookie), withAJAX())
		if w.Code != http.StatusOK {
			t.Fatalf("group delete status = %d; body: %s", w.Code, w.Body.String())
		}
	})
}

func TestCategoryUpdateMovesGroup(t *testing.T) {
	srv, repo, sessions := newTestServer(t)
	user := createTestUser(t, repo, "owner")
	cookie := sessionCookie(t, sessions, user.ID)
	ctx := context.Background()

	food := &core.CategoryGroup{UserID: user.ID, Name: "Food", Icon: "f", TransactionType: core.Expenses}
	travel := &core.CategoryGroup{UserID: user.ID, Name: "Travel", Icon: "t", TransactionType: core.Expenses}
	for _, g := range []*core.CategoryGroup{food, travel} {
		if err := repo.CreateCategoryGroup(ctx, g); err != nil {
			t.Fatalf("creating group: %v", err)
		}
	}
	category := &core.Category{GroupID: food.ID, Name: "Lunch", Icon: "l"}
	if err := repo.CreateCategory(ctx, user.ID, category); err != nil {
		t.Fatalf("creating category: %v", err)
	}

	w := postForm(srv, "/categories/"+itoa(category.ID)+"/update/", url.Values{
		"name":  {"Trips"},
		"group": {itoa(travel.ID)},
	}, withCookie(cookie), withAJAX())

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var body struct {
		Category categoryJSON `json:"category"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Category.GroupID != travel.ID {
		t.Fatalf("response group_id = %d, want %d", body.Category.GroupID, travel.ID)
	}

	// The response reflects persisted state.
	stored, err := repo.GetCategory(ctx, user.ID, category.ID)
	if err != nil {
		t.Fatalf("GetCategory: %v", err)
	}
	if stored.GroupID != travel.ID {
		t.Fatalf("stored group_id = %d, want %d", stored.GroupID, travel.ID)
	}

	t.Run("foreign target group is forbidden", func(t *testing.T) {
		other := createTestUser(t, repo, "other")
		foreign := &core.CategoryGroup{UserID: other.ID, Name: "Theirs", Icon: "x", TransactionType: core.Expenses}
		if err := repo.CreateCategoryGroup(ctx, foreign); err != nil {
			t.Fatalf("creating group: %v", err)
		}

		w := postForm(srv, "/categories/"+itoa(category.ID)+"/update/", url.Values{
			"name":  {"Trips"},
			"group": {itoa(foreign.ID)},
		}, withCookie(cookie), withAJAX())
		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", w.Code)
		}
	})
}

func TestDeleteMethodVariant(t *testing.T) {
	srv, repo, sessions := newTestServer(t)
	user := createTestUser(t, repo, "owner")
	cookie := sessionCookie(t, sessions, user.ID)
	ctx := context.Background()

	account := &core.Account{UserID: user.ID, Name: "Old savings", Type: core.AccountSavings, Icon: "s"}
	if err := repo.CreateAccount(ctx, account); err != nil {
		t.Fatalf("creating account: %v", err)
	}

	r := httptest.NewRequest(http.MethodDelete, "/accounts/"+itoa(account.ID)+"/delete/", nil)
	r.Header.Set("X-Requested-With", "XMLHttpRequest")
	r.AddCookie(cookie)
	w := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("DELETE status = %d; body: %s", w.Code, w.Body.String())
	}
	if _, err := repo.GetAccount(ctx, user.ID, account.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("GetAccount after delete = %v, want ErrNotFound", err)
	}
}

func TestAccountMutations(t *testing.T) {
	srv, repo, sessions := newTestServer(t)
	user := createTestUser(t, repo, "owner")
	cookie := sessionCookie(t, sessions, user.ID)

	w := postForm(srv, "/accounts/create/", url.Values{
		"name":              {"Main checking"},
		"type":              {"checking"},
		"balance":           {"1250.75"},
		"include_in_totals": {"on"},
	}, withCookie(cookie), withAJAX())

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var body struct {
		Status  string      `json:"status"`
		Account accountJSON `json:"account"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Account.Balance != "1250.75" {
		t.Fatalf("balance = %q, want 1250.75", body.Account.Balance)
	}
	if !body.Account.IncludeInTotals {
		t.Fatal("include_in_totals should be set")
	}

	t.Run("invalid balance is a field error", func(t *testing.T) {
		w := postForm(srv, "/accounts/create/", url.Values{
			"name":    {"Broken"},
			"type":    {"checking"},
			"balance": {"not-a-number"},
		}, withCookie(cookie), withAJAX())
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		w := postForm(srv, "/accounts/create/", url.Values{
			"name": {"Weird"},
			"type": {"offshore"},
		}, withCookie(cookie), withAJAX())
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})

	t.Run("edit form payload updates the account", func(t *testing.T) {
		w := postForm(srv, "/accounts/"+itoa(body.Account.ID)+"/update/", url.Values{
			"name":              {"Joint checking"},
			"type":              {"checking"},
			"balance":           {"980.00"},
			"include_in_totals": {"on"},
		}, withCookie(cookie), withAJAX())
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
		}
		var updated struct {
			Account accountJSON `json:"account"`
		}
		if err := json.NewDecoder(w.Body).Decode(&updated); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if updated.Account.Name != "Joint checking" || updated.Account.Balance != "980.00" {
			t.Fatalf("account = %+v, want renamed with balance 980.00", updated.Account)
		}
	})

	t.Run("filter page renders", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/accounts/?filter=assets", nil)
		r.AddCookie(cookie)
		w := httptest.NewRecorder()
		srv.Server.Handler.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if !strings.Contains(w.Body.String(), "Joint checking") {
			t.Fatal("asset filter should include the checking account")
		}
	})
}

func TestCategoriesPageTabCookie(t *testing.T) {
	srv, repo, sessions := newTestServer(t)
	user := createTestUser(t, repo, "owner")
	cookie := sessionCookie(t, sessions, user.ID)

	r := httptest.NewRequest(http.MethodGet, "/categories/?tab=income", nil)
	r.AddCookie(cookie)
	w := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var tab string
	for _, c := range w.Result().Cookies() {
		if c.Name == tabCookie {
			tab = c.Value
		}
	}
	if tab != "income" {
		t.Fatalf("tab cookie = %q, want income", tab)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
