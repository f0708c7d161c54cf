package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/JeremyJS20/PersonalFinanceManagement/internal/auth"
	"github.com/JeremyJS20/PersonalFinanceManagement/internal/core"
	"github.com/JeremyJS20/PersonalFinanceManagement/internal/events"
	applog "github.com/JeremyJS20/PersonalFinanceManagement/internal/log"
)

type accountJSON struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Icon            string `json:"icon"`
	Type            string `json:"type"`
	Balance         string `json:"balance"`
	IncludeInTotals bool   `json:"include_in_totals"`
}

type accountsPage struct {
	ActiveFilter string
	Accounts     []core.Account
	AccountTypes []core.AccountType
	TotalAssets  string
	TotalDebts   string
	NetWorth     string
	Errors       map[string]string
	Form         map[string]string
}

// netWorth sums account balances that opt into totals; liability
// balances subtract.
func netWorth(accounts []core.Account) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		if !a.IncludeInTotals {
			continue
		}
		if a.Type.IsAsset() {
			total = total.Add(a.Balance)
		} else {
			total = total.Sub(a.Balance)
		}
	}
	return total
}

func sumBalances(accounts []core.Account, assets bool) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		if a.IncludeInTotals && a.Type.IsAsset() == assets {
			total = total.Add(a.Balance)
		}
	}
	return total
}

func (s *Server) buildAccountsPage(w http.ResponseWriter, r *http.Request, userID int64) (accountsPage, error) {
	page := accountsPage{
		ActiveFilter: resolveAccountFilter(w, r),
		AccountTypes: core.AccountTypes(),
	}

	accounts, err := s.store.ListAccounts(r.Context(), userID)
	if err != nil {
		return page, err
	}
	page.Accounts = filterAccounts(accounts, page.ActiveFilter)
	page.TotalAssets = core.FormatMoney(sumBalances(accounts, true))
	page.TotalDebts = core.FormatMoney(sumBalances(accounts, false))
	page.NetWorth = core.FormatMoney(netWorth(accounts))
	return page, nil
}

func (s *Server) handleAccountsPage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	page, err := s.buildAccountsPage(w, r, userID)
	if err != nil {
		applog.FromContext(r.Context()).Error("Accounts page failed", "error", err, applog.FieldUserID, userID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.render(w, r, "accounts.html", page)
}

func (s *Server) rerenderAccountsPage(w http.ResponseWriter, r *http.Request, verr *core.ValidationError, form map[string]string) {
	userID, _ := auth.UserID(r.Context())
	page, err := s.buildAccountsPage(w, r, userID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	page.Errors = verr.Fields
	page.Form = form
	s.render(w, r, "accounts.html", page)
}

// accountFromForm builds an account from the submitted fields. A bad
// balance string surfaces as a field error, not a transport error.
func accountFromForm(r *http.Request, userID int64) (*core.Account, *core.ValidationError) {
	account := &core.Account{
		UserID:          userID,
		Name:            formValue(r, "name"),
		Type:            core.AccountType(formValue(r, "type")),
		Icon:            formValueDefault(r, "icon", core.DefaultAccountIcon),
		IncludeInTotals: r.FormValue("include_in_totals") != "",
	}

	balance := formValueDefault(r, "balance", "0")
	amount, err := core.ParseMoney(balance)
	if err != nil {
		ve := core.NewValidationError()
		ve.Add("balance", "Enter a number.")
		return account, ve
	}
	account.Balance = amount
	return account, nil
}

func (s *Server) handleAccountCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	account, verr := accountFromForm(r, userID)
	rerender := func(w http.ResponseWriter, r *http.Request, verr *core.ValidationError) {
		s.rerenderAccountsPage(w, r, verr, map[string]string{
			"name": account.Name,
			"type": string(account.Type),
			"icon": account.Icon,
		})
	}

	if verr != nil {
		s.respondMutationError(w, r, verr, "/accounts/", rerender)
		return
	}
	if err := account.Validate(); err != nil {
		s.respondMutationError(w, r, err, "/accounts/", rerender)
		return
	}
	if err := s.store.CreateAccount(r.Context(), account); err != nil {
		s.respondMutationError(w, r, err, "/accounts/", rerender)
		return
	}

	applog.FromContext(r.Context()).Info("Account created",
		applog.FieldOperation, applog.OpCreate,
		applog.FieldAccountID, account.ID,
		applog.FieldUserID, userID)
	s.publishEvent(r.Context(), events.EntityAccount, events.ActionCreated, account.ID, userID)

	s.respondMutationSuccess(w, r, "/accounts/", "account", accountJSON{
		ID:              account.ID,
		Name:            account.Name,
		Icon:            account.Icon,
		Type:            string(account.Type),
		Balance:         core.FormatMoney(account.Balance),
		IncludeInTotals: account.IncludeInTotals,
	})
}

func (s *Server) handleAccountUpdate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	account, verr := accountFromForm(r, userID)
	account.ID = pathID(r)

	if verr != nil {
		s.respondMutationError(w, r, verr, "/accounts/", nil)
		return
	}
	if err := account.Validate(); err != nil {
		s.respondMutationError(w, r, err, "/accounts/", nil)
		return
	}
	if err := s.store.UpdateAccount(r.Context(), userID, account); err != nil {
		s.respondMutationError(w, r, err, "/accounts/", nil)
		return
	}

	applog.FromContext(r.Context()).Info("Account updated",
		applog.FieldOperation, applog.OpUpdate,
		applog.FieldAccountID, account.ID,
		applog.FieldUserID, userID)
	s.publishEvent(r.Context(), events.EntityAccount, events.ActionUpdated, account.ID, userID)

	s.respondMutationSuccess(w, r, "/accounts/", "account", accountJSON{
		ID:              account.ID,
		Name:            account.Name,
		Icon:            account.Icon,
		Type:            string(account.Type),
		Balance:         core.FormatMoney(account.Balance),
		IncludeInTotals: account.IncludeInTotals,
	})
}

func (s *Server) handleAccountDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	accountID := pathID(r)

	if err := s.store.DeleteAccount(r.Context(), userID, accountID); err != nil {
		s.respondMutationError(w, r, err, "/accounts/", nil)
		return
	}

	applog.FromContext(r.Context()).Info("Account deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldAccountID, accountID,
		applog.FieldUserID, userID)
	s.publishEvent(r.Context(), events.EntityAccount, events.ActionDeleted, accountID, userID)

	s.respondMutationSuccess(w, r, "/accounts/", "", nil)
}
