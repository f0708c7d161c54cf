package http

import (
	"net/http"
	"strconv"

	"github.com/JeremyJS20/PersonalFinanceManagement/internal/auth"
	"github.com/JeremyJS20/PersonalFinanceManagement/internal/core"
	"github.com/JeremyJS20/PersonalFinanceManagement/internal/events"
	applog "github.com/JeremyJS20/PersonalFinanceManagement/internal/log"
)

type transactionJSON struct {
	ID          int64  `json:"id"`
	Amount      string `json:"amount"`
	CategoryID  int64  `json:"category_id"`
	AccountID   *int64 `json:"account_id"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

type transactionRow struct {
	ID          int64
	Amount      string
	Date        string
	Description string
	CategoryID  int64
	AccountID   *int64
}

type transactionsPage struct {
	Transactions []transactionRow
	Groups       []core.CategoryGroup
	Accounts     []core.Account
	Errors       map[string]string
	Form         map[string]string
}

func (s *Server) buildTransactionsPage(r *http.Request, userID int64) (transactionsPage, error) {
	var page transactionsPage

	txns, err := s.store.ListTransactions(r.Context(), userID)
	if err != nil {
		return page, err
	}
	for _, t := range txns {
		page.Transactions = append(page.Transactions, transactionRow{
			ID:          t.ID,
			Amount:      core.FormatMoney(t.Amount),
			Date:        t.Date.Format(dateLayout),
			Description: t.Description,
			CategoryID:  t.CategoryID,
			AccountID:   t.AccountID,
		})
	}

	page.Groups, err = s.store.ListCategoryGroups(r.Context(), userID)
	if err != nil {
		return page, err
	}
	page.Accounts, err = s.store.ListAccounts(r.Context(), userID)
	return page, err
}

func (s *Server) handleTransactionsPage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	page, err := s.buildTransactionsPage(r, userID)
	if err != nil {
		applog.FromContext(r.Context()).Error("Transactions page failed", "error", err, applog.FieldUserID, userID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.render(w, r, "transactions.html", page)
}

func (s *Server) handleTransactionCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	ve := core.NewValidationError()
	txn := &core.Transaction{
		UserID:      userID,
		Description: formValue(r, "description"),
	}

	if v := formValue(r, "category"); v != "" {
		txn.CategoryID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := formValue(r, "account"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			txn.AccountID = &id
		}
	}

	if raw := formValue(r, "amount"); raw == "" {
		ve.Add("amount", "This field is required.")
	} else if amount, err := core.ParseMoney(raw); err != nil {
		ve.Add("amount", "Enter a number.")
	} else {
		txn.Amount = amount
	}

	if date, err := parseDate(formValue(r, "date")); err != nil {
		ve.Add("date", "Enter a valid date.")
	} else {
		txn.Date = date
	}

	rerender := func(w http.ResponseWriter, r *http.Request, verr *core.ValidationError) {
		page, err := s.buildTransactionsPage(r, userID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		page.Errors = verr.Fields
		page.Form = map[string]string{
			"amount":      r.FormValue("amount"),
			"description": txn.Description,
			"date":        r.FormValue("date"),
		}
		s.render(w, r, "transactions.html", page)
	}

	if !ve.Empty() {
		s.respondMutationError(w, r, ve, "/transactions/", rerender)
		return
	}
	if err := txn.Validate(); err != nil {
		s.respondMutationError(w, r, err, "/transactions/", rerender)
		return
	}
	if err := s.store.CreateTransaction(r.Context(), userID, txn); err != nil {
		s.respondMutationError(w, r, err, "/transactions/", rerender)
		return
	}

	applog.FromContext(r.Context()).Info("Transaction created",
		applog.FieldOperation, applog.OpCreate,
		applog.FieldTransactionID, txn.ID,
		applog.FieldCategoryID, txn.CategoryID,
		applog.FieldUserID, userID)
	s.publishEvent(r.Context(), events.EntityTransaction, events.ActionCreated, txn.ID, userID)

	s.respondMutationSuccess(w, r, "/transactions/", "transaction", transactionJSON{
		ID:          txn.ID,
		Amount:      core.FormatMoney(txn.Amount),
		CategoryID:  txn.CategoryID,
		AccountID:   txn.AccountID,
		Date:        txn.Date.Format(dateLayout),
		Description: txn.Description,
	})
}

func (s *Server) handleTransactionDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	txnID := pathID(r)

	if err := s.store.DeleteTransaction(r.Context(), userID, txnID); err != nil {
		s.respondMutationError(w, r, err, "/transactions/", nil)
		return
	}

	applog.FromContext(r.Context()).Info("Transaction deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldTransactionID, txnID,
		applog.FieldUserID, userID)
	s.publishEvent(r.Context(), events.EntityTransaction, events.ActionDeleted, txnID, userID)

	s.respondMutationSuccess(w, r, "/transactions/", "", nil)
}
