package core

import (
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Expenses TransactionType = "expenses"
	Income   TransactionType = "income"
)

const (
	AccountChecking     AccountType = "checking"
	AccountSavings      AccountType = "savings"
	AccountBank         AccountType = "bank"
	AccountBrokerage    AccountType = "brokerage"
	AccountCash         AccountType = "cash"
	AccountRealEstate   AccountType = "real_estate"
	AccountCrypto       AccountType = "crypto"
	AccountCredit       AccountType = "credit"
	AccountLoan         AccountType = "loan"
	AccountMortgage     AccountType = "mortgage"
	AccountLineOfCredit AccountType = "line_of_credit"
)

const (
	maxNameLen     = 100
	maxIconLen     = 50
	maxUsernameLen = 150
	maxHumanName   = 30
	maxEmailLen    = 254
	minPasswordLen = 8

	DefaultGroupIcon    = "folder"
	DefaultCategoryIcon = "tag"
	DefaultAccountIcon  = "wallet"
)

type (
	// TransactionType classifies a category group as expenses or income.
	TransactionType string

	// AccountType is one of the eleven supported account kinds.
	AccountType string

	User struct {
		ID           int64
		Username     string
		FirstName    string
		LastName     string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}

	CategoryGroup struct {
		ID              int64
		UserID          int64
		Name            string
		Icon            string
		TransactionType TransactionType
		Description     string
		CreatedAt       time.Time
		UpdatedAt       time.Time
		Categories      []Category
	}

	// Category belongs to a group; its owner is always derived through
	// the group and never stored on the row itself.
	Category struct {
		ID          int64
		GroupID     int64
		Name        string
		Icon        string
		Description string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	Account struct {
		ID              int64
		UserID          int64
		Name            string
		Type            AccountType
		Balance         decimal.Decimal
		IncludeInTotals bool
		Icon            string
		CreatedAt       time.Time
		UpdatedAt       time.Time
	}

	// Transaction may be unassigned to an account (AccountID == nil) but
	// always references a category.
	Transaction struct {
		ID          int64
		UserID      int64
		AccountID   *int64
		CategoryID  int64
		Amount      decimal.Decimal
		Description string
		Date        time.Time
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}
)

// Valid reports whether t is one of the two known transaction types.
func (t TransactionType) Valid() bool {
	return t == Expenses || t == Income
}

// AccountTypes lists every supported account kind in display order.
func AccountTypes() []AccountType {
	return []AccountType{
		AccountChecking, AccountSavings, AccountBank, AccountBrokerage,
		AccountCash, AccountRealEstate, AccountCrypto,
		AccountCredit, AccountLoan, AccountMortgage, AccountLineOfCredit,
	}
}

// Valid reports whether t is a known account kind.
func (t AccountType) Valid() bool {
	for _, known := range AccountTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// IsAsset reports whether the account kind counts toward assets; the
// remaining kinds (credit, loan, mortgage, line_of_credit) are liabilities.
func (t AccountType) IsAsset() bool {
	switch t {
	case AccountChecking, AccountSavings, AccountBank, AccountBrokerage,
		AccountCash, AccountRealEstate, AccountCrypto:
		return true
	}
	return false
}

func validateName(ve *ValidationError, field, name string) {
	switch {
	case strings.TrimSpace(name) == "":
		ve.Add(field, "This field is required.")
	case len(name) > maxNameLen:
		ve.Add(field, "Ensure this value has at most 100 characters.")
	}
}

func validateIcon(ve *ValidationError, icon string) {
	if len(icon) > maxIconLen {
		ve.Add("icon", "Ensure this value has at most 50 characters.")
	}
}

func (g CategoryGroup) Validate() error {
	ve := NewValidationError()
	validateName(ve, "name", g.Name)
	validateIcon(ve, g.Icon)
	if !g.TransactionType.Valid() {
		ve.Add("transaction_type", "Select a valid choice: expenses or income.")
	}
	return ve.ErrOrNil()
}

func (c Category) Validate() error {
	ve := NewValidationError()
	validateName(ve, "name", c.Name)
	validateIcon(ve, c.Icon)
	if c.GroupID <= 0 {
		ve.Add("group", "This field is required.")
	}
	return ve.ErrOrNil()
}

func (a Account) Validate() error {
	ve := NewValidationError()
	validateName(ve, "name", a.Name)
	validateIcon(ve, a.Icon)
	if !a.Type.Valid() {
		ve.Add("type", "Select a valid account type.")
	}
	if err := ValidateMoney(a.Balance); err != nil {
		ve.Add("balance", err.Error())
	}
	return ve.ErrOrNil()
}

func (t Transaction) Validate() error {
	ve := NewValidationError()
	if t.CategoryID <= 0 {
		ve.Add("category", "This field is required.")
	}
	if err := ValidateMoney(t.Amount); err != nil {
		ve.Add("amount", err.Error())
	}
	if len(t.Description) > 200 {
		ve.Add("description", "Ensure this value has at most 200 characters.")
	}
	if t.Date.IsZero() {
		ve.Add("date", "Enter a valid date.")
	}
	return ve.ErrOrNil()
}

// Signup holds raw registration input before the user row is created.
type Signup struct {
	Username  string
	FirstName string
	LastName  string
	Email     string
	Password1 string
	Password2 string
}

func (s Signup) Validate() error {
	ve := NewValidationError()
	switch {
	case strings.TrimSpace(s.Username) == "":
		ve.Add("username", "This field is required.")
	case len(s.Username) > maxUsernameLen:
		ve.Add("username", "Ensure this value has at most 150 characters.")
	}
	if strings.TrimSpace(s.FirstName) == "" {
		ve.Add("first_name", "This field is required.")
	} else if len(s.FirstName) > maxHumanName {
		ve.Add("first_name", "Ensure this value has at most 30 characters.")
	}
	if strings.TrimSpace(s.LastName) == "" {
		ve.Add("last_name", "This field is required.")
	} else if len(s.LastName) > maxHumanName {
		ve.Add("last_name", "Ensure this value has at most 30 characters.")
	}
	switch {
	case strings.TrimSpace(s.Email) == "":
		ve.Add("email", "This field is required.")
	case len(s.Email) > maxEmailLen:
		ve.Add("email", "Ensure this value has at most 254 characters.")
	default:
		if _, err := mail.ParseAddress(s.Email); err != nil {
			ve.Add("email", "Enter a valid email address.")
		}
	}
	if len(s.Password1) < minPasswordLen {
		ve.Add("password1", "Password must be at least 8 characters.")
	}
	if s.Password1 != s.Password2 {
		ve.Add("password2", "The two password fields didn't match.")
	}
	return ve.ErrOrNil()
}
