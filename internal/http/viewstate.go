package http

import (
	"net/http"

	"github.com/JeremyJS20/PersonalFinanceManagement/internal/core"
)

// Cookie names for sticky view state.
const (
	tabCookie    = "pfm_categories_tab"
	filterCookie = "pfm_accounts_filter"
)

const viewStateCookieMaxAge = 30 * 24 * 60 * 60

// Account list filters.
const (
	FilterAll         = "all"
	FilterAssets      = "assets"
	FilterLiabilities = "liabilities"
)

// resolveTab picks the active categories tab. An explicit query
// parameter wins, then the sticky cookie, then the expenses default.
// The resolved value is written back so it survives the next visit.
func resolveTab(w http.ResponseWriter, r *http.Request) core.TransactionType {
	tab := core.TransactionType(r.URL.Query().Get("tab"))
	if !tab.Valid() {
		tab = ""
		if c, err := r.Cookie(tabCookie); err == nil {
			if t := core.TransactionType(c.Value); t.Valid() {
				tab = t
			}
		}
	}
	if tab == "" {
		tab = core.Expenses
	}
	setViewStateCookie(w, tabCookie, string(tab))
	return tab
}

// resolveAccountFilter picks the active accounts filter with the same
// precedence as resolveTab, defaulting to all.
func resolveAccountFilter(w http.ResponseWriter, r *http.Request) string {
	filter := r.URL.Query().Get("filter")
	if !validFilter(filter) {
		filter = ""
		if c, err := r.Cookie(filterCookie); err == nil && validFilter(c.Value) {
			filter = c.Value
		}
	}
	if filter == "" {
		filter = FilterAll
	}
	setViewStateCookie(w, filterCookie, filter)
	return filter
}

func validFilter(f string) bool {
	switch f {
	case FilterAll, FilterAssets, FilterLiabilities:
		return true
	}
	return false
}

func setViewStateCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   viewStateCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// filterAccounts returns the accounts matching the active filter.
func filterAccounts(accounts []core.Account, filter string) []core.Account {
	if filter == FilterAll {
		return accounts
	}
	wantAssets := filter == FilterAssets
	out := make([]core.Account, 0, len(accounts))
	for _, a := range accounts {
		if a.Type.IsAsset() == wantAssets {
			out = append(out, a)
		}
	}
	return out
}

// categoryProgress reports how much of the category allowance is used,
// as a whole percentage capped at 100. A zero or negative limit always
// reads as 0.
func categoryProgress(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	pct := total * 100 / int64(limit)
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return int(pct)
}
