package http

import (
	"errors"
	"net/http"

	"github.com/JeremyJS20/PersonalFinanceManagement/internal/auth"
	"github.com/JeremyJS20/PersonalFinanceManagement/internal/core"
	applog "github.com/JeremyJS20/PersonalFinanceManagement/internal/log"
)

type authPage struct {
	Errors map[string]string
	Form   map[string]string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "login.html", authPage{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	username := formValue(r, "username")
	password := r.PostFormValue("password")

	log := applog.FromContext(r.Context())

	user, err := s.store.GetUserByUsername(r.Context(), username)
	if err != nil || !auth.CheckPassword(user.PasswordHash, password) {
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			log.Warn("Login lookup failed", "error", err, applog.FieldUsername, username)
		}
		s.renderLoginError(w, r, username)
		return
	}

	token, err := s.sessions.Issue(user.ID)
	if err != nil {
		log.Error("Session issue failed", "error", err, applog.FieldUserID, user.ID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.sessions.SetCookie(w, token)

	log.Info("User logged in",
		applog.FieldOperation, applog.OpLogin,
		applog.FieldUserID, user.ID,
		applog.FieldUsername, user.Username)

	if isAJAX(r) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
		return
	}
	http.Redirect(w, r, "/dashboard/", http.StatusFound)
}

func (s *Server) renderLoginError(w http.ResponseWriter, r *http.Request, username string) {
	if isAJAX(r) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"status": "error",
			"errors": map[string]string{"__all__": "Please enter a correct username and password."},
		})
		return
	}
	s.render(w, r, "login.html", authPage{
		Errors: map[string]string{"__all__": "Please enter a correct username and password."},
		Form:   map[string]string{"username": username},
	})
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "signup.html", authPage{})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	signup := core.Signup{
		Username:  formValue(r, "username"),
		FirstName: formValue(r, "first_name"),
		LastName:  formValue(r, "last_name"),
		Email:     formValue(r, "email"),
		Password1: r.PostFormValue("password1"),
		Password2: r.PostFormValue("password2"),
	}

	rerender := func(w http.ResponseWriter, r *http.Request, verr *core.ValidationError) {
		s.render(w, r, "signup.html", authPage{
			Errors: verr.Fields,
			Form: map[string]string{
				"username":   signup.Username,
				"first_name": signup.FirstName,
				"last_name":  signup.LastName,
				"email":      signup.Email,
			},
		})
	}

	if err := signup.Validate(); err != nil {
		s.respondMutationError(w, r, err, "/signup/", rerender)
		return
	}

	hash, err := auth.HashPassword(signup.Password1)
	if err != nil {
		applog.FromContext(r.Context()).Error("Password hash failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	user := &core.User{
		Username:     signup.Username,
		FirstName:    signup.FirstName,
		LastName:     signup.LastName,
		Email:        signup.Email,
		PasswordHash: hash,
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, core.ErrUsernameTaken) {
			ve := core.NewValidationError()
			ve.Add("username", "A user with that username already exists.")
			s.respondMutationError(w, r, ve, "/signup/", rerender)
			return
		}
		s.respondMutationError(w, r, err, "/signup/", nil)
		return
	}

	applog.FromContext(r.Context()).Info("User signed up",
		applog.FieldOperation, applog.OpSignup,
		applog.FieldUserID, user.ID,
		applog.FieldUsername, user.Username)

	token, err := s.sessions.Issue(user.ID)
	if err == nil {
		s.sessions.SetCookie(w, token)
	}

	if isAJAX(r) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
		return
	}
	http.Redirect(w, r, "/dashboard/", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.ClearCookie(w)
	applog.FromContext(r.Context()).Info("User logged out", applog.FieldOperation, applog.OpLogout)
	http.Redirect(w, r, auth.LoginPath, http.StatusFound)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	user, err := s.store.GetUserByID(r.Context(), userID)
	if err != nil {
		s.sessions.ClearCookie(w)
		http.Redirect(w, r, auth.LoginPath, http.StatusFound)
		return
	}

	accounts, err := s.store.ListAccounts(r.Context(), userID)
	if err != nil {
		applog.FromContext(r.Context()).Error("List accounts failed", "error", err, applog.FieldUserID, userID)
	}

	data := struct {
		FirstName string
		Accounts  []core.Account
		NetWorth  string
	}{
		FirstName: user.FirstName,
		Accounts:  accounts,
		NetWorth:  core.FormatMoney(netWorth(accounts)),
	}
	s.render(w, r, "dashboard.html", data)
}
