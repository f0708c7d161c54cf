package auth

import (
	"net/http"

	applog "github.com/JeremyJS20/PersonalFinanceManagement/internal/log"
)

// RequireUser gates identity-only routes. Requests without a valid session
// cookie are redirected to the login page, never answered with an error
// status.
func RequireUser(sessions *Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err != nil {
				http.Redirect(w, r, LoginPath, http.StatusFound)
				return
			}

			userID, err := sessions.Verify(cookie.Value)
			if err != nil {
				applog.FromContext(r.Context()).
					WithComponent(applog.ComponentAuth).
					DebugContext(r.Context(), "Rejected session token", applog.FieldError, err.Error(), applog.FieldPath, r.URL.Path)
				http.Redirect(w, r, LoginPath, http.StatusFound)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
