package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

const dateLayout = "2006-01-02"

// sanitizeInput removes control characters and trims whitespace
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func formValue(r *http.Request, name string) string {
	return sanitizeInput(r.FormValue(name))
}

// formValueDefault returns fallback when the field is empty.
func formValueDefault(r *http.Request, name, fallback string) string {
	if v := formValue(r, name); v != "" {
		return v
	}
	return fallback
}

// pathID extracts the numeric id route variable.
func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

// parseDate reads an ISO date field, defaulting to today when empty.
func parseDate(value string) (time.Time, error) {
	if value == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse(dateLayout, value)
}
