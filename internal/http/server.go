package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/JeremyJS20/PersonalFinanceManagement/internal/auth"
	"github.com/JeremyJS20/PersonalFinanceManagement/internal/core"
	"github.com/JeremyJS20/PersonalFinanceManagement/internal/events"
	applog "github.com/JeremyJS20/PersonalFinanceManagement/internal/log"
	appweb "github.com/JeremyJS20/PersonalFinanceManagement/web"
)

// UserStore persists accounts credentials and profile data.
type UserStore interface {
	CreateUser(ctx context.Context, user *core.User) error
	GetUserByUsername(ctx context.Context, username string) (*core.User, error)
	GetUserByID(ctx context.Context, id int64) (*core.User, error)
}

// CategoryStore persists category groups and categories, always scoped
// to the owning user.
type CategoryStore interface {
	CreateCategoryGroup(ctx context.Context, group *core.CategoryGroup) error
	UpdateCategoryGroup(ctx context.Context, userID int64, group *core.CategoryGroup) error
	DeleteCategoryGroup(ctx context.Context, userID, groupID int64) error
	GetCategoryGroup(ctx context.Context, userID, groupID int64) (*core.CategoryGroup, error)
	ListCategoryGroups(ctx context.Context, userID int64) ([]core.CategoryGroup, error)
	CreateCategory(ctx context.Context, userID int64, category *core.Category) error
	UpdateCategory(ctx context.Context, userID int64, category *core.Category) error
	DeleteCategory(ctx context.Context, userID, categoryID int64) error
	GetCategory(ctx context.Context, userID, categoryID int64) (*core.Category, error)
	CountCategories(ctx context.Context, userID int64) (int64, error)
}

// AccountStore persists financial accounts.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *core.Account) error
	UpdateAccount(ctx context.Context, userID int64, account *core.Account) error
	DeleteAccount(ctx context.Context, userID, accountID int64) error
	GetAccount(ctx context.Context, userID, accountID int64) (*core.Account, error)
	ListAccounts(ctx context.Context, userID int64) ([]core.Account, error)
}

// TransactionStore persists transactions.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, userID int64, txn *core.Transaction) error
	DeleteTransaction(ctx context.Context, userID, txnID int64) error
	ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error)
}

// Store is the full persistence surface the server depends on.
type Store interface {
	UserStore
	CategoryStore
	AccountStore
	TransactionStore
}

// EventPublisher emits entity mutation events. May be nil when event
// publishing is disabled.
type EventPublisher interface {
	PublishEntityEvent(ctx context.Context, event *events.EntityEvent) error
}

type Server struct {
	http.Server
	templates     *template.Template
	store         Store
	sessions      *auth.Sessions
	publisher     EventPublisher
	categoryLimit int
	logger        *applog.Logger
	rateLimiter   *rateLimiter
	shutdownOnce  sync.Once
}

// Simple in-memory rate limiter for mutating requests.
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// startCleanup runs periodic cleanup to remove stale client entries
func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

// stop gracefully shuts down the rate limiter cleanup goroutine
func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 requests per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}

// ServerOptions carries the wiring the server needs beyond its address.
type ServerOptions struct {
	Addr          string
	Store         Store
	Sessions      *auth.Sessions
	Publisher     EventPublisher
	CategoryLimit int
	Logger        *applog.Logger
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(opts ServerOptions) *Server {
	router := mux.NewRouter()

	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	s := &Server{
		Server: http.Server{
			Addr:         opts.Addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		store:         opts.Store,
		sessions:      opts.Sessions,
		publisher:     opts.Publisher,
		categoryLimit: opts.CategoryLimit,
		logger:        logger.WithComponent(applog.ComponentHTTP),
		rateLimiter:   newRateLimiter(),
	}

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	router.Use(applog.Middleware(s.logger))
	router.Use(s.withRequestLogging)
	router.Use(s.withSecurityHeaders)

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		router.PathPrefix("/static/").Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Tiny cache for static assets
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	router.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/readyz", handleReady).Methods(http.MethodGet)

	router.HandleFunc("/login/", s.handleLoginPage).Methods(http.MethodGet)
	router.HandleFunc("/login/", s.handleLogin).Methods(http.MethodPost)
	router.HandleFunc("/signup/", s.handleSignupPage).Methods(http.MethodGet)
	router.HandleFunc("/signup/", s.handleSignup).Methods(http.MethodPost)
	router.HandleFunc("/logout/", s.handleLogout).Methods(http.MethodGet, http.MethodPost)

	private := router.PathPrefix("/").Subrouter()
	private.Use(auth.RequireUser(s.sessions))

	private.HandleFunc("/", s.handleDashboard).Methods(http.MethodGet)
	private.HandleFunc("/dashboard/", s.handleDashboard).Methods(http.MethodGet)

	private.HandleFunc("/categories/", s.handleCategoriesPage).Methods(http.MethodGet)
	private.HandleFunc("/categories/group/create/", s.handleCategoryGroupCreate).Methods(http.MethodPost)
	private.HandleFunc("/categories/group/{id:[0-9]+}/update/", s.handleCategoryGroupUpdate).Methods(http.MethodPost)
	private.HandleFunc("/categories/group/{id:[0-9]+}/delete/", s.handleCategoryGroupDelete).Methods(http.MethodPost, http.MethodDelete)
	private.HandleFunc("/categories/create/", s.handleCategoryCreate).Methods(http.MethodPost)
	private.HandleFunc("/categories/{id:[0-9]+}/update/", s.handleCategoryUpdate).Methods(http.MethodPost)
	private.HandleFunc("/categories/{id:[0-9]+}/delete/", s.handleCategoryDelete).Methods(http.MethodPost, http.MethodDelete)

	private.HandleFunc("/accounts/", s.handleAccountsPage).Methods(http.MethodGet)
	private.HandleFunc("/accounts/create/", s.handleAccountCreate).Methods(http.MethodPost)
	private.HandleFunc("/accounts/{id:[0-9]+}/update/", s.handleAccountUpdate).Methods(http.MethodPost)
	private.HandleFunc("/accounts/{id:[0-9]+}/delete/", s.handleAccountDelete).Methods(http.MethodPost, http.MethodDelete)

	private.HandleFunc("/transactions/", s.handleTransactionsPage).Methods(http.MethodGet)
	private.HandleFunc("/transactions/create/", s.handleTransactionCreate).Methods(http.MethodPost)
	private.HandleFunc("/transactions/{id:[0-9]+}/delete/", s.handleTransactionDelete).Methods(http.MethodPost, http.MethodDelete)

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withRequestLogging tags each request with an ID and logs start and
// completion with the response status.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := generateRequestID()

		log := applog.FromContext(r.Context()).With(applog.FieldRequestID, requestID)
		ctx := context.WithValue(r.Context(), applog.LoggerContextKey, log)
		r = r.WithContext(ctx)

		log.Debug("Request started",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, clientIP(r),
			applog.FieldUserAgent, r.Header.Get("User-Agent"))

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		log.Info("Request completed",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, time.Since(start).Milliseconds())
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func clientIP(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.Header.Get("X-Real-IP")
	}
	if ip == "" {
		ip = r.RemoteAddr
	}
	return ip
}

// withSecurityHeaders adds security headers and rate limiting for
// mutating requests.
func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP(r)) {
			applog.FromContext(r.Context()).Warn("Rate limit exceeded",
				applog.FieldClientIP, clientIP(r),
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	return "req_" + uuid.NewString()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		applog.FromContext(r.Context()).Error("Templates not loaded", applog.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		applog.FromContext(r.Context()).Error("Template execution failed", "error", err, "template", name)
	}
}

// publishEvent emits a mutation event after a successful write. Event
// delivery is best effort and never fails the request.
func (s *Server) publishEvent(ctx context.Context, entity, action string, entityID, userID int64) {
	if s.publisher == nil {
		return
	}
	event := events.NewEntityEvent(entity, action, entityID, userID)
	if err := s.publisher.PublishEntityEvent(ctx, event); err != nil {
		applog.FromContext(ctx).Warn("Event publish failed",
			"error", err,
			applog.FieldEntity, entity,
			applog.FieldUserID, userID)
	}
}
