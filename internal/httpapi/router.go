package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"accountd/internal/service"
)

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing func(context.Context) error

	Auth    *service.AuthService
	Resets  *service.PasswordResetService
	Profile *service.ProfileService
	Admin   *service.AdminService

	CookieSecure bool

	// TrustedProxies are the peers whose X-Forwarded-For header is believed
	// when keying rate limits. Empty means the header is ignored.
	TrustedProxies []netip.Prefix

	// Metrics serves /metrics when set.
	Metrics http.Handler

	// Login and forgot-password attempts allowed per key and window.
	// Zero values fall back to 10 per 5 minutes.
	LimitWindow time.Duration
	LimitMax    int

	Now func() time.Time
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.LimitWindow <= 0 {
		opts.LimitWindow = 5 * time.Minute
	}
	if opts.LimitMax <= 0 {
		opts.LimitMax = 10
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	api := &api{
		logger:         logger,
		dbPing:         opts.DBPing,
		authSvc:        opts.Auth,
		resetSvc:       opts.Resets,
		profileSvc:     opts.Profile,
		adminSvc:       opts.Admin,
		cookieSecure:   opts.CookieSecure,
		trustedProxies: opts.TrustedProxies,
		loginLimiter:   newLoginLimiter(opts.LimitWindow, opts.LimitMax),
		now:            now,
	}

	publicMux := http.NewServeMux()
	apiMux := http.NewServeMux()

	publicMux.HandleFunc("GET /healthz", api.handleHealthz)
	publicMux.HandleFunc("GET /reset-password", api.handleResetPage)
	if opts.Metrics != nil {
		publicMux.Handle("GET /metrics", opts.Metrics)
	}

	route := func(pattern string, h http.HandlerFunc) {
		apiMux.HandleFunc(pattern, instrument(pattern, h))
	}

	if api.authSvc == nil {
		route("POST /v1/auth/register", handleNotImplemented)
		route("POST /v1/auth/login", handleNotImplemented)
		route("POST /v1/auth/logout", handleNotImplemented)
	} else {
		route("POST /v1/auth/register", api.handleAuthRegister)
		route("POST /v1/auth/login", api.handleAuthLogin)
		route("POST /v1/auth/logout", api.requireAuth(api.handleAuthLogout))

		if api.resetSvc != nil {
			route("POST /v1/auth/forgot-password", api.handleAuthForgot)
			route("POST /v1/auth/reset-password", api.handleAuthReset)
		}

		if api.profileSvc != nil {
			route("GET /v1/users/me", api.requireAuth(api.handleUsersMe))
			route("PATCH /v1/users/me", api.requireAuth(api.handleUsersMeUpdate))
			route("POST /v1/users/me/password", api.requireAuth(api.handleUsersMePassword))
		}

		if api.adminSvc != nil {
			route("GET /v1/admin/users", api.requireAuth(api.handleAdminUsersList))
			route("POST /v1/admin/users", api.requireAuth(api.handleAdminUsersCreate))
			route("GET /v1/admin/users/{id}", api.requireAuth(api.handleAdminUsersGet))
			route("PATCH /v1/admin/users/{id}", api.requireAuth(api.handleAdminUsersUpdate))
			route("DELETE /v1/admin/users/{id}", api.requireAuth(api.handleAdminUsersDelete))
		}
	}

	apiHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Handler does not populate path wildcards, so matched requests go
		// back through the mux.
		if _, pattern := apiMux.Handler(r); pattern == "" {
			handleV1NotFound(w, r)
			return
		}
		apiMux.ServeHTTP(w, r)
	})

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") || r.URL.Path == "/v1" {
			apiHandler.ServeHTTP(w, r)
			return
		}
		publicMux.ServeHTTP(w, r)
	})

	var h http.Handler = root
	h = RequestLogger(logger)(h)
	h = Tracing()(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

func handleNotImplemented(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotImplemented, "not_implemented", "not implemented")
}

func handleV1NotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "not_found", "not found")
}

type api struct {
	logger *slog.Logger

	dbPing func(context.Context) error

	authSvc      *service.AuthService
	resetSvc     *service.PasswordResetService
	profileSvc   *service.ProfileService
	adminSvc     *service.AdminService
	cookieSecure bool

	trustedProxies []netip.Prefix
	loginLimiter   *loginLimiter
	now            func() time.Time
}

func (a *api) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	WriteDomainError(w, r, a.logger, err)
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}
