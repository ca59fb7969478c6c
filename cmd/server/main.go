// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/mysqlstore"
	"github.com/alexedwards/scs/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gymhub.np/internal/cache"
	"gymhub.np/internal/catalog"
	"gymhub.np/internal/config"
	"gymhub.np/internal/db"
	"gymhub.np/internal/email"
	"gymhub.np/internal/handlers"
	adminhandlers "gymhub.np/internal/handlers/admin"
	"gymhub.np/internal/membership"
	"gymhub.np/internal/middleware"
	"gymhub.np/internal/models"
	"gymhub.np/internal/payment_gateway/esewa"

	_ "github.com/go-sql-driver/mysql"
)

const reconcileLockKey = "locks:reconcile"

// Paths called by eSewa redirects, cron or setup scripts rather than the browser session.
var csrfExemptPaths = []string{
	"/api/esewa/verify",
	"/api/esewa/sign",
	"/api/payment/store",
	"/api/subscriptions/check-expiration",
	"/api/admin/setup",
}

func main() {
	configPath := "configs/config.yaml"
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		configPath = p
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: could not load configuration: %v\n", err)
		os.Exit(1)
	}

	config.InitLogger(cfg.AppEnv)
	slog.Info("Starting GymHub server...", "app_env", cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.Connect(ctx, cfg); err != nil {
		slog.Error("Fatal: could not initialize the database", "error", err)
		os.Exit(1)
	}
	defer db.Shutdown()

	db.StartTokenCleanupScheduler(ctx, 24*time.Hour)
	promoteFirstAdmin(ctx, cfg.FirstAdminEmail)

	var redisClient *cache.RedisClient
	var planCache catalog.Cache
	var locker membership.Locker = &cache.LocalLock{}
	if cfg.Redis.Enabled() {
		redisClient = cache.NewRedis(cfg.Redis)
		if err := redisClient.Ping(ctx); err != nil {
			slog.Warn("Redis is unreachable, plan cache and shared run lock disabled", "address", cfg.Redis.Address, "error", err)
			_ = redisClient.Close()
			redisClient = nil
		} else {
			ttl := time.Duration(cfg.Redis.CacheTTLSeconds) * time.Second
			planCache = cache.NewPlanCache(redisClient.Client, ttl)
			locker = cache.NewRedisLock(redisClient.Client, reconcileLockKey, 30*time.Minute)
			slog.Info("Redis connected", "address", cfg.Redis.Address, "plan_cache_ttl", ttl.String())
		}
	}

	mailer, err := email.New(ctx, cfg)
	if err != nil {
		slog.Error("Fatal: could not initialize the mailer", "provider", cfg.Email.Provider, "error", err)
		os.Exit(1)
	}
	notifier := email.NewNotifier(mailer, cfg.SiteName, cfg.BaseURL)

	reconciler := membership.NewReconciler(db.SubscriptionStore{}, notifier, locker, membership.Options{
		NoticeWindow: noticeWindow(cfg),
		SendTimeout:  cfg.EmailSendTimeout(),
	})

	var gateway handlers.StatusChecker
	if cfg.Esewa.VerifyWithGateway {
		gateway = esewa.NewClient(cfg.Esewa.StatusURL, cfg.Esewa.ProductCode,
			time.Duration(cfg.Esewa.RequestTimeoutSeconds)*time.Second)
		slog.Info("eSewa status verification enabled", "status_url", cfg.Esewa.StatusURL)
	}

	sessionManager := scs.New()
	sessionManager.Store = mysqlstore.New(db.DB)
	sessionManager.Lifetime = 24 * time.Hour
	sessionManager.Cookie.Name = "gymhub_session"
	sessionManager.Cookie.HttpOnly = true
	sessionManager.Cookie.Persist = true
	sessionManager.Cookie.SameSite = http.SameSiteLaxMode
	sessionManager.Cookie.Secure = cfg.IsProduction()
	sessionManager.Cookie.Path = "/"
	slog.Info("Session manager initialized", "store", "mysqlstore", "lifetime", sessionManager.Lifetime, "secure_cookie", sessionManager.Cookie.Secure)

	plans := catalog.NewService(db.PlanStore{}, planCache)
	app := handlers.NewAppHandlers(cfg, sessionManager, plans, reconciler, notifier, gateway)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	if err := limiter.TrustProxies(cfg.RateLimit.TrustedProxies); err != nil {
		slog.Error("Invalid rate_limit.trusted_proxies", "error", err)
		os.Exit(1)
	}
	limiter.StartCleanup(ctx)

	mux := routes(app, limiter)
	handler := sessionManager.LoadAndSave(
		middleware.NoSurfMiddleware(middleware.RequestLogger(mux), cfg.IsProduction(), csrfExemptPaths...),
	)

	var scheduler *membership.Scheduler
	if interval := cfg.ReconcileInterval(); interval > 0 {
		scheduler = membership.NewScheduler(reconciler, interval)
		scheduler.Start(ctx)
	} else {
		slog.Info("In-process reconciliation disabled, trigger it via cron")
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("GymHub server listening", "address", fmt.Sprintf("http://localhost%s", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		slog.Error("Fatal: HTTP server failed", "address", addr, "error", err)
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	}

	if scheduler != nil {
		scheduler.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			slog.Warn("Failed to close Redis client", "error", err)
		}
	}
	slog.Info("GymHub server stopped")
}

func routes(app *handlers.AppHandlers, limiter *middleware.RateLimiter) *http.ServeMux {
	requireAuth := middleware.RequireAuthentication(app.SessionManager)
	requireAdmin := middleware.RequireRole(models.RoleAdmin)
	injectUser := middleware.InjectUserData(app.SessionManager)
	limit := limiter.Limit

	authed := func(h http.HandlerFunc) http.Handler { return requireAuth(h) }
	admin := func(h http.HandlerFunc) http.Handler { return requireAuth(requireAdmin(h)) }

	mux := http.NewServeMux()

	// Checkout and plans
	mux.HandleFunc("POST /api/payment/store", app.StorePaymentHandler)
	mux.Handle("GET /api/payment/{refId}", authed(app.PaymentStatusHandler))
	mux.HandleFunc("POST /api/esewa/sign", app.EsewaSignHandler)
	mux.HandleFunc("POST /api/esewa/verify", app.EsewaVerifyHandler)
	mux.HandleFunc("GET /api/subscriptions/check-expiration", app.CheckExpirationHandler)
	mux.HandleFunc("POST /api/subscriptions/check-expiration", app.CheckExpirationHandler)
	mux.Handle("GET /api/subscription", injectUser(http.HandlerFunc(app.ListPlansHandler)))
	mux.HandleFunc("GET /api/subscription/{id}", app.GetPlanHandler)

	// Auth
	mux.Handle("POST /api/register", limit(http.HandlerFunc(app.RegisterHandler)))
	mux.Handle("POST /api/login", limit(http.HandlerFunc(app.LoginHandler)))
	mux.HandleFunc("POST /api/logout", app.LogoutHandler)
	mux.HandleFunc("GET /api/csrf-token", app.CSRFTokenHandler)
	mux.Handle("POST /api/forgot-password", limit(http.HandlerFunc(app.ForgotPasswordHandler)))
	mux.Handle("POST /api/reset-password", limit(http.HandlerFunc(app.ResetPasswordHandler)))

	// Current user
	mux.Handle("GET /api/me", authed(app.MeHandler))
	mux.Handle("PUT /api/me", authed(app.UpdateProfileHandler))
	mux.Handle("POST /api/me/password", authed(app.ChangePasswordHandler))
	mux.Handle("GET /api/me/subscriptions", authed(app.MySubscriptionsHandler))
	mux.Handle("GET /api/me/payments", authed(app.MyPaymentsHandler))
	mux.Handle("GET /api/me/access", requireAuth(middleware.RequireActiveSubscription(http.HandlerFunc(app.MyAccessHandler))))

	// Public content
	mux.HandleFunc("GET /api/trainers", app.ListTrainersHandler)
	mux.HandleFunc("GET /api/reviews", app.ListReviewsHandler)
	mux.Handle("POST /api/reviews", limit(http.HandlerFunc(app.CreateReviewHandler)))
	mux.Handle("POST /api/contact", limit(http.HandlerFunc(app.ContactHandler)))

	// Admin
	mux.Handle("POST /api/admin/setup", limit(adminhandlers.SetupHandler(app)))
	mux.Handle("GET /api/admin/users", admin(adminhandlers.ListUsersHandler(app)))
	mux.Handle("POST /api/admin/users", admin(adminhandlers.CreateUserHandler(app)))
	mux.Handle("GET /api/admin/users/{id}", admin(adminhandlers.GetUserHandler(app)))
	mux.Handle("PUT /api/admin/users/{id}", admin(adminhandlers.UpdateUserHandler(app)))
	mux.Handle("DELETE /api/admin/users/{id}", admin(adminhandlers.DeleteUserHandler(app)))
	mux.Handle("GET /api/admin/subscriptions", admin(adminhandlers.ListPlansHandler(app)))
	mux.Handle("POST /api/admin/subscriptions", admin(adminhandlers.CreatePlanHandler(app)))
	mux.Handle("GET /api/admin/subscriptions/{id}", admin(adminhandlers.GetPlanHandler(app)))
	mux.Handle("PUT /api/admin/subscriptions/{id}", admin(adminhandlers.UpdatePlanHandler(app)))
	mux.Handle("DELETE /api/admin/subscriptions/{id}", admin(adminhandlers.DeletePlanHandler(app)))
	mux.Handle("GET /api/admin/payments", admin(adminhandlers.ListPaymentsHandler(app)))
	mux.Handle("GET /api/admin/stats", admin(adminhandlers.StatsHandler(app)))
	mux.Handle("POST /api/admin/trainers", admin(adminhandlers.CreateTrainerHandler(app)))
	mux.Handle("DELETE /api/admin/trainers/{id}", admin(adminhandlers.DeleteTrainerHandler(app)))
	mux.Handle("GET /api/admin/contacts", admin(adminhandlers.ListContactsHandler(app)))
	mux.Handle("GET /api/admin/settings", admin(adminhandlers.ListSettingsHandler(app)))
	mux.Handle("PUT /api/admin/settings", admin(adminhandlers.UpdateSettingsHandler(app)))

	// Ops
	mux.HandleFunc("GET /healthz", app.HealthzHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// noticeWindow reads renewal_notice_days on every run so admin changes apply
// without a restart.
func noticeWindow(cfg *config.Config) func(context.Context) time.Duration {
	return func(ctx context.Context) time.Duration {
		days := db.GetSettingInt(ctx, db.SettingRenewalNoticeDays, cfg.Reconcile.NoticeWindowDays)
		return time.Duration(days) * 24 * time.Hour
	}
}

func promoteFirstAdmin(ctx context.Context, email string) {
	if email == "" {
		slog.Info("FIRST_ADMIN_EMAIL is not set, no admin is promoted at startup.")
		return
	}
	user, err := db.GetUserByEmail(ctx, email)
	if err != nil {
		slog.Error("Failed to look up the first admin", "email", email, "error", err)
		return
	}
	if user == nil {
		slog.Info("First admin has not registered yet, the role is granted on registration", "email", email)
		return
	}
	if user.IsAdmin() {
		slog.Info("User is already an admin", "email", email)
		return
	}
	if err := db.SetUserRole(ctx, user.ID, models.RoleAdmin); err != nil {
		slog.Error("Failed to promote the first admin", "email", email, "error", err)
		return
	}
	slog.Info("First admin promoted", "email", email)
}
