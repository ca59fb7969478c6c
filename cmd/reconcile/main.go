// cmd/reconcile/main.go
//
// reconcile runs a single subscription check and exits. It is meant for cron
// when the server's in-process ticker is disabled.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gymhub.np/internal/cache"
	"gymhub.np/internal/config"
	"gymhub.np/internal/db"
	"gymhub.np/internal/email"
	"gymhub.np/internal/membership"

	_ "github.com/go-sql-driver/mysql"
)

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Subscription check failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	if err := db.Connect(ctx, cfg); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Shutdown()

	var locker membership.Locker = &cache.LocalLock{}
	if cfg.Redis.Enabled() {
		rc := cache.NewRedis(cfg.Redis)
		defer rc.Close()
		if err := rc.Ping(ctx); err != nil {
			slog.Warn("Redis is unreachable, running without the shared lock", "error", err)
		} else {
			locker = cache.NewRedisLock(rc.Client, "locks:reconcile", 30*time.Minute)
		}
	}

	mailer, err := email.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}
	notifier := email.NewNotifier(mailer, cfg.SiteName, cfg.BaseURL)

	reconciler := membership.NewReconciler(db.SubscriptionStore{}, notifier, locker, membership.Options{
		NoticeWindow: func(ctx context.Context) time.Duration {
			days := db.GetSettingInt(ctx, db.SettingRenewalNoticeDays, cfg.Reconcile.NoticeWindowDays)
			return time.Duration(days) * 24 * time.Hour
		},
		SendTimeout: cfg.EmailSendTimeout(),
	})

	res, err := reconciler.Run(ctx)
	if err != nil {
		return err
	}
	slog.Info("Subscription check finished",
		"emailsSent", res.EmailsSent,
		"subscriptionsUpdated", res.SubscriptionsUpdated,
		"expiring", res.Expiring,
		"expired", res.Expired,
		"skipped", res.Skipped,
	)
	return nil
}
