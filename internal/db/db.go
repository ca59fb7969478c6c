// internal/db/db.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gymhub.np/internal/config"
	"gymhub.np/internal/models"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

var DB *sql.DB

var errNotInitialized = errors.New("database is not initialized")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MySQL server error numbers the stores translate.
const (
	errDuplicateEntry   = 1062
	errNoReferencedRow  = 1452
	defaultMaxOpenConns = 10
)

func isMySQLError(err error, number uint16) bool {
	var mysqlErr *mysqldriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == number
}

func RunMigrations(dbConn *sql.DB, dbName string) error {
	driverInstance, err := mysql.WithInstance(dbConn, &mysql.Config{
		DatabaseName: dbName,
	})
	if err != nil {
		return fmt.Errorf("failed to create mysql migration driver: %w", err)
	}

	// db.go lives in internal/db, the migrations directory is two levels up.
	_, currentFilePath, _, ok := runtime.Caller(0)
	if !ok {
		return fmt.Errorf("could not resolve the migrations path")
	}
	projectRoot := filepath.Join(filepath.Dir(currentFilePath), "..", "..")
	migrationsPath := filepath.Join(projectRoot, "migrations")

	migrationsURL := "file://" + migrationsPath
	slog.Info("Resolved migrations path", "path", migrationsPath)

	m, err := migrate.NewWithDatabaseInstance(migrationsURL, "mysql", driverInstance)
	if err != nil {
		slog.Error("Failed to create migrate instance", "url", migrationsURL, "dbName", dbName, "error", err)
		return fmt.Errorf("failed to create migrate instance for '%s': %w", migrationsURL, err)
	}

	slog.Info("Applying migrations...", "path", migrationsURL)
	err = m.Up()

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		version, dirty, verr := m.Version()
		if verr != nil {
			slog.Error("Failed to read migration status after Up", "migration_error", err, "status_error", verr)
		} else {
			slog.Error("Migrations failed", "current_version", version, "dirty_state", dirty, "error_up", err)
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info("Migrations: no change.")
	} else {
		slog.Info("Migrations applied.")
	}

	return nil
}

// BuildDSN prefers DATABASE_DSN and otherwise assembles one from the host fields.
func BuildDSN(dbCfg config.DatabaseConfig) (string, error) {
	if dbCfg.Path != "" {
		dsn := dbCfg.Path
		if !strings.Contains(dsn, "parseTime=true") {
			dsn = appendDSNParam(dsn, "parseTime=true")
		}
		if !strings.Contains(dsn, "multiStatements=true") {
			dsn = appendDSNParam(dsn, "multiStatements=true")
		}
		return dsn, nil
	}
	if dbCfg.Host == "" || dbCfg.User == "" || dbCfg.DBName == "" {
		return "", fmt.Errorf("database connection needs DATABASE_DSN or host, user and dbname")
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&multiStatements=true",
		dbCfg.User,
		dbCfg.Password,
		dbCfg.Host,
		dbCfg.Port,
		dbCfg.DBName,
	), nil
}

func appendDSNParam(dsn, param string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + param
	}
	return dsn + "?" + param
}

// Connect opens the shared pool, applies migrations and seeds roles and settings.
func Connect(ctx context.Context, appConfig *config.Config) error {
	dbCfg := appConfig.Database

	dsn, err := BuildDSN(dbCfg)
	if err != nil {
		return err
	}
	safeDSN := dsn
	if dbCfg.Password != "" {
		safeDSN = strings.Replace(dsn, dbCfg.Password, "****", 1)
	}
	slog.Info("Connecting to MySQL", "dsn", safeDSN)

	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	maxOpen := dbCfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	conn.SetConnMaxLifetime(time.Minute * 3)
	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(maxOpen)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err = conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to reach MySQL: %w", err)
	}
	slog.Info("Connected to MySQL.")

	dbName := dbCfg.DBName
	if dbName == "" {
		if parsed, perr := mysqldriver.ParseDSN(dsn); perr == nil {
			dbName = parsed.DBName
		}
	}
	if err = RunMigrations(conn, dbName); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	DB = conn

	if err = ensureSessionsTable(ctx); err != nil {
		slog.Error("Failed to create the sessions table", "error", err)
	}

	defaultRoles := []models.Role{
		{Name: models.RoleUser, Description: "Gym member"},
		{Name: models.RoleAdmin, Description: "Gym staff with full access"},
	}
	for _, r := range defaultRoles {
		if _, errRole := CreateRoleIfNotExists(ctx, &r); errRole != nil {
			slog.Warn("Failed to seed default role", "role_name", r.Name, "error", errRole)
		}
	}

	SeedInitialSettings(ctx, appConfig)

	slog.Info("Database initialized.")
	return nil
}

// ensureSessionsTable creates the table scs/mysqlstore expects.
func ensureSessionsTable(ctx context.Context) error {
	createTableSQL := `CREATE TABLE IF NOT EXISTS sessions (
		token CHAR(43) PRIMARY KEY,
		data BLOB NOT NULL,
		expiry TIMESTAMP(6) NOT NULL
	);`
	createIndexSQL := `CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions (expiry);`

	if _, err := DB.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	if _, err := DB.ExecContext(ctx, createIndexSQL); err != nil {
		slog.Warn("Failed to create sessions_expiry_idx", "error", err)
	}
	return nil
}

// Ping reports whether the pool can reach the server.
func Ping(ctx context.Context) error {
	if DB == nil {
		return errNotInitialized
	}
	return DB.PingContext(ctx)
}

// Shutdown closes the shared pool. It is safe to call more than once.
func Shutdown() {
	if DB == nil {
		return
	}
	if err := DB.Close(); err != nil {
		slog.Error("Failed to close database pool", "error", err)
	}
	DB = nil
	slog.Info("Database pool closed.")
}
