package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/hbomb79/Reel/pkg/logger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	sqldblogger "github.com/simukti/sqldb-logger"
)

const (
	SQLDialect          = "postgres"
	SQLConnectionString = "host=%s user=%s password=%s dbname=%s port=%s sslmode=disable"
)

var (
	//go:embed migrations/*.sql
	migrations embed.FS

	dbLogger = logger.Get("DB")

	ErrNotConnected = errors.New("database manager has not yet connected")
)

type (
	// DatabaseConfig is a subset of the configuration focusing solely
	// on database connection items
	DatabaseConfig struct {
		User     string `yaml:"username" env:"DB_USERNAME" env-required:"true"`
		Password string `yaml:"password" env:"DB_PASSWORD" env-required:"true"`
		Name     string `yaml:"name" env:"DB_NAME" env-default:"REEL_DB"`
		Host     string `yaml:"host" env:"DB_HOST" env-default:"0.0.0.0"`
		Port     string `yaml:"port" env:"DB_PORT" env-default:"5432"`
	}

	// Queryable is the subset of sqlx functionality that the stores
	// rely on. Both *sqlx.DB and *sqlx.Tx satisfy it, which allows
	// store methods to be composed inside of a transaction.
	Queryable interface {
		sqlx.Ext
		sqlx.ExtContext
		Get(dest any, query string, args ...any) error
		GetContext(ctx context.Context, dest any, query string, args ...any) error
		Select(dest any, query string, args ...any) error
		SelectContext(ctx context.Context, dest any, query string, args ...any) error
		NamedExec(query string, arg any) (sql.Result, error)
		NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	}

	SqlLogger struct {
		logger logger.Logger
	}

	Manager interface {
		Connect(DatabaseConfig) error
		GetSqlxDB() *sqlx.DB
		WrapTx(context.Context, func(*sqlx.Tx) error) error
		Close() error
	}

	manager struct {
		rawDB *sql.DB
		db    *sqlx.DB
	}
)

func New() *manager {
	return &manager{}
}

func (db *manager) Connect(config DatabaseConfig) error {
	dsn := fmt.Sprintf(SQLConnectionString, config.Host, config.User, config.Password, config.Name, config.Port)
	sql, err := sql.Open(SQLDialect, dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	sql = sqldblogger.OpenDriver(dsn, sql.Driver(), &SqlLogger{dbLogger})

	attempt := 1
	for {
		err := sql.Ping()
		if err != nil {
			if attempt >= 5 {
				dbLogger.Emit(logger.ERROR, "All attempts FAILED!\n")
				return err
			}

			dbLogger.Emit(logger.WARNING, "Attempt (%v/5) failed... Retrying in 3s\n", attempt)
			attempt++
			time.Sleep(time.Second * 3)
			continue
		}

		db.rawDB = sql
		db.db = sqlx.NewDb(sql, SQLDialect)

		break
	}

	if err := db.ExecuteMigrations(); err != nil {
		return err
	}

	dbLogger.Emit(logger.SUCCESS, "Database connection complete!\n")
	return nil
}

// ExecuteMigrations uses the comp-time embedded SQL migrations (found in the 'migrations'
// dir in this package) and runs them against the current DB instance.
//
// Note that this method must only be called following a successful DB connection.
func (db *manager) ExecuteMigrations() error {
	if db.rawDB == nil {
		return fmt.Errorf("cannot execute migrations: %w", ErrNotConnected)
	}

	return Migrate(db.rawDB)
}

// Migrate runs all pending embedded migrations against the
// provided database.
func Migrate(rawDB *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(&gooseLogger{dbLogger})
	if err := goose.SetDialect(SQLDialect); err != nil {
		return fmt.Errorf("failed to set dialect for DB migration: %w", err)
	}

	dbLogger.Emit(logger.INFO, "Checking for pending DB migrations...\n")
	if err := goose.Up(rawDB, "migrations"); err != nil {
		return fmt.Errorf("failed to migrate DB: %w", err)
	}

	dbLogger.Emit(logger.SUCCESS, "DB Goose migration complete!\n")
	return nil
}

// GetSqlxDB returns the sqlx database connection if
// one has been opened using 'Connect'. Otherwise, nil is returned
func (db *manager) GetSqlxDB() *sqlx.DB {
	return db.db
}

// WrapTx is a convenience method around the top-level WrapTx, which simply
// uses the managers DB instance as the first argument.
func (db *manager) WrapTx(ctx context.Context, f func(tx *sqlx.Tx) error) error {
	if db.db == nil {
		return ErrNotConnected
	}

	return WrapTx(ctx, db.db, f)
}

func (db *manager) Close() error {
	if db.db == nil {
		return nil
	}

	return db.db.Close()
}

func (l *SqlLogger) Log(_ context.Context, level sqldblogger.Level, msg string, data map[string]any) {
	template := "%s - %v\n"
	switch level {
	case sqldblogger.LevelTrace:
		l.logger.Verbosef(template, msg, data)
	case sqldblogger.LevelDebug, sqldblogger.LevelInfo:
		duration := data["duration"]
		query, ok := data["query"]
		if ok {
			l.logger.Verbosef("%s [%.2fms] -- %s\n", msg, duration, query)
		} else {
			l.logger.Verbosef("%s [%.2fms]\n", msg, duration)
		}
	case sqldblogger.LevelError:
		l.logger.Errorf(template, msg, data)
	}
}

// WrapTx starts a transaction against the provided DB, and then calls the user
// provided function. If this function errors, the transaction is rolled back - otherwise
// the transaction is committed.
func WrapTx(ctx context.Context, db *sqlx.DB, f func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := f(tx); err != nil {
		dbLogger.Errorf("Transaction failed... rolling back. Error: %s\n", err.Error())
		return err
	}

	return tx.Commit()
}

// InExec is a convenience method which combines sqlx's `In` method
// and the `Exec` of the output query. Rebinding of the
// query is handled automatically, and errors resulting from
// either step will be returned.
func InExec(db Queryable, query string, args ...any) error {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return err
	}

	if _, err := db.Exec(db.Rebind(q), a...); err != nil {
		return err
	}

	return nil
}

// gooseLogger adapts our logger to the std-lib shaped
// logger that goose expects.
type gooseLogger struct{ logger.Logger }

func (l *gooseLogger) Fatal(v ...any)                 { l.Emit(logger.FATAL, "%s\n", fmt.Sprint(v...)) }
func (l *gooseLogger) Fatalf(format string, v ...any) { l.Emit(logger.FATAL, format, v...) }
func (l *gooseLogger) Print(v ...any)                 { l.Emit(logger.INFO, "%s\n", fmt.Sprint(v...)) }
func (l *gooseLogger) Println(v ...any)               { l.Emit(logger.INFO, "%s\n", fmt.Sprint(v...)) }
func (l *gooseLogger) Printf(format string, v ...any) { l.Emit(logger.INFO, format, v...) }
