package helpers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/hbomb79/Reel/internal/database"
	"github.com/labstack/gommon/random"
	"github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	User         = "postgres"
	Password     = "postgres"
	MasterDBName = "REEL_DB"
	AdminDBName  = "postgres"
)

var ctx = context.Background()

// DatabaseManager is a test helper which facilitates the templating of a
// single 'master' database in a shared postgresql docker instance. This
// allows tests to use individual databases without needing to create
// multiple instances of docker. This manager will:
//   - lazily spawn the container,
//   - migrate the master database,
//   - mark the master database as a template, and,
//   - provision new databases based off that master database.
type DatabaseManager struct {
	*sync.Mutex
	pgContainer *postgres.PostgresContainer
	host        string
	port        string
	connection  *sql.DB
}

func NewDatabaseManager() *DatabaseManager {
	return &DatabaseManager{Mutex: &sync.Mutex{}}
}

// Provision creates a new, migrated, empty database and returns the
// configuration required to connect to it. The test is skipped when
// running in short mode as a docker daemon is required.
func (manager *DatabaseManager) Provision(t *testing.T) database.DatabaseConfig {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	manager.Lock()
	defer manager.Unlock()

	if manager.connection == nil {
		t.Log("Database provisioning request received but manager not started yet. Initializing database management...")
		manager.spawnPostgres(t)
		manager.markMasterDB(t)
		manager.connect(t)
		t.Log("Database management initialised!")
	}

	databaseName := fmt.Sprintf("reel_test_%s", random.String(12, random.Lowercase))
	if _, err := manager.connection.Exec(fmt.Sprintf(`CREATE DATABASE "%s" TEMPLATE "%s"`, databaseName, MasterDBName)); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "42P04" {
			t.Fatalf("randomly generated database name '%s' already exists", databaseName)
		}

		t.Fatalf("failed to provision database '%s' based on template database '%s': (%T) %s", databaseName, MasterDBName, err, err)
	}

	return database.DatabaseConfig{
		User:     User,
		Password: Password,
		Name:     databaseName,
		Host:     manager.host,
		Port:     manager.port,
	}
}

// Teardown closes the admin connection and terminates the postgres container,
// if one was spawned.
func (manager *DatabaseManager) Teardown() {
	manager.Lock()
	defer manager.Unlock()

	if manager.connection != nil {
		_ = manager.connection.Close()
		manager.connection = nil
	}

	if manager.pgContainer != nil {
		if err := manager.pgContainer.Terminate(ctx); err != nil {
			fmt.Printf("WARNING: failed to terminate Postgres container: %s\n", err)
		}
		manager.pgContainer = nil
	}
}

func (manager *DatabaseManager) spawnPostgres(t *testing.T) {
	postgresC, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("docker.io/postgres:14.1-alpine"),
		postgres.WithDatabase(MasterDBName),
		postgres.WithUsername(User),
		postgres.WithPassword(Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
		testcontainers.WithHostConfigModifier(func(hostConfig *container.HostConfig) {
			hostConfig.Tmpfs = map[string]string{"/var/lib/postgresql/data": "rw"}
		}),
	)
	if err != nil {
		t.Fatalf("failed to start container: %s", err)
	}

	host, err := postgresC.Host(ctx)
	if err != nil {
		t.Fatalf("failed to resolve container host: %s", err)
	}
	port, err := postgresC.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to resolve container port: %s", err)
	}

	manager.pgContainer = postgresC
	manager.host = host
	manager.port = port.Port()
}

// markMasterDB migrates the master database and marks it as a template. The
// connection used is closed afterwards as postgres refuses to copy a template
// which has open connections.
func (manager *DatabaseManager) markMasterDB(t *testing.T) {
	master := manager.open(t, MasterDBName)
	defer master.Close()

	if err := database.Migrate(master); err != nil {
		t.Fatalf("failed to migrate master database: %s", err)
	}

	if _, err := master.Exec(fmt.Sprintf(`ALTER DATABASE "%s" WITH is_template TRUE`, MasterDBName)); err != nil {
		t.Fatalf("failed to mark master database (%s) as template: %s", MasterDBName, err)
	}
}

func (manager *DatabaseManager) connect(t *testing.T) {
	manager.connection = manager.open(t, AdminDBName)
	t.Log("Database connection established!")
}

func (manager *DatabaseManager) open(t *testing.T, name string) *sql.DB {
	dsn := fmt.Sprintf(database.SQLConnectionString, manager.host, User, Password, name, manager.port)
	db, err := sql.Open(database.SQLDialect, dsn)
	if err != nil {
		t.Fatalf("failed to open postgres connection: %s", err)
	}

	for attempt := 1; ; attempt++ {
		err := db.Ping()
		if err == nil {
			return db
		}
		if attempt >= 5 {
			t.Fatalf("all database connection attempts FAILED: %s", err)
		}

		t.Logf("DB connection attempt (%v/5) failed... Retrying in 1s", attempt)
		time.Sleep(time.Second)
	}
}
