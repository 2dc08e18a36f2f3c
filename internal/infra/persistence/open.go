// Package persistence selects a durable backend for the directory from
// process environment.
package persistence

import (
	"fmt"
	"os"

	"userdir/internal/infra/persistence/memory"
	"userdir/internal/infra/persistence/postgres"
	"userdir/internal/infra/persistence/sqlite"
	"userdir/pkg/domain"
)

// Driver identifies a persistence backend implementation.
type Driver string

const (
	// DriverMemory keeps state in process memory only.
	DriverMemory Driver = "memory"
	// DriverSQLite snapshots state to a local SQLite file.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres snapshots state to a Postgres database.
	DriverPostgres Driver = "postgres"
)

// Open selects a persistence implementation using environment variables.
//
//	USERDIR_DB_DRIVER: memory|sqlite|postgres (default memory)
//	USERDIR_SQLITE_PATH: database file when driver=sqlite (default userdir.db)
//	USERDIR_POSTGRES_DSN: connection string when driver=postgres
func Open(engine *domain.RulesEngine) (domain.PersistentStore, error) {
	driver := os.Getenv("USERDIR_DB_DRIVER")
	if driver == "" {
		driver = string(DriverMemory)
	}
	switch Driver(driver) {
	case DriverMemory:
		return memory.NewStore(engine), nil
	case DriverSQLite:
		return sqlite.NewStore(os.Getenv("USERDIR_SQLITE_PATH"), engine)
	case DriverPostgres:
		return postgres.NewStore(os.Getenv("USERDIR_POSTGRES_DSN"), engine)
	default:
		return nil, fmt.Errorf("unknown db driver %s", driver)
	}
}
