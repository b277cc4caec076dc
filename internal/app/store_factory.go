package app

import (
	"fmt"
	"strings"

	"github.com/shrimpsizemoose/milestones/internal/store"
	"github.com/shrimpsizemoose/milestones/internal/store/postgres"
	"github.com/shrimpsizemoose/milestones/internal/store/redis"
	"github.com/shrimpsizemoose/milestones/internal/store/sqlite"
)

func dbType(dsn string) store.DatabaseType {
	switch {
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		return store.DBTypeRedis
	case strings.HasPrefix(dsn, "postgres"):
		return store.DBTypePostgres
	default:
		return store.DBTypeSQLite
	}
}

func dsnScheme(dsn string) string {
	return string(dbType(dsn))
}

func NewStore(config *Config) (store.RosterStore, error) {
	dbConfig := &store.DBConfig{
		DSN:           config.Storage.DSN,
		Type:          dbType(config.Storage.DSN),
		Key:           config.Storage.Key,
		MigrationsDir: config.Storage.MigrationsDir,
	}

	switch dbConfig.Type {
	case store.DBTypeRedis:
		return redis.NewRedisStore(dbConfig, redis.Timeouts{
			Dial:  config.timeouts.dial,
			Read:  config.timeouts.read,
			Write: config.timeouts.write,
		})
	case store.DBTypePostgres:
		return postgres.NewPostgresStore(dbConfig)
	case store.DBTypeSQLite:
		return sqlite.NewSQLiteStore(dbConfig)
	default:
		return nil, fmt.Errorf("unable to determine database type from DSN: %s", config.Storage.DSN)
	}
}
