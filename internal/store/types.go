package store

type DatabaseType string

const (
	DBTypePostgres DatabaseType = "postgres"
	DBTypeSQLite   DatabaseType = "sqlite"
	DBTypeRedis    DatabaseType = "redis"
)

type DBConfig struct {
	DSN           string
	Type          DatabaseType
	Key           string
	MigrationsDir string
}
