package config

type StoreConfig interface {
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetDatabaseURL() string
	GetDBMaxConns() int
	GetRunMigrations() bool
}

type Stores struct{}

var _ StoreConfig = Stores{}

// GetRedisAddr returns an empty string when no Redis is configured, in which
// case the process falls back to the in-memory cache.
func (Stores) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "")
}

func (Stores) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Stores) GetRedisDB() int {
	return GetEnvInt("REDIS_DB", 0)
}

// GetDatabaseURL returns an empty string when no Postgres is configured, in
// which case in-memory repositories are used.
func (Stores) GetDatabaseURL() string {
	return GetEnv("DATABASE_URL", "")
}

func (Stores) GetDBMaxConns() int {
	return GetEnvInt("DB_MAX_CONNS", 10)
}

func (Stores) GetRunMigrations() bool {
	return GetEnvBool("RUN_MIGRATIONS", true)
}
