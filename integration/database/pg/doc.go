// Package pg provides PostgreSQL connection management and the durable job
// storage backend for the queue system.
//
// Connect creates a pgx connection pool with retry logic and verifies
// connectivity with a ping before returning. Migrate applies the embedded
// goose migrations that create the jobs table. JobStorage implements
// queue.Storage on top of the pool; job claiming uses FOR UPDATE SKIP LOCKED
// so several worker processes can share one table without double-processing,
// and the claim itself increments the attempt counter atomically.
//
// # Configuration
//
// All configuration is handled through the Config struct with environment
// variable mapping:
//
//	type Config struct {
//		ConnectionString  string        `env:"PG_CONN_URL,required"`
//		MaxOpenConns      int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
//		MinIdleConns      int32         `env:"PG_MIN_IDLE_CONNS" envDefault:"2"`
//		HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD" envDefault:"1m"`
//		MaxConnIdleTime   time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"10m"`
//		MaxConnLifetime   time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"30m"`
//		RetryAttempts     int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`
//		RetryInterval     time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"5s"`
//	}
//
// # Usage
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, logger); err != nil {
//		return err
//	}
//
//	storage, err := pg.NewJobStorage(pool)
//	if err != nil {
//		return err
//	}
//	service, err := queue.NewService(storage)
package pg
