package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"evaluation-service/internal/app"
	"evaluation-service/internal/config"
	amqppub "evaluation-service/internal/infra/amqp"
	fileloader "evaluation-service/internal/infra/file"
	"evaluation-service/internal/infra/memory"
	mongoloader "evaluation-service/internal/infra/mongo"
	pgloader "evaluation-service/internal/infra/postgres"
	redisinfra "evaluation-service/internal/infra/redis"
	"evaluation-service/internal/infra/sqlstore"
	"evaluation-service/internal/metrics"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
)

// runtime is the wired application plus everything that must be released on shutdown.
type runtime struct {
	service  *app.EvaluationService
	recorder *metrics.Recorder
	redis    *redis.Client
	store    *sqlstore.Store
	closers  []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// buildRuntime connects the configured backends. Anything left unconfigured
// falls back to its in-process implementation.
func buildRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	rt := &runtime{recorder: metrics.NewRecorder()}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	if cfg.Redis.Addr != "" {
		rt.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, func() { _ = rt.redis.Close() })
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 30*time.Minute)

	db, err := openResultsDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if db != nil {
		rt.store = sqlstore.NewStore(db)
		rt.closers = append(rt.closers, func() { _ = db.Close() })
	}

	var loaders memory.ChainLoader
	if cfg.Mongo.URI != "" {
		loader, client, err := mongoloader.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = client.Disconnect(context.Background()) })
		loaders = append(loaders, loader)
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)
		loaders = append(loaders, pgloader.NewEvaluationLoader(pool))
	} else if rt.store != nil {
		loaders = append(loaders, rt.store)
	}
	if dir := cfg.Evaluation.BankDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			loaders = append(loaders, fileloader.NewEvaluationLoader(dir))
		} else {
			log.Printf("bank directory %s not found, skipping file banks", dir)
		}
	}

	evaluationTTL := config.TTLDuration(cfg.Evaluation.TTL, 10*time.Minute)
	var evaluations app.EvaluationRepository
	if rt.redis != nil {
		evaluations = redisinfra.NewEvaluationRepository(rt.redis, loaders, evaluationTTL)
	} else {
		evaluations = memory.NewEvaluationRepository(loaders, evaluationTTL)
	}

	var store app.SessionRepository
	if rt.redis != nil {
		store = redisinfra.NewSessionStore(rt.redis, redisTTL)
	} else {
		store = memory.NewSessionStore()
	}

	sinks := app.MultiSink{rt.recorder}
	var reader app.ResultReader
	if rt.store != nil {
		sinks = append(sinks, rt.store)
		reader = rt.store
	} else {
		results := memory.NewResultStore()
		sinks = append(sinks, results)
		reader = results
	}
	if rt.redis != nil {
		sinks = append(sinks, redisinfra.NewResultPublisher(rt.redis, cfg.Redis.ResultStream, 10000))
	}
	if cfg.AMQP.URL != "" {
		publisher, err := amqppub.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = publisher.Close() })
		sinks = append(sinks, publisher)
	}

	rt.service = app.NewEvaluationService(store, evaluations,
		app.WithResultSink(sinks),
		app.WithResultReader(reader),
		app.WithObserver(rt.recorder),
		app.WithDefaultMaxAttempts(cfg.Evaluation.MaxAttempts),
	)
	ok = true
	return rt, nil
}

// openResultsDB opens and migrates the SQL database for the configured results
// driver; it returns nil when results stay in memory.
func openResultsDB(ctx context.Context, cfg config.Config) (*bun.DB, error) {
	var db *bun.DB
	var err error
	switch driver := cfg.ResultsDriver(); driver {
	case config.ResultsMemory:
		return nil, nil
	case config.ResultsPostgres:
		if cfg.Postgres.URL == "" {
			return nil, fmt.Errorf("postgres url not configured")
		}
		db, err = sqlstore.Open(sqlstore.DriverPostgres, cfg.Postgres.URL)
	case config.ResultsSQLite:
		db, err = sqlstore.Open(sqlstore.DriverSQLite, sqliteDSN(cfg.SQLite.Path))
	default:
		return nil, fmt.Errorf("unknown results driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := sqlstore.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func sqliteDSN(path string) string {
	if path == "" {
		return ""
	}
	return "file:" + path + "?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
}
