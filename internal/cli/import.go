package cli

import (
	"context"
	"fmt"
	"log"

	"evaluation-service/internal/config"
	"evaluation-service/internal/domain"
	fileloader "evaluation-service/internal/infra/file"
	mongoloader "evaluation-service/internal/infra/mongo"
	redisinfra "evaluation-service/internal/infra/redis"
	"evaluation-service/internal/infra/sqlstore"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const (
	targetSQL   = "sql"
	targetMongo = "mongo"
)

type evaluationImporter interface {
	ImportEvaluation(ctx context.Context, e domain.Evaluation) error
}

// NewImportCmd loads YAML question banks into the configured content store.
func NewImportCmd(configPath *string) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "import <file-or-dir>...",
		Short: "Import YAML question banks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), *configPath, target, args)
		},
	}
	cmd.Flags().StringVar(&target, "target", targetSQL, "where to store evaluations: sql or mongo")
	return cmd
}

func runImport(ctx context.Context, configPath, target string, paths []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var evaluations []domain.Evaluation
	for _, path := range paths {
		banks, err := fileloader.ReadBanks(path)
		if err != nil {
			return err
		}
		evaluations = append(evaluations, banks...)
	}
	for _, e := range evaluations {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("evaluation %s: %w", e.ID, err)
		}
	}

	importer, closeFn, err := openImporter(ctx, cfg, target)
	if err != nil {
		return err
	}
	defer closeFn()

	// Cached copies would otherwise keep serving the old content until their TTL.
	var cache *redis.Client
	if cfg.Redis.Addr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer cache.Close()
	}

	for _, e := range evaluations {
		if err := importer.ImportEvaluation(ctx, e); err != nil {
			return err
		}
		if cache != nil {
			if err := cache.Del(ctx, redisinfra.Key(e.ID)).Err(); err != nil {
				log.Printf("invalidate cached evaluation %s: %v", e.ID, err)
			}
		}
		log.Printf("imported evaluation %s (%d questions)", e.ID, len(e.Questions))
	}
	return nil
}

func openImporter(ctx context.Context, cfg config.Config, target string) (evaluationImporter, func(), error) {
	switch target {
	case targetSQL:
		db, err := openResultsDB(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if db == nil {
			return nil, nil, fmt.Errorf("no SQL database configured")
		}
		return sqlstore.NewStore(db), func() { _ = db.Close() }, nil
	case targetMongo:
		if cfg.Mongo.URI == "" {
			return nil, nil, fmt.Errorf("mongo uri not configured")
		}
		loader, client, err := mongoloader.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, nil, err
		}
		return loader, func() { _ = client.Disconnect(context.Background()) }, nil
	default:
		return nil, nil, fmt.Errorf("unknown import target %q", target)
	}
}
