package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"evaluation-service/internal/app"
	"evaluation-service/internal/domain"
	pgloader "evaluation-service/internal/infra/postgres"
	infraredis "evaluation-service/internal/infra/redis"
	"evaluation-service/internal/infra/sqlstore"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestReportingSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db, err := sqlstore.Open(sqlstore.DriverPostgres, pgURL)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := sqlstore.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := sqlstore.NewStore(db)
	if err := store.ImportEvaluation(ctx, sampleEvaluation()); err != nil {
		t.Fatalf("import: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	evaluations := infraredis.NewEvaluationRepository(redisClient, pgloader.NewEvaluationLoader(pool), 5*time.Minute)
	sessions := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	service := app.NewEvaluationService(sessions, evaluations,
		app.WithResultSink(app.MultiSink{store, infraredis.NewResultPublisher(redisClient, "", 100)}),
		app.WithResultReader(store),
	)

	session, err := service.Start(ctx, app.StartRequest{
		EvaluationID: "evacuation",
		Participant:  domain.Participant{ID: "u1", Name: "Alice"},
		Reporting:    true,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if n, _ := redisClient.Exists(ctx, infraredis.Key("evacuation")).Result(); n != 1 {
		t.Fatalf("expected evaluation cached in redis")
	}
	if n, _ := redisClient.Exists(ctx, infraredis.SessionKey(session.ID)).Result(); n != 1 {
		t.Fatalf("expected session marker in redis")
	}

	if err := session.Engine.SelectAnswer(0, 1); err != nil {
		t.Fatalf("select: %v", err)
	}
	sub, err := session.Engine.RequestSubmit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !sub.NeedsConfirmation {
		t.Fatalf("expected confirmation with one unanswered question")
	}
	result, err := session.Engine.ConfirmSubmit()
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if result.Score != 10 || result.Passed {
		t.Fatalf("unexpected result %+v", result)
	}

	records, err := service.Results(ctx, "evacuation", 10)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(records) != 1 || records[0].Participant.Name != "Alice" || records[0].Result.Score != 10 {
		t.Fatalf("unexpected records %+v", records)
	}
	entries, err := redisClient.XRange(ctx, "evaluation:results", "-", "+").Result()
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one published result, got %d (%v)", len(entries), err)
	}

	if err := service.Close(session.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n, _ := redisClient.Exists(ctx, infraredis.SessionKey(session.ID)).Result(); n != 0 {
		t.Fatalf("expected session marker removed")
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "eval", "POSTGRES_PASSWORD": "evalpass", "POSTGRES_DB": "evaldb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://eval:evalpass@%s:%s/evaldb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func sampleEvaluation() domain.Evaluation {
	return domain.Evaluation{
		ID:               "evacuation",
		Title:            "Evacuation drill",
		TimeLimitSeconds: 300,
		Questions: []domain.Question{
			{
				Prompt: "Which exit do you use when the corridor is blocked?",
				Options: []domain.Option{
					{Text: "The lift"},
					{Text: "The marked secondary stairwell", Correct: true},
				},
			},
			{
				Prompt: "Who leads the headcount?",
				Options: []domain.Option{
					{Text: "The floor warden", Correct: true},
					{Text: "Whoever arrives first"},
				},
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
