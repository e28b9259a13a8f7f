package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quizpin-service/internal/app"
	"quizpin-service/internal/config"
	"quizpin-service/internal/domain"
	"quizpin-service/internal/infra/memory"
	mongoinfra "quizpin-service/internal/infra/mongo"
	pginfra "quizpin-service/internal/infra/postgres"
	redisinfra "quizpin-service/internal/infra/redis"
	transport "quizpin-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	// Backing store: the document store is the primary backend, the
	// Postgres JSONB tables the alternative, a static sample the demo
	// fallback.
	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	var submissions app.SubmissionRepository = memory.NewSubmissionStore()

	if cfg.Mongo.URI != "" {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		db := client.Database(cfg.Mongo.Database)
		loader = mongoinfra.NewQuizLoader(db)
		store := mongoinfra.NewSubmissionStore(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			return err
		}
		submissions = store
	} else if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = pginfra.NewQuizLoader(pool)
		submissions = pginfra.NewSubmissionStore(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
		submissions = redisinfra.NewSubmissionGuard(redisClient, submissions, redisTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	service := app.NewQuizService(quizRepo, submissions)
	wsHandler := transport.NewWSHandler(service)
	apiHandler := transport.NewAPIHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	apiHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quizpin service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides demo content when no backing store is
// configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:          "quiz-1",
			Title:       "Arithmetic warm-up",
			SchoolName:  "Demo School",
			TeacherName: "Ms. Demo",
			Major:       "Mathematics",
			PIN:         "DEMO01",
			Language:    "en",
			Questions: []domain.Question{
				{
					Text:               "What is 2 + 2?",
					Answers:            []string{"3", "4", "5"},
					CorrectAnswerIndex: 1,
				},
				{
					Text:               "What is 9 / 3?",
					Answers:            []string{"3", "6", "9", "1"},
					CorrectAnswerIndex: 0,
				},
			},
			HasTimeLimit:     true,
			TimeLimitMinutes: 5,
		},
	}
}
