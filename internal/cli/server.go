package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"quizzly-service/internal/app"
	"quizzly-service/internal/auth"
	"quizzly-service/internal/config"
	"quizzly-service/internal/generator"
	"quizzly-service/internal/infra/amqp"
	"quizzly-service/internal/infra/memory"
	"quizzly-service/internal/infra/mongo"
	"quizzly-service/internal/infra/postgres"
	rediscache "quizzly-service/internal/infra/redis"
	"quizzly-service/internal/logging"
	"quizzly-service/internal/metrics"
	transport "quizzly-service/internal/transport/http"
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
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.New("quizzly", cfg.Log.Level, cfg.Log.Format)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	store, parents, closeStore, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	closers = append(closers, closeStore)

	quizzes := store
	cacheTTL := config.Duration(cfg.Quiz.CacheTTL, 30*time.Second)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = client.Close() })
		quizzes = rediscache.NewQuizRepository(client, store, config.Duration(cfg.Redis.TTL, cacheTTL), log)
		log.WithField("addr", cfg.Redis.Addr).Info("caching quizzes in redis")
	} else if cfg.Store.Driver != config.DriverMemory {
		quizzes = memory.NewCachedQuizRepository(store, cacheTTL)
	}

	var gen app.QuestionGenerator = generator.NewSample()
	if cfg.Generator.APIKey != "" {
		gen = generator.NewGemini(generator.GeminiConfig{
			APIKey:  cfg.Generator.APIKey,
			BaseURL: cfg.Generator.BaseURL,
			Model:   cfg.Generator.Model,
			Timeout: config.Duration(cfg.Generator.Timeout, generator.DefaultTimeout),
		}, log)
	} else {
		log.Warn("GEMINI_API_KEY not set, generating sample arithmetic questions")
	}

	m := metrics.New()
	var events app.EventPublisher = app.NopPublisher{}
	if cfg.Events.AMQPURL != "" {
		pub, err := amqp.NewPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange, log)
		if err != nil {
			return err
		}
		closers = append(closers, pub.Close)
		events = pub
	}
	events = m.Publisher(events)

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, config.Duration(cfg.Auth.TokenTTL, auth.DefaultTokenTTL))
	if err != nil {
		return err
	}

	quizService := app.NewQuizService(quizzes, gen, events, log, app.QuizServiceConfig{
		FrontendURL:  cfg.Quiz.FrontendURL,
		MaxQuestions: cfg.Quiz.MaxQuestions,
	})
	parentService := app.NewParentService(parents, auth.NewBcryptHasher(bcrypt.DefaultCost), tokens, log)

	var origins []string
	if cfg.Quiz.FrontendURL != "" {
		origins = []string{cfg.Quiz.FrontendURL}
	}
	router := transport.NewRouter(quizService, parentService, m, log, transport.RouterConfig{
		AllowedOrigins: origins,
		PollInterval:   config.Duration(cfg.Leaderboard.PollInterval, 2*time.Second),
	})

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Quiz creation waits on the generator, so writes get its full budget.
		WriteTimeout: config.Duration(cfg.Generator.Timeout, generator.DefaultTimeout) + 15*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"port": finalPort, "store": cfg.Store.Driver}).Info("starting quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openStores connects the configured backing store. The returned func
// releases its connections.
func openStores(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (app.QuizRepository, app.ParentRepository, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		log.Warn("using in-memory store, data is lost on restart")
		return memory.NewQuizStore(), memory.NewParentStore(), func() {}, nil

	case config.DriverMongo:
		client, err := mongo.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, nil, nil, err
		}
		db := client.Database(cfg.Mongo.Database)
		quizzes, parents := mongo.NewQuizStore(db), mongo.NewParentStore(db)
		if err := quizzes.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, nil, fmt.Errorf("quiz indexes: %w", err)
		}
		if err := parents.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, nil, fmt.Errorf("parent indexes: %w", err)
		}
		return quizzes, parents, func() { _ = client.Disconnect(context.Background()) }, nil

	case config.DriverPostgres:
		if err := runMigrations(ctx, cfg, log); err != nil {
			return nil, nil, nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return postgres.NewQuizStore(pool), postgres.NewParentStore(pool), pool.Close, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
