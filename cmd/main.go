/**
 * @description
 * This is the main entry point for the fraud-service. It is responsible for
 * initializing all components of the service: configuration, the database pool and
 * schema, the optional Redis velocity index, RabbitMQ producer and consumer, the FCM
 * push client, the risk pipeline and the HTTP server. It wires everything together
 * and starts the service.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Optional velocity index.
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/fcmclient: Firebase Cloud Messaging client.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/transfa/fraud-service/internal/api"
	"github.com/transfa/fraud-service/internal/app"
	"github.com/transfa/fraud-service/internal/config"
	"github.com/transfa/fraud-service/internal/domain"
	"github.com/transfa/fraud-service/internal/store"
	"github.com/transfa/fraud-service/pkg/fcmclient"
	rmrabbit "github.com/transfa/fraud-service/pkg/rabbitmq"
)

func main() {
	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found; using environment variables\"")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if cfg.WebhookAPIKey == "" {
		log.Println("level=warn component=bootstrap msg=\"webhook api key not configured; ingress will reject every request\" env=WEBHOOK_API_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting fraud-service\" port=%s velocity_backend=%s", cfg.ServerPort, cfg.VelocityBackend)

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	// Disable prepared statement caching to prevent conflicts behind poolers
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.EnsureSchema(schemaCtx, dbpool); err != nil {
		cancelSchema()
		log.Fatalf("level=fatal component=bootstrap msg=\"schema setup failed\" err=%v", err)
	}
	cancelSchema()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	repository := store.NewPostgresRepository(dbpool)

	var counter app.ActivityCounter = repository
	if cfg.VelocityBackend == config.VelocityBackendRedis {
		if redisClient := connectRedis(cfg.RedisURL); redisClient != nil {
			defer redisClient.Close()
			counter = app.NewRedisActivityCounter(redisClient, cfg.RedisVelocityPrefix)
		}
	}

	var publisher rmrabbit.Publisher
	rabbitProducer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		publisher = &rmrabbit.EventProducerFallback{}
	} else {
		publisher = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}
	defer publisher.Close()

	var dispatcher *app.NotificationDispatcher
	if strings.TrimSpace(cfg.GoogleServiceAccountJSON) == "" {
		log.Println("level=warn component=bootstrap msg=\"firebase credentials missing; push notifications disabled\" env=GOOGLE_SERVICE_ACCOUNT_JSON")
	} else {
		pushClient, pushErr := fcmclient.NewClient(context.Background(), cfg.GoogleServiceAccountJSON)
		if pushErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"firebase init failed; push notifications disabled\" err=%v", pushErr)
		} else {
			dispatcher = app.NewNotificationDispatcher(repository, pushClient, cfg.FCMSendTimeout())
		}
	}

	pipeline := app.NewPipeline(
		counter,
		app.NewRiskEvaluator(cfg.RiskLocation()),
		app.NewAlertRecorder(repository),
		dispatcher,
		publisher,
		cfg.EventsExchange,
	)
	ingestService := app.NewIngestService(repository, publisher, cfg.EventsExchange, pipeline)

	if rabbitProducer != nil {
		rabbitConsumer, consumerErr := rmrabbit.NewConsumer(cfg.RabbitMQURL)
		if consumerErr != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"rabbitmq consumer init failed\" err=%v", consumerErr)
		}
		defer rabbitConsumer.Close()

		transactionConsumer := app.NewTransactionEventConsumer(pipeline, cfg.PipelineTimeout())
		bindings := map[string]rmrabbit.Handler{
			domain.RoutingKeyTransactionWritten: transactionConsumer.HandleMessage,
		}
		if err := rabbitConsumer.ConsumeWithBindings(cfg.EventsExchange, cfg.TransactionEventQueue, 16, bindings); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"transaction consumer start failed\" err=%v", err)
		}
		log.Printf("level=info component=bootstrap msg=\"transaction consumer started\" exchange=%s queue=%s", cfg.EventsExchange, cfg.TransactionEventQueue)
	} else {
		log.Println("level=warn component=bootstrap msg=\"transaction consumer disabled; webhook writes are evaluated inline\"")
	}

	handlers := api.NewTransactionHandlers(ingestService)
	router := api.NewRouter(handlers, api.RouterOptions{
		WebhookAPIKey:  cfg.WebhookAPIKey,
		AllowedOrigins: cfg.AllowedOrigins(),
	})

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}

// connectRedis returns nil when Redis is unreachable; the caller keeps the
// PostgreSQL velocity count in that case.
func connectRedis(redisURL string) *redis.Client {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; using postgres velocity count\" err=%v", err)
		return nil
	}

	client := redis.NewClient(options)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis ping failed; using postgres velocity count\" err=%v", err)
		client.Close()
		return nil
	}

	log.Println("level=info component=bootstrap msg=\"redis connected\"")
	return client
}
