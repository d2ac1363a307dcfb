package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"chathub/internal/adapters/database"
	"chathub/internal/adapters/kafka"
	"chathub/internal/adapters/storage"
	"chathub/internal/api/handlers"
	"chathub/internal/api/routes"
	"chathub/internal/auth"
	"chathub/internal/config"
	"chathub/internal/conversation"
	"chathub/internal/ws"
	"chathub/pkg/logger"
)

func main() {
	// .env is optional; real deployments use environment variables.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("starting chathub server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewMySQLDB(cfg.Database)
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := database.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	minioClient, err := storage.NewClient(ctx, cfg.MinIO)
	if err != nil {
		log.Error("minio connection failed", "error", err)
		os.Exit(1)
	}

	producer, err := kafka.NewSyncProducer(cfg.Kafka)
	if err != nil {
		log.Error("kafka producer failed", "error", err)
		os.Exit(1)
	}
	defer producer.Close()
	mailPublisher := kafka.NewMailPublisher(producer, cfg.Kafka.MailTopic)

	// Services.
	authService := auth.NewService(
		auth.NewRepository(db),
		mailPublisher,
		cfg.JWT.Secret,
		cfg.JWT.ExpirationTime,
		cfg.OTP.TTL,
		log,
	)
	convService := conversation.NewService(conversation.NewRepository(db))

	// The websocket core: registries owned here, injected into the router.
	sessions := ws.NewSessionRegistry()
	presence := ws.NewPresenceTracker()
	rooms := ws.NewRoomRegistry()
	router := ws.NewRouter(
		sessions,
		presence,
		rooms,
		convService,
		authService,
		ws.NewRedisStatusPublisher(redisClient),
		cfg.JWT.ResolveTimeout,
		log,
	)
	hub := ws.NewHub(router, log)
	go hub.Run()
	defer hub.Stop()

	// HTTP.
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	routes.Setup(
		engine,
		authService,
		handlers.NewAuthHandler(authService),
		handlers.NewUserHandler(presence, minioClient, convService),
		handlers.NewConversationHandler(convService),
		handlers.NewWebSocketHandler(hub),
	)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}
