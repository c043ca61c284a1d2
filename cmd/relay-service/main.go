package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"amora-realtime/internal/database"
	"amora-realtime/internal/directory"
	callHandler "amora-realtime/internal/handler/http/call"
	chatHandler "amora-realtime/internal/handler/http/chat"
	presenceHandler "amora-realtime/internal/handler/http/presence"
	pushHandler "amora-realtime/internal/handler/http/push"
	userHandler "amora-realtime/internal/handler/http/user"
	wsHandler "amora-realtime/internal/handler/ws"
	"amora-realtime/internal/middleware"
	"amora-realtime/internal/repository/cassandra"
	"amora-realtime/internal/repository/cockroach"
	redisRepo "amora-realtime/internal/repository/redis"
	"amora-realtime/internal/service/relay"
	"amora-realtime/pkg/constants"
	"amora-realtime/pkg/env"
	"amora-realtime/pkg/jwt"
	"amora-realtime/pkg/logger"
	"amora-realtime/pkg/metrics"
	"amora-realtime/pkg/push"
)

func main() {
	// 1. Logger
	logger.InitDefault()
	defer logger.Sync()

	// 2. JWT manager for the REST surface. The WebSocket handshake
	// identifies by userId query parameter and does not go through it.
	jwtSecret := env.GetStringFromFile("JWT_SECRET", "")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
	if len(jwtSecret) < 32 {
		log.Fatal("JWT_SECRET must be at least 32 characters")
	}
	jwtManager := jwt.NewJWTManager(jwtSecret, constants.AccessTokenExpiry)

	// 3. Cassandra (message history)
	cassandraDB, err := database.NewCassandraDB(&database.CassandraConfig{
		Hosts:    []string{env.GetString("CASSANDRA_HOST", "localhost")},
		Keyspace: env.GetString("CASSANDRA_KEYSPACE", "amora_ks"),
		Username: env.GetStringFromFile("CASSANDRA_USER", ""),
		Password: env.GetStringFromFile("CASSANDRA_PASSWORD", ""),
		Timeout:  10 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to connect to Cassandra: %v", err)
	}
	defer cassandraDB.Close()
	log.Println("✅ Connected to Cassandra")

	// 4. Redis (block lists, device tokens) with degraded mode support
	database.InitRedisMetrics()

	redisDB, err := database.NewRedisDB(&database.RedisConfig{
		Host:     env.GetString("REDIS_HOST", "localhost"),
		Port:     env.GetInt("REDIS_PORT", 6379),
		Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
		DB:       0,
		PoolSize: 10,
		Timeout:  5 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisDB.Close()
	log.Println("✅ Connected to Redis")

	redisDB.StartHealthCheck(context.Background(), 10*time.Second)

	// 5. CockroachDB (call logs)
	cockroachDB, err := database.NewCockroachDB(context.Background(), &database.CockroachConfig{
		Host:     env.GetString("COCKROACH_HOST", "localhost"),
		Port:     env.GetInt("COCKROACH_PORT", 26257),
		User:     env.GetString("COCKROACH_USER", "root"),
		Password: env.GetStringFromFile("COCKROACH_PASSWORD", ""),
		Database: env.GetString("COCKROACH_DATABASE", "amora_db"),
		SSLMode:  env.GetString("COCKROACH_SSLMODE", "disable"),
	})
	if err != nil {
		log.Fatalf("Failed to connect to CockroachDB: %v", err)
	}
	defer cockroachDB.Close()
	log.Println("✅ Connected to CockroachDB")

	// 6. Repositories
	messageRepo := cassandra.NewMessageRepository(cassandraDB.Session)
	callLogRepo := cockroach.NewCallLogRepository(cockroachDB.Pool)
	tokenRepo := redisRepo.NewDeviceTokenRepository(redisDB)
	blockRepo := redisRepo.NewBlockRepository(redisDB)

	// 7. Push notifications (provider selected by PUSH_PROVIDER)
	pushProvider, err := push.NewProvider()
	if err != nil {
		log.Fatalf("Failed to initialize push provider: %v", err)
	}
	pushSvc := push.NewService(pushProvider, tokenRepo)

	// 8. Presence directory and relay service
	store := directory.NewInMemoryStore()
	relaySvc := relay.NewService(store, callLogRepo, messageRepo, pushSvc)

	// 9. Metrics
	appMetrics := metrics.NewMetrics("relay-service")
	prometheusMiddleware := middleware.NewPrometheusMiddleware(appMetrics)

	// 10. Handlers
	hub := wsHandler.NewRelayHub(relaySvc, appMetrics)
	presenceHdlr := presenceHandler.NewHandler(store)
	callHdlr := callHandler.NewHandler(callLogRepo)
	chatHdlr := chatHandler.NewHandler(messageRepo)
	pushHdlr := pushHandler.NewHandler(pushSvc)
	userHdlr := userHandler.NewHandler(blockRepo, relaySvc)

	// 11. Router
	router := gin.New()
	router.SetTrustedProxies(nil)

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORSMiddleware())
	router.Use(prometheusMiddleware.Handler())

	router.GET("/health", middleware.HealthCheck("relay-service"))
	router.GET("/metrics", middleware.MetricsHandler())

	// WebSocket endpoint (identifies by userId query parameter)
	router.GET("/ws", hub.ServeWS)

	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(jwtManager))
	{
		v1.GET("/presence", presenceHdlr.ListOnline)
		v1.GET("/presence/:userId", presenceHdlr.GetPresence)

		v1.GET("/calls", callHdlr.GetCallLogs)

		v1.POST("/messages", chatHdlr.SendMessage)
		v1.GET("/messages", chatHdlr.GetMessages)
		v1.POST("/messages/read", chatHdlr.MarkRead)

		v1.POST("/push/tokens", pushHdlr.RegisterToken)
		v1.DELETE("/push/tokens", pushHdlr.UnregisterToken)

		v1.POST("/users/block", userHdlr.BlockUser)
		v1.POST("/users/unblock", userHdlr.UnblockUser)
		v1.GET("/users/blocked", userHdlr.ListBlocked)
	}

	// 12. Start server
	port := env.GetString("PORT", "8083")
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: router,
	}

	go func() {
		log.Printf("🚀 Relay Service starting on port %s\n", port)
		log.Println("📡 WebSocket endpoint: /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 13. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
