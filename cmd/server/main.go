package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/webhook-chat/internal/api"
	"github.com/wuwenbin0122/webhook-chat/internal/chat"
	"github.com/wuwenbin0122/webhook-chat/internal/notify"
	"github.com/wuwenbin0122/webhook-chat/internal/utils"
	"github.com/wuwenbin0122/webhook-chat/internal/webhook"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded: %v", err)
	}

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("config: failed to load: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("logger: failed to initialise: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	sugar := logger.Sugar()

	client := webhook.NewClient(cfg.Webhook.Endpoint, cfg.Webhook.Timeout, sugar.Named("webhook"))
	hub := notify.NewHub(sugar.Named("notify"))

	opts := cfg.Widget.SessionOptions()
	opts.Listener = hub
	opts.Logger = sugar.Named("session")
	manager := chat.NewManager(chat.NewCoordinator(client, sugar.Named("chat")), opts)

	router := setupRouter(manager, hub, sugar)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Webhook.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sugar.Infow("server listening", "addr", server.Addr, "webhook", client.Endpoint())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server crashed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	manager.Shutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("graceful shutdown failed", "error", err)
	}

	sugar.Info("server stopped cleanly")
}

func setupRouter(manager *chat.Manager, hub *notify.Hub, logger *zap.SugaredLogger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"sessions":  manager.Len(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	api.NewHandler(manager, hub, logger.Named("api")).RegisterRoutes(router)

	return router
}
