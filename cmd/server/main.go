package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"moveregistry-backend/internal/app"
	"moveregistry-backend/internal/config"
	"moveregistry-backend/internal/db"
	"moveregistry-backend/internal/handlers"
	"moveregistry-backend/internal/router"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: config.yaml, config.local.yaml preferred)")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logrus.SetLevel(level)
	}

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	db.InitDB()

	container, err := app.InitializeContainer()
	if err != nil {
		log.Fatalf("❌ Failed to initialize services: %v", err)
	}
	defer container.Shutdown()

	engine := router.SetupRouter(&router.Handlers{
		Mint:      handlers.NewMintHandler(container.MintService, container.WalletBridge),
		Moves:     handlers.NewMovesHandler(container.MoveRepo, container.RoyaltyRepo),
		Royalty:   handlers.NewRoyaltyWebhookHandler(container.RoyaltyService),
		WebSocket: handlers.NewWebSocketHandler(container.WebSocketPushService, container.WalletBridge),
		AdminAuth: handlers.NewAdminAuthHandler(container.AdminRepo),
		AdminOps:  handlers.NewAdminOpsHandler(container.AttemptRepo, container.MintService),
	})

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logrus.Info("👋 Shutting down")
		container.Shutdown()
		os.Exit(0)
	}()

	addr := config.GetServerAddr()
	logrus.WithField("addr", addr).Info("🚀 MoveRegistry backend listening")
	if err := engine.Run(addr); err != nil {
		log.Fatalf("❌ Server exited: %v", err)
	}
}
