package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pointboard/forum/internal/redis"
	"github.com/pointboard/forum/internal/server"
	"github.com/pointboard/forum/internal/setup"
	"github.com/pointboard/forum/internal/setup/telemetry"
	"go.uber.org/zap"
)

// ServerLogDir specifies where API server log files are stored.
const ServerLogDir = "logs/server_logs"

func main() {
	// Initialize application with required dependencies
	app, err := setup.InitializeApp(context.Background(), telemetry.ServiceAPI, ServerLogDir)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Cleanup(context.Background())

	sessions, err := app.SessionStore()
	if err != nil {
		app.Logger.Fatal("Failed to connect to session store", zap.Error(err))
	}

	// Rate limit blocks are shared when the database is reachable
	blocks, err := app.RedisManager.GetClient(redis.RatelimitDBIndex)
	if err != nil {
		app.Logger.Warn("Rate limit blocks will not be shared", zap.Error(err))
	}

	handler, err := server.New(server.Dependencies{
		DB:       app.DB,
		Sessions: sessions,
		Redis:    app.RedisManager,
		Blocks:   blocks,
	}, app.Logger, &app.Config.API)
	if err != nil {
		app.Logger.Fatal("Failed to create API server", zap.Error(err))
	}
	defer handler.Close()

	serverCfg := app.Config.API.Server
	addr := fmt.Sprintf("%s:%d", serverCfg.Host, serverCfg.Port)

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Duration(serverCfg.ReadTimeout) * time.Second,
		ReadTimeout:       time.Duration(serverCfg.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(serverCfg.WriteTimeout) * time.Second,
		IdleTimeout:       time.Duration(serverCfg.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("API server started on http://%s/graphql", addr)
		app.Logger.Info("API server started", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	app.Logger.Info("Shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(serverCfg.ShutdownTimeout)*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(ctx); err != nil {
		app.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	app.Logger.Info("Server gracefully stopped")
}
