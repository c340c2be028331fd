// Command server exposes ingestion, search and the chat stream over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"rag-assistant-go/internal/app"
	"rag-assistant-go/internal/config"
	"rag-assistant-go/internal/handler"
	"rag-assistant-go/pkg/log"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	config.Init(*configPath)
	cfg := config.Conf

	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("logger initialized")

	a, err := app.New(context.Background(), &cfg)
	if err != nil {
		log.Fatal("failed to initialize services", err)
	}
	defer a.Close()

	// Startup ingestion runs before the listener opens so the first search
	// sees the indexed document.
	if err := a.IngestConfigured(context.Background(), cfg.Ingestion); err != nil {
		log.Fatal("startup ingestion failed", err)
	}

	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(handler.Services{
		Documents:     a.Documents,
		Search:        a.Search,
		Chat:          a.Chat,
		Conversations: a.Conversations,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received, closing server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP server shutdown failed: %v", err)
	}
	log.Info("server stopped")
}
