package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yproz/spp-monitor/internal/config"
	"github.com/yproz/spp-monitor/internal/database"
	"github.com/yproz/spp-monitor/internal/parserapi"
	"github.com/yproz/spp-monitor/internal/repository"
	"github.com/yproz/spp-monitor/internal/service"
	"github.com/yproz/spp-monitor/internal/watcher"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Run migrations
	log.Println("Running database migrations...")
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return err
	}
	log.Println("Migrations completed successfully")

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close(db)

	log.Println("Database connected successfully")

	// Initialize repositories
	clientRepo := repository.NewClientRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	productRepo := repository.NewProductRepository(db)
	jobRepo := repository.NewJobRepository(db)
	recordRepo := repository.NewPriceRecordRepository(db)
	cycleRepo := repository.NewNotificationCycleRepository(db)

	// Initialize provider client
	provider := parserapi.NewClient(cfg.ParserBaseURL, time.Duration(cfg.RequestTimeout)*time.Second)

	// Initialize services
	submitter := service.NewSubmitter(clientRepo, productRepo, jobRepo, provider)
	ingestor := service.NewIngestor(productRepo, recordRepo)
	differ := service.NewDiffer(recordRepo, accountRepo)
	reporter := service.NewLogReporter()
	gate := service.NewNotificationGate(clientRepo, cycleRepo, differ, reporter)
	collector := service.NewCollector(clientRepo, accountRepo, recordRepo, submitter)

	// Initialize watcher
	w := watcher.New(cfg, jobRepo, accountRepo, clientRepo, provider, ingestor, gate, collector)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start watcher in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- w.Start(ctx)
	}()

	// Wait for shutdown signal or error
	select {
	case <-sigChan:
		log.Println("Shutdown signal received")
		cancel()

		// Wait for graceful shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		select {
		case <-shutdownCtx.Done():
			log.Println("Shutdown timeout exceeded")
		case err := <-errChan:
			if err != nil && err != context.Canceled {
				log.Printf("Watcher error: %v", err)
			}
		}

		log.Println("Application stopped")
		return nil

	case err := <-errChan:
		return err
	}
}
