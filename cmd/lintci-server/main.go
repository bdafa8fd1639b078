// Command lintci-server runs the lint CI service: an HTTP API that
// accepts repository events, evaluates workflow triggers, and executes
// the resulting lint jobs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/lintci/internal/observability"
	"github.com/example/lintci/internal/service"
	"github.com/example/lintci/internal/storage/sqlite"
	"github.com/example/lintci/internal/web"
	"github.com/example/lintci/internal/workflow"
)

// Config holds the server configuration.
type Config struct {
	WebPort      int
	SQLitePath   string
	WorkflowPath string
	CheckoutDir  string
	PollInterval time.Duration
	StepTimeout  time.Duration
}

func main() {
	cfg := loadConfig()

	// Load the workflow definition. Without a file the stock pylint
	// pipeline is used.
	def := workflow.Builtin()
	if cfg.WorkflowPath != "" {
		loaded, err := workflow.Load(cfg.WorkflowPath)
		if err != nil {
			log.Fatalf("Failed to load workflow %s: %v", cfg.WorkflowPath, err)
		}
		def = loaded
	}
	log.Printf("Workflow %q: %d steps, triggers %v", def.Name, len(def.Steps), def.On.Kinds())

	metrics := observability.NewMetrics()

	log.Printf("Initializing SQLite storage at %s", cfg.SQLitePath)
	store, err := sqlite.New(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("Failed to create storage: %v", err)
	}
	defer store.Close()

	log.Println("Running database migrations...")
	if err := store.Migrate(context.Background()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	jobs := service.New(store, def, service.Options{
		CheckoutDir: cfg.CheckoutDir,
		StepTimeout: cfg.StepTimeout,
		Metrics:     metrics,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Worker loop: drain pending jobs one at a time.
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		ticker := time.NewTicker(cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			for {
				ran, err := jobs.RunNext(ctx)
				if err != nil {
					log.Printf("Worker error: %v", err)
					break
				}
				if !ran {
					break
				}
			}
		}
	}()

	webAddr := fmt.Sprintf(":%d", cfg.WebPort)
	webServer := web.NewServer(webAddr, jobs, metrics)

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")

		cancel()
		<-workerDone

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := webServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	if err := webServer.Start(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
	<-workerDone
	log.Println("Server stopped")
}

func loadConfig() Config {
	cfg := Config{
		WebPort:      8080,
		SQLitePath:   "lintci.db",
		CheckoutDir:  ".",
		PollInterval: time.Second,
		StepTimeout:  service.DefaultStepTimeout,
	}

	// Override from environment
	if port := os.Getenv("WEB_PORT"); port != "" {
		if _, err := fmt.Sscanf(port, "%d", &cfg.WebPort); err != nil {
			log.Printf("Invalid WEB_PORT, using default: %v", err)
		}
	}
	if path := os.Getenv("SQLITE_PATH"); path != "" {
		cfg.SQLitePath = path
	}
	if path := os.Getenv("WORKFLOW_PATH"); path != "" {
		cfg.WorkflowPath = path
	}
	if dir := os.Getenv("CHECKOUT_DIR"); dir != "" {
		cfg.CheckoutDir = dir
	}

	// Flags take precedence over environment
	flag.IntVar(&cfg.WebPort, "port", cfg.WebPort, "HTTP listen port")
	flag.StringVar(&cfg.SQLitePath, "db", cfg.SQLitePath, "SQLite database path")
	flag.StringVar(&cfg.WorkflowPath, "workflow", cfg.WorkflowPath, "workflow YAML file (default: builtin pylint workflow)")
	flag.StringVar(&cfg.CheckoutDir, "checkout", cfg.CheckoutDir, "source checkout steps run against")
	flag.DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "pending job poll interval")
	flag.DurationVar(&cfg.StepTimeout, "step-timeout", cfg.StepTimeout, "per-step execution timeout")
	flag.Parse()

	return cfg
}
