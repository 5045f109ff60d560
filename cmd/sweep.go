package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jjenkins/civicwatch/internal/config"
	"github.com/jjenkins/civicwatch/internal/model"
	"github.com/jjenkins/civicwatch/internal/parser"
	"github.com/jjenkins/civicwatch/internal/service"
	"github.com/jjenkins/civicwatch/internal/store"
	"github.com/spf13/cobra"
)

var sweepScope string
var sweepInterval time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run all enabled connectors",
	Long: `Sweep runs every enabled connector of the tracked kinds, sequentially
with a pacing delay between runs. Individual connector failures are recorded
and do not stop the sweep.

Examples:
  # One sweep over all enabled connectors
  ./civicwatch sweep

  # Restrict to a scope
  ./civicwatch sweep --scope "city:austin-tx,state:texas"

  # Keep sweeping every 6 hours
  ./civicwatch sweep --interval 6h`,
	Run: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepScope, "scope", "", "Restrict the sweep to a scope (kind:slug, comma-separated)")
	sweepCmd.Flags().DurationVar(&sweepInterval, "interval", 0, "Keep sweeping at this interval (0 = run once)")
}

func runSweep(cmd *cobra.Command, args []string) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	// Connect to database
	log.Println("Connecting to database...")
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := store.Migrate(db, cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Create dependencies
	jurisdictionStore := store.NewJurisdictionStore(db)
	connectorStore := store.NewConnectorStore(db)
	runStore := store.NewRunStore(db)
	civicStore := store.NewCivicStore(db)

	deps := parser.Deps{Sink: civicStore, Client: parser.NewClient()}
	runner := service.NewRunner(connectorStore, runStore, jurisdictionStore, parser.DefaultRegistry(), deps)
	orchestrator := service.NewOrchestrator(connectorStore, runner, cfg.ConnectorPacing)

	for {
		result, err := orchestrator.RunScope(ctx, sweepScope)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("Sweep cancelled")
				os.Exit(1)
			}
			log.Fatalf("Sweep failed: %v", err)
		}

		printSweepSummary(result)

		if sweepInterval <= 0 {
			if result.Failed() > 0 {
				os.Exit(1)
			}
			return
		}

		log.Printf("Next sweep in %s", sweepInterval)
		select {
		case <-ctx.Done():
			log.Println("Sweep cancelled")
			return
		case <-time.After(sweepInterval):
		}
	}
}

func printSweepSummary(result *model.FanoutResult) {
	log.Println("")
	log.Println("=== Sweep Summary ===")
	log.Printf("%s", result.Summary)
	for _, r := range result.Results {
		if r.Status == model.StatusError {
			log.Printf("  %-40s %s (%s)", r.ConnectorKey, r.Status, r.Error)
		} else {
			log.Printf("  %-40s %s (%d new, %d updated, %d errors)",
				r.ConnectorKey, r.Status, r.Stats.NewCount, r.Stats.UpdatedCount, r.Stats.ErrorCount)
		}
	}
}
