package cmd

import (
	"context"
	"log"
	"os"

	"github.com/jjenkins/civicwatch/internal/config"
	"github.com/jjenkins/civicwatch/internal/model"
	"github.com/jjenkins/civicwatch/internal/parser"
	"github.com/jjenkins/civicwatch/internal/service"
	"github.com/jjenkins/civicwatch/internal/store"
	"github.com/spf13/cobra"
)

var runConnectorID int64

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single connector by ID",
	Long: `Run executes one connector invocation: opens an ingest run, dispatches
the configured parser, and records the outcome on the connector.

Example:
  ./civicwatch run --connector 3`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		if cfg.DatabaseURL == "" {
			log.Fatal("DATABASE_URL environment variable is required")
		}
		if runConnectorID == 0 {
			log.Fatal("--connector is required")
		}

		db, err := store.NewDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		jurisdictionStore := store.NewJurisdictionStore(db)
		connectorStore := store.NewConnectorStore(db)
		runStore := store.NewRunStore(db)
		civicStore := store.NewCivicStore(db)

		deps := parser.Deps{Sink: civicStore, Client: parser.NewClient()}
		runner := service.NewRunner(connectorStore, runStore, jurisdictionStore, parser.DefaultRegistry(), deps)

		result, err := runner.RunConnector(context.Background(), runConnectorID)
		if err != nil {
			log.Fatalf("Run failed: %v", err)
		}

		log.Printf("Connector %s finished: %s", result.ConnectorKey, result.Status)
		log.Printf("  New:     %d", result.Stats.NewCount)
		log.Printf("  Updated: %d", result.Stats.UpdatedCount)
		log.Printf("  Errors:  %d", result.Stats.ErrorCount)
		if result.Stats.FirstError != "" {
			log.Printf("  First error: %s", result.Stats.FirstError)
		}

		if result.Status == model.StatusError {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Int64Var(&runConnectorID, "connector", 0, "Connector ID to run")
}
