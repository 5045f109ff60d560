package cmd

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jjenkins/civicwatch/internal/config"
	"github.com/jjenkins/civicwatch/internal/model"
	"github.com/jjenkins/civicwatch/internal/store"
	"github.com/spf13/cobra"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load jurisdictions and connectors from a fixture file",
	Long: `Seed loads the jurisdiction forest and connector catalog from a JSON
fixture. Jurisdictions must be listed parents-first so that parent slugs
resolve during the load.

Example:
  ./civicwatch seed --file fixtures/texas.json`,
	Run: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "Fixture file to load (required)")
}

// seedFixture is the fixture file shape.
type seedFixture struct {
	Jurisdictions []struct {
		Slug       string `json:"slug"`
		Name       string `json:"name"`
		Type       string `json:"type"`
		ParentSlug string `json:"parentSlug"`
	} `json:"jurisdictions"`
	Connectors []struct {
		Key              string `json:"key"`
		JurisdictionSlug string `json:"jurisdictionSlug"`
		Kind             string `json:"kind"`
		ParserKey        string `json:"parserKey"`
		SourceURL        string `json:"sourceUrl"`
		Enabled          bool   `json:"enabled"`
	} `json:"connectors"`
}

func runSeed(cmd *cobra.Command, args []string) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}
	if seedFile == "" {
		log.Fatal("--file is required")
	}

	data, err := os.ReadFile(seedFile)
	if err != nil {
		log.Fatalf("Failed to read fixture: %v", err)
	}

	var fixture seedFixture
	if err := json.Unmarshal(data, &fixture); err != nil {
		log.Fatalf("Failed to parse fixture: %v", err)
	}

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := store.Migrate(db, cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	ctx := context.Background()
	jurisdictionStore := store.NewJurisdictionStore(db)
	connectorStore := store.NewConnectorStore(db)

	log.Printf("Seeding %d jurisdictions...", len(fixture.Jurisdictions))
	slugToID := make(map[string]int64)
	for _, entry := range fixture.Jurisdictions {
		j := &model.Jurisdiction{
			Slug: entry.Slug,
			Name: entry.Name,
			Type: entry.Type,
		}
		if entry.ParentSlug != "" {
			parentID, ok := slugToID[entry.ParentSlug]
			if !ok {
				log.Fatalf("Jurisdiction %s references unknown parent %s (parents must come first)", entry.Slug, entry.ParentSlug)
			}
			j.ParentID = sql.NullInt64{Int64: parentID, Valid: true}
		}
		if err := jurisdictionStore.UpsertJurisdiction(ctx, j); err != nil {
			log.Fatalf("Failed to seed jurisdiction %s: %v", entry.Slug, err)
		}
		slugToID[entry.Slug] = j.ID
	}

	log.Printf("Seeding %d connectors...", len(fixture.Connectors))
	for _, entry := range fixture.Connectors {
		c := &model.Connector{
			Key:              entry.Key,
			JurisdictionSlug: entry.JurisdictionSlug,
			Kind:             entry.Kind,
			ParserKey:        entry.ParserKey,
			SourceURL:        entry.SourceURL,
			Enabled:          entry.Enabled,
		}
		if err := connectorStore.UpsertConnector(ctx, c); err != nil {
			log.Fatalf("Failed to seed connector %s: %v", entry.Key, err)
		}
	}

	fmt.Println("")
	log.Println("=== Seed Summary ===")
	log.Printf("Jurisdictions: %d", len(fixture.Jurisdictions))
	log.Printf("Connectors:    %d", len(fixture.Connectors))
}
