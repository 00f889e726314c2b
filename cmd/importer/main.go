// Command importer loads one activity CSV into the primary store and index
// from the command line, using the same pipeline as the bulk-upload endpoint.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/activitydash/internal/config"
	"example.com/activitydash/internal/ingest"
	persistence "example.com/activitydash/internal/persistence/postgres"
	"example.com/activitydash/internal/search"
)

func main() {
	filePath := flag.String("file", "", "path to the CSV file to import")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall import timeout")
	flag.Parse()

	if *filePath == "" {
		log.Fatal("usage: importer -file <activities.csv>")
	}

	payload, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatalf("read %s: %v", *filePath, err)
	}

	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, *timeout)
	defer timeoutCancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := persistence.NewRepository(pool)
	index := search.NewSolrClient(cfg.SolrURL, cfg.SolrCore, cfg.SolrTimeout)
	importer := ingest.NewImporter(repo, index)

	summary, err := importer.Import(ctx, payload, *filePath)
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}

	log.Printf("imported %d, skipped %d, %d invalid rows of %d total (encoding %s)",
		summary.Imported, summary.Skipped, len(summary.InvalidRows), summary.TotalRows, summary.EncodingUsed)
	for _, diag := range summary.InvalidRows {
		log.Print(diag)
	}
}
