// Command ingest chunks the reference corpus into the SQLite documents
// table ahead of a deploy, so the server starts with a warm index.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/garyellow/tamly-chatbot-go/internal/config"
	"github.com/garyellow/tamly-chatbot-go/internal/logger"
	"github.com/garyellow/tamly-chatbot-go/internal/rag"
	"github.com/garyellow/tamly-chatbot-go/internal/scraper"
	"github.com/garyellow/tamly-chatbot-go/internal/storage"
)

// CLI flags
var (
	resetFlag   = flag.Bool("reset", false, "Delete all stored chunks before ingesting")
	dirFlag     = flag.String("dir", "", "Corpus directory (empty = TAMLY_CORPUS_DIR)")
	urlsFlag    = flag.String("urls", "", "Comma-separated reference URLs (empty = TAMLY_CORPUS_URLS)")
	workersFlag = flag.Int("workers", 4, "Concurrent URL downloads")
)

func main() {
	flag.Parse()

	// LLM keys are not needed to build the index.
	cfg, err := config.LoadForMode(config.IngestMode)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("Ingest failed")
		_, _ = fmt.Fprintf(os.Stderr, "\n❌ Ingest failed: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), config.CorpusRefresh)
	defer cancel()

	db, err := storage.New(ctx, cfg.SQLitePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()
	log.WithField("path", cfg.SQLitePath()).Info("Database connected")

	if *resetFlag {
		deleted, err := db.DeleteAllDocuments(ctx)
		if err != nil {
			return err
		}
		log.WithField("deleted", deleted).Warn("Stored chunks reset")
	}

	corpus := rag.CorpusConfig{
		Dir:          cfg.CorpusDir,
		URLs:         cfg.CorpusURLs,
		Concurrency:  *workersFlag,
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	}
	if *dirFlag != "" {
		corpus.Dir = *dirFlag
	}
	if urls := parseURLs(*urlsFlag); len(urls) > 0 {
		corpus.URLs = urls
	}
	if len(corpus.URLs) > 0 {
		corpus.Fetcher = scraper.NewClient(config.CorpusFetch, *workersFlag, 200*time.Millisecond, time.Second, 2)
	}

	start := time.Now()
	chunks, err := rag.Refresh(ctx, db, corpus, log)
	if err != nil {
		return err
	}
	total, err := db.CountDocuments(ctx)
	if err != nil {
		return err
	}

	duration := time.Since(start)
	log.WithField("chunks", chunks).WithField("total", total).WithField("duration", duration).Info("Ingest complete")
	fmt.Printf("\n✅ Ingest complete: %d chunks written, %d stored\n", chunks, total)
	fmt.Printf("Total time: %v\n", duration.Round(time.Millisecond))
	return nil
}

// parseURLs splits a comma-separated URL list, dropping blanks.
func parseURLs(list string) []string {
	parts := strings.Split(list, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if u := strings.TrimSpace(part); u != "" {
			result = append(result, u)
		}
	}
	return result
}
