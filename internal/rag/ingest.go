package rag

import (
	"context"
	"fmt"
	"slices"

	"github.com/garyellow/tamly-chatbot-go/internal/logger"
	"github.com/garyellow/tamly-chatbot-go/internal/metrics"
	"github.com/garyellow/tamly-chatbot-go/internal/storage"
)

// DocumentStore persists corpus chunks. *storage.DB implements it.
type DocumentStore interface {
	ReplaceDocuments(ctx context.Context, source string, chunks []string) error
	AllDocuments(ctx context.Context) ([]storage.Document, error)
}

// Ingest splits each source and stores its chunks, replacing whatever was
// stored under the same name. It returns the number of chunks written.
// Sources that produce no chunks are skipped so a temporarily empty page
// does not wipe a good copy.
func Ingest(ctx context.Context, store DocumentStore, splitter *Splitter, sources []Source) (int, error) {
	if splitter == nil {
		splitter = NewSplitter(DefaultChunkSize, DefaultChunkOverlap)
	}
	total := 0
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		chunks := splitter.Split(src.Text)
		if len(chunks) == 0 {
			continue
		}
		if err := store.ReplaceDocuments(ctx, src.Name, chunks); err != nil {
			return total, fmt.Errorf("ingest %s: %w", src.Name, err)
		}
		total += len(chunks)
	}
	return total, nil
}

// Load rebuilds the index from everything in store.
func (idx *Index) Load(ctx context.Context, store DocumentStore, m *metrics.Metrics) error {
	docs, err := store.AllDocuments(ctx)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	if err := idx.Build(docs); err != nil {
		return err
	}
	m.SetIndexDocuments(idx.Count())
	return nil
}

// CorpusConfig says where corpus documents come from.
type CorpusConfig struct {
	Dir  string
	URLs []string

	// Fetcher downloads URLs; without one they are ignored.
	Fetcher     Fetcher
	Concurrency int

	ChunkSize    int
	ChunkOverlap int
}

// Refresh reads the corpus dir, fetches the corpus URLs and ingests
// everything into store. Local files win over a URL of the same name.
func Refresh(ctx context.Context, store DocumentStore, cfg CorpusConfig, log *logger.Logger) (int, error) {
	sources, err := LoadDir(cfg.Dir)
	if err != nil {
		return 0, fmt.Errorf("read corpus dir: %w", err)
	}
	log.WithField("dir", cfg.Dir).WithField("files", len(sources)).Info("Corpus files read")

	if len(cfg.URLs) > 0 && cfg.Fetcher != nil {
		remote, err := FetchURLs(ctx, cfg.Fetcher, cfg.URLs, cfg.Concurrency, log)
		if err != nil {
			return 0, err
		}
		for _, src := range remote {
			if !slices.ContainsFunc(sources, func(s Source) bool { return s.Name == src.Name }) {
				sources = append(sources, src)
			}
		}
		log.WithField("urls", len(cfg.URLs)).WithField("fetched", len(remote)).Info("Corpus URLs fetched")
	}

	return Ingest(ctx, store, NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap), sources)
}
