// Command keywords regenerates the keyword CSVs from the built-in base
// lists, widened with the usual Vietnamese affixes.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/garyellow/tamly-chatbot-go/internal/config"
	"github.com/garyellow/tamly-chatbot-go/internal/keyword"
)

var (
	dirFlag   = flag.String("dir", "", "Output directory (empty = TAMLY_KEYWORD_DIR)")
	limitFlag = flag.Int("limit", 500, "Maximum keywords per file (0 = no cap)")
)

func main() {
	flag.Parse()

	dir := *dirFlag
	if dir == "" {
		cfg, err := config.LoadForMode(config.IngestMode)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		dir = cfg.KeywordDir
	}

	counts, err := writeAll(dir, *limitFlag)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	for _, k := range keyword.Kinds {
		fmt.Printf("✓ %s: %d keywords\n", filepath.Join(dir, k.FileName()), counts[k])
	}
}

// writeAll writes one CSV per keyword kind into dir and returns the row
// count of each.
func writeAll(dir string, limit int) (map[keyword.Kind]int, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	counts := make(map[keyword.Kind]int, len(keyword.Kinds))
	for _, k := range keyword.Kinds {
		words := keyword.Expand(keyword.Default(k), keyword.ExpansionFor(k), limit)
		if err := writeFile(filepath.Join(dir, k.FileName()), words); err != nil {
			return nil, err
		}
		counts[k] = len(words)
	}
	return counts, nil
}

func writeFile(path string, words []string) (err error) {
	f, err := os.Create(path) //nolint:gosec // operator-provided path
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := keyword.WriteCSV(f, words); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
