package rag

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/garyellow/tamly-chatbot-go/internal/logger"
)

// Source is one corpus document before chunking.
type Source struct {
	// Name identifies the document: a path relative to the corpus dir, or a URL.
	Name string
	Text string
}

// Fetcher downloads remote corpus pages. *scraper.Client implements it.
type Fetcher interface {
	GetDocument(ctx context.Context, url string) (*goquery.Document, error)
	GetText(ctx context.Context, url string) (string, error)
}

// LoadDir reads every .txt, .md, .html and .htm file under dir, sorted by
// path. A missing dir yields no sources.
func LoadDir(dir string) ([]Source, error) {
	var sources []Source
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && os.IsNotExist(err) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !isCorpusExt(ext) {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()

		text, err := readText(f, ext)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		sources = append(sources, Source{Name: filepath.ToSlash(rel), Text: text})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })
	return sources, nil
}

func isCorpusExt(ext string) bool {
	switch ext {
	case ".txt", ".md", ".html", ".htm":
		return true
	}
	return false
}

func readText(r io.Reader, ext string) (string, error) {
	if ext == ".html" || ext == ".htm" {
		doc, err := goquery.NewDocumentFromReader(r)
		if err != nil {
			return "", err
		}
		return DocumentText(doc), nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(string(data), "\ufeff"), nil
}

// blockSelector lists elements whose text starts a new paragraph.
const blockSelector = "p, li, h1, h2, h3, h4, h5, h6, td, th, pre, blockquote, dt, dd"

// DocumentText extracts readable text from an HTML page: scripts, styles
// and navigation are dropped and each block element becomes a paragraph,
// so the splitter can cut on paragraph boundaries.
func DocumentText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, header, footer, iframe").Remove()

	var paragraphs []string
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		// Nested blocks are visited on their own.
		if s.Find(blockSelector).Length() > 0 {
			return
		}
		if t := collapseSpace(s.Text()); t != "" {
			paragraphs = append(paragraphs, t)
		}
	})
	if len(paragraphs) == 0 {
		return collapseSpace(doc.Find("body").Text())
	}
	return strings.Join(paragraphs, "\n\n")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FetchURLs downloads urls with at most concurrency requests in flight.
// HTML pages are reduced with DocumentText, plain-text URLs (.txt, .md)
// are kept as is. Failed URLs are logged and skipped; only cancellation
// aborts. Results keep the order of urls, duplicates removed.
func FetchURLs(ctx context.Context, f Fetcher, urls []string, concurrency int, log *logger.Logger) ([]Source, error) {
	urls = dedupe(urls)
	results := make([]*Source, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	for i, u := range urls {
		g.Go(func() error {
			text, err := fetchOne(gctx, f, u)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.WithError(err).WithField("url", u).Warn("Skipping corpus URL")
				return nil
			}
			if strings.TrimSpace(text) != "" {
				results[i] = &Source{Name: u, Text: text}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sources := make([]Source, 0, len(results))
	for _, s := range results {
		if s != nil {
			sources = append(sources, *s)
		}
	}
	return sources, nil
}

func fetchOne(ctx context.Context, f Fetcher, url string) (string, error) {
	lower := strings.ToLower(url)
	if strings.HasSuffix(lower, ".txt") || strings.HasSuffix(lower, ".md") {
		return f.GetText(ctx, url)
	}
	doc, err := f.GetDocument(ctx, url)
	if err != nil {
		return "", err
	}
	return DocumentText(doc), nil
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
