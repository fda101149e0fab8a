package keyword

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/garyellow/tamly-chatbot-go/internal/logger"
)

// Column is the header of the keyword column in every CSV.
const Column = "keyword"

// ReadCSV reads the "keyword" column from r. Values are trimmed and empty
// values dropped. Extra columns are ignored.
func ReadCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := slices.IndexFunc(header, func(h string) bool {
		return strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), Column)
	})
	if col < 0 {
		return nil, fmt.Errorf("missing %q column in header %v", Column, header)
	}

	var out []string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		if col >= len(rec) {
			continue
		}
		if v := strings.TrimSpace(rec[col]); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

// LoadCSV reads a keyword CSV from path.
func LoadCSV(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // operator-provided path
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ReadCSV(f)
}

// WriteCSV writes words under a "keyword" header.
func WriteCSV(w io.Writer, words []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{Column}); err != nil {
		return err
	}
	for _, word := range words {
		if err := cw.Write([]string{word}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadOptions controls LoadDir.
type LoadOptions struct {
	// UseDefaults substitutes the built-in list for any kind whose CSV is
	// missing, unreadable or empty. When false such a kind stays empty and the
	// classifier degrades to Unclear for everything that depends on it.
	UseDefaults bool
}

// LoadDir reads <dir>/<kind>_keywords.csv for every kind.
// It never fails: problems are logged and the affected list degrades.
func LoadDir(dir string, opts LoadOptions, log *logger.Logger) Sets {
	var sets Sets
	for _, k := range Kinds {
		path := filepath.Join(dir, k.FileName())
		words, err := LoadCSV(path)
		switch {
		case err != nil && errors.Is(err, os.ErrNotExist):
			log.WithField("path", path).Warn("Keyword file not found")
		case err != nil:
			log.WithError(err).WithField("path", path).Warn("Keyword file unreadable")
		}

		set := NewSet(words)
		if set.Len() == 0 && opts.UseDefaults {
			set = NewSet(Default(k))
			log.WithField("kind", string(k)).Info("Using built-in keywords")
		}
		log.WithFields(map[string]any{"kind": string(k), "count": set.Len()}).Debug("Keywords loaded")

		switch k {
		case KindDirectQuery:
			sets.DirectQuery = set
		case KindEmotion:
			sets.Emotion = set
		case KindPersonal:
			sets.Personal = set
		}
	}
	return sets
}
