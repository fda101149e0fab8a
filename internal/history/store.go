package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/garyellow/tamly-chatbot-go/internal/logger"
	"github.com/garyellow/tamly-chatbot-go/internal/textnorm"
)

// Store is the chat-history file. Every write rewrites the whole file.
// It is safe for concurrent use within one process.
type Store struct {
	path string
	log  *logger.Logger

	mu sync.Mutex
}

// NewStore returns a store backed by path. The file need not exist.
func NewStore(path string, log *logger.Logger) *Store {
	if log == nil {
		log = logger.New("info")
	}
	return &Store{path: path, log: log.WithModule("history")}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load returns every saved conversation in file order. An absent, empty or
// malformed file reads as empty history.
func (s *Store) Load() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	convs, _ := s.read()
	return convs
}

// List is Load; it exists for symmetry with Get and Search.
func (s *Store) List() []Conversation { return s.Load() }

// Get returns the conversation called name.
func (s *Store) Get(name string) (Conversation, bool) {
	for _, c := range s.Load() {
		if c.Name == name {
			return c, true
		}
	}
	return Conversation{}, false
}

// Search returns conversations with a message containing query, ignoring
// case. Each conversation appears at most once, in file order.
func (s *Store) Search(query string) []Conversation {
	q := textnorm.Fold(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var found []Conversation
	for _, c := range s.Load() {
		for _, m := range c.Messages {
			if strings.Contains(textnorm.Fold(m.Content), q) {
				found = append(found, c)
				break
			}
		}
	}
	return found
}

// SaveConversation upserts messages under name. An existing entry keeps its
// position; a new one is appended. Empty transcripts are not saved.
func (s *Store) SaveConversation(name string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	if name == "" {
		name = DefaultName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	convs, malformed := s.read()
	if malformed {
		s.preserveMalformed()
	}

	replaced := false
	for i := range convs {
		if convs[i].Name == name {
			convs[i].Messages = messages
			replaced = true
			break
		}
	}
	if !replaced {
		convs = append(convs, Conversation{Name: name, Messages: messages})
	}
	return s.write(convs)
}

// Snapshot returns the raw file bytes, or nil when the file is absent.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// Replace validates data as a history document and overwrites the file.
func (s *Store) Replace(data []byte) error {
	var convs []Conversation
	if err := json.Unmarshal(data, &convs); err != nil {
		return fmt.Errorf("history: invalid snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(convs)
}

// read parses the file. malformed is true when the file has content that
// does not decode.
func (s *Store) read() (convs []Conversation, malformed bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.WithError(err).Warn("Failed to read chat history")
		}
		return nil, false
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, false
	}
	if err := json.Unmarshal(data, &convs); err != nil {
		s.log.WithError(err).Warn("Chat history is malformed, treating as empty")
		return nil, true
	}
	return convs, false
}

// preserveMalformed moves an undecodable file aside before it is overwritten.
func (s *Store) preserveMalformed() {
	dst := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().Unix())
	if err := os.Rename(s.path, dst); err != nil {
		s.log.WithError(err).Warn("Failed to move malformed chat history aside")
		return
	}
	s.log.WithField("path", dst).Warn("Moved malformed chat history aside")
}

func (s *Store) write(convs []Conversation) error {
	if convs == nil {
		convs = []Conversation{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(convs); err != nil {
		return fmt.Errorf("history: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("history: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("history: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("history: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("history: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("history: replace file: %w", err)
	}
	return nil
}
