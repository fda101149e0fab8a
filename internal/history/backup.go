package history

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/garyellow/tamly-chatbot-go/internal/logger"
	"github.com/garyellow/tamly-chatbot-go/internal/metrics"
	"github.com/garyellow/tamly-chatbot-go/internal/r2client"
)

// Remote is the object storage the backup writes to.
type Remote interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, string, error)
}

// Leaser coordinates backups between replicas.
type Leaser interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// BackupOptions configures a Backup.
type BackupOptions struct {
	// Lease, when set, must be held for an upload to proceed.
	Lease        Leaser
	InitialDelay time.Duration
	Metrics      *metrics.Metrics
	Logger       *logger.Logger
}

// Backup mirrors the history file to a zstd-compressed object.
type Backup struct {
	store  *Store
	remote Remote
	key    string
	opts   BackupOptions
	log    *logger.Logger

	lastSum [sha256.Size]byte
}

// NewBackup creates a backup of store under key.
func NewBackup(store *Store, remote Remote, key string, opts BackupOptions) *Backup {
	log := opts.Logger
	if log == nil {
		log = logger.New("info")
	}
	return &Backup{store: store, remote: remote, key: key, opts: opts, log: log.WithModule("history_backup")}
}

// Upload compresses the current file and writes it to the remote. It skips
// the upload when the file is absent or unchanged since the last upload.
// Upload is not safe for concurrent use.
func (b *Backup) Upload(ctx context.Context) error {
	data, err := b.store.Snapshot()
	if err != nil {
		b.opts.Metrics.RecordHistoryBackup("error")
		return fmt.Errorf("history backup: read: %w", err)
	}
	if len(data) == 0 {
		b.opts.Metrics.RecordHistoryBackup("skipped")
		return nil
	}
	sum := sha256.Sum256(data)
	if sum == b.lastSum {
		b.opts.Metrics.RecordHistoryBackup("skipped")
		return nil
	}

	if b.opts.Lease != nil {
		held, err := b.opts.Lease.Acquire(ctx)
		if err != nil {
			b.opts.Metrics.RecordHistoryBackup("error")
			return fmt.Errorf("history backup: lease: %w", err)
		}
		if !held {
			b.opts.Metrics.RecordHistoryBackup("skipped")
			return nil
		}
	}

	compressed, err := r2client.Compress(data)
	if err != nil {
		b.opts.Metrics.RecordHistoryBackup("error")
		return err
	}
	if _, err := b.remote.Put(ctx, b.key, compressed, "application/zstd"); err != nil {
		b.opts.Metrics.RecordHistoryBackup("error")
		return fmt.Errorf("history backup: upload: %w", err)
	}
	b.lastSum = sum
	b.opts.Metrics.RecordHistoryBackup("success")
	b.log.WithFields(map[string]any{
		"key":        b.key,
		"bytes":      len(data),
		"compressed": len(compressed),
	}).DebugContext(ctx, "Uploaded chat history backup")
	return nil
}

// Restore downloads the backup when the local file is absent or empty.
// It reports whether the local file was replaced.
func (b *Backup) Restore(ctx context.Context) (bool, error) {
	local, err := b.store.Snapshot()
	if err != nil {
		return false, fmt.Errorf("history restore: read local: %w", err)
	}
	if len(bytes.TrimSpace(local)) > 0 {
		return false, nil
	}

	compressed, _, err := b.remote.Get(ctx, b.key)
	if errors.Is(err, r2client.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("history restore: download: %w", err)
	}
	data, err := r2client.Decompress(bytes.NewReader(compressed))
	if err != nil {
		return false, fmt.Errorf("history restore: %w", err)
	}
	if err := b.store.Replace(data); err != nil {
		return false, fmt.Errorf("history restore: %w", err)
	}
	b.lastSum = sha256.Sum256(data)
	b.log.WithField("key", b.key).InfoContext(ctx, "Restored chat history from backup")
	return true, nil
}

// Run uploads on every interval tick until ctx is done, then makes a final
// upload and releases the lease.
func (b *Backup) Run(ctx context.Context, interval time.Duration) {
	if b.opts.InitialDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(b.opts.InitialDelay):
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := b.Upload(ctx); err != nil {
			b.log.WithError(err).WarnContext(ctx, "Chat history backup failed")
		}
		select {
		case <-ctx.Done():
			b.finish()
			return
		case <-ticker.C:
		}
	}
}

func (b *Backup) finish() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.Upload(ctx); err != nil {
		b.log.WithError(err).Warn("Final chat history backup failed")
	}
	if b.opts.Lease != nil {
		if err := b.opts.Lease.Release(ctx); err != nil {
			b.log.WithError(err).Warn("Failed to release backup lease")
		}
	}
}
