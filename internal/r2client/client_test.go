package r2client

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// memStore is an in-memory ObjectStore with ETag semantics.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	etags   map[string]string
	seq     int
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, etags: map[string]string{}}
}

func (m *memStore) write(key string, data []byte) string {
	m.seq++
	m.objects[key] = append([]byte(nil), data...)
	m.etags[key] = "etag-" + strconv.Itoa(m.seq)
	return m.etags[key]
}

func (m *memStore) PutIfAbsent(_ context.Context, key string, data []byte, _ string) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; ok {
		return false, "", nil
	}
	return true, m.write(key, data), nil
}

func (m *memStore) PutIfMatch(_ context.Context, key string, data []byte, etag, _ string) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.etags[key] != etag {
		return false, "", nil
	}
	return true, m.write(key, data), nil
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, "", ErrNotFound
	}
	return data, m.etags[key], nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	delete(m.etags, key)
	return nil
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	full := Config{Endpoint: "https://acc.r2.cloudflarestorage.com", AccessKeyID: "id", SecretKey: "s", BucketName: "b"}
	if err := full.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	err := Config{Endpoint: "e"}.Validate()
	if err == nil {
		t.Fatal("Validate() should fail for missing fields")
	}
	for _, want := range []string{"access key id", "secret key", "bucket name"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %q", err, want)
		}
	}
}

func TestLease_ExclusiveUntilExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newMemStore()
	now := time.Date(2025, 1, 20, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	a := NewLease(store, "locks/history", time.Minute)
	b := NewLease(store, "locks/history", time.Minute)
	a.now, b.now = clock, clock

	if a.Owner() == b.Owner() {
		t.Fatal("owners should be unique")
	}

	if ok, err := a.Acquire(ctx); err != nil || !ok {
		t.Fatalf("a.Acquire() = %v, %v", ok, err)
	}
	if ok, err := b.Acquire(ctx); err != nil || ok {
		t.Fatalf("b.Acquire() while held = %v, %v", ok, err)
	}

	// a renews while holding
	if ok, err := a.Acquire(ctx); err != nil || !ok {
		t.Fatalf("a renew = %v, %v", ok, err)
	}

	now = now.Add(2 * time.Minute)
	if ok, err := b.Acquire(ctx); err != nil || !ok {
		t.Fatalf("b.Acquire() after expiry = %v, %v", ok, err)
	}

	// a lost the lease; its release must not delete b's record
	if err := a.Release(ctx); err != nil {
		t.Fatalf("a.Release() = %v", err)
	}
	data, _, err := store.Get(ctx, "locks/history")
	if err != nil {
		t.Fatalf("lease record gone: %v", err)
	}
	var rec leaseRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.Owner != b.Owner() {
		t.Errorf("record owner = %q, want %q", rec.Owner, b.Owner())
	}

	if err := b.Release(ctx); err != nil {
		t.Fatalf("b.Release() = %v", err)
	}
	if _, _, err := store.Get(ctx, "locks/history"); err != ErrNotFound {
		t.Errorf("record should be deleted, got %v", err)
	}
}

func TestCompressRoundTrip(t *testing.T) {
	t.Parallel()

	data := []byte(strings.Repeat(`{"name":"Hôm nay tôi buồn","messages":[]},`, 500))
	compressed, err := Compress(data)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if len(compressed) >= len(data) {
		t.Errorf("compressed size %d should be below %d", len(compressed), len(data))
	}

	got, err := Decompress(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("round trip mismatch")
	}
}

func TestDecompress_Garbage(t *testing.T) {
	t.Parallel()
	if _, err := Decompress(strings.NewReader("not zstd at all")); err == nil {
		t.Error("Decompress() should fail on garbage")
	}
}
