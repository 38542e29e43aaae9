package respcache

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestCache() *Cache {
	store := NewMemoryStore(time.Minute, time.Minute)
	return NewCache(store, nil, time.Minute, log.New(io.Discard, "", 0))
}

func TestRoundTrip(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()

	key := Fingerprint(FingerprintInput{TenantId: "t1", Message: "what teas help with sleep"})
	c.Put(ctx, key, []byte("chamomile"), 50*time.Millisecond, nil)

	got, ok := c.Get(ctx, key)
	if !ok || string(got) != "chamomile" {
		t.Fatalf("Get = (%q, %v), want hit with chamomile", got, ok)
	}

	time.Sleep(60 * time.Millisecond)
	if _, ok := c.Get(ctx, key); ok {
		t.Fatal("expired entry must read as a miss")
	}
}

func TestInFlightCollapse(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()

	var computes int32
	release := make(chan struct{})
	compute := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&computes, 1)
		<-release
		return []byte("result"), nil
	}

	const callers = 10
	var wg sync.WaitGroup
	results := make([][]byte, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := c.GetOrCompute(ctx, "same-key", time.Minute, nil, compute)
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
			}
			results[i] = v
		}(i)
	}

	// Give every caller time to reach the flight before releasing it.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&computes); n != 1 {
		t.Fatalf("compute ran %d times for %d concurrent misses, want 1", n, callers)
	}
	for i, v := range results {
		if string(v) != "result" {
			t.Fatalf("caller %d got %q", i, v)
		}
	}
}

func TestTagInvalidation(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()

	c.Put(ctx, "k1", []byte("v1"), time.Minute, []string{"product:123"})
	c.Put(ctx, "k2", []byte("v2"), time.Minute, []string{"product:123", "tenant:a"})
	c.Put(ctx, "k3", []byte("v3"), time.Minute, []string{"product:456"})

	removed, err := c.Invalidate(ctx, "product:123")
	if err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}

	if _, ok := c.Get(ctx, "k1"); ok {
		t.Fatal("k1 should be gone")
	}
	if _, ok := c.Get(ctx, "k2"); ok {
		t.Fatal("k2 should be gone")
	}
	if _, ok := c.Get(ctx, "k3"); !ok {
		t.Fatal("k3 with another tag must survive")
	}
}

func TestFlush(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()

	c.Put(ctx, "k1", []byte("v1"), time.Minute, nil)
	c.Put(ctx, "k2", []byte("v2"), time.Minute, nil)

	removed, err := c.Flush(ctx)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if _, ok := c.Get(ctx, "k1"); ok {
		t.Fatal("flush must remove everything")
	}
}

type downStore struct{}

func (downStore) Get(ctx context.Context, key string) (*Entry, error) {
	return nil, errors.New("backend down")
}
func (downStore) Set(ctx context.Context, key string, entry *Entry) error {
	return errors.New("backend down")
}
func (downStore) Delete(ctx context.Context, key string) error { return errors.New("backend down") }
func (downStore) DeleteByTag(ctx context.Context, tag string) (int, error) {
	return 0, errors.New("backend down")
}
func (downStore) Flush(ctx context.Context) (int, error) { return 0, errors.New("backend down") }
func (downStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, errors.New("backend down")
}

func TestBackendDownDegradesToMiss(t *testing.T) {
	c := NewCache(downStore{}, nil, time.Minute, log.New(io.Discard, "", 0))
	ctx := context.Background()

	// The request still succeeds: compute runs, the put is dropped.
	v, _, err := c.GetOrCompute(ctx, "key", time.Minute, nil, func(ctx context.Context) ([]byte, error) {
		return []byte("computed"), nil
	})
	if err != nil {
		t.Fatalf("GetOrCompute with dead backend must not fail the request: %v", err)
	}
	if string(v) != "computed" {
		t.Fatalf("got %q", v)
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint(FingerprintInput{
		TenantId: "t1",
		Stage:    "discovery",
		Model:    "llama3",
		Message:  "  What   teas help with SLEEP ",
		Extras:   map[string]string{"persona": "default", "lang": "en"},
	})
	b := Fingerprint(FingerprintInput{
		TenantId: "t1",
		Stage:    "discovery",
		Model:    "llama3",
		Message:  "what teas help with sleep",
		Extras:   map[string]string{"lang": "en", "persona": "default"},
	})
	if a != b {
		t.Fatal("normalized messages and reordered extras must share a key")
	}

	other := Fingerprint(FingerprintInput{
		TenantId: "t2",
		Stage:    "discovery",
		Model:    "llama3",
		Message:  "what teas help with sleep",
	})
	if a == other {
		t.Fatal("different tenants must not collide")
	}

	if len(a) != 64 {
		t.Fatalf("fingerprint length = %d, want 64", len(a))
	}
}
