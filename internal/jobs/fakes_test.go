package jobs_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/code-brew-house/brewy-backend/internal/jobs"
	"github.com/google/uuid"
)

// memCache is an in-memory cache.Cache.
type memCache struct {
	mu       sync.Mutex
	values   map[string][]byte
	statuses map[uuid.UUID]string
	counters map[string]int64
}

func newMemCache() *memCache {
	return &memCache{
		values:   make(map[string][]byte),
		statuses: make(map[uuid.UUID]string),
		counters: make(map[string]int64),
	}
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

func (c *memCache) Ping(_ context.Context) error { return nil }

func (c *memCache) SetJobStatus(_ context.Context, jobID uuid.UUID, status string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[jobID] = status
	return nil
}

func (c *memCache) GetJobStatus(_ context.Context, jobID uuid.UUID) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.statuses[jobID]
	return s, ok, nil
}

func (c *memCache) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key]++
	return c.counters[key], nil
}

// fakeDispatcher records payloads and fails on demand.
type fakeDispatcher struct {
	mu       sync.Mutex
	payloads []jobs.DispatchPayload
	err      error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, payload jobs.DispatchPayload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.payloads = append(d.payloads, payload)
	return nil
}

func (d *fakeDispatcher) calls() []jobs.DispatchPayload {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]jobs.DispatchPayload(nil), d.payloads...)
}

// fakeObjectStore records puts and presigns deterministic URLs.
type fakeObjectStore struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (o *fakeObjectStore) Put(_ context.Context, key string, _ io.Reader, _ int64, _ string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return "", o.err
	}
	o.keys = append(o.keys, key)
	return "http://storage.local/brewy-audio/" + key, nil
}

func (o *fakeObjectStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	if o.err != nil {
		return "", o.err
	}
	return fmt.Sprintf("http://storage.local/brewy-audio/%s?signed=1", key), nil
}

func (o *fakeObjectStore) Ping(_ context.Context) error { return nil }
