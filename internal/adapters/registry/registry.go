// Package registry holds the in-memory artifact index. It is process-wide
// state with a defined lifecycle: empty at startup, drained by the sweep,
// lost on restart.
package registry

import (
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecoskun/depstash/internal/core/domain"
)

// Registry implements ports.ArtifactRegistry. Entries are keyed by random
// identifiers, so a valid id cannot be enumerated or predicted from
// outside. The lock only guards the map; storage deletion always happens
// outside it.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]domain.Artifact

	logger *zap.Logger

	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		entries: make(map[string]domain.Artifact),
		logger:  logger.With(zap.String("component", "artifact_registry")),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Put inserts the artifact under a freshly generated identifier and
// returns it. Safe for concurrent insertion from multiple in-flight
// builds; uuid collisions are not a practical concern.
func (r *Registry) Put(artifact domain.Artifact) string {
	id := uuid.NewString()
	artifact.ID = id

	r.mu.Lock()
	r.entries[id] = artifact
	r.mu.Unlock()

	r.logger.Info("artifact registered",
		zap.String("id", id),
		zap.Int64("size", artifact.Size),
		zap.Time("expires_at", artifact.ExpiresAt),
	)
	return id
}

// Get looks an artifact up without side effects.
func (r *Registry) Get(id string) (domain.Artifact, error) {
	r.mu.RLock()
	entry, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return domain.Artifact{}, domain.ErrNotFound
	}
	return entry, nil
}

// TakeIfLive looks an artifact up and checks its deadline. An entry found
// past its deadline is removed and its storage reclaimed before reporting
// ErrExpired, so no caller ever holds a path the registry considers dead.
// An id the registry has no entry for is ErrNotFound, whether it never
// existed or was already swept; after eviction nothing distinguishes the
// two, and deletion is authoritative.
func (r *Registry) TakeIfLive(id string) (domain.Artifact, error) {
	now := time.Now()

	r.mu.Lock()
	entry, ok := r.entries[id]
	if ok && !entry.Live(now) {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	if !ok {
		return domain.Artifact{}, domain.ErrNotFound
	}
	if !entry.Live(now) {
		r.reclaim(entry)
		return domain.Artifact{}, domain.ErrExpired
	}
	return entry, nil
}

// Sweep removes every entry whose deadline is at or before now and
// reclaims its storage. The expired set is snapshotted under the lock;
// file deletion runs after the lock is released so lookups are never
// serialized behind disk I/O. Returns the number of evicted entries.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	var expired []domain.Artifact
	for id, entry := range r.entries {
		if !entry.Live(now) {
			expired = append(expired, entry)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, entry := range expired {
		r.reclaim(entry)
	}
	if len(expired) > 0 {
		r.logger.Info("sweep evicted artifacts", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Len reports the current number of live entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// StartSweeper runs Sweep on a fixed period until Stop is called. The
// period is independent of request traffic.
func (r *Registry) StartSweeper(interval time.Duration) {
	r.started = true
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Sweep(time.Now())
			case <-r.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweeper goroutine and waits for it to exit. Calling
// Stop on a registry whose sweeper was never started is a no-op.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	if r.started {
		<-r.done
	}
}

// reclaim removes the workspace behind an evicted entry. An already-gone
// directory is fine: the pipeline's failure cleanup and the sweep may
// race, and os.RemoveAll treats absent paths as success.
func (r *Registry) reclaim(entry domain.Artifact) {
	if entry.Workspace == "" {
		return
	}
	if err := os.RemoveAll(entry.Workspace); err != nil {
		r.logger.Error("failed to reclaim artifact storage",
			zap.String("id", entry.ID),
			zap.String("workspace", entry.Workspace),
			zap.Error(err),
		)
	}
}
