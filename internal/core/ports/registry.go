package ports

import "github.com/ecoskun/depstash/internal/core/domain"

// ArtifactRegistry is the time-boxed, identifier-keyed index of artifacts
// awaiting download or eviction. It is the only state shared across
// concurrent builds, downloads, and the background sweep, so every
// implementation must be safe for concurrent use.
type ArtifactRegistry interface {
	// Put inserts the artifact under a freshly generated unguessable
	// identifier and returns it.
	Put(artifact domain.Artifact) string

	// Get looks an artifact up without side effects. Returns
	// domain.ErrNotFound for unknown identifiers.
	Get(id string) (domain.Artifact, error)

	// TakeIfLive looks an artifact up and checks its expiry against the
	// current time. An expired entry is removed (and its storage reclaimed)
	// as a side effect, reported as domain.ErrExpired; an unknown
	// identifier is domain.ErrNotFound.
	TakeIfLive(id string) (domain.Artifact, error)
}
