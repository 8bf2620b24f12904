package domain

import "time"

// Artifact is one downloadable build product tracked by the registry.
// The registry owns the entry (and the workspace behind Path) from the
// moment it is inserted until it is evicted.
type Artifact struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`      // archive file on disk
	Workspace string    `json:"workspace"` // directory that produced it, reclaimed on eviction
	Size      int64     `json:"size"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Live reports whether the artifact is still downloadable at the given instant.
func (a Artifact) Live(now time.Time) bool {
	return now.Before(a.ExpiresAt)
}

// BuildReceipt is what a successful build hands back to the client-facing
// layer: the generated identifier and its expiry.
type BuildReceipt struct {
	ID        string
	ExpiresAt time.Time
}
