package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"time"
)

// CacheEntry represents one saved dependency cache archive in the store index.
type CacheEntry struct {
	Key       string    `json:"key"`
	Scope     string    `json:"scope"`
	Paths     []string  `json:"paths,omitzero"`
	Archive   string    `json:"archive,omitzero"`
	Size      int64     `json:"size,omitzero"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// CacheScope derives the store namespace for a repository root. Separate
// checkouts never share entries.
func CacheScope(root string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(root)))
	return hex.EncodeToString(sum[:8])
}

// CacheRestore describes how a cache step's lookup concluded. A zero value
// means the lookup missed entirely.
type CacheRestore struct {
	Key   string
	Exact bool
}

// Hit reports whether any entry was restored.
func (r CacheRestore) Hit() bool {
	return r.Key != ""
}
