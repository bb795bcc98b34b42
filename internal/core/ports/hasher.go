package ports

// Hasher defines the interface for computing file hashes.
//
//go:generate mockgen -destination=mocks/hasher_mock.go -package=mocks -source=hasher.go
type Hasher interface {
	// HashFiles computes a single digest over all files matching the glob
	// patterns, resolved relative to root. Patterns with no matches
	// contribute nothing; no matches at all yields the empty string.
	HashFiles(root string, patterns []string) (string, error)

	// HashFile computes the digest of a single file's content.
	HashFile(path string) (uint64, error)
}
