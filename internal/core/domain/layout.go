package domain

import "path/filepath"

const (
	// GantryDirName is the name of the per-repository gantry directory.
	GantryDirName = ".gantry"

	// WorkflowsDirName is the name of the workflow definition directory.
	WorkflowsDirName = "workflows"

	// EntriesDirName is the name of the cache entries directory.
	EntriesDirName = "entries"

	// IndexFileName is the name of the cache and toolchain index files.
	IndexFileName = "index.json"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// DefaultWorkflowsPath returns the workflow discovery directory relative to a
// repository root. It joins .gantry and workflows.
func DefaultWorkflowsPath() string {
	return filepath.Join(GantryDirName, WorkflowsDirName)
}
