package fs_test

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"go.trai.ch/gantry/internal/adapters/fs"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil { //nolint:gosec // Test directory permissions
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil { //nolint:gosec // Test file permissions
		t.Fatal(err)
	}
}

func TestWalker_WalkFiles(t *testing.T) {
	// Create temp directory structure
	// tmp/
	//   .git/
	//     config
	//   ignored/
	//     file
	//   src/
	//     main.py
	//   debug.log
	//   README.md

	tmpDir := t.TempDir()

	writeFile(t, filepath.Join(tmpDir, ".git", "config"), "git config")
	writeFile(t, filepath.Join(tmpDir, "ignored", "file"), "ignored content")
	writeFile(t, filepath.Join(tmpDir, "src", "main.py"), "print('hi')")
	writeFile(t, filepath.Join(tmpDir, "debug.log"), "log line")
	writeFile(t, filepath.Join(tmpDir, "README.md"), "# Readme")

	walker := fs.NewWalker()
	ignores := []string{"ignored", "*.log"}

	files := make(map[string]bool)
	for path := range walker.WalkFiles(tmpDir, ignores) {
		rel, err := filepath.Rel(tmpDir, path)
		if err != nil {
			t.Fatal(err)
		}
		files[rel] = true
	}

	if files[filepath.Join(".git", "config")] {
		t.Error("expected .git/config to be skipped")
	}
	if files[filepath.Join("ignored", "file")] {
		t.Error("expected ignored/file to be skipped")
	}
	if files["debug.log"] {
		t.Error("expected debug.log to be skipped")
	}
	if !files[filepath.Join("src", "main.py")] {
		t.Error("expected src/main.py to be found")
	}
	if !files["README.md"] {
		t.Error("expected README.md to be found")
	}
}

func TestHasher_HashFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "input.txt")
	writeFile(t, path, "hello world")

	hasher := fs.NewHasher(fs.NewWalker())

	hash1, err := hasher.HashFile(path)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}

	if hash1 == 0 {
		t.Error("expected non-zero hash")
	}

	// Verify determinism
	hash2, err := hasher.HashFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if hash1 != hash2 {
		t.Error("expected deterministic hash")
	}
}

func TestHasher_HashFile_Missing(t *testing.T) {
	hasher := fs.NewHasher(fs.NewWalker())

	if _, err := hasher.HashFile(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestHasher_HashFiles(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "requirements.txt"), "pandas==1.2.3\n")
	writeFile(t, filepath.Join(tmpDir, "requirements_test.txt"), "pytest==6.0\n")

	hasher := fs.NewHasher(fs.NewWalker())

	hash1, err := hasher.HashFiles(tmpDir, []string{"requirements*.txt"})
	if err != nil {
		t.Fatalf("HashFiles failed: %v", err)
	}

	if !regexp.MustCompile(`^[0-9a-f]{16}$`).MatchString(hash1) {
		t.Errorf("expected 16 hex characters, got %q", hash1)
	}

	// The same file set through different patterns yields the same digest.
	hash2, err := hasher.HashFiles(tmpDir, []string{"requirements_test.txt", "requirements.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if hash1 != hash2 {
		t.Errorf("expected pattern order to be irrelevant: %q vs %q", hash1, hash2)
	}

	// Content changes change the digest.
	writeFile(t, filepath.Join(tmpDir, "requirements.txt"), "pandas==2.0.0\n")
	hash3, err := hasher.HashFiles(tmpDir, []string{"requirements*.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if hash1 == hash3 {
		t.Error("expected digest to change when file content changes")
	}
}

func TestHasher_HashFiles_NoMatches(t *testing.T) {
	hasher := fs.NewHasher(fs.NewWalker())

	hash, err := hasher.HashFiles(t.TempDir(), []string{"requirements*.txt"})
	if err != nil {
		t.Fatalf("HashFiles failed: %v", err)
	}

	if hash != "" {
		t.Errorf("expected empty digest for zero matches, got %q", hash)
	}
}

func TestHasher_HashFiles_Recursive(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "services", "api", "requirements.txt"), "flask\n")

	hasher := fs.NewHasher(fs.NewWalker())

	recursive, err := hasher.HashFiles(tmpDir, []string{"**/requirements.txt"})
	if err != nil {
		t.Fatalf("HashFiles failed: %v", err)
	}

	explicit, err := hasher.HashFiles(tmpDir, []string{"services/api/requirements.txt"})
	if err != nil {
		t.Fatal(err)
	}

	if recursive != explicit {
		t.Errorf("expected identical digests for identical file sets: %q vs %q", recursive, explicit)
	}

	// A doublestar pattern also matches at the root.
	writeFile(t, filepath.Join(tmpDir, "requirements.txt"), "uwsgi\n")
	both, err := hasher.HashFiles(tmpDir, []string{"**/requirements.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if both == recursive {
		t.Error("expected digest to change when a new file matches")
	}
}

func TestHasher_HashFiles_DirectoryMatch(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "vendor", "a.txt"), "a")
	writeFile(t, filepath.Join(tmpDir, "vendor", "b.txt"), "b")

	hasher := fs.NewHasher(fs.NewWalker())

	viaDir, err := hasher.HashFiles(tmpDir, []string{"vendor"})
	if err != nil {
		t.Fatalf("HashFiles failed: %v", err)
	}

	viaGlob, err := hasher.HashFiles(tmpDir, []string{"vendor/*.txt"})
	if err != nil {
		t.Fatal(err)
	}

	if viaDir != viaGlob {
		t.Errorf("expected directory match to expand to contained files: %q vs %q", viaDir, viaGlob)
	}
}

func TestHasher_HashFiles_BadPattern(t *testing.T) {
	hasher := fs.NewHasher(fs.NewWalker())

	if _, err := hasher.HashFiles(t.TempDir(), []string{"["}); err == nil {
		t.Fatal("expected error for malformed pattern")
	}

	if _, err := hasher.HashFiles(t.TempDir(), []string{"**/["}); err == nil {
		t.Fatal("expected error for malformed doublestar pattern")
	}
}
