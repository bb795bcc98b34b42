package cache

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mholt/archives"
	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/zerr"
)

var archiveFormat = archives.CompressedArchive{
	Compression: archives.Gz{},
	Archival:    archives.Tar{},
}

// createArchive writes a tar.gz of the given sources. Keys are disk paths,
// values their member names inside the archive.
func createArchive(ctx context.Context, sources map[string]string, archivePath string) error {
	files, err := archives.FilesFromDisk(ctx, nil, sources)
	if err != nil {
		return zerr.Wrap(err, "failed to collect cache files")
	}

	if err := os.MkdirAll(filepath.Dir(archivePath), domain.DirPerm); err != nil {
		return zerr.Wrap(err, "failed to create cache entry directory")
	}

	//nolint:gosec // Path is derived from the store directory
	out, err := os.Create(archivePath)
	if err != nil {
		return zerr.Wrap(err, "failed to create cache archive")
	}
	defer func() {
		_ = out.Sync()
		_ = out.Close()
	}()

	if err := archiveFormat.Archive(ctx, out, files); err != nil {
		return zerr.Wrap(err, "failed to write cache archive")
	}
	return nil
}

// extractArchive unpacks an entry archive. Top-level members are named by
// the index of their target in paths.
func extractArchive(ctx context.Context, archivePath string, paths []string) error {
	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		return zerr.Wrap(err, "failed to open cache archive")
	}
	if closer, ok := fsys.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	return fs.WalkDir(fsys, ".", func(member string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if member == "." {
			return nil
		}

		target, err := memberTarget(member, paths)
		if err != nil {
			return err
		}

		if d.IsDir() {
			return os.MkdirAll(target, domain.DirPerm)
		}
		return writeMember(fsys, member, target, d)
	})
}

func memberTarget(member string, paths []string) (string, error) {
	first, rest, _ := strings.Cut(member, "/")
	i, err := strconv.Atoi(first)
	if err != nil || i < 0 || i >= len(paths) {
		return "", zerr.With(zerr.New("cache archive member outside saved paths"), "member", member)
	}
	if rest == "" {
		return paths[i], nil
	}
	return filepath.Join(paths[i], filepath.FromSlash(rest)), nil
}

func writeMember(fsys fs.FS, member, target string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return zerr.Wrap(err, "failed to read cache member info")
	}

	src, err := fsys.Open(member)
	if err != nil {
		return zerr.Wrap(err, "failed to open cache member")
	}
	defer func() { _ = src.Close() }()

	if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
		return zerr.Wrap(err, "failed to create cache target directory")
	}

	if info.Mode()&os.ModeSymlink != 0 {
		linkDest, err := io.ReadAll(src)
		if err != nil {
			return zerr.Wrap(err, "failed to read cache symlink")
		}
		_ = os.Remove(target)
		return os.Symlink(string(linkDest), target)
	}

	//nolint:gosec // Target is derived from the saved entry paths
	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return zerr.Wrap(err, "failed to create cache target file")
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		return zerr.Wrap(err, "failed to copy cache member")
	}
	return nil
}
