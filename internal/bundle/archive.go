// Package bundle unpacks submission bundles and rewrites their metadata
// document.
package bundle

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ALT-F4-LLC/bundlepub/internal/model"
)

// Archive is an opened bundle. Entry names use forward slashes.
type Archive interface {
	fs.FS
	Close() error
}

// ArchiveReader opens bundle archives.
type ArchiveReader interface {
	Open(path string) (Archive, error)
}

// DefaultMaxEntryBytes bounds a single extracted entry when Unpacker has no
// explicit limit.
const DefaultMaxEntryBytes = int64(100 * 1024 * 1024)

// ZipReader opens zip-compatible archives from disk.
type ZipReader struct{}

// Open implements ArchiveReader.
func (ZipReader) Open(path string) (Archive, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// Unpacker extracts archives into a working directory.
type Unpacker struct {
	Reader        ArchiveReader
	MaxEntryBytes int64
}

// Unpack extracts every regular file of the archive at archivePath into
// workDir, which must not exist yet. It returns the relative paths written.
func (u *Unpacker) Unpack(archivePath, workDir string) ([]string, error) {
	const op = "unpack bundle"

	archive, err := u.Reader.Open(archivePath)
	if err != nil {
		return nil, model.Errorf(model.KindArchive, op, "opening %s as an archive: %w", filepath.Base(archivePath), err)
	}
	defer archive.Close()

	if err := os.MkdirAll(filepath.Dir(workDir), 0o755); err != nil {
		return nil, model.Errorf(model.KindArchive, op, "creating working directory parent: %w", err)
	}
	if err := os.Mkdir(workDir, 0o755); err != nil {
		return nil, model.Errorf(model.KindArchive, op, "creating working directory %s: %w", workDir, err)
	}

	var written []string
	err = fs.WalkDir(archive, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if name == "." {
			return nil
		}
		if !filepath.IsLocal(filepath.FromSlash(name)) {
			return fmt.Errorf("entry %q escapes the working directory", name)
		}
		dst := filepath.Join(workDir, filepath.FromSlash(name))
		if d.IsDir() {
			return os.MkdirAll(dst, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := u.extract(archive, name, dst); err != nil {
			return err
		}
		written = append(written, name)
		return nil
	})
	if err != nil {
		os.RemoveAll(workDir)
		return nil, model.Errorf(model.KindArchive, op, "extracting %s: %w", filepath.Base(archivePath), err)
	}
	return written, nil
}

func (u *Unpacker) extract(archive fs.FS, name, dst string) error {
	src, err := archive.Open(name)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	limit := u.MaxEntryBytes
	if limit <= 0 {
		limit = DefaultMaxEntryBytes
	}
	n, err := io.Copy(out, io.LimitReader(src, limit+1))
	if err == nil && n > limit {
		err = fmt.Errorf("entry %q exceeds %d bytes", name, limit)
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}
