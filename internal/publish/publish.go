// Package publish moves a prepared bundle into the vendor-partitioned publish
// tree.
package publish

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/ALT-F4-LLC/bundlepub/internal/model"
)

// FileMover is the filesystem surface the publisher needs.
type FileMover interface {
	// EnsureDir creates dir if it does not exist. An existing directory is
	// left as it is.
	EnsureDir(dir string) error
	// Move relocates the file src to dst, replacing dst if present.
	Move(src, dst string) error
}

// OSMover implements FileMover on the local filesystem.
type OSMover struct{}

// EnsureDir implements FileMover.
func (OSMover) EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// Move implements FileMover. It renames when possible and copies across
// filesystems.
func (OSMover) Move(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Publisher places bundles under Root/<vendor>/<exportID>.
type Publisher struct {
	Root  string
	Mover FileMover
}

// ExportDir returns the publish directory for a vendor and export id, after
// checking both are safe single path elements.
func (p *Publisher) ExportDir(vendor, exportID string) (string, error) {
	if err := checkElement("vendor", vendor); err != nil {
		return "", err
	}
	if err := checkElement("export id", exportID); err != nil {
		return "", err
	}
	return filepath.Join(p.Root, vendor, exportID), nil
}

// EnsureExportDir creates Root, Root/vendor and Root/vendor/exportID as
// needed and returns the export directory. Calling it again is a no-op.
func (p *Publisher) EnsureExportDir(vendor, exportID string) (string, error) {
	const op = "create publish directory"

	dir, err := p.ExportDir(vendor, exportID)
	if err != nil {
		return "", model.Wrap(model.KindPublish, op, err)
	}
	for _, d := range []string{p.Root, filepath.Join(p.Root, vendor), dir} {
		if err := p.Mover.EnsureDir(d); err != nil {
			return "", model.Errorf(model.KindPublish, op, "creating %s: %w", d, err)
		}
	}
	return dir, nil
}

// Publish moves every file under workDir, then the archive itself, into the
// export directory. The emptied working directory is removed afterwards.
func (p *Publisher) Publish(workDir, archivePath, vendor, exportID string) (*model.Published, error) {
	const op = "publish bundle"

	dir, err := p.EnsureExportDir(vendor, exportID)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(workDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		dst := filepath.Join(dir, rel)
		if d.IsDir() {
			return p.Mover.EnsureDir(dst)
		}
		if err := p.Mover.Move(path, dst); err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, model.Errorf(model.KindPublish, op, "moving bundle contents to %s: %w", dir, err)
	}

	archiveName := filepath.Base(archivePath)
	if err := p.Mover.Move(archivePath, filepath.Join(dir, archiveName)); err != nil {
		return nil, model.Errorf(model.KindPublish, op, "moving %s to %s: %w", archiveName, dir, err)
	}
	files = append(files, archiveName)

	// Only empty directories remain; a leftover file keeps the directory.
	_ = removeEmptyDirs(workDir)

	sort.Strings(files)
	return &model.Published{
		Vendor:   vendor,
		ExportID: exportID,
		Dir:      dir,
		Archive:  filepath.Join(dir, archiveName),
		Files:    files,
	}, nil
}

// removeEmptyDirs removes root and its subdirectories, deepest first, as long
// as they are empty.
func removeEmptyDirs(root string) error {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Remove(dirs[i]); err != nil {
			return err
		}
	}
	return nil
}

func checkElement(what, name string) error {
	if name == "" {
		return fmt.Errorf("%s is empty", what)
	}
	if name == "." || strings.ContainsAny(name, `/\`) || name != filepath.Base(name) || !filepath.IsLocal(name) {
		return fmt.Errorf("%s %q is not a plain directory name", what, name)
	}
	return nil
}
