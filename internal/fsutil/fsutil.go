// Package fsutil holds the filesystem primitives the ISOD engine builds
// on: recursive copy for the overlay assembly phase, and an atomically
// published per-task manifest of produced files.
package fsutil

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio"
	"github.com/samber/lo"
)

// ListFilesRelative walks root and returns every regular file's path
// relative to root, using "/" as the separator regardless of OS, sorted
// lexicographically.
func ListFilesRelative(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// CopyTree recursively copies every file under src into dst, creating
// directories as needed and preserving the relative layout. It is used
// by the engine's assembly phase to overlay each task's done directory
// into the final build directory.
func CopyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}

	// Preserve the source's mtime so repeated, idempotent overlays (the
	// same done directory copied into buildDir on every Execute, cache
	// hit or not) never stamp a fresh mtime on an unchanged file.
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// Manifest is the sorted list of relative output paths a task produced,
// persisted alongside (not inside) its done directory so the engine's
// validation phase does not have to re-walk the filesystem on every run.
type Manifest struct {
	Files []string `json:"files"`
}

// WriteManifest atomically publishes the manifest for signature sig into
// manifestDir/<sig>.json: a crash mid-write leaves either the old
// manifest or nothing, never a half-written one, because the write goes
// through a renameio temp-file-then-rename.
func WriteManifest(manifestDir, sig string, files []string) error {
	if err := os.MkdirAll(manifestDir, 0o755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}
	sorted := lo.Uniq(files)
	sort.Strings(sorted)

	dest := filepath.Join(manifestDir, sig+".json")
	f, err := renameio.TempFile("", dest)
	if err != nil {
		return fmt.Errorf("creating temp manifest for %s: %w", sig, err)
	}
	defer f.Cleanup()

	if err := json.NewEncoder(f).Encode(Manifest{Files: sorted}); err != nil {
		return fmt.Errorf("encoding manifest for %s: %w", sig, err)
	}
	return f.CloseAtomicallyReplace()
}

// ReadManifest loads a previously published manifest. If it is missing
// (e.g. an older cache entry predating manifest support, or one lost to
// a crash between the done-directory rename and the manifest write) the
// caller should fall back to ListFilesRelative against the done
// directory itself.
func ReadManifest(manifestDir, sig string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(manifestDir, sig+".json"))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
