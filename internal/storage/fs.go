package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dverna/wisp/internal/apperr"
	"github.com/dverna/wisp/internal/checksum"
	"github.com/dverna/wisp/internal/models"
)

const noteExt = ".md"

// FS implements Provider backed by the local file system. A note with
// identity "topics/go" lives at <root>/topics/go.md.
type FS struct {
	root string // absolute path to vault directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Identity converts a vault-relative file path into a note identity.
func Identity(rel string) string {
	return strings.TrimSuffix(filepath.ToSlash(rel), noteExt)
}

// safePath resolves a note identity against the vault root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(identity string) (string, error) {
	if identity == "" {
		return "", fmt.Errorf("storage: empty identity: %w", apperr.ErrInvalidIdentity)
	}
	cleaned := filepath.Clean(filepath.FromSlash(identity) + noteExt)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute identity %q: %w", identity, apperr.ErrInvalidIdentity)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	// Ensure the resolved path is still under root.
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: identity %q escapes vault root: %w", identity, apperr.ErrInvalidIdentity)
	}
	return abs, nil
}

// List walks dir (identity prefix, empty for the whole vault) and
// returns metadata for every note found.
func (f *FS) List(dir string) ([]models.NoteMetadata, error) {
	base := f.root
	if dir != "" {
		cleaned := filepath.Clean(filepath.FromSlash(dir))
		if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
			return nil, fmt.Errorf("storage: invalid list prefix: %s", dir)
		}
		base = filepath.Join(f.root, cleaned)
	}
	var out []models.NoteMetadata
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), noteExt) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(f.root, p)
		out = append(out, models.NoteMetadata{
			Identity:  Identity(rel),
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// Read returns the raw bytes of a note.
func (f *FS) Read(identity string) ([]byte, error) {
	abs, err := f.safePath(identity)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", identity, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(identity string, content []byte) error {
	abs, err := f.safePath(identity)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".wisp-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes a note from the vault.
func (f *FS) Delete(identity string) error {
	abs, err := f.safePath(identity)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", identity, err)
	}
	return nil
}

// Move renames a note within the vault.
func (f *FS) Move(oldIdentity, newIdentity string) error {
	absOld, err := f.safePath(oldIdentity)
	if err != nil {
		return err
	}
	absNew, err := f.safePath(newIdentity)
	if err != nil {
		return err
	}
	dir := filepath.Dir(absNew)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir for move: %w", err)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("storage: move: %w", err)
	}
	return nil
}
