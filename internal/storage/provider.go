// Package storage defines the vault file-system abstraction. Notes
// are addressed by identity: the vault-relative path without the .md
// extension, using forward slashes.
package storage

import "github.com/dverna/wisp/internal/models"

// Provider is the interface for vault note operations.
type Provider interface {
	// List returns metadata for every note under dir (identity prefix,
	// empty for the whole vault).
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the note with the given identity.
	Read(identity string) ([]byte, error)
	// Write atomically writes a note's content.
	Write(identity string, content []byte) error
	// Delete removes the note with the given identity.
	Delete(identity string) error
	// Move renames a note from one identity to another.
	Move(oldIdentity, newIdentity string) error
}
