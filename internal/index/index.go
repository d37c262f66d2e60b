package index

import "github.com/dverna/wisp/internal/models"

// NoteIndex defines the interface for note indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type NoteIndex interface {
	UpsertNote(n NoteRow, body string, links []string) error
	DeleteNote(identity string) error
	GetNote(identity string) (*NoteRow, error)
	GetChecksum(identity string) (string, error)
	ListNotes(limit, offset int, sort string) ([]NoteRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Backlinks(target string) ([]string, error)
	Stubs() ([]string, error)
	Links() ([]models.Link, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)

// Applier receives the same note mutations as the index so the
// in-memory link graph stays in lockstep with the tables. The engine
// is the production implementation.
type Applier interface {
	UpsertNote(identity, rawText string) (created []string, err error)
	RemoveNote(identity string) error
}
