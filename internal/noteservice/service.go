// Package noteservice coordinates the vault, the SQLite index, and
// the in-memory link graph behind one editor-facing service.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dverna/wisp/internal/apperr"
	"github.com/dverna/wisp/internal/checksum"
	"github.com/dverna/wisp/internal/engine"
	"github.com/dverna/wisp/internal/extract"
	"github.com/dverna/wisp/internal/index"
	"github.com/dverna/wisp/internal/models"
	"github.com/dverna/wisp/internal/storage"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Identity  string    `json:"identity"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Checksum  string    `json:"checksum"`
	Links     []string  `json:"links"`
	Backlinks []string  `json:"backlinks"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Resolution is the outcome of following a link: the target's place
// in the graph, plus whether following it created a new note file.
type Resolution struct {
	models.LinkSummary
	Created bool `json:"created"`
}

// Service coordinates storage, index, and graph operations.
type Service struct {
	store storage.Provider
	db    *index.DB
	eng   *engine.Engine
}

// NewService creates a new note service.
func NewService(store storage.Provider, db *index.DB, eng *engine.Engine) *Service {
	return &Service{store: store, db: db, eng: eng}
}

// Engine exposes the underlying graph engine for snapshot consumers.
func (s *Service) Engine() *engine.Engine { return s.eng }

// GetNote reads a note from storage, scans it, and enriches it with
// backlinks from the index.
func (s *Service) GetNote(_ context.Context, identity string) (*NoteDetail, error) {
	data, err := s.store.Read(identity)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return s.buildNoteDetail(identity, data)
}

// CreateNote writes a new note and indexes it.
func (s *Service) CreateNote(_ context.Context, identity string, content []byte) (*NoteDetail, error) {
	if _, err := s.store.Read(identity); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(identity, content); err != nil {
		return nil, err
	}
	if err := s.IndexFile(identity, content); err != nil {
		return nil, err
	}
	return s.buildNoteDetail(identity, content)
}

// UpdateNote writes updated content with optimistic concurrency.
func (s *Service) UpdateNote(_ context.Context, identity string, content []byte, ifMatch string) (*NoteDetail, error) {
	existing, err := s.store.Read(identity)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	if err := s.store.Write(identity, content); err != nil {
		return nil, err
	}
	if err := s.IndexFile(identity, content); err != nil {
		return nil, err
	}
	return s.buildNoteDetail(identity, content)
}

// DeleteNote removes a note from storage, index, and graph. The graph
// node survives as a stub while other notes still link to it.
func (s *Service) DeleteNote(_ context.Context, identity string) error {
	if err := s.store.Delete(identity); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	if err := s.db.DeleteNote(identity); err != nil {
		return err
	}
	if err := s.eng.RemoveNote(identity); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	return nil
}

// ListNotes returns paginated notes.
func (s *Service) ListNotes(_ context.Context, limit, offset int, sort string) ([]index.NoteRow, int, error) {
	return s.db.ListNotes(limit, offset, sort)
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Stubs lists link targets with no note behind them.
func (s *Service) Stubs(_ context.Context) ([]string, error) {
	return s.db.Stubs()
}

// NoteLinks reports a note's outgoing links, backlinks, and stub flag
// from the graph.
func (s *Service) NoteLinks(_ context.Context, identity string) (models.LinkSummary, error) {
	return s.eng.Resolve(identity)
}

// Resolve follows a link the way the editor's jump command does:
// a stub target gets a skeleton note file created for it, so every
// jump lands on an editable note.
func (s *Service) Resolve(ctx context.Context, identity string) (*Resolution, error) {
	sum, err := s.eng.Resolve(identity)
	if errors.Is(err, apperr.ErrNotFound) {
		// Never linked and no file: nothing to resolve to.
		if _, readErr := s.store.Read(identity); readErr != nil {
			return nil, apperr.ErrNotFound
		}
		sum = models.LinkSummary{Identity: identity, Outgoing: []string{}, Incoming: []string{}}
	} else if err != nil {
		return nil, err
	}

	if !sum.Stub {
		if _, err := s.store.Read(identity); err == nil {
			return &Resolution{LinkSummary: sum}, nil
		}
	}

	// Stub target: materialize the note.
	content := []byte(fmt.Sprintf("# %s\n", identity))
	if err := s.store.Write(identity, content); err != nil {
		return nil, err
	}
	if err := s.IndexFile(identity, content); err != nil {
		return nil, err
	}
	sum, err = s.eng.Resolve(identity)
	if err != nil {
		return nil, err
	}
	return &Resolution{LinkSummary: sum, Created: true}, nil
}

// IndexFile scans data and upserts it into both the index and the
// graph. Exported so that sync and watcher can reuse it.
func (s *Service) IndexFile(identity string, data []byte) error {
	res := extract.Scan(data)
	if err := s.db.UpsertNote(index.NoteRow{
		Identity:  identity,
		Title:     res.Title,
		Checksum:  checksum.Sum(data),
		UpdatedAt: time.Now(),
	}, res.Body, res.Links); err != nil {
		return err
	}
	_, err := s.eng.UpsertNote(identity, string(data))
	return err
}

// buildNoteDetail constructs a NoteDetail from raw data without re-reading the file.
func (s *Service) buildNoteDetail(identity string, data []byte) (*NoteDetail, error) {
	res := extract.Scan(data)
	bl, err := s.db.Backlinks(identity)
	if err != nil {
		return nil, err
	}
	return &NoteDetail{
		Identity:  identity,
		Title:     res.Title,
		Content:   string(data),
		Checksum:  checksum.Sum(data),
		Links:     nonNilSlice(res.Links),
		Backlinks: nonNilSlice(bl),
		UpdatedAt: time.Now(),
	}, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
