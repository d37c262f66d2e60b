package noteservice

import (
	"context"
	"errors"
	"testing"

	"github.com/dverna/wisp/internal/apperr"
	"github.com/dverna/wisp/internal/testutil"
)

func testService(t *testing.T) *Service {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	eng := testutil.TestEngine(t)
	return NewService(store, db, eng)
}

func TestCreateGetUpdateDelete(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	created, err := svc.CreateNote(ctx, "journal/day-one", []byte("# Day One\nSee [[journal/day-two]]."))
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if created.Title != "Day One" {
		t.Errorf("title = %q", created.Title)
	}
	if len(created.Links) != 1 || created.Links[0] != "journal/day-two" {
		t.Errorf("links = %v", created.Links)
	}

	if _, err := svc.CreateNote(ctx, "journal/day-one", []byte("again")); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate create err = %v, want ErrAlreadyExists", err)
	}

	got, err := svc.GetNote(ctx, "journal/day-one")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.Checksum != created.Checksum {
		t.Errorf("checksum mismatch: %q vs %q", got.Checksum, created.Checksum)
	}

	if _, err := svc.UpdateNote(ctx, "journal/day-one", []byte("# Day One\nRevised."), "deadbeef"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale update err = %v, want ErrConflict", err)
	}
	updated, err := svc.UpdateNote(ctx, "journal/day-one", []byte("# Day One\nRevised."), created.Checksum)
	if err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	if len(updated.Links) != 0 {
		t.Errorf("links after edit = %v, want none", updated.Links)
	}

	if err := svc.DeleteNote(ctx, "journal/day-one"); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if _, err := svc.GetNote(ctx, "journal/day-one"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get after delete err = %v, want ErrNotFound", err)
	}
	if err := svc.DeleteNote(ctx, "journal/day-one"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("double delete err = %v, want ErrNotFound", err)
	}
}

func TestDeleteKeepsStubWhileLinked(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	if _, err := svc.CreateNote(ctx, "a", []byte("[[b]]")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateNote(ctx, "b", []byte("real note")); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteNote(ctx, "b"); err != nil {
		t.Fatal(err)
	}

	// a still links to b, so b degrades to a stub instead of vanishing.
	sum, err := svc.NoteLinks(ctx, "b")
	if err != nil {
		t.Fatalf("NoteLinks: %v", err)
	}
	if !sum.Stub {
		t.Error("deleted-but-linked note should be a stub")
	}
	if len(sum.Incoming) != 1 || sum.Incoming[0] != "a" {
		t.Errorf("incoming = %v", sum.Incoming)
	}
}

func TestResolveMaterializesStub(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	if _, err := svc.CreateNote(ctx, "a", []byte("see [[phantom]]")); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Resolve(ctx, "phantom")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Created {
		t.Error("first resolve should create the note")
	}
	if res.Stub {
		t.Error("resolved note should no longer be a stub")
	}

	note, err := svc.GetNote(ctx, "phantom")
	if err != nil {
		t.Fatalf("GetNote after resolve: %v", err)
	}
	if note.Content != "# phantom\n" {
		t.Errorf("skeleton content = %q", note.Content)
	}
	if len(note.Backlinks) != 1 || note.Backlinks[0] != "a" {
		t.Errorf("backlinks = %v", note.Backlinks)
	}

	// Second resolve is a plain read.
	res, err = svc.Resolve(ctx, "phantom")
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if res.Created {
		t.Error("second resolve should not re-create")
	}
}

func TestResolveUnknownTarget(t *testing.T) {
	svc := testService(t)

	if _, err := svc.Resolve(context.Background(), "never-mentioned"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("resolve unknown err = %v, want ErrNotFound", err)
	}
}

func TestIndexFileFeedsGraphAndIndex(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	if err := svc.IndexFile("hub", []byte("# Hub\n[[s1]] [[s2]]")); err != nil {
		t.Fatalf("IndexFile: %v", err)
	}

	stubs, err := svc.Stubs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stubs) != 2 {
		t.Errorf("stubs = %v, want s1 and s2", stubs)
	}

	nodes, edges := svc.Engine().Counts()
	if nodes != 3 || edges != 2 {
		t.Errorf("graph = %d nodes, %d edges, want 3 and 2", nodes, edges)
	}
}

func TestIndexFileFrontmatterAgreement(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	// Graph and index must see the same link set: a wikilink inside
	// frontmatter counts for neither.
	raw := []byte("---\nrelated: \"[[ghost]]\"\n---\n# A\nplain body\n")
	if err := svc.IndexFile("a", raw); err != nil {
		t.Fatalf("IndexFile: %v", err)
	}

	sum, err := svc.NoteLinks(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.Outgoing) != 0 {
		t.Errorf("index links = %v, want none", sum.Outgoing)
	}
	nodes, edges := svc.Engine().Counts()
	if nodes != 1 || edges != 0 {
		t.Errorf("graph = %d nodes, %d edges, want 1 and 0", nodes, edges)
	}
}
