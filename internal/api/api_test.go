package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dverna/wisp/internal/engine"
	"github.com/dverna/wisp/internal/index"
	"github.com/dverna/wisp/internal/layout"
	"github.com/dverna/wisp/internal/noteservice"
	"github.com/dverna/wisp/internal/storage"
	"github.com/dverna/wisp/internal/viewport"
)

// testEnv sets up a temp vault, SQLite DB, engine, service, and router.
// An empty token means auth disabled.
func testEnv(t *testing.T, authToken string) (*noteservice.Service, http.Handler) {
	t.Helper()
	svc, router := testEnvFull(t, authToken != "", authToken, nil)
	return svc, router
}

func testEnvFull(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) (*noteservice.Service, http.Handler) {
	t.Helper()

	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	dbFile, err := os.CreateTemp("", "wisp-api-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	eng := engine.New(layout.Config{Seed: 1}, viewport.Config{})
	svc := noteservice.NewService(store, db, eng)
	router := NewRouter(svc, authEnabled, authToken, sseHandler)
	return svc, router
}

func createNote(t *testing.T, router http.Handler, identity, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"identity": identity, "content": content})
	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAndGetNote(t *testing.T) {
	_, router := testEnv(t, "")

	if w := createNote(t, router, "hello", "# Hello\nWorld"); w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/notes/hello", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var note NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.Identity != "hello" {
		t.Errorf("identity = %q", note.Identity)
	}
	if note.Title != "Hello" {
		t.Errorf("title = %q, want Hello", note.Title)
	}
	if w.Header().Get("ETag") == "" {
		t.Error("missing ETag header")
	}
}

func TestGetNote_NestedIdentity(t *testing.T) {
	_, router := testEnv(t, "")

	if w := createNote(t, router, "topics/go", "# Go"); w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}

	for _, path := range []string{"/notes/topics/go", "/notes/topics%2Fgo"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("get %s = %d, want 200", path, w.Code)
		}
	}
}

func TestCreateDuplicate(t *testing.T) {
	_, router := testEnv(t, "")

	if w := createNote(t, router, "dup", "a"); w.Code != http.StatusCreated {
		t.Fatalf("first create = %d", w.Code)
	}
	if w := createNote(t, router, "dup", "a"); w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestCreateInvalidIdentity(t *testing.T) {
	_, router := testEnv(t, "")

	if w := createNote(t, router, "../escape", "x"); w.Code != http.StatusBadRequest {
		t.Errorf("traversal identity = %d, want 400", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")

	w := createNote(t, router, "lock", "v1")
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}
	var created NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	updateBody, _ := json.Marshal(map[string]string{"content": "v2"})
	req := httptest.NewRequest(http.MethodPut, "/notes/lock", bytes.NewReader(updateBody))
	req.Header.Set("If-Match", created.Checksum)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update with correct checksum = %d, body = %s", w.Code, w.Body.String())
	}

	// Stale checksum → 409.
	req = httptest.NewRequest(http.MethodPut, "/notes/lock", bytes.NewReader(updateBody))
	req.Header.Set("If-Match", created.Checksum)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("update with stale checksum = %d, want 409", w.Code)
	}
}

func TestUpdateWithoutIfMatch(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, "nolock", "v1")

	updateBody, _ := json.Marshal(map[string]string{"content": "v2"})
	req := httptest.NewRequest(http.MethodPut, "/notes/nolock", bytes.NewReader(updateBody))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("update without If-Match = %d, want 200", w.Code)
	}
}

func TestDeleteNote(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, "bye", "gone")

	req := httptest.NewRequest(http.MethodDelete, "/notes/bye", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/notes/bye", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
}

func TestListNotes(t *testing.T) {
	_, router := testEnv(t, "")

	for _, name := range []string{"a", "b"} {
		createNote(t, router, name, "# "+name)
	}

	req := httptest.NewRequest(http.MethodGet, "/notes?limit=10", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp NoteListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Notes) != 2 {
		t.Errorf("len(notes) = %d, want 2", len(resp.Notes))
	}
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, "find", "uniquetoken here")

	req := httptest.NewRequest(http.MethodGet, "/search?q=uniquetoken", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	results := resp["results"].([]any)
	if len(results) != 1 {
		t.Errorf("search results = %d, want 1", len(results))
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestGraphSnapshot(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, "a", "links to [[b]]")
	createNote(t, router, "b", "links to [[a]]")

	req := httptest.NewRequest(http.MethodGet, "/graph", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("graph = %d", w.Code)
	}
	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	nodes := resp["nodes"].([]any)
	edges := resp["edges"].([]any)
	if len(nodes) != 2 {
		t.Errorf("nodes = %d, want 2", len(nodes))
	}
	if len(edges) != 2 {
		t.Errorf("edges = %d, want 2", len(edges))
	}
}

func TestPositionsBeforeFirstStep(t *testing.T) {
	svc, router := testEnv(t, "")

	createNote(t, router, "a", "[[b]]")
	createNote(t, router, "b", "[[a]]")

	req := httptest.NewRequest(http.MethodGet, "/graph/positions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("positions before step = %d, want 409", w.Code)
	}
	// Seeded placeholders still come back in the 409 payload.
	var resp PositionsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Positions) != 2 {
		t.Errorf("placeholder positions = %d, want 2", len(resp.Positions))
	}

	svc.Engine().Step()

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/graph/positions", nil))
	if w.Code != http.StatusOK {
		t.Errorf("positions after step = %d, want 200", w.Code)
	}
}

func TestExportDOT(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, "a", "[[b]]")

	req := httptest.NewRequest(http.MethodGet, "/graph/export.dot", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/vnd.graphviz") {
		t.Errorf("content type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "digraph") || !strings.Contains(body, `"a" -> "b"`) {
		t.Errorf("unexpected DOT output:\n%s", body)
	}
	// b has no note file, so it renders as a dashed stub.
	if !strings.Contains(body, "style=dashed") {
		t.Errorf("stub not dashed:\n%s", body)
	}
}

func TestTreeEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, "root", "[[leaf]]")
	createNote(t, router, "leaf", "done")

	req := httptest.NewRequest(http.MethodGet, "/tree", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("tree = %d", w.Code)
	}
	var resp TreeResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Sort != "alpha" {
		t.Errorf("sort = %q, want alpha", resp.Sort)
	}
	if len(resp.Rows) != 2 {
		t.Errorf("rows = %d, want 2", len(resp.Rows))
	}

	req = httptest.NewRequest(http.MethodGet, "/tree?sort=bogus", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad sort = %d, want 400", w.Code)
	}
}

func TestViewportZoomRejected(t *testing.T) {
	_, router := testEnv(t, "")

	body, _ := json.Marshal(map[string]any{"zoom": 99.0, "rows": 40})
	req := httptest.NewRequest(http.MethodPost, "/viewport", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("zoom out of range = %d, want 422", w.Code)
	}

	// The whole request was rejected, so rows kept its default.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/graph", nil))
	var snap map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &snap)
	if rows := snap["rows"].(float64); rows == 40 {
		t.Error("rows changed despite zoom rejection")
	}
}

func TestViewportPanAndResize(t *testing.T) {
	_, router := testEnv(t, "")

	body, _ := json.Marshal(map[string]any{"rows": 30, "cols": 100, "pan_dx": 5.0, "zoom": 2.0})
	req := httptest.NewRequest(http.MethodPost, "/viewport", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("viewport = %d, body = %s", w.Code, w.Body.String())
	}
	var snap map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &snap)
	if snap["rows"].(float64) != 30 || snap["cols"].(float64) != 100 {
		t.Errorf("bounds = %v x %v", snap["rows"], snap["cols"])
	}
	if snap["zoom"].(float64) != 2.0 {
		t.Errorf("zoom = %v, want 2", snap["zoom"])
	}
	if snap["center_x"].(float64) != 5.0 {
		t.Errorf("center_x = %v, want 5", snap["center_x"])
	}
}

func TestDragPinsNode(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, "pin", "[[other]]")

	body, _ := json.Marshal(DragRequest{Identity: "pin", X: 3, Y: 4, Pinned: true})
	req := httptest.NewRequest(http.MethodPost, "/graph/drag", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("drag = %d, body = %s", w.Code, w.Body.String())
	}
	var snap map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &snap)
	for _, n := range snap["nodes"].([]any) {
		node := n.(map[string]any)
		if node["identity"] == "pin" && node["pinned"] != true {
			t.Error("node not pinned after drag")
		}
	}

	body, _ = json.Marshal(DragRequest{Identity: "ghost", X: 0, Y: 0})
	req = httptest.NewRequest(http.MethodPost, "/graph/drag", bytes.NewReader(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("drag unknown node = %d, want 404", w.Code)
	}
}

func TestNoteLinksEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, "hub", "[[spoke]]")
	createNote(t, router, "spoke", "[[hub]]")

	req := httptest.NewRequest(http.MethodGet, "/links/hub", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("links = %d", w.Code)
	}
	var sum map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &sum)
	outgoing := sum["outgoing"].([]any)
	incoming := sum["incoming"].([]any)
	if len(outgoing) != 1 || outgoing[0] != "spoke" {
		t.Errorf("outgoing = %v", outgoing)
	}
	if len(incoming) != 1 || incoming[0] != "spoke" {
		t.Errorf("incoming = %v", incoming)
	}
}

func TestResolveCreatesStub(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, "origin", "[[missing]]")

	// First resolve materializes the stub as a skeleton note.
	req := httptest.NewRequest(http.MethodPost, "/resolve/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("resolve stub = %d, body = %s", w.Code, w.Body.String())
	}
	var res map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res["created"] != true {
		t.Error("created flag not set")
	}
	if res["stub"] == true {
		t.Error("resolved node still a stub")
	}

	// Second resolve is a no-op read.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/resolve/missing", nil))
	if w.Code != http.StatusOK {
		t.Errorf("resolve existing = %d, want 200", w.Code)
	}
}

func TestStubsEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, "a", "[[ghost1]] and [[ghost2]]")

	req := httptest.NewRequest(http.MethodGet, "/stubs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("stubs = %d", w.Code)
	}
	var resp map[string][]string
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp["stubs"]) != 2 {
		t.Errorf("stubs = %v, want 2 entries", resp["stubs"])
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	body, _ := json.Marshal(map[string]string{"identity": "auth", "content": "test"})
	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/notes/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", w.Code)
	}
}

func TestUpdateNote_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	body, _ := json.Marshal(map[string]string{"content": "x"})
	req := httptest.NewRequest(http.MethodPut, "/notes/ghost", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", w.Code)
	}
}

// SSE endpoint auth tests.

func sseStub() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvFull(t, true, "secret", sseStub())

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	_, router := testEnvFull(t, false, "", sseStub())

	// The stub blocks until the request context is done.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvFull(t, true, "tok", sseStub())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
