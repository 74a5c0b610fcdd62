package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/noterefs/internal/loop"
	"github.com/starford/noterefs/internal/references"
	"github.com/starford/noterefs/internal/storage"
	"github.com/starford/noterefs/internal/testutil"
	"github.com/starford/noterefs/internal/workspace"
)

const header = "---\ntitle: A\n---\n"

// testEnv sets up a temp collection, SQLite DB, running loop, workspace and
// router. An empty token means auth is disabled.
func testEnv(t *testing.T, token string) (http.Handler, *storage.FS) {
	t.Helper()
	return testEnvWithSSE(t, token, nil)
}

func testEnvWithSSE(t *testing.T, token string, sseHandler http.Handler) (http.Handler, *storage.FS) {
	t.Helper()

	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)

	l := loop.New(0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = l.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	cfg := references.DefaultConfig()
	cfg.Delays = references.Delays{First: 5 * time.Millisecond, Init: 5 * time.Millisecond, Maintain: time.Hour}
	ws, err := workspace.New(workspace.Options{Loop: l, Store: store, Index: db, References: cfg})
	if err != nil {
		t.Fatalf("workspace.New: %v", err)
	}

	testutil.WriteNote(t, store, db, "a.md", header+"see [[b]]\n")
	testutil.WriteNote(t, store, db, "b.md", "back to [[a]]\n")

	return NewRouter(ws, token != "", token, sseHandler), store
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		raw, _ := json.Marshal(body)
		req = httptest.NewRequest(method, target, bytes.NewReader(raw))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) DocumentView {
	t.Helper()
	var v DocumentView
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode view: %v (%s)", err, w.Body.String())
	}
	return v
}

// waitReady polls until both lists of path are computed.
func waitReady(t *testing.T, router http.Handler, path string) DocumentView {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		w := do(t, router, http.MethodGet, "/documents?path="+path, nil)
		if w.Code == http.StatusOK {
			v := decodeView(t, w)
			if v.References.Links.Ready && v.References.Backlinks.Ready {
				return v
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("references of %s never became ready", path)
	return DocumentView{}
}

func TestOpenAndGetDocument(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/documents", map[string]string{"path": "a.md"})
	if w.Code != http.StatusOK {
		t.Fatalf("open status = %d, body = %s", w.Code, w.Body.String())
	}
	v := decodeView(t, w)
	if !strings.Contains(v.Content, "... links\n... backlinks\n") {
		t.Errorf("content = %q, want placeholders", v.Content)
	}

	v = waitReady(t, router, "a.md")
	want := header + "1 link:\n  b.md\n1 backlink:\n  b.md\n\nsee [[b]]\n"
	if v.Content != want {
		t.Errorf("content = %q, want %q", v.Content, want)
	}

	w = do(t, router, http.MethodGet, "/documents", nil)
	var list DocumentListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Documents) != 1 || list.Documents[0] != "a.md" {
		t.Errorf("documents = %v", list.Documents)
	}
}

func TestOpenDocument_Errors(t *testing.T) {
	router, _ := testEnv(t, "")

	cases := []struct {
		body any
		want int
	}{
		{map[string]string{"path": "missing.md"}, http.StatusNotFound},
		{map[string]string{"path": ""}, http.StatusBadRequest},
		{map[string]string{"path": "../etc/passwd.md"}, http.StatusBadRequest},
		{map[string]string{"path": "picture.png"}, http.StatusBadRequest},
	}
	for _, c := range cases {
		w := do(t, router, http.MethodPost, "/documents", c.body)
		if w.Code != c.want {
			t.Errorf("open %v = %d, want %d", c.body, w.Code, c.want)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader("{"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid json = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodGet, "/documents?path=a.md", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get unopened = %d, want 404", w.Code)
	}
}

func TestEditSaveAndClose(t *testing.T) {
	router, store := testEnv(t, "")
	do(t, router, http.MethodPost, "/documents", map[string]string{"path": "a.md"})
	v := waitReady(t, router, "a.md")

	// Editing inside the summary is rejected.
	w := do(t, router, http.MethodPost, "/documents/edits", EditRequest{Path: "a.md", Offset: len(header) + 2, Insert: "x"})
	if w.Code != http.StatusConflict {
		t.Errorf("read-only edit = %d, want 409", w.Code)
	}

	w = do(t, router, http.MethodPost, "/documents/edits", EditRequest{Path: "a.md", Offset: -1})
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative offset = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodPost, "/documents/edits", EditRequest{Path: "a.md", Offset: len(v.Content), Insert: "more\n"})
	if w.Code != http.StatusOK {
		t.Fatalf("edit = %d, body = %s", w.Code, w.Body.String())
	}
	if !decodeView(t, w).Modified {
		t.Error("edit should mark the document modified")
	}

	// Unsaved changes block a plain close.
	w = do(t, router, http.MethodDelete, "/documents?path=a.md", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("close unsaved = %d, want 409", w.Code)
	}

	w = do(t, router, http.MethodPost, "/documents/save", map[string]string{"path": "a.md"})
	if w.Code != http.StatusOK {
		t.Fatalf("save = %d, body = %s", w.Code, w.Body.String())
	}
	if decodeView(t, w).Modified {
		t.Error("save should clear the modified flag")
	}
	disk, err := store.Read("a.md")
	if err != nil {
		t.Fatal(err)
	}
	if string(disk) != header+"see [[b]]\nmore\n" {
		t.Errorf("saved content = %q", disk)
	}

	w = do(t, router, http.MethodDelete, "/documents?path=a.md", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("close = %d, want 204", w.Code)
	}
}

func TestCloseDocument_Force(t *testing.T) {
	router, _ := testEnv(t, "")
	do(t, router, http.MethodPost, "/documents", map[string]string{"path": "a.md"})
	v := waitReady(t, router, "a.md")
	do(t, router, http.MethodPost, "/documents/edits", EditRequest{Path: "a.md", Offset: len(v.Content), Insert: "x"})

	w := do(t, router, http.MethodDelete, "/documents?path=a.md&force=1", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("forced close = %d, want 204", w.Code)
	}
	w = do(t, router, http.MethodDelete, "/documents", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("close without path = %d, want 400", w.Code)
	}
}

func TestRefreshAndActivate(t *testing.T) {
	router, _ := testEnv(t, "")
	do(t, router, http.MethodPost, "/documents", map[string]string{"path": "a.md"})

	w := do(t, router, http.MethodPost, "/documents/refresh", map[string]string{"path": "a.md"})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh = %d, body = %s", w.Code, w.Body.String())
	}
	v := decodeView(t, w)
	if !v.References.Links.Ready || !v.References.Backlinks.Ready {
		t.Fatalf("refresh should compute both lists: %+v", v.References)
	}

	off := strings.Index(v.Content, "b.md")
	w = do(t, router, http.MethodPost, "/documents/activate", ActivateRequest{Path: "a.md", Offset: off})
	if w.Code != http.StatusOK {
		t.Fatalf("activate = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ActivateResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Opened || resp.Target != "b.md" {
		t.Errorf("activate = %+v", resp)
	}

	w = do(t, router, http.MethodGet, "/documents?path=b.md", nil)
	if w.Code != http.StatusOK {
		t.Errorf("activated target should be open, got %d", w.Code)
	}
}

func TestGetReferences(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/references?path=b.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("references = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ReferencesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.References.Links.Entries) != 1 || resp.References.Links.Entries[0].RelativePath != "a.md" {
		t.Errorf("links = %+v", resp.References.Links)
	}
	if len(resp.References.Backlinks.Entries) != 1 || resp.References.Backlinks.Entries[0].RelativePath != "a.md" {
		t.Errorf("backlinks = %+v", resp.References.Backlinks)
	}

	w = do(t, router, http.MethodGet, "/references", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("references without path = %d, want 400", w.Code)
	}
	w = do(t, router, http.MethodGet, "/references?path=ghost.md", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("references of missing note = %d, want 404", w.Code)
	}
}

func TestRequireToken_Valid(t *testing.T) {
	router, _ := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestRequireToken_Missing(t *testing.T) {
	router, _ := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/documents", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); !strings.HasPrefix(got, "Bearer") {
		t.Errorf("WWW-Authenticate = %q", got)
	}
	if !strings.Contains(w.Body.String(), "bearer token") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestRequireToken_Wrong(t *testing.T) {
	router, _ := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestRequireToken_Disabled(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/documents", nil)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	router, _ := testEnvWithSSE(t, "secret", blockingSSE)

	w := do(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	router, _ := testEnvWithSSE(t, "", blockingSSE)

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
	router, _ := testEnvWithSSE(t, "tok", blockingSSE)

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
