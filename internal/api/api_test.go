package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/xmltable/internal/convert"
	"github.com/starford/xmltable/internal/runservice"
	"github.com/starford/xmltable/internal/testutil"
)

type C = testutil.Cell

// testEnv sets up a temp input tree, manifest, run service and router.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*runservice.Service, http.Handler) {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) (*runservice.Service, http.Handler) {
	t.Helper()
	files := map[string]string{
		"exports/a.xml": testutil.Workbook(
			[]C{{Name: "SamS.ID", Value: "1"}, {Name: "Title", Value: "alpha"}},
			[]C{{Name: "SamS.ID", Value: "1"}, {Name: "Title", Value: "alpha again"}},
		),
		"exports/b.xml": testutil.Workbook(
			[]C{{Name: "SamS.ID", Value: "2"}, {Name: "Title", Value: "beta"}},
		),
	}
	db := testutil.TestManifest(t)
	conv, _ := testutil.Converter(t, files, []string{"SamS.ID", "Title"}, convert.WithRecorder(db))
	svc := runservice.NewService(conv, db, testutil.Quiet)
	return svc, NewRouter(svc, authEnabled, token, sseHandler)
}

func do(t *testing.T, router http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestConvertAndGetRun(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/convert")
	if w.Code != http.StatusOK {
		t.Fatalf("convert status = %d, body = %s", w.Code, w.Body.String())
	}
	run := decode[Run](t, w)
	if run.Status != convert.StatusOK || run.Files != 2 {
		t.Errorf("run = %+v", run)
	}
	if run.Records != 2 || run.Dropped != 1 {
		t.Errorf("records = %d dropped = %d, want 2 and 1", run.Records, run.Dropped)
	}

	w = do(t, router, http.MethodGet, "/runs/"+run.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if got := decode[Run](t, w); got.ID != run.ID || got.Records != 2 {
		t.Errorf("got = %+v", got)
	}
}

func TestListRuns(t *testing.T) {
	_, router := testEnv(t, "")

	do(t, router, http.MethodPost, "/convert")
	do(t, router, http.MethodPost, "/convert")

	w := do(t, router, http.MethodGet, "/runs?limit=10")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	resp := decode[RunListResponse](t, w)
	if resp.Total != 2 || len(resp.Runs) != 2 {
		t.Errorf("runs = %+v", resp)
	}
}

func TestRunFiles(t *testing.T) {
	_, router := testEnv(t, "")

	run := decode[Run](t, do(t, router, http.MethodPost, "/convert"))
	w := do(t, router, http.MethodGet, "/runs/"+run.ID+"/files")
	if w.Code != http.StatusOK {
		t.Fatalf("files status = %d", w.Code)
	}
	resp := decode[RunFilesResponse](t, w)
	if len(resp.Files) != 2 {
		t.Fatalf("files = %+v", resp.Files)
	}
	paths := map[string]bool{}
	for _, f := range resp.Files {
		paths[f.Path] = true
	}
	if !paths["exports/a.xml"] || !paths["exports/b.xml"] {
		t.Errorf("paths = %v", paths)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodGet, "/runs/nope"); w.Code != http.StatusNotFound {
		t.Errorf("missing run = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/runs/nope/files"); w.Code != http.StatusNotFound {
		t.Errorf("missing run files = %d, want 404", w.Code)
	}
}

func TestOutput(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPost, "/convert")

	w := do(t, router, http.MethodGet, "/output")
	if w.Code != http.StatusOK {
		t.Fatalf("output status = %d", w.Code)
	}
	out := decode[Output](t, w)
	want := "SamS.ID,Title\n1,alpha\n2,beta\n"
	if out.Content != want {
		t.Errorf("content = %q, want %q", out.Content, want)
	}

	w = do(t, router, http.MethodGet, "/output?format=csv")
	if w.Code != http.StatusOK {
		t.Fatalf("raw output status = %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv") {
		t.Errorf("content type = %q", w.Header().Get("Content-Type"))
	}
	if w.Body.String() != want {
		t.Errorf("raw body = %q", w.Body.String())
	}
}

func TestOutput_Limit(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPost, "/convert")

	out := decode[Output](t, do(t, router, http.MethodGet, "/output?limit=7"))
	if out.Content != "SamS.ID" || !out.Truncated {
		t.Errorf("out = %+v", out)
	}
}

func TestColumns(t *testing.T) {
	_, router := testEnv(t, "")

	resp := decode[ColumnsResponse](t, do(t, router, http.MethodGet, "/columns"))
	if len(resp.Columns) != 2 || resp.Columns[0] != "SamS.ID" {
		t.Errorf("columns = %v", resp.Columns)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodPost, "/convert", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed convert = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	if w := do(t, router, http.MethodGet, "/runs"); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodGet, "/runs"); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// sseStub writes headers and blocks until the request context is done.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "secret", sseStub)

	if w := do(t, router, http.MethodGet, "/events"); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "tok", sseStub)

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
