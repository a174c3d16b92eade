package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"codeberg.org/go-pdf/fpdf"

	"github.com/local/pdfbinder/internal/config"
	"github.com/local/pdfbinder/internal/limiter"
	"github.com/local/pdfbinder/internal/store"
)

type memStore struct {
	mu sync.Mutex
	m  map[string]store.Status
}

func newMemStore() *memStore { return &memStore{m: map[string]store.Status{}} }

func (s *memStore) Set(_ context.Context, jobID string, st store.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[jobID] = st
	return nil
}

func (s *memStore) Get(_ context.Context, jobID string) (store.Status, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[jobID]
	return st, ok, nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Config{}
	cfg.Toc.Title = "Table of Contents"
	cfg.Toc.Links = true
	cfg.Limits.MaxUploadMB = 16
	cfg.Limits.MaxDocuments = 10
	cfg.Limits.ConcurrentMerges = 2
	cfg.Results.Dir = t.TempDir()
	return cfg
}

func testServer(t *testing.T, cfg config.Config, st StatusStore) *httptest.Server {
	t.Helper()
	o := New(Dependencies{Status: st, Limiter: limiter.New(cfg.Limits.ConcurrentMerges), Cfg: cfg})
	mux := http.NewServeMux()
	o.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func fixturePDF(t *testing.T, pages int, label string) []byte {
	t.Helper()
	f := fpdf.New("P", "pt", "A4", "")
	f.SetFont("Helvetica", "", 12)
	for i := 1; i <= pages; i++ {
		f.AddPage()
		f.Text(72, 72, fmt.Sprintf("%s page %d", label, i))
	}
	var buf bytes.Buffer
	if err := f.Output(&buf); err != nil {
		t.Fatalf("building fixture %q: %v", label, err)
	}
	return buf.Bytes()
}

func uploadBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, data := range files {
		fw, err := w.CreateFormFile("files", name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &body, w.FormDataContentType()
}

func TestMergeUpload_ReturnsPDF(t *testing.T) {
	cfg := testConfig(t)
	st := newMemStore()
	srv := testServer(t, cfg, st)

	body, ctype := uploadBody(t, map[string][]byte{
		"alpha.pdf": fixturePDF(t, 3, "alpha"),
		"beta.pdf":  fixturePDF(t, 1, "beta"),
	})
	resp, err := http.Post(srv.URL+"/merge_upload", ctype, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("content type = %q", got)
	}
	jobID := resp.Header.Get("X-Job-Id")
	if jobID == "" {
		t.Fatal("missing X-Job-Id header")
	}
	rec, ok, _ := st.Get(context.Background(), jobID)
	if !ok || rec.Status != "success" {
		t.Fatalf("job status = %+v, found=%v", rec, ok)
	}
	if _, err := os.Stat(filepath.Join(cfg.Results.Dir, jobID+"_merged.pdf")); err != nil {
		t.Fatalf("result not saved locally: %v", err)
	}
}

func TestMergeUpload_RejectsNonPDF(t *testing.T) {
	srv := testServer(t, testConfig(t), newMemStore())

	body, ctype := uploadBody(t, map[string][]byte{
		"notes.txt": []byte("plain text, not a pdf"),
	})
	resp, err := http.Post(srv.URL+"/merge_upload", ctype, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestMergeUpload_TooManyDocuments(t *testing.T) {
	cfg := testConfig(t)
	cfg.Limits.MaxDocuments = 1
	srv := testServer(t, cfg, newMemStore())

	body, ctype := uploadBody(t, map[string][]byte{
		"a.pdf": fixturePDF(t, 1, "a"),
		"b.pdf": fixturePDF(t, 1, "b"),
	})
	resp, err := http.Post(srv.URL+"/merge_upload", ctype, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestMergeUpload_OversizedRejected(t *testing.T) {
	cfg := testConfig(t)
	cfg.Limits.MaxUploadMB = 1
	srv := testServer(t, cfg, newMemStore())

	// 2 MB of padding; the size cap must trip before any PDF sniffing.
	body, ctype := uploadBody(t, map[string][]byte{
		"big.pdf": make([]byte, 2<<20),
	})
	resp, err := http.Post(srv.URL+"/merge_upload", ctype, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", resp.StatusCode)
	}
}

func TestMergeUpload_MethodNotAllowed(t *testing.T) {
	srv := testServer(t, testConfig(t), newMemStore())
	resp, err := http.Get(srv.URL + "/merge_upload")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}

func TestMergeRefs_LocalFiles(t *testing.T) {
	cfg := testConfig(t)
	st := newMemStore()
	srv := testServer(t, cfg, st)

	dir := t.TempDir()
	refA := filepath.Join(dir, "report.pdf")
	refB := filepath.Join(dir, "appendix.pdf")
	if err := os.WriteFile(refA, fixturePDF(t, 2, "report"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(refB, fixturePDF(t, 1, "appendix"), 0o644); err != nil {
		t.Fatal(err)
	}

	reqBody, _ := json.Marshal(map[string]interface{}{"refs": []string{refA, refB}})
	resp, err := http.Post(srv.URL+"/merge_refs", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var out mergeRefsResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != "ok" || out.JobID == "" {
		t.Fatalf("unexpected response: %+v", out)
	}
	// 1 contents page + 2 + 1 source pages
	if out.Pages != 4 {
		t.Fatalf("pages = %d, want 4", out.Pages)
	}

	dl, err := http.Get(srv.URL + out.DownloadURL)
	if err != nil {
		t.Fatal(err)
	}
	defer dl.Body.Close()
	if dl.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d", dl.StatusCode)
	}
	if got := dl.Header.Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("download content type = %q", got)
	}
}

func TestMergeRefs_EmptyRefs(t *testing.T) {
	srv := testServer(t, testConfig(t), newMemStore())
	resp, err := http.Post(srv.URL+"/merge_refs", "application/json", bytes.NewReader([]byte(`{"refs":[]}`)))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestProgress_UnknownJob(t *testing.T) {
	srv := testServer(t, testConfig(t), newMemStore())
	resp, err := http.Get(srv.URL + "/progress/no-such-job")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestProgress_KnownJob(t *testing.T) {
	st := newMemStore()
	_ = st.Set(context.Background(), "job-1", store.Status{Status: "success", Progress: 100, Message: "merge complete"})
	srv := testServer(t, testConfig(t), st)

	resp, err := http.Get(srv.URL + "/progress/job-1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got store.Status
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Status != "success" || got.Progress != 100 {
		t.Fatalf("unexpected status payload: %+v", got)
	}
}

func TestDownloadResult_Missing(t *testing.T) {
	srv := testServer(t, testConfig(t), newMemStore())
	resp, err := http.Get(srv.URL + "/download_result/absent")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestPreview_Missing(t *testing.T) {
	srv := testServer(t, testConfig(t), newMemStore())
	resp, err := http.Get(srv.URL + "/preview/absent")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSaveResultLocal_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	data := []byte("%PDF-1.4 test payload")
	p, err := SaveResultLocal(dir, "job-xyz", data)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(p) != "job-xyz_merged.pdf" {
		t.Fatalf("unexpected path %q", p)
	}
	got, err := LoadResultLocal(dir, "job-xyz")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("loaded bytes differ from saved")
	}
}
