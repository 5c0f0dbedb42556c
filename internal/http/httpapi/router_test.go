package httpapi

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/icza/mjpeg"

	"studio/internal/composite"
	"studio/internal/domain"
	"studio/internal/domain/jsoncfg"
	"studio/internal/gallery"
	"studio/internal/http/handlers"
	"studio/internal/infra"
	"studio/internal/infra/credentials"
	"studio/internal/media"
	imgfetch "studio/internal/providers/image"
	"studio/internal/storage"
)

type fakeGenerations struct {
	mu       sync.Mutex
	jobs     map[string]*domain.GenerationJob
	enqueued []*domain.GenerationJob
}

func (f *fakeGenerations) Enqueue(_ context.Context, mode domain.Mode, model domain.Model, prompt string, raw []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("job-%d", len(f.enqueued)+1)
	job := &domain.GenerationJob{ID: id, Mode: mode, Model: model, Prompt: prompt, RequestJSON: raw, Status: domain.JobStatusQueued}
	f.enqueued = append(f.enqueued, job)
	f.jobs[id] = job
	return id, nil
}

func (f *fakeGenerations) Claim(context.Context) (*domain.GenerationJob, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeGenerations) Complete(context.Context, string) error { return nil }

func (f *fakeGenerations) Fail(context.Context, string, domain.ErrorKind, string) error { return nil }

func (f *fakeGenerations) Get(_ context.Context, id string) (*domain.GenerationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

type fakeResults struct {
	items []domain.GenerationResult
}

func (f *fakeResults) Save(_ context.Context, r *domain.GenerationResult) error {
	f.items = append(f.items, *r)
	return nil
}

func (f *fakeResults) ListByJob(_ context.Context, jobID string) ([]domain.GenerationResult, error) {
	var out []domain.GenerationResult
	for _, r := range f.items {
		if r.JobID == jobID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeResults) Get(_ context.Context, id string) (*domain.GenerationResult, error) {
	for _, r := range f.items {
		if r.ID == id {
			cp := r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

type fakeCredentials struct{ key string }

func (f *fakeCredentials) GeminiAPIKey(context.Context) (string, error) { return f.key, nil }

func (f *fakeCredentials) SetGeminiAPIKey(_ context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return credentials.ErrEmptyKey
	}
	f.key = key
	return nil
}

type fakeImages struct{}

func (fakeImages) Load(_ context.Context, raw string) (imgfetch.Fetched, error) {
	if strings.Contains(raw, "broken") {
		return imgfetch.Fetched{}, &imgfetch.FetchError{URL: raw, Status: http.StatusForbidden}
	}
	return imgfetch.Fetched{Image: domain.Image{MIME: "image/png", Data: []byte(raw)}, Filename: "x.png"}, nil
}

type testServer struct {
	handler http.Handler
	gens    *fakeGenerations
	results *fakeResults
	creds   *fakeCredentials
	reg     *composite.Registry
}

// storeClip records a solid 32x32 clip at 10fps and stores it under key.
func storeClip(t *testing.T, store *storage.FileStore, key string, c color.RGBA, frames int) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.avi")
	aw, err := mjpeg.New(path, 32, 32, 10)
	if err != nil {
		t.Fatal(err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = []uint8{c.R, c.G, c.B, 255}[i%4]
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < frames; i++ {
		if err := aw.AddFrame(buf.Bytes()); err != nil {
			t.Fatal(err)
		}
	}
	if err := aw.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Import(context.Background(), key, path); err != nil {
		t.Fatal(err)
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	settings := infra.DefaultCompositorSettings()
	settings.FPS = 10
	settings.TempDir = t.TempDir()
	reg := composite.NewRegistry(composite.Deps{
		Opener:   media.NewSniffer(nil),
		Store:    store,
		Settings: settings,
		Logger:   infra.NopLogger(),
	}, time.Hour)
	t.Cleanup(func() { _ = reg.Shutdown(context.Background()) })

	storeClip(t, store, "videos/job-9/0.avi", color.RGBA{200, 0, 0, 255}, 10)
	storeClip(t, store, "videos/job-9/1.avi", color.RGBA{0, 0, 200, 255}, 5)

	gens := &fakeGenerations{jobs: map[string]*domain.GenerationJob{
		"job-9": {ID: "job-9", Status: domain.JobStatusSucceeded, Prompt: "Misty pine forest"},
		"job-bad": {
			ID: "job-bad", Status: domain.JobStatusFailed,
			ErrorKind: domain.ErrorKindAuth, ErrorMessage: "select a key",
		},
	}}
	results := &fakeResults{items: []domain.GenerationResult{
		{ID: "r0", JobID: "job-9", Index: 0, StorageKey: "videos/job-9/0.avi", MIME: domain.ArtifactMIME, Prompt: "Misty pine forest", RemoteURI: "https://veo.example/files/0"},
		{ID: "r1", JobID: "job-9", Index: 1, StorageKey: "videos/job-9/1.avi", MIME: domain.ArtifactMIME, Prompt: "Misty pine forest"},
	}}
	creds := &fakeCredentials{}
	app := &handlers.App{
		Generations: gens,
		Results:     results,
		Credentials: creds,
		Images:      fakeImages{},
		Files:       store,
		Composites:  reg,
		Gallery:     gallery.Default(),
		Logger:      infra.NopLogger(),
	}
	return &testServer{
		handler: NewRouter(app, Options{Logger: infra.NopLogger()}),
		gens:    gens,
		results: results,
		creds:   creds,
		reg:     reg,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	e, _ := decodeBody(t, rec)["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealthAndDocs(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do(t, http.MethodGet, "/v1/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
	rec := s.do(t, http.MethodGet, "/v1/openapi.json", nil)
	if rec.Code != http.StatusOK || !json.Valid(rec.Body.Bytes()) {
		t.Fatalf("openapi = %d", rec.Code)
	}
	items, _ := decodeBody(t, s.do(t, http.MethodGet, "/v1/gallery", nil))["items"].([]any)
	if len(items) != 6 {
		t.Fatalf("gallery items = %d", len(items))
	}
}

func TestGenerateQueuesDocument(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/v1/videos/generate", map[string]any{
		"prompt": "  a lighthouse at dusk ",
		"images": []string{"https://img.example/a.png", "gallery:2"},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	if got := decodeBody(t, rec)["generations"]; got != float64(2) {
		t.Fatalf("generations = %v", got)
	}
	job := s.gens.enqueued[0]
	if job.Mode != domain.ModeImage || job.Model != domain.ModelFast || job.Prompt != "a lighthouse at dusk" {
		t.Fatalf("job = %+v", job)
	}
	doc, err := jsoncfg.Decode(job.RequestJSON)
	if err != nil {
		t.Fatal(err)
	}
	hubble, _ := gallery.Default().Get(2)
	if len(doc.Images) != 2 || string(doc.Images[1].Data) != hubble.Src {
		t.Fatalf("images = %+v", doc.Images)
	}
}

func TestGenerateRejects(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name     string
		body     map[string]any
		wantCode int
		wantErr  string
	}{
		{"empty prompt", map[string]any{"prompt": "  "}, http.StatusBadRequest, "invalid_request"},
		{"too many images", map[string]any{"prompt": "p", "images": []string{"1", "2", "3", "4", "5", "6"}}, http.StatusBadRequest, "invalid_request"},
		{"references need quality", map[string]any{"prompt": "p", "mode": "references", "images": []string{"a"}}, http.StatusBadRequest, "invalid_request"},
		{"unknown gallery image", map[string]any{"prompt": "p", "images": []string{"gallery:42"}}, http.StatusBadRequest, "invalid_request"},
		{"fetch failure", map[string]any{"prompt": "p", "images": []string{"https://img.example/broken.png"}}, http.StatusUnprocessableEntity, "image_fetch_failed"},
		{"unknown field", map[string]any{"prompt": "p", "quantity": 3}, http.StatusBadRequest, "bad_request"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/v1/videos/generate", tc.body)
			if rec.Code != tc.wantCode || errorCode(t, rec) != tc.wantErr {
				t.Fatalf("got %d %s", rec.Code, rec.Body)
			}
		})
	}
	if len(s.gens.enqueued) != 0 {
		t.Fatalf("enqueued %d jobs", len(s.gens.enqueued))
	}
}

func TestVideoStatusClassifiesFailure(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/v1/videos/job-bad", nil)
	body := decodeBody(t, rec)
	if body["action"] != "select_api_key" || body["retryable"] != false || body["error_kind"] != "auth" {
		t.Fatalf("body = %v", body)
	}
	if rec := s.do(t, http.MethodGet, "/v1/videos/nope", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing = %d", rec.Code)
	}
}

func TestResultsDownloadAndArchive(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/v1/videos/job-9/results", nil)
	items, _ := decodeBody(t, rec)["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("items = %v", items)
	}
	first := items[0].(map[string]any)
	if first["filename"] != "veo-video-1.avi" || first["extendable"] != true {
		t.Fatalf("first = %v", first)
	}

	rec = s.do(t, http.MethodGet, "/v1/results/r1/download", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Header().Get("Content-Disposition"), "veo-video-2.avi") {
		t.Fatalf("download = %d %q", rec.Code, rec.Header().Get("Content-Disposition"))
	}

	rec = s.do(t, http.MethodGet, "/v1/videos/job-9/archive", nil)
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if len(zr.File) != 2 || zr.File[0].Name != "veo-video-1.avi" {
		t.Fatalf("archive files = %d", len(zr.File))
	}
}

func TestExtendResult(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/v1/results/r0/extend", map[string]any{"prompt": "the fog lifts"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("extend = %d %s", rec.Code, rec.Body)
	}
	doc, err := jsoncfg.Decode(s.gens.enqueued[0].RequestJSON)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Mode != domain.ModeExtend || doc.Extension.RemoteURI != "https://veo.example/files/0" {
		t.Fatalf("doc = %+v", doc)
	}

	// r1 was never given a remote reference
	rec = s.do(t, http.MethodPost, "/v1/results/r1/extend", map[string]any{"prompt": "more"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("extend without uri = %d", rec.Code)
	}
}

func TestCompositeMergeLifecycle(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/v1/composites/merge", map[string]any{"result_ids": []string{"r0", "r1"}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("merge = %d %s", rec.Code, rec.Body)
	}
	id := decodeBody(t, rec)["id"].(string)

	rec = s.do(t, http.MethodPatch, "/v1/composites/"+id+"/order", map[string]any{"index": 1, "direction": "left"})
	clips := decodeBody(t, rec)["clips"].([]any)
	if clips[0].(map[string]any)["id"] != "r1" {
		t.Fatalf("reorder = %v", clips)
	}

	if rec := s.do(t, http.MethodPost, "/v1/composites/"+id+"/start", nil); rec.Code != http.StatusAccepted {
		t.Fatalf("start = %d %s", rec.Code, rec.Body)
	}
	job, err := s.reg.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := job.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	rec = s.do(t, http.MethodPatch, "/v1/composites/"+id+"/order", map[string]any{"index": 0, "direction": "right"})
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "sequence_frozen" {
		t.Fatalf("late reorder = %d %s", rec.Code, rec.Body)
	}

	rec = s.do(t, http.MethodGet, "/v1/composites/"+id, nil)
	status := decodeBody(t, rec)
	if status["download_name"] != "misty-pine-forest-cinematic-cut.avi" {
		t.Fatalf("status = %v", status)
	}
	if st := status["job"].(map[string]any)["state"]; st != "done" {
		t.Fatalf("state = %v", st)
	}

	rec = s.do(t, http.MethodGet, "/v1/composites/"+id+"/events?since=0", nil)
	events, _ := decodeBody(t, rec)["items"].([]any)
	if len(events) == 0 {
		t.Fatal("no events")
	}

	rec = s.do(t, http.MethodGet, "/v1/composites/"+id+"/download", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != domain.ArtifactMIME {
		t.Fatalf("download = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	out := filepath.Join(t.TempDir(), "out.avi")
	if err := os.WriteFile(out, rec.Body.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	stream, err := media.OpenAVI(out)
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()
	if info := stream.Info(); info.Frames != 15 || info.Duration != 1500*time.Millisecond {
		t.Fatalf("info = %+v", info)
	}
}

func TestCompositeErrors(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do(t, http.MethodPost, "/v1/composites/merge", map[string]any{"result_ids": []string{"r0"}}); rec.Code != http.StatusBadRequest {
		t.Fatalf("single clip = %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/v1/composites/merge", map[string]any{"result_ids": []string{"r0", "zz"}}); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown result = %d", rec.Code)
	}
	rec := s.do(t, http.MethodPost, "/v1/composites/caption", map[string]any{
		"result_id": "r0",
		"caption":   map[string]any{"text": "   "},
	})
	if rec.Code != http.StatusUnprocessableEntity || errorCode(t, rec) != "empty_caption" {
		t.Fatalf("blank caption = %d %s", rec.Code, rec.Body)
	}
	if rec := s.do(t, http.MethodGet, "/v1/composites/missing/download", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing = %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/v1/composites/merge", map[string]any{"result_ids": []string{"r0", "r1"}})
	id := decodeBody(t, rec)["id"].(string)
	if rec := s.do(t, http.MethodGet, "/v1/composites/"+id+"/download", nil); rec.Code != http.StatusConflict {
		t.Fatalf("download before start = %d", rec.Code)
	}
	rec = s.do(t, http.MethodDelete, "/v1/composites/"+id, nil)
	if decodeBody(t, rec)["state"] != "cancelled" {
		t.Fatalf("cancel = %s", rec.Body)
	}
	if rec := s.do(t, http.MethodPost, "/v1/composites/"+id+"/start", nil); rec.Code != http.StatusConflict {
		t.Fatalf("start after cancel = %d", rec.Code)
	}
}

func TestCaptionPreview(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/v1/captions/preview", map[string]any{
		"caption":        map[string]any{"text": "Hello", "size": 10},
		"display_height": 405,
	})
	body := decodeBody(t, rec)
	if body["font_px"] != 40.5 || body["position"] != "bottom" || body["shadow_color"] != "black" {
		t.Fatalf("preview = %v", body)
	}
	rec = s.do(t, http.MethodPost, "/v1/captions/preview", map[string]any{"caption": map[string]any{"text": "x"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("no height = %d", rec.Code)
	}
}

func TestCredentials(t *testing.T) {
	s := newTestServer(t)
	if body := decodeBody(t, s.do(t, http.MethodGet, "/v1/credentials/gemini", nil)); body["configured"] != false {
		t.Fatalf("initial = %v", body)
	}
	if rec := s.do(t, http.MethodPost, "/v1/credentials/gemini", map[string]any{"api_key": " "}); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty key = %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/v1/credentials/gemini", map[string]any{"api_key": "AIza-test"}); rec.Code != http.StatusOK {
		t.Fatalf("set key = %d", rec.Code)
	}
	if s.creds.key != "AIza-test" {
		t.Fatalf("stored = %q", s.creds.key)
	}
	if body := decodeBody(t, s.do(t, http.MethodGet, "/v1/credentials/gemini", nil)); body["configured"] != true {
		t.Fatalf("after set = %v", body)
	}
}
