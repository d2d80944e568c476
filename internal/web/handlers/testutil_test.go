package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/site-photos/internal/config"
	"github.com/kozaktomas/site-photos/internal/photos"
	"github.com/kozaktomas/site-photos/internal/preview"
	"github.com/kozaktomas/site-photos/internal/siteapi"
	"github.com/kozaktomas/site-photos/internal/web/middleware"
	"github.com/kozaktomas/site-photos/internal/web/workspace"
	"github.com/stretchr/testify/require"
)

// mockSite is an in-memory site backend speaking the envelope protocol.
type mockSite struct {
	mu        sync.Mutex
	photos    []siteapi.Photo
	uploads   []map[string]string
	failIDs   map[string]string // id -> error message for PATCH/DELETE
	uploadErr string
	token     string
	lists     int
}

func newMockSite(photos ...siteapi.Photo) *mockSite {
	return &mockSite{photos: photos, failIDs: map[string]string{}, token: "test-token"}
}

func genSitePhotos(prefix string, n int, c siteapi.Classification) []siteapi.Photo {
	out := make([]siteapi.Photo, n)
	for i := range n {
		out[i] = siteapi.Photo{ID: fmt.Sprintf("%s%d", prefix, i), Classification: c, FileName: fmt.Sprintf("%s%d.jpg", prefix, i)}
	}
	return out
}

func writeEnvelope(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (m *mockSite) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "Bearer "+m.token {
		writeEnvelope(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "invalid token"})
		return false
	}
	return true
}

func (m *mockSite) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/sites/{site}/photos", func(w http.ResponseWriter, r *http.Request) {
		if !m.authorized(w, r) {
			return
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		m.lists++

		q := r.URL.Query()
		page, _ := strconv.Atoi(q.Get("page"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		if page < 1 {
			page = 1
		}
		if limit < 1 {
			limit = 120
		}
		var matched []siteapi.Photo
		var counts siteapi.Counts
		for _, p := range m.photos {
			if c := q.Get("classification"); c != "" && string(p.Classification) != c {
				continue
			}
			if id := q.Get("report_id"); id != "" && p.ReportID != id {
				continue
			}
			matched = append(matched, p)
			if p.Classification == siteapi.ClassificationAfter {
				counts.After++
			} else {
				counts.Before++
			}
		}
		start := min((page-1)*limit, len(matched))
		end := min(page*limit, len(matched))
		writeEnvelope(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]any{"photos": matched[start:end], "counts": counts},
			"pagination": siteapi.Pagination{
				Page: page, Limit: limit, Total: len(matched),
				TotalPages: (len(matched) + limit - 1) / limit,
			},
		})
	})
	mux.HandleFunc("PATCH /api/photos/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !m.authorized(w, r) {
			return
		}
		var body struct {
			Classification siteapi.Classification `json:"classification"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		m.mu.Lock()
		defer m.mu.Unlock()
		id := r.PathValue("id")
		if msg, ok := m.failIDs[id]; ok {
			writeEnvelope(w, http.StatusInternalServerError, map[string]any{"success": false, "error": msg})
			return
		}
		for i := range m.photos {
			if m.photos[i].ID == id {
				m.photos[i].Classification = body.Classification
			}
		}
		writeEnvelope(w, http.StatusOK, map[string]any{"success": true, "data": nil})
	})
	mux.HandleFunc("DELETE /api/photos/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !m.authorized(w, r) {
			return
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		id := r.PathValue("id")
		if msg, ok := m.failIDs[id]; ok {
			writeEnvelope(w, http.StatusInternalServerError, map[string]any{"success": false, "error": msg})
			return
		}
		m.photos = slices.DeleteFunc(m.photos, func(p siteapi.Photo) bool { return p.ID == id })
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/sites/{site}/photos", func(w http.ResponseWriter, r *http.Request) {
		if !m.authorized(w, r) {
			return
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			writeEnvelope(w, http.StatusBadRequest, map[string]any{"success": false, "error": "bad form"})
			return
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.uploadErr != "" {
			writeEnvelope(w, http.StatusInternalServerError, map[string]any{"success": false, "error": m.uploadErr})
			return
		}
		_, fh, err := r.FormFile("file")
		if err != nil {
			writeEnvelope(w, http.StatusBadRequest, map[string]any{"success": false, "error": "file is required"})
			return
		}
		rec := map[string]string{
			"file_name":      fh.Filename,
			"classification": r.FormValue("classification"),
			"report_id":      r.FormValue("report_id"),
		}
		m.uploads = append(m.uploads, rec)
		p := siteapi.Photo{
			ID:             fmt.Sprintf("u%d", len(m.uploads)),
			Classification: siteapi.Classification(rec["classification"]),
			FileName:       fh.Filename,
			ReportID:       rec["report_id"],
		}
		m.photos = append(m.photos, p)
		writeEnvelope(w, http.StatusCreated, map[string]any{"success": true, "data": p})
	})
	mux.HandleFunc("GET /api/reports", func(w http.ResponseWriter, r *http.Request) {
		if !m.authorized(w, r) {
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]any{"success": true, "data": []siteapi.Report{{ID: "r1", Title: "Weekly report"}}})
	})
	mux.HandleFunc("GET /api/sites/{site}/photo-sheets", func(w http.ResponseWriter, r *http.Request) {
		if !m.authorized(w, r) {
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]any{"success": true, "data": []siteapi.PhotoSheet{}})
	})
	return mux
}

func (m *mockSite) uploadNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.uploads))
	for i, u := range m.uploads {
		names[i] = u["file_name"]
	}
	return names
}

// setupMockSiteServer starts a backend serving site.
func setupMockSiteServer(t *testing.T, site *mockSite) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(site.handler())
	t.Cleanup(server.Close)
	return server
}

// testConfig creates a minimal config pointing at the backend URL.
func testConfig(url string) *config.Config {
	return &config.Config{
		Backend:  config.BackendConfig{URL: url},
		Photos:   config.PhotosConfig{PageSize: 120, Concurrency: 3},
		Messages: config.DefaultMessages(),
	}
}

// testWorkspace opens a started workspace for site-1 against server.
func testWorkspace(t *testing.T, server *httptest.Server) *workspace.Workspace {
	t.Helper()
	gen, err := preview.NewGenerator(t.TempDir(), nil)
	require.NoError(t, err)
	reg, err := workspace.NewRegistry(workspace.Options{
		BackendURL: server.URL,
		Photos:     config.PhotosConfig{PageSize: 120, Concurrency: 3},
		Messages:   config.DefaultMessages(),
		Previewer:  gen,
	})
	require.NoError(t, err)
	t.Cleanup(reg.CloseAll)

	ws, err := reg.Get(context.Background(), workspace.Identity{SessionID: "s1", Token: "test-token", SiteID: "site-1"})
	require.NoError(t, err)
	return ws
}

// requestWithWorkspace creates a request with a workspace in context.
func requestWithWorkspace(t *testing.T, method, path string, body io.Reader, ws *workspace.Workspace) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req.WithContext(middleware.SetWorkspaceInContext(req.Context(), ws))
}

// jsonBody encodes v as a request body.
func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

// multipartFiles builds a multipart body with one "files" part per name.
func multipartFiles(t *testing.T, fields map[string]string, files map[string][]byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, name))
		h.Set("Content-Type", contentTypeFor(name))
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// jpegBytes encodes a small solid image.
func jpegBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for x := range 64 {
		for y := range 48 {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%v'", expectedMessage, result["error"])
	}
}

// snapshotOf decodes a snapshot response.
func snapshotOf(t *testing.T, recorder *httptest.ResponseRecorder) photos.Snapshot {
	t.Helper()
	var snap photos.Snapshot
	parseJSONResponse(t, recorder, &snap)
	return snap
}
