package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"filehost/internal/config"
	"filehost/internal/filehost"
	"filehost/internal/metrics"
	"filehost/internal/server"
	"filehost/internal/testutil"
)

type testServer struct {
	*httptest.Server
	env *testutil.ServiceEnv
}

func newTestServer(t *testing.T, cfg config.ServerConfig, limits filehost.Limits) *testServer {
	t.Helper()

	env := testutil.NewTestServiceWithLimits(t, limits)
	s := server.New(env.Service, cfg, limits, filehost.NewNopLogger(), metrics.New())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, env: env}
}

func newDefaultServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServer(t, config.ServerConfig{}, filehost.DefaultLimits())
}

type part struct {
	name    string
	content string
}

// upload posts a multipart form with the given files and extra fields.
func (ts *testServer) upload(t *testing.T, files []part, fields map[string]string, header http.Header) *http.Response {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	for _, f := range files {
		w, err := mw.CreateFormFile("files", f.name)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		io.WriteString(w, f.content)
	}
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, vs := range header {
		req.Header[k] = vs
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /upload error = %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// do sends a request with an optional JSON body and X-Password header.
func (ts *testServer) do(t *testing.T, method, path string, body any, password string) *http.Response {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json.Marshal() error = %v", err)
		}
		r = bytes.NewReader(data)
	}
	req, _ := http.NewRequest(method, ts.URL+path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if password != "" {
		req.Header.Set("X-Password", password)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s status = %d, want %d (body: %s)", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, body)
	}
}

type uploadResult struct {
	Message string                `json:"message"`
	Files   []filehost.FileRecord `json:"files"`
}

func TestServer_UploadListDownloadDelete(t *testing.T) {
	ts := newDefaultServer(t)

	resp := ts.upload(t, []part{{"hello.txt", "hello world"}}, nil, nil)
	expectStatus(t, resp, http.StatusOK)
	result := decode[uploadResult](t, resp)
	if len(result.Files) != 1 {
		t.Fatalf("files = %d, want 1", len(result.Files))
	}
	file := result.Files[0]
	if file.OriginalName != "hello.txt" || file.Size != 11 || file.Extension != ".txt" {
		t.Errorf("uploaded file = %+v", file)
	}

	resp = ts.do(t, http.MethodGet, "/files", nil, "")
	expectStatus(t, resp, http.StatusOK)
	listed := decode[[]map[string]any](t, resp)
	if len(listed) != 1 || listed[0]["id"] != file.ID {
		t.Fatalf("GET /files = %v", listed)
	}
	for _, key := range []string{"id", "filename", "directory", "path", "originalName", "size", "uploadDate", "type"} {
		if _, ok := listed[0][key]; !ok {
			t.Errorf("file entry missing %q", key)
		}
	}

	resp = ts.do(t, http.MethodGet, "/download/"+file.ID, nil, "")
	expectStatus(t, resp, http.StatusOK)
	disposition, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition"))
	if err != nil || disposition != "attachment" || params["filename"] != "hello.txt" {
		t.Errorf("Content-Disposition = %q", resp.Header.Get("Content-Disposition"))
	}
	if body, _ := io.ReadAll(resp.Body); string(body) != "hello world" {
		t.Errorf("download body = %q", body)
	}

	resp = ts.do(t, http.MethodDelete, "/delete/"+file.ID, nil, "")
	expectStatus(t, resp, http.StatusOK)
	if msg := decode[map[string]string](t, resp)["message"]; msg == "" {
		t.Error("delete response has no message")
	}

	resp = ts.do(t, http.MethodGet, "/download/"+file.ID, nil, "")
	expectStatus(t, resp, http.StatusNotFound)
	if decode[map[string]string](t, resp)["error"] == "" {
		t.Error("404 response has no error message")
	}
}

func TestServer_DownloadUnicodeName(t *testing.T) {
	ts := newDefaultServer(t)

	resp := ts.upload(t, []part{{"résumé final.pdf", "%PDF-1.4"}}, nil, nil)
	expectStatus(t, resp, http.StatusOK)
	file := decode[uploadResult](t, resp).Files[0]

	resp = ts.do(t, http.MethodGet, "/download/"+file.ID, nil, "")
	expectStatus(t, resp, http.StatusOK)
	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition"))
	if err != nil || params["filename"] != "résumé final.pdf" {
		t.Errorf("Content-Disposition = %q, err = %v", resp.Header.Get("Content-Disposition"), err)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q, want application/pdf", ct)
	}
}

func TestServer_ProtectedDirectory(t *testing.T) {
	ts := newDefaultServer(t)

	resp := ts.do(t, http.MethodPost, "/directories", map[string]string{"name": "secret", "password": "x"}, "")
	expectStatus(t, resp, http.StatusOK)

	resp = ts.do(t, http.MethodGet, "/directories?dir=", nil, "")
	expectStatus(t, resp, http.StatusOK)
	if dirs := decode[[]string](t, resp); len(dirs) != 1 || dirs[0] != "secret" {
		t.Errorf("GET /directories = %v, want [secret]", dirs)
	}

	expectStatus(t, ts.do(t, http.MethodGet, "/files?dir=secret", nil, ""), http.StatusForbidden)
	expectStatus(t, ts.do(t, http.MethodGet, "/files?dir=secret", nil, "y"), http.StatusForbidden)

	resp = ts.do(t, http.MethodGet, "/files?dir=secret", nil, "x")
	expectStatus(t, resp, http.StatusOK)
	if files := decode[[]filehost.FileRecord](t, resp); files == nil || len(files) != 0 {
		t.Errorf("GET /files?dir=secret = %v, want empty array", files)
	}

	expectStatus(t, ts.do(t, http.MethodGet, "/files?dir=secret&password=x", nil, ""), http.StatusOK)
	expectStatus(t, ts.do(t, http.MethodGet, "/files?dir=secret/nested", nil, ""), http.StatusForbidden)
	expectStatus(t, ts.do(t, http.MethodGet, "/directories?dir=secret", nil, ""), http.StatusForbidden)
}

func TestServer_CredentialPrecedence(t *testing.T) {
	ts := newDefaultServer(t)
	expectStatus(t, ts.do(t, http.MethodPost, "/directories", map[string]string{"name": "vault", "password": "right"}, ""), http.StatusOK)

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{name: "header wins over query", header: "wrong", query: "right", want: http.StatusForbidden},
		{name: "header alone", header: "right", query: "", want: http.StatusOK},
		{name: "query when header absent", header: "", query: "right", want: http.StatusOK},
		{name: "header right query wrong", header: "right", query: "wrong", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := "/files?dir=vault"
			if tt.query != "" {
				path += "&password=" + tt.query
			}
			expectStatus(t, ts.do(t, http.MethodGet, path, nil, tt.header), tt.want)
		})
	}

	t.Run("body field", func(t *testing.T) {
		resp := ts.upload(t, []part{{"a.txt", "a"}}, map[string]string{"dir": "vault", "password": "right"}, nil)
		expectStatus(t, resp, http.StatusOK)
		file := decode[uploadResult](t, resp).Files[0]

		expectStatus(t, ts.do(t, http.MethodPatch, "/rename/"+file.ID, map[string]string{"newName": "b.txt", "password": "wrong"}, ""), http.StatusForbidden)
		expectStatus(t, ts.do(t, http.MethodPatch, "/rename/"+file.ID, map[string]string{"newName": "b.txt", "password": "right"}, ""), http.StatusOK)
		expectStatus(t, ts.do(t, http.MethodDelete, "/delete/"+file.ID, map[string]string{"password": "right"}, ""), http.StatusOK)
	})
}

func TestServer_MoveThenList(t *testing.T) {
	ts := newDefaultServer(t)

	resp := ts.upload(t, []part{{"report.pdf", "pdf"}}, nil, nil)
	expectStatus(t, resp, http.StatusOK)
	file := decode[uploadResult](t, resp).Files[0]

	expectStatus(t, ts.do(t, http.MethodPatch, "/move/"+file.ID, map[string]string{"newDir": "archive"}, ""), http.StatusOK)

	resp = ts.do(t, http.MethodGet, "/files?dir=archive", nil, "")
	expectStatus(t, resp, http.StatusOK)
	if files := decode[[]filehost.FileRecord](t, resp); len(files) != 1 || files[0].ID != file.ID || files[0].Directory != "archive" {
		t.Errorf("GET /files?dir=archive = %+v", files)
	}

	resp = ts.do(t, http.MethodGet, "/files?dir=", nil, "")
	if files := decode[[]filehost.FileRecord](t, resp); len(files) != 0 {
		t.Errorf("GET /files?dir= = %+v, want empty", files)
	}

	// Empty newDir moves back to the root.
	expectStatus(t, ts.do(t, http.MethodPatch, "/move/"+file.ID, map[string]string{"newDir": ""}, ""), http.StatusOK)
	resp = ts.do(t, http.MethodGet, "/files", nil, "")
	if files := decode[[]filehost.FileRecord](t, resp); len(files) != 1 {
		t.Errorf("GET /files after moving back = %+v", files)
	}
}

func TestServer_DeleteDirectoryRemovesRecords(t *testing.T) {
	ts := newDefaultServer(t)

	expectStatus(t, ts.do(t, http.MethodPost, "/directories", map[string]string{"name": "secret"}, ""), http.StatusOK)
	resp := ts.upload(t, []part{{"a.txt", "a"}}, map[string]string{"dir": "secret"}, nil)
	expectStatus(t, resp, http.StatusOK)
	file := decode[uploadResult](t, resp).Files[0]

	expectStatus(t, ts.do(t, http.MethodDelete, "/directories/secret", nil, ""), http.StatusOK)

	resp = ts.do(t, http.MethodGet, "/directories", nil, "")
	if dirs := decode[[]string](t, resp); len(dirs) != 0 {
		t.Errorf("GET /directories = %v, want empty", dirs)
	}
	all, err := ts.env.Store.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	for _, rec := range all {
		if rec.ID == file.ID {
			t.Error("record of deleted directory still present")
		}
	}
	expectStatus(t, ts.do(t, http.MethodGet, "/download/"+file.ID, nil, ""), http.StatusNotFound)
	expectStatus(t, ts.do(t, http.MethodDelete, "/directories/secret", nil, ""), http.StatusNotFound)
}

func TestServer_NestedDirectories(t *testing.T) {
	ts := newDefaultServer(t)

	expectStatus(t, ts.do(t, http.MethodPost, "/directories", map[string]string{"name": "a/b"}, ""), http.StatusOK)
	resp := ts.do(t, http.MethodGet, "/directories?dir=a", nil, "")
	expectStatus(t, resp, http.StatusOK)
	if dirs := decode[[]string](t, resp); len(dirs) != 1 || dirs[0] != "b" {
		t.Errorf("GET /directories?dir=a = %v", dirs)
	}

	expectStatus(t, ts.do(t, http.MethodDelete, "/directories/a/b", nil, ""), http.StatusOK)
	resp = ts.do(t, http.MethodGet, "/directories?dir=a", nil, "")
	if dirs := decode[[]string](t, resp); len(dirs) != 0 {
		t.Errorf("GET /directories?dir=a after delete = %v", dirs)
	}
}

func TestServer_UploadRejected(t *testing.T) {
	small := filehost.Limits{MaxFiles: 2, MaxFileSize: 16}
	ts := newTestServer(t, config.ServerConfig{}, small)

	tests := []struct {
		name  string
		files []part
	}{
		{name: "no files", files: nil},
		{name: "unsupported type", files: []part{{"run.exe", "MZ"}}},
		{name: "too many files", files: []part{{"a.txt", "a"}, {"b.txt", "b"}, {"c.txt", "c"}}},
		{name: "file too large", files: []part{{"big.txt", strings.Repeat("x", 17)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.upload(t, tt.files, nil, nil)
			expectStatus(t, resp, http.StatusBadRequest)
			if decode[map[string]string](t, resp)["error"] == "" {
				t.Error("error body missing")
			}
		})
	}

	t.Run("not multipart", func(t *testing.T) {
		expectStatus(t, ts.do(t, http.MethodPost, "/upload", map[string]string{"files": "x"}, ""), http.StatusBadRequest)
	})

	t.Run("path traversal", func(t *testing.T) {
		resp := ts.upload(t, []part{{"a.txt", "a"}}, map[string]string{"dir": "../../etc"}, nil)
		expectStatus(t, resp, http.StatusBadRequest)
	})

	if n, _, _ := ts.env.Store.CountAndTotalSize(context.Background()); n != 0 {
		t.Errorf("records after rejected uploads = %d, want 0", n)
	}
}

func TestServer_ErrorMapping(t *testing.T) {
	ts := newDefaultServer(t)
	resp := ts.upload(t, []part{{"a.txt", "a"}}, nil, nil)
	expectStatus(t, resp, http.StatusOK)
	id := decode[uploadResult](t, resp).Files[0].ID

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{name: "rename unknown id", method: http.MethodPatch, path: "/rename/nope", body: map[string]string{"newName": "x.txt"}, want: http.StatusNotFound},
		{name: "rename missing name", method: http.MethodPatch, path: "/rename/" + id, body: map[string]string{}, want: http.StatusBadRequest},
		{name: "rename bad type", method: http.MethodPatch, path: "/rename/" + id, body: map[string]string{"newName": "x.exe"}, want: http.StatusBadRequest},
		{name: "move missing field", method: http.MethodPatch, path: "/move/" + id, body: map[string]string{}, want: http.StatusBadRequest},
		{name: "move traversal", method: http.MethodPatch, path: "/move/" + id, body: map[string]string{"newDir": "../up"}, want: http.StatusBadRequest},
		{name: "move unknown id", method: http.MethodPatch, path: "/move/nope", body: map[string]string{"newDir": "x"}, want: http.StatusNotFound},
		{name: "delete unknown id", method: http.MethodDelete, path: "/delete/nope", want: http.StatusNotFound},
		{name: "create root", method: http.MethodPost, path: "/directories", body: map[string]string{"name": "/"}, want: http.StatusBadRequest},
		{name: "create traversal", method: http.MethodPost, path: "/directories", body: map[string]string{"name": "../x"}, want: http.StatusBadRequest},
		{name: "list missing directory", method: http.MethodGet, path: "/directories?dir=nope", want: http.StatusNotFound},
		{name: "list files traversal", method: http.MethodGet, path: "/files?dir=../../etc", want: http.StatusBadRequest},
		{name: "unknown route", method: http.MethodGet, path: "/nope", want: http.StatusNotFound},
		{name: "wrong method", method: http.MethodGet, path: "/delete/" + id, want: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, ts.do(t, tt.method, tt.path, tt.body, ""), tt.want)
		})
	}

	t.Run("duplicate directory", func(t *testing.T) {
		expectStatus(t, ts.do(t, http.MethodPost, "/directories", map[string]string{"name": "dup"}, ""), http.StatusOK)
		expectStatus(t, ts.do(t, http.MethodPost, "/directories", map[string]string{"name": "dup"}, ""), http.StatusBadRequest)
	})

	t.Run("malformed json", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPatch, ts.URL+"/rename/"+id, strings.NewReader("{newName:"))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request error = %v", err)
		}
		defer resp.Body.Close()
		expectStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("internal errors are hidden", func(t *testing.T) {
		ts.env.FS.FailRemove(errors.New("disk on fire"))
		resp := ts.do(t, http.MethodDelete, "/delete/"+id, nil, "")
		expectStatus(t, resp, http.StatusInternalServerError)
		if msg := decode[map[string]string](t, resp)["error"]; strings.Contains(msg, "fire") {
			t.Errorf("internal error leaked: %q", msg)
		}
	})
}

func TestServer_Stats(t *testing.T) {
	ts := newDefaultServer(t)
	ts.upload(t, []part{{"a.txt", "hello world"}, {"b.txt", strings.Repeat("x", 2048)}}, nil, nil)

	resp := ts.do(t, http.MethodGet, "/stats", nil, "")
	expectStatus(t, resp, http.StatusOK)

	var stats struct {
		TotalFiles int64  `json:"totalFiles"`
		TotalSize  string `json:"totalSize"`
		TotalBytes int64  `json:"totalBytes"`
		DiskSpace  struct {
			Used      string `json:"used"`
			Available string `json:"available"`
		} `json:"diskSpace"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	if stats.TotalFiles != 2 || stats.TotalBytes != 2059 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.TotalSize != "2.01 KB" {
		t.Errorf("totalSize = %q, want %q", stats.TotalSize, "2.01 KB")
	}
	if stats.DiskSpace.Used == "" || stats.DiskSpace.Available == "" {
		t.Errorf("diskSpace = %+v", stats.DiskSpace)
	}
}

func TestServer_UploadRateLimit(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{UploadRatePerWindow: 2, UploadRateWindow: time.Hour}, filehost.DefaultLimits())

	for i := 0; i < 2; i++ {
		expectStatus(t, ts.upload(t, []part{{"a.txt", "a"}}, nil, nil), http.StatusOK)
	}
	resp := ts.upload(t, []part{{"a.txt", "a"}}, nil, nil)
	expectStatus(t, resp, http.StatusTooManyRequests)

	// Other routes are not limited.
	expectStatus(t, ts.do(t, http.MethodGet, "/files", nil, ""), http.StatusOK)
}

func TestServer_Headers(t *testing.T) {
	ts := newDefaultServer(t)
	resp := ts.do(t, http.MethodGet, "/healthz", nil, "")
	expectStatus(t, resp, http.StatusOK)

	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "no-referrer",
		"Content-Security-Policy": "default-src 'self'",
	}
	for k, v := range want {
		if got := resp.Header.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestServer_Metrics(t *testing.T) {
	ts := newDefaultServer(t)
	ts.upload(t, []part{{"a.txt", "abc"}}, nil, nil)

	resp := ts.do(t, http.MethodGet, "/metrics", nil, "")
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{
		"filehost_uploaded_files_total 1",
		"filehost_uploaded_bytes_total 3",
		`filehost_http_requests_total{code="200",method="POST",route="/upload"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestServer_StaticFiles(t *testing.T) {
	static := t.TempDir()
	if err := os.WriteFile(filepath.Join(static, "index.html"), []byte("<h1>filehost</h1>"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	ts := newTestServer(t, config.ServerConfig{StaticDir: static}, filehost.DefaultLimits())

	resp := ts.do(t, http.MethodGet, "/", nil, "")
	expectStatus(t, resp, http.StatusOK)
	if body, _ := io.ReadAll(resp.Body); !strings.Contains(string(body), "filehost") {
		t.Errorf("index body = %q", body)
	}

	// API routes still win over the static handler.
	expectStatus(t, ts.do(t, http.MethodGet, "/files", nil, ""), http.StatusOK)
}

func TestServer_Serve(t *testing.T) {
	env := testutil.NewTestService(t)
	s := server.New(env.Service, config.ServerConfig{ShutdownTimeout: time.Second}, filehost.DefaultLimits(), filehost.NewNopLogger(), nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
