package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fstash/internal/api"
	"fstash/internal/blobstore"
	"fstash/internal/store"
)

func newTestServer(t *testing.T, quota Quota) *httptest.Server {
	t.Helper()
	dir := t.TempDir()

	dbPath := filepath.Join(dir, "test.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})

	blobs, err := blobstore.NewLocalDir(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}

	srv := New("127.0.0.1:0", st, blobs, quota, dbPath, discardLogger())
	ts := httptest.NewServer(srv.withRequestLogging(srv.routes()))
	t.Cleanup(ts.Close)
	return ts
}

func uploadFile(t *testing.T, ts *httptest.Server, filename, content string) api.UploadResponse {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	resp, err := http.Post(ts.URL+"/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("post upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload status %d: %s", resp.StatusCode, body)
	}

	var out api.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return out
}

func decodeErrorResponse(t *testing.T, resp *http.Response) api.ErrorResponse {
	t.Helper()
	defer resp.Body.Close()
	var out api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return out
}

func TestUploadListDownloadContract(t *testing.T) {
	ts := newTestServer(t, Quota{MaxTotalBytes: 1 << 20, MaxFileBytes: 1 << 10})

	uploaded := uploadFile(t, ts, "cat.jpg", "pretend-jpeg-bytes")
	if !uploaded.Success {
		t.Fatal("expected success=true")
	}
	if uploaded.File.Type != "image" {
		t.Fatalf("expected image type, got %q", uploaded.File.Type)
	}
	if !strings.HasPrefix(uploaded.File.Path, "uploads/") {
		t.Fatalf("unexpected path %q", uploaded.File.Path)
	}
	if _, err := time.Parse(api.DateLayout, uploaded.File.Date); err != nil {
		t.Fatalf("date %q does not match layout: %v", uploaded.File.Date, err)
	}
	if uploaded.Storage.Used != int64(len("pretend-jpeg-bytes")) {
		t.Fatalf("unexpected storage usage: %+v", uploaded.Storage)
	}

	resp, err := http.Get(ts.URL + "/list")
	if err != nil {
		t.Fatalf("get list: %v", err)
	}
	var listed api.ListResponse
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	resp.Body.Close()
	if len(listed.Files) != 1 || listed.Files[0].ID != uploaded.File.ID {
		t.Fatalf("unexpected list: %+v", listed.Files)
	}

	key := strings.TrimPrefix(uploaded.File.Path, "uploads/")
	resp, err = http.Get(ts.URL + "/uploads/" + url.PathEscape(key))
	if err != nil {
		t.Fatalf("get content: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("content status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %q", ct)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read content: %v", err)
	}
	if string(data) != "pretend-jpeg-bytes" {
		t.Fatalf("content mismatch: %q", data)
	}
}

func TestUploadMissingFileField(t *testing.T) {
	ts := newTestServer(t, Quota{MaxTotalBytes: 1 << 20, MaxFileBytes: 1 << 10})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("note", "no file here"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	resp, err := http.Post(ts.URL+"/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("post upload: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	payload := decodeErrorResponse(t, resp)
	if payload.ErrorCode != ErrCodeMissingFile {
		t.Fatalf("expected error code %d, got %d", ErrCodeMissingFile, payload.ErrorCode)
	}
}

func TestUploadOverQuotaReturnsError(t *testing.T) {
	ts := newTestServer(t, Quota{MaxTotalBytes: 10, MaxFileBytes: 10})

	uploadFile(t, ts, "fill.bin", strings.Repeat("x", 10))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "extra.bin")
	_, _ = io.WriteString(part, "y")
	_ = mw.Close()

	resp, err := http.Post(ts.URL+"/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("post upload: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	payload := decodeErrorResponse(t, resp)
	if payload.Code != "quota_exceeded" {
		t.Fatalf("expected quota_exceeded, got %q", payload.Code)
	}
}

func TestListInvalidFilter(t *testing.T) {
	ts := newTestServer(t, Quota{MaxTotalBytes: 1 << 20, MaxFileBytes: 1 << 10})

	resp, err := http.Get(ts.URL + "/list?filter=spreadsheet")
	if err != nil {
		t.Fatalf("get list: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	payload := decodeErrorResponse(t, resp)
	if payload.Code != "invalid_filter" {
		t.Fatalf("expected invalid_filter, got %q", payload.Code)
	}
}

func TestDeleteJSONAndFormOverride(t *testing.T) {
	ts := newTestServer(t, Quota{MaxTotalBytes: 1 << 20, MaxFileBytes: 1 << 10})

	first := uploadFile(t, ts, "a.pdf", "first")
	second := uploadFile(t, ts, "b.pdf", "second")

	// JSON DELETE.
	body, _ := json.Marshal(api.DeleteRequest{ID: first.File.ID})
	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/delete", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	var deleted api.DeleteResponse
	if err := json.NewDecoder(resp.Body).Decode(&deleted); err != nil {
		t.Fatalf("decode delete: %v", err)
	}
	resp.Body.Close()
	if !deleted.Success || deleted.Storage.Used != int64(len("second")) {
		t.Fatalf("unexpected delete response: %+v", deleted)
	}

	// Form override for the second file.
	form := url.Values{"_method": {"DELETE"}, "id": {fmt.Sprint(second.File.ID)}}
	resp, err = http.Post(ts.URL+"/delete", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("post delete override: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("override status %d: %s", resp.StatusCode, body)
	}
	resp.Body.Close()

	// Deleting again reports the file as gone.
	resp, err = http.Post(ts.URL+"/delete", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("post delete override: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing file, got %d", resp.StatusCode)
	}
	payload := decodeErrorResponse(t, resp)
	if payload.Code != "not_found" {
		t.Fatalf("expected not_found, got %q", payload.Code)
	}
}

func TestDeleteOverrideRequiresMethodField(t *testing.T) {
	ts := newTestServer(t, Quota{MaxTotalBytes: 1 << 20, MaxFileBytes: 1 << 10})

	form := url.Values{"id": {"1"}}
	resp, err := http.Post(ts.URL+"/delete", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("post delete: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestContentNotFound(t *testing.T) {
	ts := newTestServer(t, Quota{MaxTotalBytes: 1 << 20, MaxFileBytes: 1 << 10})

	resp, err := http.Get(ts.URL + "/uploads/nope_0_00000000.bin")
	if err != nil {
		t.Fatalf("get content: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestMethodNotAllowedOnList(t *testing.T) {
	ts := newTestServer(t, Quota{MaxTotalBytes: 1 << 20, MaxFileBytes: 1 << 10})

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/list", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put list: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestReconcileEndpoint(t *testing.T) {
	ts := newTestServer(t, Quota{MaxTotalBytes: 1 << 20, MaxFileBytes: 1 << 10})

	uploadFile(t, ts, "solid.txt", "intact")

	resp, err := http.Post(ts.URL+"/admin/reconcile", "", nil)
	if err != nil {
		t.Fatalf("post reconcile: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reconcile status %d", resp.StatusCode)
	}
	var result ReconcileResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode reconcile: %v", err)
	}
	if !result.DryRun {
		t.Fatal("expected dry run by default")
	}
	if len(result.OrphanBlobs) != 0 || len(result.MissingBlobs) != 0 {
		t.Fatalf("expected clean state, got %+v", result)
	}
	if result.LedgerBytes != result.CatalogBytes {
		t.Fatalf("ledger/catalog mismatch: %+v", result)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, Quota{MaxTotalBytes: 1 << 20, MaxFileBytes: 1 << 10})

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", resp.StatusCode)
	}
}
