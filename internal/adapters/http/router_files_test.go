package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/study-vault/internal/config"
	"github.com/kirillkom/study-vault/internal/core/domain"
	"github.com/kirillkom/study-vault/internal/core/ports"
	"github.com/kirillkom/study-vault/internal/core/usecase"
	"github.com/kirillkom/study-vault/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/study-vault/internal/observability/metrics"
)

type memObject struct {
	info domain.BlobInfo
	data []byte
}

type memBlobStore struct {
	mu      sync.Mutex
	objects map[string]memObject
	nextID  int
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{objects: map[string]memObject{}}
}

func (s *memBlobStore) BeginUpload(_ context.Context, filename string, meta domain.BlobInfo) (ports.BlobUpload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return &memUpload{
		store: s,
		info: domain.BlobInfo{
			ID:        fmt.Sprintf("blob-%d", s.nextID),
			Filename:  filename,
			OwnerID:   meta.OwnerID,
			MimeType:  meta.MimeType,
			CreatedAt: time.Now().UTC(),
		},
	}, nil
}

func (s *memBlobStore) Stat(_ context.Context, id string) (domain.BlobInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[id]
	if !ok {
		return domain.BlobInfo{}, domain.WrapError(domain.ErrNotFound, "stat blob", errors.New("no object"))
	}
	return obj.info, nil
}

func (s *memBlobStore) OpenDownload(_ context.Context, id string) (domain.BlobInfo, io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[id]
	if !ok {
		return domain.BlobInfo{}, nil, domain.WrapError(domain.ErrNotFound, "open download", errors.New("no object"))
	}
	return obj.info, io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *memBlobStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[id]; !ok {
		return domain.WrapError(domain.ErrNotFound, "delete blob", errors.New("no object"))
	}
	delete(s.objects, id)
	return nil
}

type memUpload struct {
	store *memBlobStore
	info  domain.BlobInfo
	buf   bytes.Buffer
}

func (u *memUpload) Write(p []byte) (int, error) { return u.buf.Write(p) }

func (u *memUpload) Commit(context.Context) (domain.BlobInfo, error) {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	u.info.Size = int64(u.buf.Len())
	u.store.objects[u.info.ID] = memObject{info: u.info, data: u.buf.Bytes()}
	return u.info, nil
}

func (u *memUpload) Abort() error { return nil }

type memProfileStore struct {
	mu       sync.Mutex
	profiles map[string]*domain.Profile
}

func newMemProfileStore() *memProfileStore {
	return &memProfileStore{profiles: map[string]*domain.Profile{}}
}

func (s *memProfileStore) GetByID(_ context.Context, ownerID string) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[ownerID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get profile", errors.New("no profile"))
	}
	return p, nil
}

func (s *memProfileStore) Save(_ context.Context, profile *domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.ID] = profile
	return nil
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	blobs := newMemBlobStore()
	profiles := newMemProfileStore()
	upload := usecase.NewUploadFileUseCase(
		blobs, profiles,
		plaintext.NewExtractor(), plaintext.NewExtractor(),
		nil, usecase.UploadConfig{},
	)
	access := usecase.NewFileAccessUseCase(blobs, profiles)
	return NewRouter(config.Config{}, upload, access, metrics.NewHTTPServerMetrics("test"), nil).Handler()
}

func multipartBody(t *testing.T, filename, contentType, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func doUpload(t *testing.T, handler http.Handler, principal, filename, contentType, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, formType := multipartBody(t, filename, contentType, content)
	req := httptest.NewRequest(http.MethodPost, "/files/upload", body)
	req.Header.Set("Content-Type", formType)
	if principal != "" {
		req.Header.Set("X-User-Id", principal)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func doRequest(t *testing.T, handler http.Handler, method, path, principal string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if principal != "" {
		req.Header.Set("X-User-Id", principal)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestUploadCreatesFile(t *testing.T) {
	handler := newTestHandler(t)

	rec := doUpload(t, handler, "user-1", "notes.txt", "text/plain", "hello world")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var record domain.FileRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if record.ID == "" {
		t.Fatalf("expected file id in response")
	}
	if record.Text != "hello world" {
		t.Fatalf("extracted_text = %q", record.Text)
	}
	if record.Processing == nil || !record.Processing.Success {
		t.Fatalf("expected successful processing result, got %+v", record.Processing)
	}
}

func TestUploadMissingFilePart(t *testing.T) {
	handler := newTestHandler(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("other", "value")
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/files/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-User-Id", "user-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["error"] != "missing_file" {
		t.Fatalf("error = %q", resp["error"])
	}
}

func TestUploadDisallowedTypeLeavesNoTrace(t *testing.T) {
	handler := newTestHandler(t)

	rec := doUpload(t, handler, "user-1", "cat.png", "image/png", "pngdata")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["error"] != "invalid_file_type" {
		t.Fatalf("error = %q", resp["error"])
	}

	list := doRequest(t, handler, http.MethodGet, "/files", "user-1")
	if list.Code != http.StatusOK {
		t.Fatalf("list status = %d", list.Code)
	}
	var listResp struct {
		Files []domain.FileRecord `json:"files"`
	}
	if err := json.Unmarshal(list.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listResp.Files) != 0 {
		t.Fatalf("expected empty list after rejected upload, got %+v", listResp.Files)
	}
}

func TestUploadWithoutPrincipal(t *testing.T) {
	handler := newTestHandler(t)
	rec := doUpload(t, handler, "", "notes.txt", "text/plain", "hello")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestDownloadRoundTrip(t *testing.T) {
	handler := newTestHandler(t)
	payload := "line one\nline two\n"

	up := doUpload(t, handler, "user-1", "doc.txt", "text/plain", payload)
	if up.Code != http.StatusCreated {
		t.Fatalf("upload status = %d", up.Code)
	}
	var record domain.FileRecord
	_ = json.Unmarshal(up.Body.Bytes(), &record)

	down := doRequest(t, handler, http.MethodGet, "/files/"+record.ID, "user-1")
	if down.Code != http.StatusOK {
		t.Fatalf("download status = %d, body = %s", down.Code, down.Body.String())
	}
	if got := down.Body.String(); got != payload {
		t.Fatalf("downloaded bytes differ: %q", got)
	}
	if ct := down.Header().Get("Content-Type"); ct != "text/plain" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if cd := down.Header().Get("Content-Disposition"); cd != `attachment; filename="doc.txt"` {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	if cl := down.Header().Get("Content-Length"); cl != fmt.Sprintf("%d", len(payload)) {
		t.Fatalf("Content-Length = %q", cl)
	}
}

func TestDownloadByOtherPrincipal(t *testing.T) {
	handler := newTestHandler(t)

	up := doUpload(t, handler, "user-1", "doc.txt", "text/plain", "secret")
	var record domain.FileRecord
	_ = json.Unmarshal(up.Body.Bytes(), &record)

	rec := doRequest(t, handler, http.MethodGet, "/files/"+record.ID, "user-2")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestDownloadUnknownID(t *testing.T) {
	handler := newTestHandler(t)
	rec := doRequest(t, handler, http.MethodGet, "/files/does-not-exist", "user-1")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestDeleteThenSecondDeleteIsNotFound(t *testing.T) {
	handler := newTestHandler(t)

	up := doUpload(t, handler, "user-1", "doc.txt", "text/plain", "bytes")
	var record domain.FileRecord
	_ = json.Unmarshal(up.Body.Bytes(), &record)

	first := doRequest(t, handler, http.MethodDelete, "/files/"+record.ID, "user-1")
	if first.Code != http.StatusOK {
		t.Fatalf("first delete status = %d, body = %s", first.Code, first.Body.String())
	}
	var resp map[string]bool
	_ = json.Unmarshal(first.Body.Bytes(), &resp)
	if !resp["success"] {
		t.Fatalf("expected success=true, body = %s", first.Body.String())
	}

	second := doRequest(t, handler, http.MethodDelete, "/files/"+record.ID, "user-1")
	if second.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", second.Code)
	}

	gone := doRequest(t, handler, http.MethodGet, "/files/"+record.ID, "user-1")
	if gone.Code != http.StatusNotFound {
		t.Fatalf("download after delete status = %d", gone.Code)
	}
}

func TestDeleteByOtherPrincipal(t *testing.T) {
	handler := newTestHandler(t)

	up := doUpload(t, handler, "user-1", "doc.txt", "text/plain", "bytes")
	var record domain.FileRecord
	_ = json.Unmarshal(up.Body.Bytes(), &record)

	rec := doRequest(t, handler, http.MethodDelete, "/files/"+record.ID, "user-2")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	still := doRequest(t, handler, http.MethodGet, "/files/"+record.ID, "user-1")
	if still.Code != http.StatusOK {
		t.Fatalf("expected owner download to still succeed, got %d", still.Code)
	}
}

func TestListShowsOnlyOwnFiles(t *testing.T) {
	handler := newTestHandler(t)

	doUpload(t, handler, "user-1", "a.txt", "text/plain", "a")
	doUpload(t, handler, "user-2", "b.txt", "text/plain", "b")

	rec := doRequest(t, handler, http.MethodGet, "/files", "user-1")
	var listResp struct {
		Files []domain.FileRecord `json:"files"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listResp.Files) != 1 || listResp.Files[0].OriginalName != "a.txt" {
		t.Fatalf("unexpected listing %+v", listResp.Files)
	}
}

func TestExtractTextDoesNotPersist(t *testing.T) {
	handler := newTestHandler(t)

	body, formType := multipartBody(t, "notes.md", "text/markdown", "# Heading\n\nsome body")
	req := httptest.NewRequest(http.MethodPost, "/files/extract-text", body)
	req.Header.Set("Content-Type", formType)
	req.Header.Set("X-User-Id", "user-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ExtractedText string                   `json:"extracted_text"`
		Processing    *domain.ProcessingResult `json:"processing_result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ExtractedText == "" || resp.Processing == nil || !resp.Processing.Success {
		t.Fatalf("unexpected extraction response %s", rec.Body.String())
	}

	list := doRequest(t, handler, http.MethodGet, "/files", "user-1")
	var listResp struct {
		Files []domain.FileRecord `json:"files"`
	}
	_ = json.Unmarshal(list.Body.Bytes(), &listResp)
	if len(listResp.Files) != 0 {
		t.Fatalf("expected nothing persisted, got %+v", listResp.Files)
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestHandler(t)
	rec := doRequest(t, handler, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
