package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"horse.fit/polyglot/internal/db"
	"horse.fit/polyglot/internal/language"
	"horse.fit/polyglot/internal/pipeline"
	"horse.fit/polyglot/internal/translation"
)

const (
	testAdminKey  = "admin-secret"
	testClientKey = "client-key-1"
)

type fakeKeyStore struct {
	active          map[string]*db.APIKey
	created         []db.APIKey
	deactivated     []string
	deactivateErr   error
	listKeysResults []db.APIKey
}

func newFakeKeyStore() *fakeKeyStore {
	return &fakeKeyStore{
		active: map[string]*db.APIKey{
			testClientKey: {ID: 1, Key: testClientKey, Description: "test key", CreatedBy: "admin", IsActive: true},
		},
	}
}

func (f *fakeKeyStore) CreateAPIKey(_ context.Context, key, description, createdBy string) (*db.APIKey, error) {
	row := db.APIKey{ID: int64(len(f.created) + 100), Key: key, Description: description, CreatedBy: createdBy, IsActive: true}
	f.created = append(f.created, row)
	f.active[key] = &row
	return &row, nil
}

func (f *fakeKeyStore) GetActiveAPIKey(_ context.Context, key string) (*db.APIKey, error) {
	row, exists := f.active[key]
	if !exists {
		return nil, db.ErrKeyNotFound
	}
	copyRow := *row
	return &copyRow, nil
}

func (f *fakeKeyStore) ListAPIKeys(_ context.Context) ([]db.APIKey, error) {
	return append([]db.APIKey(nil), f.listKeysResults...), nil
}

func (f *fakeKeyStore) DeactivateAPIKey(_ context.Context, key string) error {
	if f.deactivateErr != nil {
		return f.deactivateErr
	}
	f.deactivated = append(f.deactivated, key)
	return nil
}

type fakeJobReader struct {
	jobs  map[string]*db.TranslationJob
	files map[string][]db.TranslationFile
}

func (f *fakeJobReader) GetJob(_ context.Context, jobID string) (*db.TranslationJob, error) {
	job, exists := f.jobs[jobID]
	if !exists {
		return nil, db.ErrJobNotFound
	}
	copyRow := *job
	return &copyRow, nil
}

func (f *fakeJobReader) ListFiles(_ context.Context, jobID string) ([]db.TranslationFile, error) {
	return append([]db.TranslationFile(nil), f.files[jobID]...), nil
}

type fakeSubmitter struct {
	inputs []pipeline.SubmitInput
	jobID  string
	err    error
}

func (f *fakeSubmitter) SubmitFileJob(_ context.Context, in pipeline.SubmitInput) (string, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return "", f.err
	}
	return f.jobID, nil
}

type fakeTextTranslator struct {
	failFor map[string]error
}

func (f *fakeTextTranslator) Translate(_ context.Context, text, targetLang, _ string) (string, error) {
	if err, exists := f.failFor[targetLang]; exists {
		return "", err
	}
	return "[" + targetLang + "] " + text, nil
}

func (f *fakeTextTranslator) TranslateMany(_ context.Context, text string, targetLangs []string, _ string) ([]translation.Result, error) {
	if len(targetLangs) > translation.MaxTargetLanguages {
		return nil, translation.ErrTooManyLanguages
	}
	results := make([]translation.Result, len(targetLangs))
	for i, lang := range targetLangs {
		if err, exists := f.failFor[lang]; exists {
			results[i] = translation.Result{Language: lang, Err: err}
			continue
		}
		results[i] = translation.Result{Language: lang, Text: "[" + lang + "] " + text}
	}
	return results, nil
}

type testServer struct {
	server     *Server
	router     *echo.Echo
	keys       *fakeKeyStore
	jobs       *fakeJobReader
	submitter  *fakeSubmitter
	translator *fakeTextTranslator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	catalog, err := language.Load()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	keys := newFakeKeyStore()
	jobs := &fakeJobReader{jobs: map[string]*db.TranslationJob{}, files: map[string][]db.TranslationFile{}}
	submitter := &fakeSubmitter{jobID: "11111111-1111-1111-1111-111111111111"}
	translator := &fakeTextTranslator{}

	server := NewServer(keys, jobs, submitter, translator, catalog, zerolog.Nop(), Options{
		AdminAccessKey: testAdminKey,
	})

	return &testServer{
		server:     server,
		router:     server.buildEcho(),
		keys:       keys,
		jobs:       jobs,
		submitter:  submitter,
		translator: translator,
	}
}

func (ts *testServer) do(t *testing.T, method, path, apiKey string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	if apiKey != "" {
		req.Header.Set(apiKeyHeader, apiKey)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) doJSON(t *testing.T, method, path, apiKey, body string) *httptest.ResponseRecorder {
	t.Helper()
	return ts.do(t, method, path, apiKey, bytes.NewBufferString(body), echo.MIMEApplicationJSON)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), target); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func multipartFileRequest(t *testing.T, filename string, fields map[string][]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("hello world")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for field, values := range fields {
		for _, value := range values {
			if err := writer.WriteField(field, value); err != nil {
				t.Fatalf("write field %s: %v", field, err)
			}
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestAuthMissingKeyIsUnauthorized(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/languages", "", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusUnauthorized)
	}

	var body errorBody
	decodeBody(t, rec, &body)
	if body.Detail == "" {
		t.Fatalf("expected non-empty detail, got %q", rec.Body.String())
	}
}

func TestAuthUnknownKeyIsUnauthorized(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/languages", "no-such-key", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthStoredKeyIsAccepted(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/languages", testClientKey, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
}

func TestAdminRoutesRejectNonAdminKeys(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/admin/list-keys", testClientKey, nil, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusForbidden)
	}
}

func TestHealthNeedsNoKey(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusOK)
	}
}

func TestTranslateFileMultiStartsJob(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	body, contentType := multipartFileRequest(t, "a.txt", map[string][]string{
		"target_languages": {"hindi", "french"},
	})

	rec := ts.do(t, http.MethodPost, "/translate/file/multi", testClientKey, body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d body %s", rec.Code, rec.Body.String())
	}

	var resp fileJobResponse
	decodeBody(t, rec, &resp)
	if resp.JobID != ts.submitter.jobID {
		t.Fatalf("unexpected job_id: got %q want %q", resp.JobID, ts.submitter.jobID)
	}
	if resp.Message != "Translation job started" {
		t.Fatalf("unexpected message: %q", resp.Message)
	}

	if len(ts.submitter.inputs) != 1 {
		t.Fatalf("expected one submission, got %d", len(ts.submitter.inputs))
	}
	in := ts.submitter.inputs[0]
	if in.Filename != "a.txt" {
		t.Fatalf("unexpected filename: %q", in.Filename)
	}
	if strings.Join(in.TargetLanguages, ",") != "hindi,french" {
		t.Fatalf("unexpected targets: %v", in.TargetLanguages)
	}
	if in.SourceLanguage != "auto" {
		t.Fatalf("expected default auto source, got %q", in.SourceLanguage)
	}
}

func TestTranslateFileMultiSplitsCommaSeparatedLanguages(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	body, contentType := multipartFileRequest(t, "a.txt", map[string][]string{
		"target_languages": {"hindi, french"},
	})

	rec := ts.do(t, http.MethodPost, "/translate/file/multi", testClientKey, body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d body %s", rec.Code, rec.Body.String())
	}
	if got := ts.submitter.inputs[0].TargetLanguages; strings.Join(got, ",") != "hindi,french" {
		t.Fatalf("unexpected targets: %v", got)
	}
}

func TestTranslateFileRejectsPipelineValidationErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
	}{
		{name: "unsupported file type", err: pipeline.ErrUnsupportedFileType},
		{name: "too many languages", err: translation.ErrTooManyLanguages},
		{name: "no target language", err: translation.ErrNoTargetLanguage},
		{name: "unsupported languages", err: &pipeline.UnsupportedLanguagesError{Languages: []string{"klingon"}, Supported: []string{"hindi"}}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ts := newTestServer(t)
			ts.submitter.err = tc.err

			body, contentType := multipartFileRequest(t, "a.txt", map[string][]string{
				"target_language": {"hindi"},
			})
			rec := ts.do(t, http.MethodPost, "/translate/file", testClientKey, body, contentType)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("unexpected status: got %d body %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestTranslationStatusExposesURLsOnlyForCompletedFiles(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	jobID := "22222222-2222-2222-2222-222222222222"
	url := "https://files.example.com/a_hindi.txt"
	failure := "backend exploded"
	ts.jobs.jobs[jobID] = &db.TranslationJob{
		JobID:              jobID,
		OriginalFilename:   "a.txt",
		Status:             db.JobCompleted,
		TotalLanguages:     2,
		ProcessedLanguages: 1,
	}
	ts.jobs.files[jobID] = []db.TranslationFile{
		{JobID: jobID, Language: "hindi", Status: db.FileCompleted, DownloadURL: &url},
		{JobID: jobID, Language: "french", Status: db.FileFailed, ErrorMessage: &failure},
	}

	rec := ts.do(t, http.MethodGet, "/translation/status/"+jobID, testClientKey, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d body %s", rec.Code, rec.Body.String())
	}

	var view jobStatusView
	decodeBody(t, rec, &view)
	if view.JobID != jobID || view.Status != "completed" {
		t.Fatalf("unexpected job view: %+v", view)
	}
	if view.ProcessedLanguages != 1 || view.TotalLanguages != 2 {
		t.Fatalf("unexpected counters: %+v", view)
	}
	if len(view.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(view.Files))
	}
	if view.Files[0].DownloadURL == nil || *view.Files[0].DownloadURL != url {
		t.Fatalf("expected download URL on completed file, got %+v", view.Files[0])
	}
	if view.Files[1].DownloadURL != nil {
		t.Fatalf("failed file must not expose a download URL: %+v", view.Files[1])
	}
	if view.Files[1].ErrorMessage == nil || *view.Files[1].ErrorMessage != failure {
		t.Fatalf("expected error message on failed file, got %+v", view.Files[1])
	}
}

func TestTranslationStatusUnknownJobIs404(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/translation/status/33333333-3333-3333-3333-333333333333", testClientKey, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d", rec.Code)
	}
}

func TestTranslateTextReturnsTranslation(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	rec := ts.doJSON(t, http.MethodPost, "/translate/text", testClientKey,
		`{"text": "hello world", "target_language": "hindi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d body %s", rec.Code, rec.Body.String())
	}

	var resp translateTextResponse
	decodeBody(t, rec, &resp)
	if resp.TranslatedText != "[hindi] hello world" {
		t.Fatalf("unexpected translated text: %q", resp.TranslatedText)
	}
	if resp.SourceLanguage != "auto" || resp.TargetLanguage != "hindi" {
		t.Fatalf("unexpected language metadata: %+v", resp)
	}
}

func TestTranslateTextRejectsUnsupportedLanguage(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	rec := ts.doJSON(t, http.MethodPost, "/translate/text", testClientKey,
		`{"text": "hello", "target_language": "klingon"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d body %s", rec.Code, rec.Body.String())
	}

	var body errorBody
	decodeBody(t, rec, &body)
	if !strings.Contains(body.Detail, "klingon") || !strings.Contains(body.Detail, "hindi") {
		t.Fatalf("detail should list the rejected language and the supported set: %q", body.Detail)
	}
}

func TestTranslateMultiReportsPartialFailureMarkers(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.translator.failFor = map[string]error{"french": fmt.Errorf("backend exploded")}

	rec := ts.doJSON(t, http.MethodPost, "/translate/multi", testClientKey,
		`{"text": "hello", "target_languages": ["hindi", "french"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d body %s", rec.Code, rec.Body.String())
	}

	var resp translateMultiResponse
	decodeBody(t, rec, &resp)
	if resp.Translations["hindi"] != "[hindi] hello" {
		t.Fatalf("unexpected hindi translation: %q", resp.Translations["hindi"])
	}
	if want := "Translation failed for french: backend exploded"; resp.Translations["french"] != want {
		t.Fatalf("unexpected french marker: got %q want %q", resp.Translations["french"], want)
	}
	if resp.OriginalText != "hello" {
		t.Fatalf("unexpected original text: %q", resp.OriginalText)
	}
}

func TestTranslateMultiRejectsTooManyLanguages(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	rec := ts.doJSON(t, http.MethodPost, "/translate/multi", testClientKey,
		`{"text": "hello", "target_languages": ["hindi", "french", "german", "italian", "korean", "japanese"]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d body %s", rec.Code, rec.Body.String())
	}
}

func TestGenerateKeyMintsAndStoresToken(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	rec := ts.doJSON(t, http.MethodPost, "/admin/generate-key", testAdminKey,
		`{"description": "ci key", "created_by": "ops"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d body %s", rec.Code, rec.Body.String())
	}

	var view apiKeyView
	decodeBody(t, rec, &view)
	if len(view.Key) < 32 {
		t.Fatalf("expected a long random key, got %q", view.Key)
	}
	if view.Description != "ci key" || view.CreatedBy != "ops" || !view.IsActive {
		t.Fatalf("unexpected key view: %+v", view)
	}

	if len(ts.keys.created) != 1 || ts.keys.created[0].Key != view.Key {
		t.Fatalf("key was not persisted: %+v", ts.keys.created)
	}
}

func TestListKeysReturnsEveryKey(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.keys.listKeysResults = []db.APIKey{
		{ID: 2, Key: "newer", Description: "b", CreatedBy: "admin", IsActive: true},
		{ID: 1, Key: "older", Description: "a", CreatedBy: "admin", IsActive: false},
	}

	rec := ts.do(t, http.MethodGet, "/admin/list-keys", testAdminKey, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Keys  []apiKeyView `json:"keys"`
		Total int          `json:"total"`
	}
	decodeBody(t, rec, &resp)
	if resp.Total != 2 || len(resp.Keys) != 2 {
		t.Fatalf("unexpected listing: %+v", resp)
	}
	if resp.Keys[0].Key != "newer" || resp.Keys[1].IsActive {
		t.Fatalf("unexpected key rows: %+v", resp.Keys)
	}
}

func TestDeactivateKey(t *testing.T) {
	t.Parallel()

	t.Run("requires api_key parameter", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)
		rec := ts.do(t, http.MethodPost, "/admin/deactivate-key", testAdminKey, nil, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("unexpected status: got %d", rec.Code)
		}
	})

	t.Run("unknown key is 404", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)
		ts.keys.deactivateErr = db.ErrKeyNotFound
		rec := ts.do(t, http.MethodPost, "/admin/deactivate-key?api_key=missing", testAdminKey, nil, "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("unexpected status: got %d", rec.Code)
		}
	})

	t.Run("deactivates and confirms", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)
		rec := ts.do(t, http.MethodPost, "/admin/deactivate-key?api_key="+testClientKey, testAdminKey, nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("unexpected status: got %d body %s", rec.Code, rec.Body.String())
		}

		var resp map[string]string
		decodeBody(t, rec, &resp)
		if resp["message"] != "API key deactivated successfully" {
			t.Fatalf("unexpected message: %q", resp["message"])
		}
		if len(ts.keys.deactivated) != 1 || ts.keys.deactivated[0] != testClientKey {
			t.Fatalf("unexpected deactivation calls: %v", ts.keys.deactivated)
		}
	})
}

func TestLanguagesEndpoints(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/languages", testClientKey, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d", rec.Code)
	}
	var grouped struct {
		Languages map[string]map[string]string `json:"languages"`
	}
	decodeBody(t, rec, &grouped)
	if _, exists := grouped.Languages["Europe"]; !exists {
		t.Fatalf("expected Europe region, got %v", grouped.Languages)
	}

	rec = ts.do(t, http.MethodGet, "/languages/flat", testClientKey, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d", rec.Code)
	}
	var flat struct {
		Languages map[string]string `json:"languages"`
	}
	decodeBody(t, rec, &flat)
	if flat.Languages["hindi"] != "hi" {
		t.Fatalf("expected hindi entry, got %v", flat.Languages)
	}
}
