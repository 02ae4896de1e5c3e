package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/neuraxis/ctreport/internal/collector"
	"github.com/neuraxis/ctreport/internal/dicomweb"
	"github.com/neuraxis/ctreport/internal/inference"
	"github.com/neuraxis/ctreport/internal/model"
	"github.com/neuraxis/ctreport/internal/synthesis"
)

type fakeRunner struct {
	result *model.PipelineResult
	err    error
	inputs []collector.Input
	calls  int
}

func (r *fakeRunner) Run(_ context.Context, inputs []collector.Input) (*model.PipelineResult, error) {
	r.calls++
	r.inputs = inputs
	return r.result, r.err
}

type fakeAlbum struct {
	studies   []model.Study
	series    []model.Series
	instances []model.Instance
	payloads  map[string][]byte
	err       error
}

func (a *fakeAlbum) ListStudies(context.Context) ([]model.Study, error) {
	return a.studies, a.err
}

func (a *fakeAlbum) ListSeries(context.Context, string) ([]model.Series, error) {
	return a.series, a.err
}

func (a *fakeAlbum) ListInstances(context.Context, string, string) ([]model.Instance, error) {
	return a.instances, a.err
}

func (a *fakeAlbum) FetchInstance(_ context.Context, inst model.Instance) ([]byte, error) {
	data, ok := a.payloads[inst.InstanceUID]
	if !ok {
		return nil, fmt.Errorf("instance %s gone", inst.InstanceUID)
	}
	return data, nil
}

type fakeStore struct {
	saved []*model.PipelineResult
}

func (s *fakeStore) SaveRun(_ context.Context, result *model.PipelineResult) (int64, error) {
	s.saved = append(s.saved, result)
	return int64(len(s.saved)), nil
}

func successResult(status model.RunStatus) *model.PipelineResult {
	return &model.PipelineResult{
		Status:             status,
		Report:             &model.ClinicalReport{Impression: "Normal brain CT scan."},
		Diagnosis:          &model.Diagnosis{Abnormalities: []string{model.LabelNormal}},
		InstancesCollected: 3,
		InstancesAnalyzed:  3,
		StartedAt:          time.Now().UTC(),
		CompletedAt:        time.Now().UTC(),
	}
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("part write error = %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart close error = %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	s := New(&fakeRunner{}, WithVersion("1.2.3"))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" || body["version"] != "1.2.3" {
		t.Errorf("body = %v", body)
	}
}

func TestHandleInferenceSuccess(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: successResult(model.StatusFullSuccess)}
	store := &fakeStore{}
	s := New(runner, WithRunStore(store))

	body, contentType := multipartBody(t, map[string][]byte{
		"a.dcm": []byte("aaa"),
		"b.dcm": []byte("bbb"),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/inference", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var result model.PipelineResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if result.Status != model.StatusFullSuccess {
		t.Errorf("Status = %q", result.Status)
	}
	if len(runner.inputs) != 2 {
		t.Errorf("runner got %d inputs, want 2", len(runner.inputs))
	}
	if len(store.saved) != 1 {
		t.Errorf("store saved %d runs, want 1", len(store.saved))
	}
}

func TestHandleInferencePartialSuccessIs200(t *testing.T) {
	t.Parallel()

	result := successResult(model.StatusPartialSuccess)
	result.Failures = []model.PipelineFailure{
		{Source: "bad.dcm", Stage: model.StageDecoding, Reason: "unparsable stream"},
	}
	s := New(&fakeRunner{result: result})

	body, contentType := multipartBody(t, map[string][]byte{"a.dcm": []byte("aaa")})
	req := httptest.NewRequest(http.MethodPost, "/api/inference", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got model.PipelineResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Status != model.StatusPartialSuccess || len(got.Failures) != 1 {
		t.Errorf("result = %+v", got)
	}
}

func TestHandleInferenceOversizedUpload(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	s := New(runner, WithMaxUploadSize(1<<20))

	req := httptest.NewRequest(http.MethodPost, "/api/inference", bytes.NewReader(make([]byte, 2<<20)))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !strings.Contains(resp.Error, "limit 1 MB") || !strings.Contains(resp.Error, "received 2.00 MB") {
		t.Errorf("error %q does not name both sizes", resp.Error)
	}
	if runner.calls != 0 {
		t.Error("oversized upload still reached the pipeline")
	}
}

func TestHandleInferenceOversizedChunkedUpload(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	s := New(runner, WithMaxUploadSize(1<<20))

	// No Content-Length, as with chunked transfer encoding. The limit
	// trips while the body streams in, so the received size is unknown.
	body, contentType := multipartBody(t, map[string][]byte{"big.dcm": make([]byte, 2<<20)})
	req := httptest.NewRequest(http.MethodPost, "/api/inference", body)
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = -1

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !strings.Contains(resp.Error, "limit 1 MB") || !strings.Contains(resp.Error, "size unknown") {
		t.Errorf("error %q does not name the limit and the unknown size", resp.Error)
	}
	if strings.Contains(resp.Error, "-0.00") {
		t.Errorf("error %q reports a negative received size", resp.Error)
	}
	if runner.calls != 0 {
		t.Error("oversized upload still reached the pipeline")
	}
}

func TestHandleInferenceNoFiles(t *testing.T) {
	t.Parallel()

	s := New(&fakeRunner{})
	body, contentType := multipartBody(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/inference", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleInferenceErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "no valid images",
			err:        inference.ErrNoValidImages,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "synthesis failure",
			err:        &synthesis.ReportGenerationError{Reason: "model endpoint unreachable after 3 attempts"},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "collection failure",
			err:        &collector.CollectionError{Source: "scans.zip", Err: errors.New("truncated archive")},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unexpected failure",
			err:        errors.New("session exploded"),
			wantStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			failed := &model.PipelineResult{Status: model.StatusFailed}
			s := New(&fakeRunner{result: failed, err: tt.err})

			body, contentType := multipartBody(t, map[string][]byte{"a.dcm": []byte("aaa")})
			req := httptest.NewRequest(http.MethodPost, "/api/inference", body)
			req.Header.Set("Content-Type", contentType)

			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if resp.Error == "" {
				t.Error("error message missing")
			}
			if resp.Result == nil || resp.Result.Status != model.StatusFailed {
				t.Errorf("partial result missing: %+v", resp.Result)
			}
		})
	}
}

func TestAlbumEndpointsWithoutAlbum(t *testing.T) {
	t.Parallel()

	s := New(&fakeRunner{})
	for _, target := range []string{
		"/api/albums/studies",
		"/api/albums/studies/1.2.3/series",
	} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", target, rec.Code)
		}
	}
}

func TestHandleListStudies(t *testing.T) {
	t.Parallel()

	album := &fakeAlbum{studies: []model.Study{{StudyUID: "1.2.3", Description: "Brain CT"}}}
	s := New(&fakeRunner{}, WithAlbumClient(album))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/albums/studies", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var studies []model.Study
	if err := json.Unmarshal(rec.Body.Bytes(), &studies); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(studies) != 1 || studies[0].StudyUID != "1.2.3" {
		t.Errorf("studies = %+v", studies)
	}
}

func TestHandleListSeriesAlbumFailure(t *testing.T) {
	t.Parallel()

	album := &fakeAlbum{err: &dicomweb.APIError{Operation: "series listing", StatusCode: 401}}
	s := New(&fakeRunner{}, WithAlbumClient(album))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/albums/studies/1.2.3/series", nil))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestHandleInferenceFromAlbum(t *testing.T) {
	t.Parallel()

	album := &fakeAlbum{
		instances: []model.Instance{
			{InstanceUID: "i1", SeriesUID: "se", StudyUID: "s"},
			{InstanceUID: "i2", SeriesUID: "se", StudyUID: "s"},
			{InstanceUID: "gone", SeriesUID: "se", StudyUID: "s"},
		},
		payloads: map[string][]byte{
			"i1": []byte("one"),
			"i2": []byte("two"),
		},
	}
	runner := &fakeRunner{result: successResult(model.StatusFullSuccess)}
	s := New(runner, WithAlbumClient(album))

	body := strings.NewReader(`{"study_uid": "s", "series_uid": "se"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/inference/from-album", body)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(runner.inputs) != 2 {
		t.Fatalf("runner got %d inputs, want 2 (unreachable instance skipped)", len(runner.inputs))
	}
	if runner.inputs[0].Name != "i1.dcm" || runner.inputs[1].Name != "i2.dcm" {
		t.Errorf("input names = %q, %q", runner.inputs[0].Name, runner.inputs[1].Name)
	}
}

func TestHandleInferenceFromAlbumValidation(t *testing.T) {
	t.Parallel()

	s := New(&fakeRunner{}, WithAlbumClient(&fakeAlbum{}))

	tests := []struct {
		name string
		body string
	}{
		{name: "missing series", body: `{"study_uid": "s"}`},
		{name: "missing study", body: `{"series_uid": "se"}`},
		{name: "malformed json", body: `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/api/inference/from-album", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandleInferenceFromAlbumNothingRetrievable(t *testing.T) {
	t.Parallel()

	album := &fakeAlbum{
		instances: []model.Instance{{InstanceUID: "gone", SeriesUID: "se", StudyUID: "s"}},
	}
	s := New(&fakeRunner{}, WithAlbumClient(album))

	body := strings.NewReader(`{"study_uid": "s", "series_uid": "se"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/inference/from-album", body)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}
