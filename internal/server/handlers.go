package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/neuraxis/ctreport/internal/collector"
	"github.com/neuraxis/ctreport/internal/dicomweb"
	"github.com/neuraxis/ctreport/internal/inference"
	"github.com/neuraxis/ctreport/internal/model"
	"github.com/neuraxis/ctreport/internal/synthesis"
)

// errorResponse is the JSON body for every non-200 outcome. The partial
// result rides along when one exists, so clients can inspect recorded
// failures even for a failed run.
type errorResponse struct {
	Error  string                `json:"error"`
	Result *model.PipelineResult `json:"result,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

// handleInference accepts a multipart upload of DICOM files or archives and
// runs the full pipeline on them.
func (s *Server) handleInference(w http.ResponseWriter, r *http.Request) {
	// Reject oversized payloads up front; no decoding is attempted.
	if r.ContentLength > s.maxSize {
		tooLarge := &UploadTooLargeError{Limit: s.maxSize, Received: r.ContentLength}
		s.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: tooLarge.Error()})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxSize)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			tooLarge := &UploadTooLargeError{Limit: s.maxSize, Received: r.ContentLength}
			s.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: tooLarge.Error()})
			return
		}
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed multipart upload: " + err.Error()})
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // best-effort temp cleanup

	var inputs []collector.Input
	for _, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				s.writeJSON(w, http.StatusBadRequest, errorResponse{
					Error: fmt.Sprintf("failed to read upload %q: %v", fh.Filename, err),
				})
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				s.writeJSON(w, http.StatusBadRequest, errorResponse{
					Error: fmt.Sprintf("failed to read upload %q: %v", fh.Filename, err),
				})
				return
			}
			inputs = append(inputs, collector.Input{Name: fh.Filename, Data: data})
		}
	}
	if len(inputs) == 0 {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "upload contains no files"})
		return
	}

	s.runAndRespond(w, r, inputs)
}

// runAndRespond executes the pipeline and maps the outcome to a status
// code. Successful and partially successful runs both return 200; the
// payload's status field tells them apart.
func (s *Server) runAndRespond(w http.ResponseWriter, r *http.Request, inputs []collector.Input) {
	result, err := s.runner.Run(r.Context(), inputs)

	if s.store != nil && result != nil {
		if _, saveErr := s.store.SaveRun(r.Context(), result); saveErr != nil {
			s.logger.Warn("failed to persist run", slog.String("error", saveErr.Error()))
		}
	}

	if err == nil {
		s.writeJSON(w, http.StatusOK, result)
		return
	}

	var (
		genErr     *synthesis.ReportGenerationError
		collectErr *collector.CollectionError
	)
	switch {
	case errors.Is(err, inference.ErrNoValidImages):
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Result: result})
	case errors.As(err, &genErr):
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Result: result})
	case errors.As(err, &collectErr):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Result: result})
	default:
		s.logger.Error("pipeline run failed", slog.String("error", err.Error()))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), Result: result})
	}
}

func (s *Server) handleListStudies(w http.ResponseWriter, r *http.Request) {
	if s.album == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no album configured"})
		return
	}
	studies, err := s.album.ListStudies(r.Context())
	if err != nil {
		s.albumError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, studies)
}

func (s *Server) handleListSeries(w http.ResponseWriter, r *http.Request) {
	if s.album == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no album configured"})
		return
	}
	series, err := s.album.ListSeries(r.Context(), r.PathValue("study"))
	if err != nil {
		s.albumError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, series)
}

func (s *Server) albumError(w http.ResponseWriter, err error) {
	var apiErr *dicomweb.APIError
	if errors.As(err, &apiErr) {
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: apiErr.Error()})
		return
	}
	s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

// fromAlbumRequest selects one series to analyze.
type fromAlbumRequest struct {
	StudyUID  string `json:"study_uid"`
	SeriesUID string `json:"series_uid"`
}

// handleInferenceFromAlbum fetches every instance of the requested series
// from the remote album and runs the pipeline on them. Instances that fail
// to download are skipped; the run proceeds with what arrived.
func (s *Server) handleInferenceFromAlbum(w http.ResponseWriter, r *http.Request) {
	if s.album == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no album configured"})
		return
	}

	var req fromAlbumRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body: " + err.Error()})
		return
	}
	if req.StudyUID == "" || req.SeriesUID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "study_uid and series_uid are required"})
		return
	}

	instances, err := s.album.ListInstances(r.Context(), req.StudyUID, req.SeriesUID)
	if err != nil {
		s.albumError(w, err)
		return
	}

	var inputs []collector.Input
	for _, inst := range instances {
		data, err := s.album.FetchInstance(r.Context(), inst)
		if err != nil {
			s.logger.Warn("skipping instance that failed to download",
				slog.String("instance_uid", inst.InstanceUID),
				slog.String("error", err.Error()))
			continue
		}
		inputs = append(inputs, collector.Input{Name: inst.InstanceUID + ".dcm", Data: data})
	}
	if len(inputs) == 0 {
		s.writeJSON(w, http.StatusBadGateway, errorResponse{
			Error: fmt.Sprintf("no instances could be retrieved for series %s", req.SeriesUID),
		})
		return
	}

	s.runAndRespond(w, r, inputs)
}
