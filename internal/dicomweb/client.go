package dicomweb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/neuraxis/ctreport/internal/model"
)

// DICOM tags used by the listing endpoints, in the hexadecimal form
// DICOM+JSON uses as keys.
const (
	tagSOPInstanceUID    = "00080018"
	tagStudyDate         = "00080020"
	tagModality          = "00080060"
	tagStudyDescription  = "00081030"
	tagSeriesDescription = "0008103E"
	tagRetrieveURL       = "00081190"
	tagPatientName       = "00100010"
	tagPatientID         = "00100020"
	tagStudyInstanceUID  = "0020000D"
	tagSeriesInstanceUID = "0020000E"
)

// APIError reports a failed album request.
type APIError struct {
	// Operation names the request that failed.
	Operation string
	// StatusCode is the HTTP status, or 0 for transport failures.
	StatusCode int
	// Err is the underlying cause.
	Err error
}

// Error returns the error message.
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("album %s failed: status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("album %s failed: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Client queries an album-scoped DICOMweb archive.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Used by tests.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) {
		if httpc != nil {
			c.httpc = httpc
		}
	}
}

// NewClient creates a client for the archive at baseURL, authenticating
// every request with the album token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// attributes is one DICOM+JSON attribute set: tag -> {vr, Value}.
type attributes map[string]struct {
	Value []json.RawMessage `json:"Value"`
}

// str returns the first value of a tag as a string. Person-name values
// arrive as {"Alphabetic": "..."} objects and are unwrapped.
func (a attributes) str(tag string) string {
	attr, ok := a[tag]
	if !ok || len(attr.Value) == 0 {
		return ""
	}
	raw := attr.Value[0]

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var pn struct {
		Alphabetic string `json:"Alphabetic"`
	}
	if err := json.Unmarshal(raw, &pn); err == nil {
		return pn.Alphabetic
	}
	return ""
}

func (a attributes) count(tag string) int {
	return len(a[tag].Value)
}

func (c *Client) get(ctx context.Context, operation, path, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, &APIError{Operation: operation, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", accept)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &APIError{Operation: operation, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &APIError{Operation: operation, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

func (c *Client) list(ctx context.Context, operation, path string) ([]attributes, error) {
	resp, err := c.get(ctx, operation, path, "application/dicom+json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var sets []attributes
	if err := json.NewDecoder(resp.Body).Decode(&sets); err != nil {
		return nil, &APIError{Operation: operation, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return sets, nil
}

// ListStudies returns every study visible through the album token.
func (c *Client) ListStudies(ctx context.Context) ([]model.Study, error) {
	sets, err := c.list(ctx, "study listing", "/api/studies")
	if err != nil {
		return nil, err
	}

	studies := make([]model.Study, 0, len(sets))
	for _, a := range sets {
		uid := a.str(tagStudyInstanceUID)
		if uid == "" {
			continue
		}
		studies = append(studies, model.Study{
			StudyUID:    uid,
			StudyDate:   a.str(tagStudyDate),
			Description: a.str(tagStudyDescription),
			PatientID:   a.str(tagPatientID),
			PatientName: a.str(tagPatientName),
		})
	}
	return studies, nil
}

// ListSeries returns the series belonging to a study.
func (c *Client) ListSeries(ctx context.Context, studyUID string) ([]model.Series, error) {
	path := fmt.Sprintf("/api/studies/%s/series", studyUID)
	sets, err := c.list(ctx, "series listing", path)
	if err != nil {
		return nil, err
	}

	series := make([]model.Series, 0, len(sets))
	for _, a := range sets {
		uid := a.str(tagSeriesInstanceUID)
		if uid == "" {
			continue
		}
		series = append(series, model.Series{
			SeriesUID:     uid,
			StudyUID:      studyUID,
			Description:   a.str(tagSeriesDescription),
			Modality:      a.str(tagModality),
			InstanceCount: a.count(tagRetrieveURL),
		})
	}
	return series, nil
}

// ListInstances returns the instances belonging to a series.
func (c *Client) ListInstances(ctx context.Context, studyUID, seriesUID string) ([]model.Instance, error) {
	path := fmt.Sprintf("/api/studies/%s/series/%s/instances", studyUID, seriesUID)
	sets, err := c.list(ctx, "instance listing", path)
	if err != nil {
		return nil, err
	}

	instances := make([]model.Instance, 0, len(sets))
	for _, a := range sets {
		uid := a.str(tagSOPInstanceUID)
		if uid == "" {
			continue
		}
		instances = append(instances, model.Instance{
			InstanceUID: uid,
			SeriesUID:   seriesUID,
			StudyUID:    studyUID,
		})
	}
	return instances, nil
}

// FetchInstance downloads one instance as raw bytes. Archives sometimes
// answer a file request with JSON metadata, so the payload is rejected
// unless it carries the DICM marker.
func (c *Client) FetchInstance(ctx context.Context, inst model.Instance) ([]byte, error) {
	path := fmt.Sprintf("/api/studies/%s/series/%s/instances/%s/file",
		inst.StudyUID, inst.SeriesUID, inst.InstanceUID)

	resp, err := c.get(ctx, "instance retrieval", path, "application/dicom")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Operation: "instance retrieval", Err: err}
	}
	if !isDICOM(data) {
		return nil, &APIError{
			Operation: "instance retrieval",
			Err:       fmt.Errorf("instance %s payload is not a DICOM stream", inst.InstanceUID),
		}
	}
	return data, nil
}

// isDICOM checks for the DICM marker at the standard preamble offset or at
// the start of the stream.
func isDICOM(data []byte) bool {
	if len(data) >= 132 && string(data[128:132]) == "DICM" {
		return true
	}
	return len(data) >= 4 && string(data[:4]) == "DICM"
}
