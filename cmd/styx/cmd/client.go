package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/SherwinAllen/styx/pkg/api"
)

// AcquisitionClient handles API calls to the styx daemon.
type AcquisitionClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewAcquisitionClient creates a new client with the given base URL.
func NewAcquisitionClient(baseURL string) *AcquisitionClient {
	return &AcquisitionClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

func (c *AcquisitionClient) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// Start sends POST /acquisitions to launch a new acquisition.
func (c *AcquisitionClient) Start(req api.StartAcquisitionRequest) (*api.StartAcquisitionResponse, error) {
	var result api.StartAcquisitionResponse
	if err := c.do(http.MethodPost, "/acquisitions", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Status sends GET /acquisitions/{id} to retrieve the job snapshot.
func (c *AcquisitionClient) Status(jobID string) (*api.AcquisitionStatusResponse, error) {
	var result api.AcquisitionStatusResponse
	if err := c.do(http.MethodGet, "/acquisitions/"+jobID, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitOtp sends POST /acquisitions/{id}/otp with a verification code.
func (c *AcquisitionClient) SubmitOtp(jobID, code string) error {
	return c.do(http.MethodPost, "/acquisitions/"+jobID+"/otp", api.SubmitOtpRequest{Code: code}, nil)
}

// Confirm sends POST /acquisitions/{id}/confirm to approve a push challenge.
func (c *AcquisitionClient) Confirm(jobID string) error {
	return c.do(http.MethodPost, "/acquisitions/"+jobID+"/confirm", nil, nil)
}

// Cancel sends POST /acquisitions/{id}/cancel.
func (c *AcquisitionClient) Cancel(jobID string) error {
	return c.do(http.MethodPost, "/acquisitions/"+jobID+"/cancel", nil, nil)
}

// Result sends GET /acquisitions/{id}/result to fetch the finished report.
func (c *AcquisitionClient) Result(jobID string) (*api.ArtifactContentResponse, error) {
	var result api.ArtifactContentResponse
	if err := c.do(http.MethodGet, "/acquisitions/"+jobID+"/result", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListArtifacts sends GET /artifacts, optionally filtered to one job.
func (c *AcquisitionClient) ListArtifacts(jobID string) ([]api.ArtifactMeta, error) {
	path := "/artifacts"
	if jobID != "" {
		path += "?job_id=" + jobID
	}
	var result api.ListArtifactsResponse
	if err := c.do(http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Artifacts, nil
}
