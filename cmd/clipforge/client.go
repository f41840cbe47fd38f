package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// apiClient is a thin wrapper over the daemon's HTTP surface.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type submitRequest struct {
	VideoID       string         `json:"video_id"`
	OrgID         string         `json:"org_id"`
	Tier          string         `json:"tier,omitempty"`
	Configuration map[string]any `json:"configuration,omitempty"`
}

type jobView struct {
	ID                 string `json:"id"`
	VideoID            string `json:"video_id"`
	OrgID              string `json:"org_id"`
	Tier               string `json:"tier"`
	Status             string `json:"status"`
	CurrentStep        string `json:"current_step"`
	LastSuccessfulStep string `json:"last_successful_step"`
	Progress           int    `json:"progress"`
	ErrorMessage       string `json:"error_message"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

type clipView struct {
	ID           string  `json:"id"`
	VideoID      string  `json:"video_id"`
	Rank         int     `json:"rank"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Score        float64 `json:"score"`
	Title        string  `json:"title"`
	ArtifactPath string  `json:"artifact_path"`
}

type statusEvent struct {
	JobID         string `json:"job_id"`
	Status        string `json:"status"`
	Progress      int    `json:"progress"`
	QueuePosition *int   `json:"queue_position"`
	Error         string `json:"error"`
}

func (c *apiClient) SubmitJob(ctx context.Context, req submitRequest) (jobView, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return jobView{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/jobs", bytes.NewReader(payload))
	if err != nil {
		return jobView{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var job jobView
	if err := c.do(httpReq, http.StatusAccepted, &job); err != nil {
		return jobView{}, err
	}
	return job, nil
}

func (c *apiClient) GetJob(ctx context.Context, jobID string) (jobView, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/jobs/"+jobID, nil)
	if err != nil {
		return jobView{}, err
	}
	var job jobView
	if err := c.do(req, http.StatusOK, &job); err != nil {
		return jobView{}, err
	}
	return job, nil
}

func (c *apiClient) ListClips(ctx context.Context, videoID string) ([]clipView, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/videos/"+videoID+"/clips", nil)
	if err != nil {
		return nil, err
	}
	var clips []clipView
	if err := c.do(req, http.StatusOK, &clips); err != nil {
		return nil, err
	}
	return clips, nil
}

// StreamStatus follows the server-sent status events for a job, invoking fn
// for each. Returning false from fn stops the stream.
func (c *apiClient) StreamStatus(ctx context.Context, jobID string, fn func(statusEvent) bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/jobs/"+jobID+"/status", nil)
	if err != nil {
		return err
	}
	// Streams outlive the default request timeout.
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event statusEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			continue
		}
		if !fn(event) {
			return nil
		}
	}
	return scanner.Err()
}

func (c *apiClient) do(req *http.Request, wantStatus int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("%s: %s", resp.Status, payload.Error)
	}
	return fmt.Errorf("unexpected response %s", resp.Status)
}
