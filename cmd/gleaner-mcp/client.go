package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/use-agent/gleaner/models"
)

// apiClient talks to the gleaner HTTP service.
type apiClient struct {
	baseURL   string
	apiKey    string
	http      http.Client
	pollEvery time.Duration
}

// post sends payload as JSON and decodes the response into out. Error
// statuses still carry a JSON body, so they are decoded too.
func (a *apiClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return a.do(req, out)
}

func (a *apiClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return a.do(req, out)
}

func (a *apiClient) do(req *http.Request, out any) error {
	req.Header.Set("X-API-Key", a.apiKey)

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

// poll fetches path until the job's status leaves "processing".
func (a *apiClient) poll(ctx context.Context, path string, out any) error {
	ticker := time.NewTicker(a.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			var raw json.RawMessage
			if err := a.get(ctx, path, &raw); err != nil {
				return err
			}
			var status struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(raw, &status); err != nil {
				return fmt.Errorf("parse poll status: %w", err)
			}
			if status.Status != models.JobProcessing {
				return json.Unmarshal(raw, out)
			}
		}
	}
}
