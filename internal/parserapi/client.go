package parserapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// TaskStatus is the normalized lifecycle state reported by the provider.
type TaskStatus string

const (
	TaskRunning  TaskStatus = "running"
	TaskDone     TaskStatus = "done"
	TaskError    TaskStatus = "error"
	TaskNotFound TaskStatus = "not_found"
)

// OrderProduct is one catalog entry included in a collection order.
type OrderProduct struct {
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	LinkSet   []string `json:"linkset"`
	AccountID string   `json:"account_id"`
}

// OrderRequest is the job-creation request for one account.
type OrderRequest struct {
	APIKey    string         `json:"apikey"`
	RegionID  string         `json:"regionid"`
	Market    string         `json:"market"`
	UserLabel string         `json:"userlabel"` // engine-generated external task id
	Products  []OrderProduct `json:"products"`
}

// StatusResult is the outcome of one status poll for one external task id.
type StatusResult struct {
	Status    TaskStatus
	ReportURL string // set when Status == TaskDone
}

// ReportItem is one product row of a finished report.
type ReportItem struct {
	Code   string                   `json:"code"`
	Name   string                   `json:"name"`
	Offers []map[string]interface{} `json:"offers"`
}

// ReportPayload is the JSON document behind a report URL.
type ReportPayload struct {
	Data []ReportItem `json:"data"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateJob submits a collection order. The caller's user label becomes the
// external task id; the provider echoes it back in later status listings.
func (c *Client) CreateJob(ctx context.Context, req OrderRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode order: %w", err)
	}
	if _, err := c.post(ctx, c.baseURL+"/send-order", body, "send-order"); err != nil {
		return err
	}
	return nil
}

type statusRequest struct {
	APIKey string `json:"apikey"`
	Limit  int    `json:"limit"`
}

// GetStatus looks up one external task id in the provider's recent-task
// listing. Tasks absent from the listing report TaskNotFound.
func (c *Client) GetStatus(ctx context.Context, apiKey, externalTaskID string) (*StatusResult, error) {
	body, err := json.Marshal(statusRequest{APIKey: apiKey, Limit: 50})
	if err != nil {
		return nil, fmt.Errorf("failed to encode status request: %w", err)
	}

	respBody, err := c.post(ctx, c.baseURL+"/get-last50", body, "get-last50")
	if err != nil {
		return nil, err
	}

	var raw interface{}
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, &TransientError{Op: "get-last50", Err: fmt.Errorf("malformed status response: %w", err)}
	}

	return findTask(raw, externalTaskID), nil
}

// FetchResult downloads and decodes the report payload behind a report URL.
func (c *Client) FetchResult(ctx context.Context, reportURL string) (*ReportPayload, error) {
	var payload *ReportPayload

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reportURL, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 500 {
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return retry.Unrecoverable(&PermanentError{Op: "fetch-result", StatusCode: resp.StatusCode, Body: string(body)})
			}

			var p ReportPayload
			if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
				return retry.Unrecoverable(fmt.Errorf("malformed report payload: %w", err))
			}
			payload = &p
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(10*time.Second),
		retry.Context(ctx),
	)
	if err != nil {
		if IsPermanent(err) {
			return nil, err
		}
		return nil, &TransientError{Op: "fetch-result", Err: err}
	}
	return payload, nil
}

// post sends a JSON body and classifies failures per the provider taxonomy.
// 5xx and network errors are retried with backoff before being reported as
// transient; 4xx is permanent and never retried.
func (c *Client) post(ctx context.Context, url string, body []byte, op string) ([]byte, error) {
	var respBody []byte

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 500 {
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return retry.Unrecoverable(&PermanentError{Op: op, StatusCode: resp.StatusCode, Body: string(errBody)})
			}

			respBody, err = io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(10*time.Second),
		retry.Context(ctx),
	)
	if err != nil {
		if IsPermanent(err) {
			return nil, err
		}
		return nil, &TransientError{Op: op, Err: err}
	}
	return respBody, nil
}

// findTask walks the get-last50 response looking for the given user label.
// The listing is a loosely structured array: elements may wrap the task groups
// in a {"data": [...]} object, and each task group is a list of single-key
// objects carrying userlabel, status, and report_json.
func findTask(raw interface{}, externalTaskID string) *StatusResult {
	data := taskGroups(raw)

	for _, groupRaw := range data {
		group, ok := groupRaw.([]interface{})
		if !ok {
			continue
		}

		var label, status, reportURL string
		for _, itemRaw := range group {
			item, ok := itemRaw.(map[string]interface{})
			if !ok {
				continue
			}
			if v, ok := item["userlabel"].(string); ok {
				label = v
			}
			if v, ok := item["status"].(string); ok {
				status = v
			}
			if v, ok := item["report_json"].(string); ok {
				reportURL = v
			}
		}

		if label != externalTaskID {
			continue
		}

		switch status {
		case "completed":
			if reportURL == "" {
				// Completed without a report yet; keep polling.
				return &StatusResult{Status: TaskRunning}
			}
			return &StatusResult{Status: TaskDone, ReportURL: reportURL}
		case "error", "failed":
			return &StatusResult{Status: TaskError}
		default:
			return &StatusResult{Status: TaskRunning}
		}
	}

	return &StatusResult{Status: TaskNotFound}
}

func taskGroups(raw interface{}) []interface{} {
	if list, ok := raw.([]interface{}); ok {
		for _, elem := range list {
			if m, ok := elem.(map[string]interface{}); ok {
				if data, ok := m["data"].([]interface{}); ok {
					return data
				}
			}
		}
		return list
	}
	if m, ok := raw.(map[string]interface{}); ok {
		if data, ok := m["data"].([]interface{}); ok {
			return data
		}
	}
	return nil
}
