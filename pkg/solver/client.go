package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the off-chain solver's REST endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type createOrderResponse struct {
	IntentHash string `json:"intentHash"`
}

type executionRequest struct {
	IntentTxHash string `json:"intent_tx_hash"`
	QuoteUUID    string `json:"quote_uuid"`
}

type executionResponse struct {
	TaskID string `json:"task_id"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// CreateOrder submits the signed order payload and returns the on-chain
// intent hash assigned by the solver.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (string, error) {
	var resp createOrderResponse
	if err := c.post(ctx, "/orders", req, &resp); err != nil {
		return "", fmt.Errorf("order creation failed: %w", err)
	}
	if resp.IntentHash == "" {
		return "", fmt.Errorf("solver returned empty intent hash")
	}
	return resp.IntentHash, nil
}

// PostExecution notifies the solver that the order is accepted on-chain
// so it can fill on the destination side. Returns the tracking task id.
func (c *Client) PostExecution(ctx context.Context, intentTxHash, quoteUUID string) (string, error) {
	var resp executionResponse
	err := c.post(ctx, "/execution", executionRequest{IntentTxHash: intentTxHash, QuoteUUID: quoteUUID}, &resp)
	if err != nil {
		return "", fmt.Errorf("post execution failed: %w", err)
	}
	if resp.TaskID == "" {
		return "", fmt.Errorf("solver returned empty task id")
	}
	return resp.TaskID, nil
}

// Status queries the fill status for a task id.
func (c *Client) Status(ctx context.Context, taskID string) (OrderStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status/"+taskID, nil)
	if err != nil {
		return OrderPending, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return OrderPending, fmt.Errorf("status query failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return OrderPending, fmt.Errorf("status query returned %d", resp.StatusCode)
	}
	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return OrderPending, fmt.Errorf("failed to decode status response: %w", err)
	}
	switch status.Status {
	case "success", "filled":
		return OrderSuccess, nil
	case "failure", "failed":
		return OrderFailure, nil
	default:
		return OrderPending, nil
	}
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("solver returned %d: %s", resp.StatusCode, string(data))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
