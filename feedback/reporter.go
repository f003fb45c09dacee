package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/common"
)

// SubmitResponse is the service's acknowledgement of a stored report.
type SubmitResponse struct {
	ID         string `json:"id"`
	ReceivedAt string `json:"received_at"`
}

// Reporter submits feedback reports from the app to the feedback service.
type Reporter struct {
	endpoint   string
	httpClient *http.Client
}

// NewReporter creates a reporter for the given submission endpoint, e.g.
// https://feedback.g3zkp.example.com/api/feedback.
func NewReporter(endpoint string) *Reporter {
	return &Reporter{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Submit validates and sends one report. Transient failures (network
// errors and 5xx responses) are retried once; feedback is best effort and
// never worth more than two attempts of the user's bandwidth.
func (r *Reporter) Submit(ctx context.Context, report *Report) (*SubmitResponse, error) {
	if err := report.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(report)
	if err != nil {
		return nil, err
	}

	resp, err := r.post(ctx, body)
	if err != nil || resp.StatusCode >= http.StatusInternalServerError {
		if resp != nil {
			drain(resp)
		}
		resp, err = r.post(ctx, body)
		if err != nil {
			return nil, fmt.Errorf("submitting feedback: %w", err)
		}
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("feedback service returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var ack SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return nil, fmt.Errorf("parsing feedback response: %w", err)
	}
	return &ack, nil
}

func (r *Reporter) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", common.UserAgent())
	return r.httpClient.Do(req)
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	resp.Body.Close()
}
