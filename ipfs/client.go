// Package ipfs talks to a Kubo node over its HTTP RPC API. The registry
// uses it to add and pin published artifacts so releases stay fetchable
// from content-addressed storage independent of the web server.
package ipfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/common"
)

// DefaultRPCURL is the Kubo RPC endpoint of a node running on localhost.
const DefaultRPCURL = "http://127.0.0.1:5001"

// APIError is an error reported by the node's RPC API.
type APIError struct {
	StatusCode int
	Message    string `json:"Message"`
	Code       int    `json:"Code"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ipfs: node returned %d: %s", e.StatusCode, e.Message)
}

// AddResult is the node's response to adding one file.
type AddResult struct {
	Name string `json:"Name"`
	CID  string `json:"Hash"`
	// Size is the DAG size in bytes. The RPC API encodes it as a string.
	Size string `json:"Size"`
}

// SizeBytes parses the result's size field.
func (r *AddResult) SizeBytes() int64 {
	n, err := strconv.ParseInt(r.Size, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Client is a minimal Kubo RPC client covering the calls release
// publication needs: add, pin, pin inspection and the version probe.
type Client struct {
	rpcURL     string
	httpClient *http.Client
}

// NewClient creates a client for the node at rpcURL. Adds of large
// installers can take a while, so the HTTP timeout is generous.
func NewClient(rpcURL string) *Client {
	return &Client{
		rpcURL: strings.TrimSuffix(rpcURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
}

// rpc performs one RPC call. Kubo accepts commands only as POST.
func (c *Client) rpc(ctx context.Context, command string, args url.Values, body io.Reader, contentType string) (*http.Response, error) {
	endpoint := c.rpcURL + "/api/v0/" + command
	if len(args) > 0 {
		endpoint += "?" + args.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", common.UserAgent())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ipfs: node unreachable: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(apiErr); err != nil {
			apiErr.Message = "unparseable error response"
		}
		return nil, apiErr
	}
	return resp, nil
}

// Add streams one file to the node and returns its CID. The file is
// pinned as part of the add so a GC between add and pin cannot drop it.
func (c *Client) Add(ctx context.Context, filename string, r io.Reader) (*AddResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, r); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	args := url.Values{}
	args.Set("pin", "true")
	args.Set("cid-version", "1")
	args.Set("raw-leaves", "true")

	resp, err := c.rpc(ctx, "add", args, pr, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result AddResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ipfs: parsing add response: %w", err)
	}
	if result.CID == "" {
		return nil, fmt.Errorf("ipfs: add returned no CID for %s", filename)
	}
	return &result, nil
}

// PinAdd pins an already-added CID recursively.
func (c *Client) PinAdd(ctx context.Context, cid string) error {
	if err := ValidateCID(cid); err != nil {
		return err
	}

	args := url.Values{}
	args.Set("arg", cid)

	resp, err := c.rpc(ctx, "pin/add", args, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result struct {
		Pins []string `json:"Pins"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("ipfs: parsing pin response: %w", err)
	}
	if len(result.Pins) == 0 {
		return fmt.Errorf("ipfs: node did not pin %s", cid)
	}
	return nil
}

// IsPinned reports whether the CID is pinned on the node. The node answers
// "not pinned" with an error status, which is a normal false here, not a
// failure.
func (c *Client) IsPinned(ctx context.Context, cid string) (bool, error) {
	if err := ValidateCID(cid); err != nil {
		return false, err
	}

	args := url.Values{}
	args.Set("arg", cid)
	args.Set("type", "recursive")

	resp, err := c.rpc(ctx, "pin/ls", args, nil, "")
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && strings.Contains(apiErr.Message, "not pinned") {
			return false, nil
		}
		return false, err
	}
	defer resp.Body.Close()

	var result struct {
		Keys map[string]struct {
			Type string `json:"Type"`
		} `json:"Keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("ipfs: parsing pin/ls response: %w", err)
	}
	_, ok := result.Keys[cid]
	return ok, nil
}

// Version returns the node's version string, used as a reachability probe
// at service startup.
func (c *Client) Version(ctx context.Context) (string, error) {
	resp, err := c.rpc(ctx, "version", nil, nil, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		Version string `json:"Version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("ipfs: parsing version response: %w", err)
	}
	return result.Version, nil
}
