package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MetadataClient talks to the off-chain metadata service that pins NFT
// metadata and returns a URI for it. Metadata attachment is best-effort;
// callers treat failures as warnings, not mint failures.
type MetadataClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewMetadataClient creates a metadata service client.
func NewMetadataClient(baseURL string) *MetadataClient {
	return &MetadataClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// MetadataRequest describes the NFT metadata to pin.
type MetadataRequest struct {
	Mint        string            `json:"mint"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Expression  string            `json:"expression"`
	Creator     string            `json:"creator"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Attach pins metadata for a freshly minted NFT and returns the metadata URI.
func (c *MetadataClient) Attach(ctx context.Context, req *MetadataRequest) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("metadata service not configured")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/nft-metadata", bytes.NewBuffer(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("metadata service returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		URI   string `json:"uri"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if result.URI == "" {
		return "", fmt.Errorf("metadata service returned no uri: %s", result.Error)
	}

	return result.URI, nil
}
