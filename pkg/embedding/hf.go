// Package embedding turns text into fixed-length vectors.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Dimension matches the vector(384) column of the record store.
const Dimension = 384

var ErrDimension = errors.New("embedding: unexpected vector dimension")

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// HFClient calls a Hugging Face feature-extraction endpoint.
type HFClient struct {
	url        string
	apiKey     string
	dimension  int
	httpClient *http.Client
}

func NewHFClient(url, apiKey string) *HFClient {
	return &HFClient{
		url:        url,
		apiKey:     apiKey,
		dimension:  Dimension,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HFClient) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]string{
		"inputs": strings.ReplaceAll(text, "\n", ""),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hf embed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("hf read: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hf embed: status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	vec, err := decodeVector(raw)
	if err != nil {
		return nil, fmt.Errorf("hf decode: %w", err)
	}

	if len(vec) != c.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(vec), c.dimension)
	}
	return vec, nil
}

// decodeVector accepts a flat vector or a batch holding a single vector.
func decodeVector(raw []byte) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}

	var batch [][]float32
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return nil, errors.New("empty batch")
	}
	return batch[0], nil
}
