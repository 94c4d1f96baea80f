package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"clip-ingest/config"
	"github.com/cenkalti/backoff/v5"
)

// Client turns a batch of clip descriptions into one fixed-dimension vector
// per description, index-aligned with the input.
type Client interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type httpClient struct {
	http      *http.Client
	url       string
	apiKey    string
	model     string
	dimension int
}

func NewClient(cfg config.Embedding) Client {
	return &httpClient{
		http:      &http.Client{Timeout: cfg.Timeout},
		url:       cfg.URL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		dimension: cfg.Dimension,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed sends all texts in one batch. The response must contain exactly one
// vector per input, each of the configured dimension; anything else is fatal.
// Transient failures (transport errors, 5xx) are retried with backoff.
func (c *httpClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	body, err := json.Marshal(embedRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, err
	}

	operation := func() (*embedResponse, error) {
		return c.post(ctx, body)
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 5 * time.Second
	decoded, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(3))
	if err != nil {
		return nil, err
	}

	if len(decoded.Data) != len(texts) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d inputs", len(decoded.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, d := range decoded.Data {
		idx := d.Index
		if idx < 0 || idx >= len(texts) {
			idx = i
		}
		if len(d.Embedding) != c.dimension {
			return nil, fmt.Errorf("embedding %d has dimension %d, expected %d", idx, len(d.Embedding), c.dimension)
		}
		out[idx] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("embedding service returned no vector for input %d", i)
		}
	}
	return out, nil
}

func (c *httpClient) post(ctx context.Context, body []byte) (*embedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, detail)
		if resp.StatusCode >= 500 {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, backoff.Permanent(err)
	}
	return &decoded, nil
}
