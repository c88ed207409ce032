// Package gemini calls the Gemini generateContent API to turn fleet posture
// snapshots into human-readable reports.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const (
	defaultEndpoint = "https://generativelanguage.googleapis.com"
	defaultModel    = "gemini-2.5-flash"
	// Retry configuration for generation requests.
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
	// Response body size limit.
	maxResponseBody = 4 * 1024 * 1024 // 4MB
)

// Client talks to the Gemini REST API.
type Client struct {
	httpClient *http.Client
	endpoint   string
	model      string
	apiKey     string
}

// New creates a Gemini client. An empty model selects the default.
func New(apiKey, model string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   defaultEndpoint,
		model:      model,
		apiKey:     apiKey,
	}, nil
}

// NewFromEnv creates a client from GEMINI_API_KEY and GEMINI_MODEL.
func NewFromEnv(timeout time.Duration) (*Client, error) {
	return New(os.Getenv("GEMINI_API_KEY"), os.Getenv("GEMINI_MODEL"), timeout)
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Generate sends a plain text prompt and returns the combined text of the
// first candidate.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	var text string
	err := retry.Do(func() error {
		var genErr error
		text, genErr = c.generate(ctx, prompt)
		return genErr
	}, retry.Attempts(maxRetries), retry.Delay(initialBackoff), retry.MaxDelay(maxBackoff))
	if err != nil {
		return "", fmt.Errorf("generation failed after %d retries: %w", maxRetries, err)
	}

	log.Printf("[INFO] Gemini responded with %d bytes in %v", len(text), time.Since(start))
	return text, nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal generation request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.endpoint, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send generation request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("[WARN] Error closing response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini returned status %d", resp.StatusCode)
	}

	var decoded generateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode generation response: %w", err)
	}
	if len(decoded.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var text string
	for _, p := range decoded.Candidates[0].Content.Parts {
		text += p.Text
	}
	return text, nil
}
