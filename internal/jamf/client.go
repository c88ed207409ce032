// Package jamf implements a minimal Jamf Pro API client using the modern
// bearer-token authentication flow (/api/v1/auth/token). It covers only the
// computers-inventory endpoint needed by the advisor.
package jamf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const (
	// Pagination defaults for the inventory endpoint.
	defaultPageSize = 50
	// Only request the inventory sections the advisor actually uses.
	inventorySections = "GENERAL,SECURITY,OPERATING_SYSTEM"
	// Retry configuration for inventory page fetches.
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
	// Response body size limit.
	maxResponseBody = 10 * 1024 * 1024 // 10MB
)

// Computer is one raw inventory entry as returned by the Jamf Pro API.
// Sections the server omitted stay nil; the posture normalizer applies
// fail-closed defaults for them.
type Computer struct {
	ID              string           `json:"id"`
	UDID            string           `json:"udid"`
	General         *General         `json:"general"`
	OperatingSystem *OperatingSystem `json:"operatingSystem"`
	Security        *Security        `json:"security"`
}

// General holds the GENERAL inventory section fields the advisor reads.
type General struct {
	Name            string `json:"name"`
	LastContactTime string `json:"lastContactTime"`
}

// OperatingSystem holds the OPERATING_SYSTEM inventory section.
type OperatingSystem struct {
	Version string `json:"version"`
}

// Security holds the SECURITY inventory section.
type Security struct {
	FileVaultEnabled bool `json:"fileVaultEnabled"`
	FirewallEnabled  bool `json:"firewallEnabled"`
}

// Client talks to a single Jamf Pro instance.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	token        string
}

// New creates a Jamf Pro client for the given instance.
func New(baseURL, clientID, clientSecret string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("jamf base URL is required")
	}
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("jamf client ID and secret are required")
	}
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: timeout},
	}, nil
}

// NewFromEnv creates a client from JAMF_BASE_URL, JAMF_CLIENT_ID and
// JAMF_CLIENT_SECRET.
func NewFromEnv(timeout time.Duration) (*Client, error) {
	return New(os.Getenv("JAMF_BASE_URL"), os.Getenv("JAMF_CLIENT_ID"), os.Getenv("JAMF_CLIENT_SECRET"), timeout)
}

// Computers fetches up to maxDevices computers from /api/v1/computers-inventory,
// paging until the device cap, an empty page, or a short page.
func (c *Client) Computers(ctx context.Context, maxDevices int) ([]Computer, error) {
	start := time.Now()
	var results []Computer
	page := 0

	for len(results) < maxDevices {
		var batch []Computer
		err := retry.Do(func() error {
			var fetchErr error
			batch, fetchErr = c.fetchPage(ctx, page, defaultPageSize)
			return fetchErr
		}, retry.Attempts(maxRetries), retry.Delay(initialBackoff), retry.MaxDelay(maxBackoff))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch inventory page %d after %d retries: %w", page, maxRetries, err)
		}

		if len(batch) == 0 {
			break
		}
		results = append(results, batch...)
		if len(batch) < defaultPageSize {
			// Last page.
			break
		}
		page++
	}

	if len(results) > maxDevices {
		results = results[:maxDevices]
	}
	log.Printf("[INFO] Fetched %d computers from Jamf Pro in %v", len(results), time.Since(start))
	return results, nil
}

func (c *Client) fetchPage(ctx context.Context, page, pageSize int) ([]Computer, error) {
	batch, status, err := c.requestPage(ctx, page, pageSize)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		// Token may be expired; clear and retry once with a fresh one.
		log.Print("[WARN] Jamf returned 401, refreshing bearer token")
		c.token = ""
		batch, status, err = c.requestPage(ctx, page, pageSize)
		if err != nil {
			return nil, err
		}
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("jamf inventory request returned status %d", status)
	}
	return batch, nil
}

func (c *Client) requestPage(ctx context.Context, page, pageSize int) (batch []Computer, status int, err error) {
	token, err := c.bearerToken(ctx)
	if err != nil {
		return nil, 0, err
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("page-size", strconv.Itoa(pageSize))
	params.Set("section", inventorySections)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v1/computers-inventory?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create inventory request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch inventory: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("[WARN] Error closing response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}

	var body struct {
		Results []Computer `json:"results"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&body); err != nil {
		return nil, 0, fmt.Errorf("failed to decode inventory response: %w", err)
	}
	return body.Results, resp.StatusCode, nil
}

// bearerToken returns the cached token or requests a new one using the
// client credentials.
func (c *Client) bearerToken(ctx context.Context) (string, error) {
	if c.token != "" {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/auth/token", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request token: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("[WARN] Error closing response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("jamf auth endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if body.Token == "" {
		return "", fmt.Errorf("no token returned from jamf auth endpoint")
	}

	c.token = body.Token
	return c.token, nil
}
