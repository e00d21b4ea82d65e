// Package nexusapi implements the REST-facing API client: authenticated
// requests to the upstream catalog/download service, retried with backoff and
// paced by the rate-limit gate.
package nexusapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/modmapper/crawler/internal/ratelimit"
)

const (
	apiBase   = "https://api.nexusmods.com/v1"
	userAgent = "mod-mapper/0.1"

	maxAttempts  = 3
	retryBackoff = 1 * time.Second
)

// Error classification surfaced to the orchestrator.
var (
	// ErrNotFound is returned for a 404 response on a download-link request.
	// Never fatal: the caller marks has_download_link=false and moves on.
	ErrNotFound = errors.New("nexusapi: resource not found")

	// ErrExhausted is returned after maxAttempts failed attempts.
	ErrExhausted = errors.New("nexusapi: retries exhausted")

	// ErrTransport wraps an I/O error encountered while streaming a response body.
	ErrTransport = errors.New("nexusapi: transport error")
)

// Client issues authenticated REST calls against the Nexus Mods API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	gate       *ratelimit.Gate
	base       string

	// lastWait is the pacing delay derived from the most recent response's
	// rate-limit headers; the orchestrator reads it after every call.
	lastWait time.Duration
}

// ClientConfig configures a Client.
type ClientConfig struct {
	APIKey     string
	HTTPClient *http.Client
	Gate       *ratelimit.Gate

	// BaseURL overrides apiBase; used by tests to point at an httptest server.
	BaseURL string
}

// NewClient builds a Client. A nil HTTPClient gets a 2h-total-timeout
// default; single file downloads can be very large.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("nexusapi: API key is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 2 * time.Hour,
		}
	}

	gate := cfg.Gate
	if gate == nil {
		gate = ratelimit.New()
	}

	base := cfg.BaseURL
	if base == "" {
		base = apiBase
	}

	return &Client{
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		gate:       gate,
		base:       base,
	}, nil
}

// LastWait returns the pacing delay derived from the most recent response.
// The orchestrator awaits this after every upstream call.
func (c *Client) LastWait() time.Duration {
	return c.lastWait
}

// getJSON performs a GET request with retry/backoff and decodes the JSON
// body into out. 404 responses are surfaced as ErrNotFound immediately
// (never retried); 5xx and transport failures are retried up to maxAttempts.
func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff):
			}
		}

		resp, err := c.do(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}

		c.lastWait = c.gate.Wait(resp.Header)

		switch {
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return ErrNotFound
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: status %d", ErrExhausted, resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("nexusapi: unexpected status %d: %s", resp.StatusCode, string(body))
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrTransport, err)
			continue
		}

		if out != nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("nexusapi: decode response: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}

func (c *Client) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("nexusapi: build request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("user-agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return resp, nil
}

// GetFilesForMod fetches the file list for a mod.
func (c *Client) GetFilesForMod(ctx context.Context, game string, nexusModID int) (*FilesResponse, error) {
	url := fmt.Sprintf("%s/games/%s/mods/%d/files.json", c.base, game, nexusModID)
	var resp FilesResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetDownloadLink fetches the signed download URL for a file. A 404 means no
// link is available for this user/file and is surfaced as ErrNotFound.
func (c *Client) GetDownloadLink(ctx context.Context, game string, nexusModID, fileID int) (string, error) {
	url := fmt.Sprintf("%s/games/%s/mods/%d/files/%d/download_link.json", c.base, game, nexusModID, fileID)
	var links []DownloadLink
	if err := c.getJSON(ctx, url, &links); err != nil {
		return "", err
	}
	if len(links) == 0 {
		return "", ErrNotFound
	}
	return links[0].URI, nil
}

// GetModDetail fetches the mod detail document for optional refresh of
// denormalised fields.
func (c *Client) GetModDetail(ctx context.Context, game string, nexusModID int) (*ModDetail, error) {
	url := fmt.Sprintf("%s/games/%s/mods/%d.json", c.base, game, nexusModID)
	var resp ModDetail
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetFileMetadata fetches and parses the content-preview tree for a file, if
// it has one. Returns (nil, nil) when the file carries no preview link at
// all, distinguishing "we don't know" from "we checked, there's no plugin".
func (c *Client) GetFileMetadata(ctx context.Context, previewLink string) (*MetadataNode, error) {
	if previewLink == "" {
		return nil, nil
	}
	var node MetadataNode
	if err := c.getJSON(ctx, previewLink, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// ValidateKey confirms the configured API key is accepted by the upstream
// service and returns the account it resolves to. Used by the CLI's
// validate-key command to fail fast before a crawl run.
func (c *Client) ValidateKey(ctx context.Context) (*UserInfo, error) {
	url := fmt.Sprintf("%s/users/validate.json", c.base)
	var info UserInfo
	if err := c.getJSON(ctx, url, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// DownloadFile streams the archive at link into a temp file and returns its
// path. The caller owns cleanup. A transport failure during the copy is
// wrapped as ErrTransport; downloads are not restartable, a retry means
// re-downloading from scratch.
func (c *Client) DownloadFile(ctx context.Context, link, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("nexusapi: build download request: %w", err)
	}
	req.Header.Set("user-agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode)
	}

	f, err := os.CreateTemp(destDir, "download-*")
	if err != nil {
		return "", fmt.Errorf("nexusapi: create temp file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}

	return f.Name(), nil
}
