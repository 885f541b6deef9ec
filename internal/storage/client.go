package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"safeskin/internal/httpx"
)

// Client talks to the managed backend's object storage REST surface.
type Client struct {
	baseURL string
	apiKey  string
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{baseURL: baseURL, apiKey: apiKey}
}

// UploadOptions mirror the storage API's upload knobs. CacheControl is the
// max-age in seconds as a string. With Upsert false a second write to an
// existing key fails instead of silently replacing the object.
type UploadOptions struct {
	ContentType  string
	CacheControl string
	Upsert       bool
}

// ObjectInfo is one listing entry. Folder placeholders come back without an
// ID; real objects carry one.
type ObjectInfo struct {
	Name      string    `json:"name"`
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// IsFolder reports whether the entry is a folder placeholder rather than an
// object.
func (o ObjectInfo) IsFolder() bool {
	return o.ID == ""
}

func (c *Client) setAuth(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("apikey", c.apiKey)
}

// Upload writes data to bucket/key.
func (c *Client) Upload(ctx context.Context, bucket, key string, data []byte, opts UploadOptions) error {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, bucket, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}
	c.setAuth(req)
	if opts.ContentType != "" {
		req.Header.Set("Content-Type", opts.ContentType)
	}
	if opts.CacheControl != "" {
		req.Header.Set("Cache-Control", "max-age="+opts.CacheControl)
	}
	req.Header.Set("x-upsert", fmt.Sprintf("%t", opts.Upsert))

	resp, err := httpx.Client().Do(req)
	if err != nil {
		return fmt.Errorf("upload object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upload object %s/%s: %s", bucket, key, apiErrorMessage(resp))
	}
	return nil
}

// PublicURL resolves the publicly reachable URL for an uploaded object.
func (c *Client) PublicURL(bucket, key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, bucket, key)
}

// List returns the entries directly under prefix in the bucket.
func (c *Client) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	payload, err := json.Marshal(map[string]any{
		"prefix": prefix,
		"limit":  1000,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/storage/v1/object/list/%s", c.baseURL, bucket)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create list request: %w", err)
	}
	c.setAuth(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpx.Client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list objects in %s: %s", bucket, apiErrorMessage(resp))
	}

	var entries []ObjectInfo
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	return entries, nil
}

// Remove deletes the given keys from the bucket.
func (c *Client) Remove(ctx context.Context, bucket string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	payload, err := json.Marshal(map[string]any{"prefixes": keys})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/storage/v1/object/%s", c.baseURL, bucket)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create remove request: %w", err)
	}
	c.setAuth(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpx.Client().Do(req)
	if err != nil {
		return fmt.Errorf("remove objects: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("remove objects from %s: %s", bucket, apiErrorMessage(resp))
	}
	return nil
}

func apiErrorMessage(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			return fmt.Sprintf("status %d: %s", resp.StatusCode, payload.Message)
		}
		if payload.Error != "" {
			return fmt.Sprintf("status %d: %s", resp.StatusCode, payload.Error)
		}
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
