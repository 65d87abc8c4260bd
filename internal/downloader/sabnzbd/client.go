// Package sabnzbd implements a SABnzbd API client.
package sabnzbd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shelfstream/shelfstream/internal/downloader/types"
)

// Config holds the configuration for a SABnzbd client.
type Config struct {
	Name     string
	Host     string
	Port     int
	APIKey   string
	UseSSL   bool
	Category string
}

// Client implements the SABnzbd JSON API.
type Client struct {
	config     Config
	httpClient *http.Client
}

var _ types.Client = (*Client)(nil)

// New creates a new SABnzbd client.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" || cfg.Port <= 0 {
		return nil, fmt.Errorf("%w: sabnzbd requires host and port", types.ErrInvalidConfig)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: sabnzbd requires an API key", types.ErrInvalidConfig)
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *Client) Name() string             { return c.config.Name }
func (c *Client) Type() types.ClientType   { return types.ClientTypeSABnzbd }
func (c *Client) Protocol() types.Protocol { return types.ProtocolUsenet }

func (c *Client) Capabilities() types.Capabilities {
	return types.Capabilities{
		Submit: true, Status: true, Cancel: true, Remove: true, RemoveData: true,
	}
}

func (c *Client) baseURL() string {
	scheme := "http"
	if c.config.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d/api", scheme, c.config.Host, c.config.Port)
}

func (c *Client) call(ctx context.Context, params url.Values, out any) error {
	params.Set("apikey", c.config.APIKey)
	params.Set("output", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.ClassifyNetError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return types.ErrAuthFailed
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sabnzbd returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}

	// SABnzbd reports API errors as 200 with an error field.
	var probe struct {
		Status *bool  `json:"status"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(body, &probe) == nil && probe.Error != "" {
		if strings.Contains(strings.ToLower(probe.Error), "api key") {
			return fmt.Errorf("%w: %s", types.ErrAuthFailed, probe.Error)
		}
		return fmt.Errorf("sabnzbd error: %s", probe.Error)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to parse sabnzbd response: %w", err)
		}
	}
	return nil
}

// Test verifies connectivity and the API key.
func (c *Client) Test(ctx context.Context) error {
	params := url.Values{}
	params.Set("mode", "version")
	return c.call(ctx, params, nil)
}

// Submit enqueues an NZB by URL.
func (c *Client) Submit(ctx context.Context, sub types.Submission) (string, error) {
	if sub.URL == "" {
		return "", fmt.Errorf("%w: sabnzbd submissions require a URL", types.ErrUnsupported)
	}

	params := url.Values{}
	params.Set("mode", "addurl")
	params.Set("name", sub.URL)
	if sub.Name != "" {
		params.Set("nzbname", sub.Name)
	}
	category := sub.Category
	if category == "" {
		category = c.config.Category
	}
	if category != "" {
		params.Set("cat", category)
	}

	var resp struct {
		Status bool     `json:"status"`
		NzoIDs []string `json:"nzo_ids"`
	}
	if err := c.call(ctx, params, &resp); err != nil {
		return "", err
	}
	if !resp.Status || len(resp.NzoIDs) == 0 {
		return "", fmt.Errorf("sabnzbd rejected the submission")
	}
	return resp.NzoIDs[0], nil
}

type queueSlot struct {
	NzoID      string `json:"nzo_id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	MB         string `json:"mb"`
	Percentage string `json:"percentage"`
}

type historySlot struct {
	NzoID       string `json:"nzo_id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	Bytes       int64  `json:"bytes"`
	Storage     string `json:"storage"`
	FailMessage string `json:"fail_message"`
}

// List reports the queue and the history.
func (c *Client) List(ctx context.Context) ([]types.Transfer, error) {
	var transfers []types.Transfer

	queueParams := url.Values{}
	queueParams.Set("mode", "queue")
	var queueResp struct {
		Queue struct {
			Slots []queueSlot `json:"slots"`
		} `json:"queue"`
	}
	if err := c.call(ctx, queueParams, &queueResp); err != nil {
		return nil, err
	}
	for _, s := range queueResp.Queue.Slots {
		transfers = append(transfers, queueTransfer(s))
	}

	histParams := url.Values{}
	histParams.Set("mode", "history")
	var histResp struct {
		History struct {
			Slots []historySlot `json:"slots"`
		} `json:"history"`
	}
	if err := c.call(ctx, histParams, &histResp); err != nil {
		return nil, err
	}
	for _, s := range histResp.History.Slots {
		transfers = append(transfers, historyTransfer(s))
	}

	return transfers, nil
}

// Status reports one transfer by nzo id.
func (c *Client) Status(ctx context.Context, id string) (*types.Transfer, error) {
	transfers, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range transfers {
		if transfers[i].ID == id {
			return &transfers[i], nil
		}
	}
	return nil, types.ErrNotFound
}

// Cancel pauses a queued transfer, keeping its data.
func (c *Client) Cancel(ctx context.Context, id string) error {
	params := url.Values{}
	params.Set("mode", "queue")
	params.Set("name", "pause")
	params.Set("value", id)
	return c.call(ctx, params, nil)
}

// Remove deletes a transfer from the queue or the history.
func (c *Client) Remove(ctx context.Context, id string, deleteFiles bool) error {
	for _, mode := range []string{"queue", "history"} {
		params := url.Values{}
		params.Set("mode", mode)
		params.Set("name", "delete")
		params.Set("value", id)
		if deleteFiles {
			params.Set("del_files", "1")
		}
		if err := c.call(ctx, params, nil); err != nil {
			return err
		}
	}
	return nil
}

func queueTransfer(s queueSlot) types.Transfer {
	state := types.StateActive
	switch strings.ToLower(s.Status) {
	case "queued", "grabbing", "fetching":
		state = types.StateQueued
	case "paused":
		state = types.StatePaused
	case "failed":
		state = types.StateFailed
	}

	var progress float64
	fmt.Sscanf(s.Percentage, "%f", &progress)

	var sizeMB float64
	fmt.Sscanf(s.MB, "%f", &sizeMB)

	return types.Transfer{
		ID:       s.NzoID,
		Name:     s.Filename,
		State:    state,
		RawState: s.Status,
		Progress: progress,
		Size:     int64(sizeMB * (1 << 20)),
	}
}

func historyTransfer(s historySlot) types.Transfer {
	state := types.StateComplete
	progress := 100.0
	if !strings.EqualFold(s.Status, "Completed") {
		state = types.StateFailed
		progress = 0
	}
	return types.Transfer{
		ID:       s.NzoID,
		Name:     s.Name,
		State:    state,
		RawState: s.Status,
		Progress: progress,
		Size:     s.Bytes,
		Path:     s.Storage,
		Message:  s.FailMessage,
	}
}
