// Package nzbget implements a partial NZBGet JSON-RPC client. Submission and
// queue listing work; history-side operations are not implemented yet and
// report ErrUnsupported, which the capability flags advertise.
package nzbget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shelfstream/shelfstream/internal/downloader/types"
)

// Config holds the configuration for an NZBGet client.
type Config struct {
	Name     string
	Host     string
	Port     int
	Username string
	Password string
	UseSSL   bool
	Category string
}

// Client implements a subset of the NZBGet JSON-RPC API.
type Client struct {
	config     Config
	httpClient *http.Client
}

var _ types.Client = (*Client)(nil)

// New creates a new NZBGet client.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" || cfg.Port <= 0 {
		return nil, fmt.Errorf("%w: nzbget requires host and port", types.ErrInvalidConfig)
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *Client) Name() string             { return c.config.Name }
func (c *Client) Type() types.ClientType   { return types.ClientTypeNZBGet }
func (c *Client) Protocol() types.Protocol { return types.ProtocolUsenet }

func (c *Client) Capabilities() types.Capabilities {
	return types.Capabilities{Submit: true, Status: true}
}

func (c *Client) rpcURL() string {
	scheme := "http"
	if c.config.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d/jsonrpc", scheme, c.config.Host, c.config.Port)
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	payload, err := json.Marshal(map[string]any{
		"method": method,
		"params": params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.Username != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.ClassifyNetError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return types.ErrAuthFailed
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("nzbget returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to parse nzbget response: %w", err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("nzbget rpc error: %s", envelope.Error.Message)
	}
	if result != nil {
		return json.Unmarshal(envelope.Result, result)
	}
	return nil
}

// Test verifies connectivity and credentials.
func (c *Client) Test(ctx context.Context) error {
	var version string
	return c.call(ctx, "version", nil, &version)
}

// Submit enqueues an NZB by URL. NZBGet fetches the URL itself.
func (c *Client) Submit(ctx context.Context, sub types.Submission) (string, error) {
	if sub.URL == "" {
		return "", fmt.Errorf("%w: nzbget submissions require a URL", types.ErrUnsupported)
	}
	category := sub.Category
	if category == "" {
		category = c.config.Category
	}

	// append(NZBFilename, NZBContent, Category, Priority, AddToTop, AddPaused,
	// DupeKey, DupeScore, DupeMode)
	var id int64
	err := c.call(ctx, "append", []any{
		sub.Name, sub.URL, category, 0, false, false, "", 0, "SCORE",
	}, &id)
	if err != nil {
		return "", err
	}
	if id <= 0 {
		return "", fmt.Errorf("nzbget rejected the submission")
	}
	return fmt.Sprintf("%d", id), nil
}

type group struct {
	NZBID         int64  `json:"NZBID"`
	NZBName       string `json:"NZBName"`
	Status        string `json:"Status"`
	FileSizeLo    int64  `json:"FileSizeLo"`
	FileSizeHi    int64  `json:"FileSizeHi"`
	DownloadedLo  int64  `json:"DownloadedSizeLo"`
	DownloadedHi  int64  `json:"DownloadedSizeHi"`
	DestDir       string `json:"DestDir"`
	DeleteStatus  string `json:"DeleteStatus"`
	ScriptStatus  string `json:"ScriptStatus"`
	MarkStatus    string `json:"MarkStatus"`
	HealthDeficit int    `json:"Health"`
}

// List reports the download queue.
func (c *Client) List(ctx context.Context) ([]types.Transfer, error) {
	var groups []group
	if err := c.call(ctx, "listgroups", []any{0}, &groups); err != nil {
		return nil, err
	}

	transfers := make([]types.Transfer, 0, len(groups))
	for _, g := range groups {
		size := g.FileSizeHi<<32 | g.FileSizeLo
		done := g.DownloadedHi<<32 | g.DownloadedLo
		var progress float64
		if size > 0 {
			progress = float64(done) / float64(size) * 100
		}
		transfers = append(transfers, types.Transfer{
			ID:       fmt.Sprintf("%d", g.NZBID),
			Name:     g.NZBName,
			State:    mapStatus(g.Status),
			RawState: g.Status,
			Progress: progress,
			Size:     size,
			Path:     g.DestDir,
		})
	}
	return transfers, nil
}

// Status reports one transfer by NZB id.
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

// Cancel is not implemented yet.
func (c *Client) Cancel(ctx context.Context, id string) error {
	return types.ErrUnsupported
}

// Remove is not implemented yet.
func (c *Client) Remove(ctx context.Context, id string, deleteFiles bool) error {
	return types.ErrUnsupported
}

func mapStatus(status string) types.State {
	switch status {
	case "QUEUED":
		return types.StateQueued
	case "DOWNLOADING", "FETCHING", "POST_PROCESSING", "VERIFYING_SOURCES",
		"REPAIRING", "UNPACKING", "MOVING":
		return types.StateActive
	case "PAUSED":
		return types.StatePaused
	case "SUCCESS":
		return types.StateComplete
	case "FAILURE", "DELETED":
		return types.StateFailed
	default:
		return types.StateUnknown
	}
}
