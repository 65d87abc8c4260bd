// Package transmission implements a Transmission RPC client.
package transmission

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shelfstream/shelfstream/internal/downloader/types"
)

const sessionIDHeader = "X-Transmission-Session-Id"

// Transmission numeric torrent states.
const (
	statusStopped      = 0
	statusCheckWait    = 1
	statusCheck        = 2
	statusDownloadWait = 3
	statusDownload     = 4
	statusSeedWait     = 5
	statusSeed         = 6
)

// Config holds the configuration for a Transmission client.
type Config struct {
	Name     string
	Host     string
	Port     int
	Username string
	Password string
	UseSSL   bool
}

// Client implements the Transmission RPC protocol. The RPC endpoint hands
// out a CSRF session id via a 409 response; the client caches it and
// retries once when it rotates.
type Client struct {
	config     Config
	sessionID  string
	httpClient *http.Client
}

var _ types.Client = (*Client)(nil)

// New creates a new Transmission client.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" || cfg.Port <= 0 {
		return nil, fmt.Errorf("%w: transmission requires host and port", types.ErrInvalidConfig)
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *Client) Name() string             { return c.config.Name }
func (c *Client) Type() types.ClientType   { return types.ClientTypeTransmission }
func (c *Client) Protocol() types.Protocol { return types.ProtocolTorrent }

func (c *Client) Capabilities() types.Capabilities {
	return types.Capabilities{
		Submit: true, Status: true, Cancel: true, Remove: true,
		Seeding: true, RemoveData: true,
	}
}

func (c *Client) rpcURL() string {
	scheme := "http"
	if c.config.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d/transmission/rpc", scheme, c.config.Host, c.config.Port)
}

type rpcRequest struct {
	Method    string         `json:"method"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

type rpcResponse struct {
	Result    string         `json:"result"`
	Arguments map[string]any `json:"arguments"`
}

func (c *Client) call(ctx context.Context, method string, args map[string]any) (*rpcResponse, error) {
	return c.callRetry(ctx, method, args, true)
}

func (c *Client) callRetry(ctx context.Context, method string, args map[string]any, retry bool) (*rpcResponse, error) {
	payload, err := json.Marshal(rpcRequest{Method: method, Arguments: args})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.sessionID != "" {
		req.Header.Set(sessionIDHeader, c.sessionID)
	}
	if c.config.Username != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, types.ClassifyNetError(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusConflict:
		// Session id rotated; pick up the new one and retry once.
		c.sessionID = resp.Header.Get(sessionIDHeader)
		if !retry {
			return nil, fmt.Errorf("transmission session id negotiation failed")
		}
		return c.callRetry(ctx, method, args, false)
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, types.ErrAuthFailed
	case http.StatusOK:
	default:
		return nil, fmt.Errorf("transmission returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("failed to parse transmission response: %w", err)
	}
	if rpcResp.Result != "success" {
		return nil, fmt.Errorf("transmission rpc error: %s", rpcResp.Result)
	}
	return &rpcResp, nil
}

// Test verifies connectivity and credentials.
func (c *Client) Test(ctx context.Context) error {
	_, err := c.call(ctx, "session-get", nil)
	return err
}

// Submit adds a torrent by URL, magnet link, or raw metainfo. Transmission
// reports a duplicate add separately; it is treated as success.
func (c *Client) Submit(ctx context.Context, sub types.Submission) (string, error) {
	args := make(map[string]any)
	switch {
	case sub.URL != "":
		args["filename"] = sub.URL
	case len(sub.FileContent) > 0:
		args["metainfo"] = base64.StdEncoding.EncodeToString(sub.FileContent)
	default:
		return "", fmt.Errorf("%w: transmission submissions require a URL or content", types.ErrUnsupported)
	}

	resp, err := c.call(ctx, "torrent-add", args)
	if err != nil {
		return "", err
	}

	for _, key := range []string{"torrent-added", "torrent-duplicate"} {
		if t, ok := resp.Arguments[key].(map[string]any); ok {
			if hash, ok := t["hashString"].(string); ok {
				return hash, nil
			}
			if id, ok := t["id"].(float64); ok {
				return fmt.Sprintf("%d", int64(id)), nil
			}
		}
	}
	return "", fmt.Errorf("transmission did not return a torrent id")
}

var torrentFields = []string{
	"id", "name", "status", "percentDone", "totalSize",
	"downloadDir", "hashString", "uploadRatio", "errorString",
}

// List reports all torrents.
func (c *Client) List(ctx context.Context) ([]types.Transfer, error) {
	resp, err := c.call(ctx, "torrent-get", map[string]any{"fields": torrentFields})
	if err != nil {
		return nil, err
	}
	return mapTorrents(resp), nil
}

// Status reports one torrent by hash or numeric id.
func (c *Client) Status(ctx context.Context, id string) (*types.Transfer, error) {
	resp, err := c.call(ctx, "torrent-get", map[string]any{
		"ids":    []string{id},
		"fields": torrentFields,
	})
	if err != nil {
		return nil, err
	}
	transfers := mapTorrents(resp)
	if len(transfers) == 0 {
		return nil, types.ErrNotFound
	}
	return &transfers[0], nil
}

// Cancel stops a torrent, keeping its data.
func (c *Client) Cancel(ctx context.Context, id string) error {
	_, err := c.call(ctx, "torrent-stop", map[string]any{"ids": []string{id}})
	return err
}

// Remove deletes a torrent, and its data when deleteFiles is set.
func (c *Client) Remove(ctx context.Context, id string, deleteFiles bool) error {
	_, err := c.call(ctx, "torrent-remove", map[string]any{
		"ids":               []string{id},
		"delete-local-data": deleteFiles,
	})
	return err
}

func mapTorrents(resp *rpcResponse) []types.Transfer {
	raw, ok := resp.Arguments["torrents"].([]any)
	if !ok {
		return nil
	}

	transfers := make([]types.Transfer, 0, len(raw))
	for _, t := range raw {
		torrent, ok := t.(map[string]any)
		if !ok {
			continue
		}

		id := getString(torrent, "hashString")
		if id == "" {
			id = fmt.Sprintf("%d", int64(getFloat(torrent, "id")))
		}

		status := int(getFloat(torrent, "status"))
		done := getFloat(torrent, "percentDone")

		transfers = append(transfers, types.Transfer{
			ID:       id,
			Name:     getString(torrent, "name"),
			State:    mapStatus(status, done, getString(torrent, "errorString")),
			RawState: fmt.Sprintf("%d", status),
			Progress: done * 100,
			Size:     int64(getFloat(torrent, "totalSize")),
			Path:     getString(torrent, "downloadDir"),
			Ratio:    getFloat(torrent, "uploadRatio"),
			Message:  getString(torrent, "errorString"),
		})
	}
	return transfers
}

func mapStatus(status int, percentDone float64, errStr string) types.State {
	if errStr != "" {
		return types.StateFailed
	}
	switch status {
	case statusStopped:
		if percentDone >= 1 {
			return types.StateComplete
		}
		return types.StatePaused
	case statusCheckWait, statusDownloadWait:
		return types.StateQueued
	case statusCheck, statusDownload:
		return types.StateActive
	case statusSeedWait, statusSeed:
		return types.StateSeeding
	default:
		return types.StateUnknown
	}
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getFloat(m map[string]any, key string) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return 0
}
