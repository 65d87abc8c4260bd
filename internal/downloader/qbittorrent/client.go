// Package qbittorrent implements a qBittorrent Web API (v2) client.
package qbittorrent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/shelfstream/shelfstream/internal/downloader/types"
)

// Config holds the configuration for a qBittorrent client.
type Config struct {
	Name     string
	Host     string
	Port     int
	Username string
	Password string
	UseSSL   bool
	Category string
}

// Client implements the qBittorrent Web API. Authentication is cookie-based;
// the client logs in lazily and re-authenticates on a 403.
type Client struct {
	config     Config
	httpClient *http.Client

	mu       sync.Mutex // guards loggedIn
	loggedIn bool
}

var _ types.Client = (*Client)(nil)

// New creates a new qBittorrent client.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" || cfg.Port <= 0 {
		return nil, fmt.Errorf("%w: qbittorrent requires host and port", types.ErrInvalidConfig)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
	}, nil
}

func (c *Client) Name() string             { return c.config.Name }
func (c *Client) Type() types.ClientType   { return types.ClientTypeQBittorrent }
func (c *Client) Protocol() types.Protocol { return types.ProtocolTorrent }

func (c *Client) Capabilities() types.Capabilities {
	return types.Capabilities{
		Submit: true, Status: true, Cancel: true, Remove: true,
		Seeding: true, RemoveData: true,
	}
}

func (c *Client) baseURL() string {
	scheme := "http"
	if c.config.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d/api/v2", scheme, c.config.Host, c.config.Port)
}

// ensureLoggedIn logs in unless a session is already held. The lock is held
// across the login round trip so concurrent callers share one attempt.
func (c *Client) ensureLoggedIn(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loggedIn {
		return nil
	}
	return c.loginLocked(ctx)
}

func (c *Client) dropSession() {
	c.mu.Lock()
	c.loggedIn = false
	c.mu.Unlock()
}

func (c *Client) loginLocked(ctx context.Context) error {
	form := url.Values{}
	form.Set("username", c.config.Username)
	form.Set("password", c.config.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL()+"/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.ClassifyNetError(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(string(body), "Ok") {
		return fmt.Errorf("%w: qbittorrent login rejected", types.ErrAuthFailed)
	}
	c.loggedIn = true
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	body, expired, err := c.doOnce(ctx, method, path, form)
	if expired {
		// Session expired; one re-login attempt, never more.
		body, expired, err = c.doOnce(ctx, method, path, form)
		if expired {
			return nil, fmt.Errorf("%w: qbittorrent rejected a fresh session", types.ErrAuthFailed)
		}
	}
	return body, err
}

// doOnce performs one authenticated request. The middle return reports a 403,
// which means the cookie went stale and the caller may retry once.
func (c *Client) doOnce(ctx context.Context, method, path string, form url.Values) ([]byte, bool, error) {
	if err := c.ensureLoggedIn(ctx); err != nil {
		return nil, false, err
	}

	var body io.Reader
	reqURL := c.baseURL() + path
	if form != nil {
		if method == http.MethodGet {
			reqURL += "?" + form.Encode()
		} else {
			body = strings.NewReader(form.Encode())
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, false, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, types.ClassifyNetError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		c.dropSession()
		return nil, true, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("qbittorrent returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	return data, false, err
}

// Test verifies connectivity and credentials.
func (c *Client) Test(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/app/version", nil)
	return err
}

var magnetHashRegex = regexp.MustCompile(`(?i)xt=urn:btih:([0-9a-f]{40}|[2-7a-z]{32})`)

// Submit adds a torrent by URL or magnet link. qBittorrent deduplicates
// submissions itself, so re-adding an existing torrent is success.
func (c *Client) Submit(ctx context.Context, sub types.Submission) (string, error) {
	if sub.URL == "" {
		return "", fmt.Errorf("%w: qbittorrent submissions require a URL or magnet", types.ErrUnsupported)
	}

	form := url.Values{}
	form.Set("urls", sub.URL)
	category := sub.Category
	if category == "" {
		category = c.config.Category
	}
	if category != "" {
		form.Set("category", category)
	}
	if sub.Name != "" {
		form.Set("rename", sub.Name)
	}

	body, err := c.do(ctx, http.MethodPost, "/torrents/add", form)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(string(body), "Fails") {
		return "", fmt.Errorf("qbittorrent rejected the submission")
	}

	if m := magnetHashRegex.FindStringSubmatch(sub.URL); m != nil {
		return strings.ToLower(m[1]), nil
	}
	// No hash in the URL; find the torrent by name.
	if sub.Name != "" {
		transfers, err := c.List(ctx)
		if err == nil {
			for _, t := range transfers {
				if strings.EqualFold(t.Name, sub.Name) {
					return t.ID, nil
				}
			}
		}
	}
	return "", nil
}

type torrentInfo struct {
	Hash        string  `json:"hash"`
	Name        string  `json:"name"`
	State       string  `json:"state"`
	Progress    float64 `json:"progress"` // 0-1
	Size        int64   `json:"size"`
	ContentPath string  `json:"content_path"`
	Ratio       float64 `json:"ratio"`
}

// List reports all torrents.
func (c *Client) List(ctx context.Context) ([]types.Transfer, error) {
	body, err := c.do(ctx, http.MethodGet, "/torrents/info", nil)
	if err != nil {
		return nil, err
	}

	var infos []torrentInfo
	if err := json.Unmarshal(body, &infos); err != nil {
		return nil, fmt.Errorf("failed to parse torrent list: %w", err)
	}

	transfers := make([]types.Transfer, 0, len(infos))
	for _, t := range infos {
		transfers = append(transfers, types.Transfer{
			ID:       t.Hash,
			Name:     t.Name,
			State:    mapState(t.State),
			RawState: t.State,
			Progress: t.Progress * 100,
			Size:     t.Size,
			Path:     t.ContentPath,
			Ratio:    t.Ratio,
		})
	}
	return transfers, nil
}

// Status reports one torrent by hash.
func (c *Client) Status(ctx context.Context, id string) (*types.Transfer, error) {
	form := url.Values{}
	form.Set("hashes", id)
	body, err := c.do(ctx, http.MethodGet, "/torrents/info", form)
	if err != nil {
		return nil, err
	}

	var infos []torrentInfo
	if err := json.Unmarshal(body, &infos); err != nil {
		return nil, fmt.Errorf("failed to parse torrent info: %w", err)
	}
	if len(infos) == 0 {
		return nil, types.ErrNotFound
	}

	t := infos[0]
	return &types.Transfer{
		ID:       t.Hash,
		Name:     t.Name,
		State:    mapState(t.State),
		RawState: t.State,
		Progress: t.Progress * 100,
		Size:     t.Size,
		Path:     t.ContentPath,
		Ratio:    t.Ratio,
	}, nil
}

// Cancel pauses a torrent, keeping its data.
func (c *Client) Cancel(ctx context.Context, id string) error {
	form := url.Values{}
	form.Set("hashes", id)
	_, err := c.do(ctx, http.MethodPost, "/torrents/pause", form)
	return err
}

// Remove deletes a torrent, and its data when deleteFiles is set.
func (c *Client) Remove(ctx context.Context, id string, deleteFiles bool) error {
	form := url.Values{}
	form.Set("hashes", id)
	form.Set("deleteFiles", fmt.Sprintf("%t", deleteFiles))
	_, err := c.do(ctx, http.MethodPost, "/torrents/delete", form)
	return err
}

func mapState(raw string) types.State {
	if types.IsSeedingStateName(raw) {
		return types.StateSeeding
	}
	switch strings.ToLower(raw) {
	case "downloading", "stalleddl", "metadl", "forceddl", "checkingdl":
		return types.StateActive
	case "queueddl", "allocating":
		return types.StateQueued
	case "pauseddl", "stoppeddl":
		return types.StatePaused
	case "pausedup", "stoppedup", "checkingup", "forcedup":
		return types.StateComplete
	case "error", "missingfiles":
		return types.StateFailed
	default:
		return types.StateUnknown
	}
}
