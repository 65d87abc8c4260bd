// Package newznab implements the newznab and torznab search API, the de
// facto standard for usenet and torrent indexer searches.
package newznab

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/logger"
	"github.com/shelfstream/shelfstream/internal/provider/types"
)

// Book-domain newznab categories: 7000 books, 7020 ebook, 3030 audiobook,
// 7010 magazines.
const defaultCategories = "7000,7010,7020,3030"

// Client queries a newznab or torznab endpoint.
type Client struct {
	name       string
	baseURL    string
	apiKey     string
	priority   int
	torznab    bool
	httpClient *http.Client
	log        *logger.Logger
}

// New creates a newznab client from provider configuration.
func New(cfg config.ProviderConfig, log *logger.Logger) *Client {
	return &Client{
		name:       cfg.Name,
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		priority:   cfg.Priority,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log.WithComponent("newznab"),
	}
}

// NewTorznab creates a torznab client. Torznab shares the newznab query
// shape but reports torrent attributes (seeders, peers) per item.
func NewTorznab(cfg config.ProviderConfig, log *logger.Logger) *Client {
	c := New(cfg, log)
	c.torznab = true
	return c
}

// Name returns the configured provider name.
func (c *Client) Name() string { return c.name }

// Priority returns the configured provider priority.
func (c *Client) Priority() int { return c.priority }

// Search runs a free-text query against the endpoint.
func (c *Client) Search(ctx context.Context, query string) ([]types.Result, error) {
	params := url.Values{}
	params.Set("t", "search")
	params.Set("q", query)
	params.Set("cat", defaultCategories)
	params.Set("extended", "1")
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}

	reqURL := c.baseURL + "/api?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("search rejected: invalid API key (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	return c.parse(body)
}

type feed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []item `xml:"item"`
	} `xml:"channel"`
}

type item struct {
	Title     string `xml:"title"`
	GUID      string `xml:"guid"`
	Link      string `xml:"link"`
	Comments  string `xml:"comments"`
	PubDate   string `xml:"pubDate"`
	Category  string `xml:"category"`
	Author    string `xml:"author"`
	Enclosure struct {
		URL    string `xml:"url,attr"`
		Length int64  `xml:"length,attr"`
	} `xml:"enclosure"`
	// Matches both newznab:attr and torznab:attr elements.
	Attrs []struct {
		Name  string `xml:"name,attr"`
		Value string `xml:"value,attr"`
	} `xml:"attr"`
}

func (c *Client) parse(data []byte) ([]types.Result, error) {
	var f feed
	if err := xml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	protocol := types.ProtocolUsenet
	if c.torznab {
		protocol = types.ProtocolTorrent
	}

	results := make([]types.Result, 0, len(f.Channel.Items))
	for _, it := range f.Channel.Items {
		downloadURL := it.Link
		if downloadURL == "" {
			downloadURL = it.Enclosure.URL
		}
		if downloadURL == "" {
			continue
		}

		r := types.Result{
			GUID:        it.GUID,
			Title:       strings.TrimSpace(it.Title),
			Contributor: strings.TrimSpace(it.Author),
			DownloadURL: downloadURL,
			InfoURL:     it.Comments,
			Size:        it.Enclosure.Length,
			Provider:    c.name,
			Protocol:    protocol,
			Category:    it.Category,
		}
		if r.GUID == "" {
			r.GUID = downloadURL
		}
		if t, err := parsePubDate(it.PubDate); err == nil {
			r.PublishDate = t
		}

		for _, attr := range it.Attrs {
			switch strings.ToLower(attr.Name) {
			case "size":
				if n, err := strconv.ParseInt(attr.Value, 10, 64); err == nil && n > 0 {
					r.Size = n
				}
			case "seeders":
				if n, err := strconv.Atoi(attr.Value); err == nil {
					r.Seeders = n
				}
			case "author":
				if r.Contributor == "" {
					r.Contributor = attr.Value
				}
			case "magneturl":
				if strings.HasPrefix(attr.Value, "magnet:") {
					r.DownloadURL = attr.Value
					r.Protocol = types.ProtocolTorrent
				}
			}
		}

		results = append(results, r)
	}

	c.log.Debug().Str("provider", c.name).Int("results", len(results)).Msg("Search complete")
	return results, nil
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
}

func parsePubDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}
