package rssfeed

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/shelfstream/shelfstream/internal/provider/types"
)

// ParseFeed auto-detects the feed format and parses it into raw results.
func ParseFeed(data []byte, providerName string) ([]types.Result, error) {
	if results, err := parseRSS(data, providerName); err == nil && len(results) > 0 {
		return results, nil
	}
	if results, err := parseJSONFeed(data, providerName); err == nil && len(results) > 0 {
		return results, nil
	}
	return nil, fmt.Errorf("unable to parse feed: unrecognized format")
}

// Standard RSS structures

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title     string       `xml:"title"`
	Creator   string       `xml:"creator"` // dc:creator
	Author    string       `xml:"author"`
	Link      string       `xml:"link"`
	GUID      string       `xml:"guid"`
	PubDate   string       `xml:"pubDate"`
	Size      int64        `xml:"size"`
	Enclosure rssEnclosure `xml:"enclosure"`
	Comments  string       `xml:"comments"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

func parseRSS(data []byte, providerName string) ([]types.Result, error) {
	var feed rssFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, err
	}

	var results []types.Result
	for _, item := range feed.Channel.Items {
		downloadURL := item.Link
		if downloadURL == "" && item.Enclosure.URL != "" {
			downloadURL = item.Enclosure.URL
		}
		if downloadURL == "" {
			continue
		}

		size := item.Size
		if size == 0 && item.Enclosure.Length > 0 {
			size = item.Enclosure.Length
		}

		guid := item.GUID
		if guid == "" {
			guid = downloadURL
		}

		contributor := item.Creator
		if contributor == "" {
			contributor = item.Author
		}

		results = append(results, types.Result{
			GUID:        guid,
			Title:       item.Title,
			Contributor: contributor,
			DownloadURL: downloadURL,
			InfoURL:     item.Comments,
			Size:        size,
			PublishDate: parseDate(item.PubDate),
			Provider:    providerName,
			Protocol:    inferProtocol(downloadURL, item.Enclosure.Type),
		})
	}

	return results, nil
}

// JSON feed structures (jsonfeed.org subset)

type jsonFeed struct {
	Items []jsonFeedItem `json:"items"`
}

type jsonFeedItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	ExternalURL string `json:"external_url"`
	Published   string `json:"date_published"`
	Author      struct {
		Name string `json:"name"`
	} `json:"author"`
	Attachments []struct {
		URL      string `json:"url"`
		MimeType string `json:"mime_type"`
		Size     int64  `json:"size_in_bytes"`
	} `json:"attachments"`
}

func parseJSONFeed(data []byte, providerName string) ([]types.Result, error) {
	var feed jsonFeed
	if err := json.Unmarshal(data, &feed); err != nil {
		return nil, err
	}
	if len(feed.Items) == 0 {
		return nil, fmt.Errorf("no items")
	}

	var results []types.Result
	for _, item := range feed.Items {
		downloadURL := item.URL
		mimeType := ""
		size := int64(0)
		if len(item.Attachments) > 0 {
			downloadURL = item.Attachments[0].URL
			mimeType = item.Attachments[0].MimeType
			size = item.Attachments[0].Size
		}
		if downloadURL == "" {
			downloadURL = item.ExternalURL
		}
		if downloadURL == "" {
			continue
		}

		guid := item.ID
		if guid == "" {
			guid = downloadURL
		}

		results = append(results, types.Result{
			GUID:        guid,
			Title:       item.Title,
			Contributor: item.Author.Name,
			DownloadURL: downloadURL,
			Size:        size,
			PublishDate: parseDate(item.Published),
			Provider:    providerName,
			Protocol:    inferProtocol(downloadURL, mimeType),
		})
	}

	return results, nil
}

func parseDate(s string) time.Time {
	for _, layout := range []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"Mon, 02 Jan 2006 15:04:05 -0700",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
