package rssfeed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfstream/shelfstream/internal/provider/types"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <title>Magazine Feed</title>
  <item>
    <title>Linux Journal 2024-03</title>
    <dc:creator>Linux Journal</dc:creator>
    <link>https://example.com/issues/lj-2024-03.pdf</link>
    <guid>lj-2024-03</guid>
    <pubDate>Fri, 01 Mar 2024 08:00:00 +0000</pubDate>
    <enclosure url="https://example.com/issues/lj-2024-03.pdf" length="10485760" type="application/pdf"/>
  </item>
  <item>
    <title>No Link Item</title>
  </item>
</channel>
</rss>`

func TestParseFeed_RSS(t *testing.T) {
	results, err := ParseFeed([]byte(sampleRSS), "magfeed")
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "Linux Journal 2024-03", r.Title)
	assert.Equal(t, "Linux Journal", r.Contributor)
	assert.Equal(t, "lj-2024-03", r.GUID)
	assert.Equal(t, int64(10485760), r.Size)
	assert.Equal(t, "magfeed", r.Provider)
	assert.Equal(t, types.ProtocolDirect, r.Protocol)
	assert.Equal(t, 2024, r.PublishDate.Year())
}

func TestParseFeed_JSONFeed(t *testing.T) {
	data := `{
	  "version": "https://jsonfeed.org/version/1.1",
	  "items": [
	    {
	      "id": "issue-42",
	      "title": "Retro Gamer Issue 42",
	      "date_published": "2024-05-01T00:00:00Z",
	      "author": {"name": "Retro Gamer"},
	      "attachments": [
	        {"url": "https://example.com/rg42.nzb", "mime_type": "application/x-nzb", "size_in_bytes": 52428800}
	      ]
	    }
	  ]
	}`
	results, err := ParseFeed([]byte(data), "jsonmag")
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "issue-42", r.GUID)
	assert.Equal(t, "Retro Gamer", r.Contributor)
	assert.Equal(t, int64(52428800), r.Size)
	assert.Equal(t, types.ProtocolUsenet, r.Protocol)
}

func TestParseFeed_Unrecognized(t *testing.T) {
	_, err := ParseFeed([]byte("plain text, not a feed"), "x")
	assert.Error(t, err)
}

func TestParseDate_UnknownFormatIsZero(t *testing.T) {
	assert.True(t, parseDate("sometime last week").IsZero())
}
