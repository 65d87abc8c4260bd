// Package metadata reads title/contributor/identifier metadata out of
// extracted payloads. Sources are consulted in priority order per field:
// embedded metadata first, then a sidecar .opf, then filename heuristics.
// A lower-priority source only fills fields the higher ones left empty.
package metadata

import (
	"path/filepath"
	"strings"

	"github.com/shelfstream/shelfstream/internal/logger"
	"github.com/shelfstream/shelfstream/internal/unpack"
)

// Metadata is what could be learned about one content file.
type Metadata struct {
	Title       string
	Contributor string
	ISBN        string
	Series      string
	IssueDate   string
	Language    string
}

// merge fills empty fields of m from other, field by field.
func (m *Metadata) merge(other Metadata) {
	if m.Title == "" {
		m.Title = other.Title
	}
	if m.Contributor == "" {
		m.Contributor = other.Contributor
	}
	if m.ISBN == "" {
		m.ISBN = other.ISBN
	}
	if m.Series == "" {
		m.Series = other.Series
	}
	if m.IssueDate == "" {
		m.IssueDate = other.IssueDate
	}
	if m.Language == "" {
		m.Language = other.Language
	}
}

// Empty reports whether nothing was learned.
func (m *Metadata) Empty() bool {
	return m.Title == "" && m.Contributor == "" && m.ISBN == ""
}

// Reader resolves metadata for content files.
type Reader struct {
	log *logger.Logger
}

// NewReader creates a metadata reader.
func NewReader(log *logger.Logger) *Reader {
	return &Reader{log: log.WithComponent("metadata")}
}

// Resolve reads metadata for the content file at path. sidecars lists other
// files from the same payload directory; a .opf among them is consulted
// after embedded metadata. Extraction errors degrade to the next source
// rather than failing; the zero Metadata is a valid result.
func (r *Reader) Resolve(path string, sidecars []string) Metadata {
	var meta Metadata

	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".epub":
		embedded, err := readEpub(path)
		if err != nil {
			r.log.Debug().Str("file", filepath.Base(path)).Err(err).
				Msg("Unreadable embedded epub metadata")
		} else {
			meta.merge(embedded)
		}
	case unpack.IsAudioExt(ext):
		embedded, err := readAudioTags(path)
		if err != nil {
			r.log.Debug().Str("file", filepath.Base(path)).Err(err).
				Msg("Unreadable audio tags")
		} else {
			meta.merge(embedded)
		}
	}

	for _, sc := range sidecars {
		if strings.EqualFold(filepath.Ext(sc), ".opf") {
			sidecar, err := readOPFFile(sc)
			if err != nil {
				r.log.Debug().Str("file", filepath.Base(sc)).Err(err).
					Msg("Unreadable sidecar metadata")
				continue
			}
			meta.merge(sidecar)
		}
	}

	meta.merge(fromFilename(filepath.Base(path)))
	return meta
}
