package postprocess

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shelfstream/shelfstream/internal/logger"
	"github.com/shelfstream/shelfstream/internal/unpack"
)

// Payload is the usable content found in one completed-transfer directory.
type Payload struct {
	Root     string
	Content  []string // content file paths, any depth
	Sidecars []string // .opf documents and cover images
}

// Scanner walks completed-transfer directories, extracting any archives it
// finds and classifying the files left behind.
type Scanner struct {
	extractor *unpack.Extractor
	log       *logger.Logger
}

// NewScanner creates a scanner.
func NewScanner(log *logger.Logger) *Scanner {
	return &Scanner{extractor: unpack.NewExtractor(log), log: log.WithComponent("scan")}
}

// Scan collects the payload of dir. Archives are extracted next to
// themselves first; a broken archive is logged and skipped, never fatal to
// the rest of the directory.
func (s *Scanner) Scan(dir string) (*Payload, error) {
	payload := &Payload{Root: dir}

	walk := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		name := info.Name()
		if strings.HasPrefix(name, ".") || isPartialFile(name) {
			return nil
		}

		switch unpack.Classify(name) {
		case unpack.ClassContent:
			payload.Content = append(payload.Content, path)
		case unpack.ClassSidecar, unpack.ClassImage:
			payload.Sidecars = append(payload.Sidecars, path)
		case unpack.ClassArchive:
			result, err := s.extractor.Extract(path, filepath.Dir(path))
			if err != nil {
				s.log.Warn().Str("archive", name).Err(err).Msg("Failed to extract archive")
				return nil
			}
			for _, extracted := range result.Extracted {
				switch unpack.Classify(extracted) {
				case unpack.ClassContent:
					payload.Content = append(payload.Content, extracted)
				case unpack.ClassSidecar, unpack.ClassImage:
					payload.Sidecars = append(payload.Sidecars, extracted)
				}
			}
		}
		return nil
	}

	if err := filepath.Walk(dir, walk); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	return payload, nil
}

// isPartialFile reports whether a file is an in-flight download artifact.
func isPartialFile(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range []string{".part", ".partial", ".tmp", ".!qb", ".bts"} {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
