package unpack

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shelfstream/shelfstream/internal/logger"
)

// Result reports what an extraction produced.
type Result struct {
	Extracted []string // paths of files written under destDir
	Skipped   []string // member names refused (traversal or unsupported)
}

// Extractor unpacks archives into a destination directory.
type Extractor struct {
	log *logger.Logger
}

// NewExtractor creates an archive extractor.
func NewExtractor(log *logger.Logger) *Extractor {
	return &Extractor{log: log.WithComponent("unpack")}
}

// Extract unpacks the archive at archivePath into destDir. Unsupported
// archive types return an error; unsafe member names are skipped and logged,
// never extracted and never fatal.
func (e *Extractor) Extract(archivePath, destDir string) (*Result, error) {
	lower := strings.ToLower(archivePath)
	switch {
	case strings.HasSuffix(lower, ".zip"), strings.HasSuffix(lower, ".cbz"):
		return e.extractZip(archivePath, destDir)
	case strings.HasSuffix(lower, ".tar"):
		return e.extractTarFile(archivePath, destDir, false)
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return e.extractTarFile(archivePath, destDir, true)
	default:
		return nil, fmt.Errorf("unsupported archive type: %s", filepath.Base(archivePath))
	}
}

// safeMemberPath validates an archive member name against directory escape
// and returns its destination path. Absolute names and names containing a
// parent-directory reference are refused.
func safeMemberPath(destDir, name string) (string, bool) {
	if name == "" || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return "", false
	}
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return "", false
		}
	}
	dest := filepath.Join(destDir, filepath.FromSlash(name))
	// Join cleans the path; verify it stayed inside.
	if !strings.HasPrefix(dest, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", false
	}
	return dest, true
}

func (e *Extractor) extractZip(archivePath, destDir string) (*Result, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer reader.Close()

	result := &Result{}
	for _, member := range reader.File {
		if member.FileInfo().IsDir() {
			continue
		}
		dest, ok := safeMemberPath(destDir, member.Name)
		if !ok {
			e.log.Warn().Str("archive", filepath.Base(archivePath)).
				Str("member", member.Name).Msg("Skipping unsafe archive member")
			result.Skipped = append(result.Skipped, member.Name)
			continue
		}

		src, err := member.Open()
		if err != nil {
			return result, fmt.Errorf("failed to read member %s: %w", member.Name, err)
		}
		err = writeFile(dest, src)
		src.Close()
		if err != nil {
			return result, err
		}
		result.Extracted = append(result.Extracted, dest)
	}
	return result, nil
}

func (e *Extractor) extractTarFile(archivePath, destDir string, gzipped bool) (*Result, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	var src io.Reader = f
	if gzipped {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read gzip stream: %w", err)
		}
		defer gz.Close()
		src = gz
	}
	return e.extractTar(src, destDir, filepath.Base(archivePath))
}

func (e *Extractor) extractTar(src io.Reader, destDir, archiveName string) (*Result, error) {
	tr := tar.NewReader(src)
	result := &Result{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return result, nil
		}
		if err != nil {
			return result, fmt.Errorf("failed to read archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		dest, ok := safeMemberPath(destDir, hdr.Name)
		if !ok {
			e.log.Warn().Str("archive", archiveName).
				Str("member", hdr.Name).Msg("Skipping unsafe archive member")
			result.Skipped = append(result.Skipped, hdr.Name)
			continue
		}

		if err := writeFile(dest, tr); err != nil {
			return result, err
		}
		result.Extracted = append(result.Extracted, dest)
	}
}

func writeFile(dest string, src io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(dest), err)
	}
	return nil
}
