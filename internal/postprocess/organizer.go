// Package postprocess turns completed transfer directories into organized
// library content: scan, extract, read metadata, match to a catalog item,
// validate, and move into the library layout.
package postprocess

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/shelfstream/shelfstream/internal/catalog"
	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/logger"
	"github.com/shelfstream/shelfstream/internal/metadata"
)

// Characters that never appear in generated file or directory names.
var invalidNameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// safeName makes a string usable as a single path element.
func safeName(s string) string {
	s = invalidNameChars.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, ". ")
	if s == "" {
		return "Unknown"
	}
	return s
}

// renderPattern substitutes $-tokens in a naming pattern. Each substituted
// value is sanitized; pattern slashes are kept as directory separators.
func renderPattern(pattern string, item *catalog.WantedItem, meta metadata.Metadata) string {
	tokens := map[string]string{
		"$Author":    firstNonEmpty(item.Contributor, meta.Contributor, "Unknown Author"),
		"$Title":     firstNonEmpty(item.Title, meta.Title, "Unknown Title"),
		"$Series":    firstNonEmpty(item.SeriesName, meta.Series),
		"$SerNum":    seriesNum(item.SeriesNum),
		"$IssueDate": meta.IssueDate,
	}

	parts := strings.Split(pattern, "/")
	for i, part := range parts {
		// Longer tokens first so $Series never clobbers $SerNum.
		for _, tok := range []string{"$IssueDate", "$Author", "$Series", "$SerNum", "$Title"} {
			part = strings.ReplaceAll(part, tok, tokens[tok])
		}
		parts[i] = safeName(part)
	}
	return filepath.Join(parts...)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func seriesNum(n float64) string {
	if n == 0 {
		return ""
	}
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'f', 1, 64)
}

// uniquePath returns path if it is free, else "name (n).ext" with the
// smallest free n.
func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// Organizer places matched payloads into the library layout.
type Organizer struct {
	folders config.FoldersConfig
	naming  config.NamingConfig
	log     *logger.Logger
}

// NewOrganizer creates an organizer.
func NewOrganizer(folders config.FoldersConfig, naming config.NamingConfig, log *logger.Logger) *Organizer {
	return &Organizer{folders: folders, naming: naming, log: log.WithComponent("organize")}
}

// destDir computes the destination directory for an item.
func (o *Organizer) destDir(item *catalog.WantedItem, meta metadata.Metadata) string {
	root := item.LibraryRoot
	var folderPattern string
	switch item.Kind {
	case catalog.KindMagazine:
		if root == "" {
			root = o.folders.MagDir
		}
		folderPattern = o.naming.MagFolder
	case catalog.KindAudio:
		if root == "" {
			root = o.folders.AudioDir
		}
		folderPattern = o.naming.BookFolder
	default:
		if root == "" {
			root = o.folders.BookDir
		}
		folderPattern = o.naming.BookFolder
	}
	return filepath.Join(root, renderPattern(folderPattern, item, meta))
}

// fileName computes the destination file name, without extension.
func (o *Organizer) fileName(item *catalog.WantedItem, meta metadata.Metadata) string {
	var pattern string
	switch item.Kind {
	case catalog.KindMagazine:
		pattern = o.naming.MagFile
	case catalog.KindAudio:
		pattern = o.naming.AudioFile
	default:
		pattern = o.naming.BookFile
	}
	return renderPattern(pattern, item, meta)
}

// PlacedFile reports one file the organizer moved or copied.
type PlacedFile struct {
	Source string
	Dest   string
}

// Place moves (or copies, per configuration) the content file and its
// sidecars into the library. Per-file failures are reported but files
// already placed are not rolled back. Returns the destination content path.
func (o *Organizer) Place(item *catalog.WantedItem, contentPath string, sidecars []string, meta metadata.Metadata) (string, []PlacedFile, error) {
	dir := o.destDir(item, meta)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	base := o.fileName(item, meta)
	destContent := uniquePath(filepath.Join(dir, base+strings.ToLower(filepath.Ext(contentPath))))

	var placed []PlacedFile
	if err := o.transfer(contentPath, destContent); err != nil {
		return "", placed, err
	}
	placed = append(placed, PlacedFile{Source: contentPath, Dest: destContent})

	for _, sc := range sidecars {
		var dest string
		switch strings.ToLower(filepath.Ext(sc)) {
		case ".opf":
			dest = filepath.Join(dir, "metadata.opf")
		case ".jpg", ".jpeg", ".png":
			dest = filepath.Join(dir, "cover"+strings.ToLower(filepath.Ext(sc)))
		default:
			continue
		}
		dest = uniquePath(dest)
		if err := o.transfer(sc, dest); err != nil {
			// Sidecar failures do not undo the content placement.
			o.log.Warn().Str("file", filepath.Base(sc)).Err(err).
				Msg("Failed to place sidecar file")
			continue
		}
		placed = append(placed, PlacedFile{Source: sc, Dest: dest})
	}

	return destContent, placed, nil
}

// PlaceSet moves a multi-file payload (audiobook parts) into the item's
// destination directory, keeping each part's original name so play order
// survives. Returns the destination directory.
func (o *Organizer) PlaceSet(item *catalog.WantedItem, contentPaths, sidecars []string, meta metadata.Metadata) (string, []PlacedFile, error) {
	dir := o.destDir(item, meta)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	var placed []PlacedFile
	var firstErr error
	for _, src := range append(append([]string{}, contentPaths...), sidecars...) {
		dest := uniquePath(filepath.Join(dir, filepath.Base(src)))
		if err := o.transfer(src, dest); err != nil {
			o.log.Warn().Str("file", filepath.Base(src)).Err(err).Msg("Failed to place file")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		placed = append(placed, PlacedFile{Source: src, Dest: dest})
	}
	if len(placed) == 0 && firstErr != nil {
		return "", nil, firstErr
	}
	return dir, placed, nil
}

// transfer moves the file, or copies it when leave-files is configured.
// Cross-device moves degrade to copy-then-delete.
func (o *Organizer) transfer(src, dest string) error {
	if o.folders.LeaveFiles {
		return copyFile(src, dest)
	}
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := copyFile(src, dest); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filepath.Base(src), err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(dest), err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		os.Remove(dest)
		return fmt.Errorf("failed to copy %s: %w", filepath.Base(src), err)
	}
	return out.Sync()
}

// CleanupEmptyDirs removes now-empty directories under root, deepest first.
// The root itself is kept.
func CleanupEmptyDirs(root string) {
	var dirs []string
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err == nil && info.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err == nil && len(entries) == 0 {
			os.Remove(dirs[i])
		}
	}
}
