package metadata

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// opfPackage is the subset of the OPF package document the pipeline uses.
type opfPackage struct {
	XMLName  xml.Name `xml:"package"`
	Metadata struct {
		Titles      []string        `xml:"title"`
		Creators    []opfCreator    `xml:"creator"`
		Identifiers []opfIdentifier `xml:"identifier"`
		Dates       []string        `xml:"date"`
		Languages   []string        `xml:"language"`
		Series      []opfMeta       `xml:"meta"`
	} `xml:"metadata"`
}

type opfCreator struct {
	Role string `xml:"role,attr"`
	Name string `xml:",chardata"`
}

type opfIdentifier struct {
	Scheme string `xml:"scheme,attr"`
	Value  string `xml:",chardata"`
}

type opfMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

// parseOPF reads the fields the pipeline cares about from an OPF document.
func parseOPF(r io.Reader) (Metadata, error) {
	var pkg opfPackage
	if err := xml.NewDecoder(r).Decode(&pkg); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse opf: %w", err)
	}

	var meta Metadata
	if len(pkg.Metadata.Titles) > 0 {
		meta.Title = strings.TrimSpace(pkg.Metadata.Titles[0])
	}
	for _, c := range pkg.Metadata.Creators {
		// Prefer the author role; fall back to the first creator.
		if strings.EqualFold(c.Role, "aut") || meta.Contributor == "" {
			meta.Contributor = normalizeCreator(c.Name)
		}
		if strings.EqualFold(c.Role, "aut") {
			break
		}
	}
	for _, id := range pkg.Metadata.Identifiers {
		if isbn := normalizeISBN(id.Value); isbn != "" &&
			(strings.EqualFold(id.Scheme, "ISBN") || meta.ISBN == "") {
			meta.ISBN = isbn
		}
	}
	if len(pkg.Metadata.Dates) > 0 {
		meta.IssueDate = strings.TrimSpace(pkg.Metadata.Dates[0])
	}
	if len(pkg.Metadata.Languages) > 0 {
		meta.Language = strings.TrimSpace(pkg.Metadata.Languages[0])
	}
	for _, m := range pkg.Metadata.Series {
		if strings.EqualFold(m.Name, "calibre:series") {
			meta.Series = strings.TrimSpace(m.Content)
		}
	}
	return meta, nil
}

// readOPFFile parses a sidecar .opf document.
func readOPFFile(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer f.Close()
	return parseOPF(f)
}

// normalizeCreator flips "Last, First" ordering to "First Last".
func normalizeCreator(name string) string {
	name = strings.TrimSpace(name)
	if parts := strings.SplitN(name, ",", 2); len(parts) == 2 {
		return strings.TrimSpace(parts[1]) + " " + strings.TrimSpace(parts[0])
	}
	return name
}

// normalizeISBN strips separators and validates length. ISBN-10 values are
// converted to their ISBN-13 form so lookups use one key shape.
func normalizeISBN(raw string) string {
	var digits strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if (r >= '0' && r <= '9') || r == 'X' || r == 'x' {
			digits.WriteRune(r)
		}
	}
	s := strings.ToUpper(digits.String())
	switch len(s) {
	case 13:
		return s
	case 10:
		return isbn10to13(s)
	default:
		return ""
	}
}

// isbn10to13 converts an ISBN-10 to ISBN-13: prefix 978, drop the old check
// digit, append the recomputed one.
func isbn10to13(isbn10 string) string {
	body := "978" + isbn10[:9]
	sum := 0
	for i, r := range body {
		d := int(r - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	check := (10 - sum%10) % 10
	return fmt.Sprintf("%s%d", body, check)
}

// container is the epub META-INF/container.xml document pointing at the OPF.
type container struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

// readEpub opens an epub (a zip) and parses the OPF document its container
// points at.
func readEpub(path string) (Metadata, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to open epub: %w", err)
	}
	defer reader.Close()

	opfPath, err := epubOPFPath(&reader.Reader)
	if err != nil {
		return Metadata{}, err
	}

	for _, f := range reader.File {
		if f.Name == opfPath {
			rc, err := f.Open()
			if err != nil {
				return Metadata{}, err
			}
			defer rc.Close()
			return parseOPF(rc)
		}
	}
	return Metadata{}, fmt.Errorf("epub opf %s not found", opfPath)
}

func epubOPFPath(reader *zip.Reader) (string, error) {
	for _, f := range reader.File {
		if f.Name != "META-INF/container.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()

		var c container
		if err := xml.NewDecoder(rc).Decode(&c); err != nil {
			return "", fmt.Errorf("failed to parse epub container: %w", err)
		}
		if len(c.Rootfiles) == 0 || c.Rootfiles[0].FullPath == "" {
			return "", fmt.Errorf("epub container lists no rootfile")
		}
		return c.Rootfiles[0].FullPath, nil
	}
	return "", fmt.Errorf("epub has no META-INF/container.xml")
}
