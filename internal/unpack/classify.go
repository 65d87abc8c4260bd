// Package unpack classifies and extracts completed-download payloads.
package unpack

import (
	"path/filepath"
	"strings"
)

// FileClass is what role a file plays in a payload.
type FileClass int

const (
	ClassIgnored FileClass = iota
	ClassContent
	ClassArchive
	ClassSidecar
	ClassImage
)

var classByExt = map[string]FileClass{
	// content
	".epub": ClassContent,
	".mobi": ClassContent,
	".azw3": ClassContent,
	".pdf":  ClassContent,
	".cbz":  ClassContent,
	".cbr":  ClassContent,
	".mp3":  ClassContent,
	".m4a":  ClassContent,
	".m4b":  ClassContent,
	".flac": ClassContent,
	".ogg":  ClassContent,
	// archives
	".zip": ClassArchive,
	".tar": ClassArchive,
	".tgz": ClassArchive,
	".gz":  ClassArchive,
	// metadata sidecars
	".opf": ClassSidecar,
	// cover images
	".jpg":  ClassImage,
	".jpeg": ClassImage,
	".png":  ClassImage,
}

// Classify reports the role of a file from its name.
func Classify(name string) FileClass {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".gz" && strings.HasSuffix(strings.ToLower(name), ".tar.gz") {
		return ClassArchive
	}
	if class, ok := classByExt[ext]; ok {
		return class
	}
	return ClassIgnored
}

// IsAudioExt reports whether a content extension is an audio format.
func IsAudioExt(ext string) bool {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "mp3", "m4a", "m4b", "flac", "ogg":
		return true
	}
	return false
}
