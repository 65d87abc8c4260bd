package metadata

import (
	"os"

	"github.com/dhowden/tag"
)

// readAudioTags reads embedded ID3/MP4/Vorbis tags from an audio file.
// Audiobook rips commonly put the book title in the album tag and the
// narrated chapter in the title tag, so album wins when both are set.
func readAudioTags(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer f.Close()

	tags, err := tag.ReadFrom(f)
	if err != nil {
		return Metadata{}, err
	}

	var meta Metadata
	if album := tags.Album(); album != "" {
		meta.Title = album
	} else {
		meta.Title = tags.Title()
	}
	if artist := tags.AlbumArtist(); artist != "" {
		meta.Contributor = artist
	} else {
		meta.Contributor = tags.Artist()
	}
	return meta, nil
}
