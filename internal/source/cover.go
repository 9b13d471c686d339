package source

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"github.com/llehouerou/presence/internal/track"
)

// coverNames are the folder images tried when a file has no embedded art.
var coverNames = []string{
	"cover.jpg", "cover.jpeg", "cover.png",
	"folder.jpg", "folder.jpeg", "folder.png",
	"album.jpg", "album.jpeg", "album.png",
	"front.jpg", "front.jpeg", "front.png",
	"artwork.jpg", "artwork.jpeg", "artwork.png",
}

// FileArtwork returns a loader for the artwork of a local audio file:
// its embedded picture, else a cover image in its directory. The loader
// returns nil bytes when there is none.
func FileArtwork(path string) track.ArtworkLoader {
	return func(context.Context) ([]byte, error) {
		// Unreadable or missing tags still leave the folder to look in.
		if data, err := embeddedArt(path); err == nil && len(data) > 0 {
			return data, nil
		}
		return folderArt(filepath.Dir(path))
	}
}

// ImageFile returns a loader reading an image file as-is.
func ImageFile(path string) track.ArtworkLoader {
	return func(context.Context) ([]byte, error) {
		return os.ReadFile(path)
	}
}

func embeddedArt(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, err
	}
	if pic := m.Picture(); pic != nil {
		return pic.Data, nil
	}
	return nil, nil
}

func folderArt(dir string) ([]byte, error) {
	for _, name := range coverNames {
		for _, candidate := range []string{name, strings.ToUpper(name)} {
			data, err := os.ReadFile(filepath.Join(dir, candidate))
			if err == nil {
				return data, nil
			}
		}
	}
	return nil, nil
}

// LocalPath returns the filesystem path of a file:// URL or a plain path.
func LocalPath(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	if filepath.IsAbs(raw) {
		return raw, true
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "file" || u.Path == "" {
		return "", false
	}
	return u.Path, true
}

// IsRemote reports whether raw is an http(s) URL.
func IsRemote(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
