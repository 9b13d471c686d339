// Package artwork turns a track's embedded artwork into a hosted URL.
package artwork

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/llehouerou/presence/internal/artcache"
	"github.com/llehouerou/presence/internal/musicbrainz"
	"github.com/llehouerou/presence/internal/track"
)

// Host stores image bytes and returns their public URL.
type Host interface {
	Upload(ctx context.Context, data []byte) (string, error)
}

// CoverFinder looks artwork up remotely by release.
type CoverFinder interface {
	FindCover(ctx context.Context, artist, album, releaseID string) (string, error)
}

// ProducerOption configures a Producer.
type ProducerOption func(*Producer)

// WithCoverFinder consults finder for tracks without local artwork.
func WithCoverFinder(finder CoverFinder) ProducerOption {
	return func(p *Producer) { p.finder = finder }
}

// Producer implements artcache.Producer: load, preprocess, upload.
type Producer struct {
	uploader Host
	finder   CoverFinder
	size     int
	log      *zap.Logger
}

// NewProducer creates a producer. size <= 0 uses DefaultSize.
func NewProducer(uploader Host, size int, log *zap.Logger, opts ...ProducerOption) *Producer {
	if size <= 0 {
		size = DefaultSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &Producer{uploader: uploader, size: size, log: log}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Produce returns the hosted artwork URL for t.
func (p *Producer) Produce(ctx context.Context, t *track.Track) (string, error) {
	if t.ArtworkURL != "" {
		return t.ArtworkURL, nil
	}
	if t.Artwork == nil {
		return p.lookup(ctx, t)
	}

	data, err := t.Artwork(ctx)
	if err != nil {
		return "", fmt.Errorf("load artwork: %w", err)
	}
	if len(data) == 0 {
		return p.lookup(ctx, t)
	}

	img, err := Preprocess(data, p.size)
	if err != nil {
		// Formats the image package cannot decode are uploaded unchanged.
		p.log.Debug("artwork preprocessing skipped", zap.Stringer("track", t), zap.Error(err))
		img = data
	}

	p.log.Info("uploading artwork", zap.Stringer("track", t), zap.Int("bytes", len(img)))
	url, err := p.uploader.Upload(ctx, img)
	if err != nil {
		return "", fmt.Errorf("upload artwork: %w", err)
	}
	return url, nil
}

func (p *Producer) lookup(ctx context.Context, t *track.Track) (string, error) {
	if p.finder == nil {
		return "", artcache.ErrNoArtwork
	}
	url, err := p.finder.FindCover(ctx, t.Artist, t.Album, t.ReleaseID)
	if errors.Is(err, musicbrainz.ErrNotFound) {
		return "", artcache.ErrNoArtwork
	}
	if err != nil {
		return "", fmt.Errorf("look up cover: %w", err)
	}
	p.log.Debug("found remote cover", zap.Stringer("track", t), zap.String("url", url))
	return url, nil
}
