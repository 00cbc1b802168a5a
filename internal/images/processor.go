package images

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"os"
	"path/filepath"

	"github.com/infblueocean/newsriver/internal/logging"
	"github.com/infblueocean/newsriver/internal/model"
)

// Output dimensions and size cap for cached images. Every cached file
// is byte-padded to exactly TargetFileSize so the CDN reveals nothing
// about the content through its length.
const (
	TargetWidth    = 1168
	TargetHeight   = 657
	TargetFileSize = 250000
	TargetQuality  = 80
)

// Transformer resizes an image to fit width x height, pads the canvas,
// and encodes it into at most maxSize bytes at the given quality.
type Transformer interface {
	ResizeAndPad(data []byte, width, height, maxSize, quality int) ([]byte, error)
}

// ObjectStore is the subset of blob storage the image cache needs.
type ObjectStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// Processor caches oversize images under a content-addressed name,
// locally and in the object store.
type Processor struct {
	cacheDir    string
	store       ObjectStore
	storePrefix string
	pcdnBase    string
	transformer Transformer
	noUpload    bool
}

// ProcessorConfig wires a Processor. Store may be nil when uploads
// are disabled.
type ProcessorConfig struct {
	CacheDir    string
	Store       ObjectStore
	StorePrefix string
	PCDNBase    string
	Transformer Transformer
	NoUpload    bool
}

func NewProcessor(cfg ProcessorConfig) *Processor {
	return &Processor{
		cacheDir:    cfg.CacheDir,
		store:       cfg.Store,
		storePrefix: cfg.StorePrefix,
		pcdnBase:    cfg.PCDNBase,
		transformer: cfg.Transformer,
		noUpload:    cfg.NoUpload,
	}
}

// CacheKey is the content-addressed cache name for an image URL.
func CacheKey(imageURL string) string {
	sum := sha256.Sum256([]byte(imageURL))
	return hex.EncodeToString(sum[:]) + ".jpg.pad"
}

// Process resolves the padded image for one article. Images that fit
// the size budget pass through with the original URL; oversize ones
// are transformed and cached, and the padded URL points at the CDN.
// Any failure empties both image fields.
func (p *Processor) Process(ctx context.Context, f Fetched) *model.Article {
	out := f.Article.Clone()
	if out.ImageURL == "" {
		out.PaddedImageURL = ""
		return out
	}
	if !f.Oversize {
		out.PaddedImageURL = out.ImageURL
		return out
	}

	cacheFn, err := p.cacheImage(ctx, out.ImageURL, f.Data)
	if err != nil {
		logging.Debug("Image caching failed", "url", out.ImageURL, "err", err)
		out.ImageURL = ""
		out.PaddedImageURL = ""
		return out
	}

	if u, err := url.Parse(cacheFn); err == nil && u.Scheme != "" {
		out.PaddedImageURL = cacheFn
	} else {
		out.PaddedImageURL = p.pcdnBase + "/" + p.storePrefix + cacheFn
	}
	return out
}

// cacheImage returns the cache filename for the image, transforming
// and storing it if neither the local cache nor the object store has
// it yet.
func (p *Processor) cacheImage(ctx context.Context, imageURL string, data []byte) (string, error) {
	cacheFn := CacheKey(imageURL)
	cachePath := filepath.Join(p.cacheDir, cacheFn)

	if _, err := os.Stat(cachePath); err == nil {
		return cacheFn, nil
	}
	if !p.noUpload && p.store != nil {
		exists, err := p.store.Exists(ctx, p.storePrefix+cacheFn)
		if err != nil {
			logging.Warn("Object store lookup failed", "key", cacheFn, "err", err)
		} else if exists {
			return cacheFn, nil
		}
	}

	padded, err := p.transformer.ResizeAndPad(data, TargetWidth, TargetHeight, TargetFileSize, TargetQuality)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(cachePath, padded, 0o644); err != nil {
		return "", err
	}

	if !p.noUpload && p.store != nil {
		if err := p.store.Upload(ctx, p.storePrefix+cacheFn, padded); err != nil {
			return "", err
		}
	}
	return cacheFn, nil
}
