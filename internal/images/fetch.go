// Package images runs the article image pipeline: download, reject
// tiny images, fall back to page metadata, then resize/pad and cache
// the result under a content-addressed name. Every failure path
// degrades to empty image fields; articles are never dropped here.
package images

import (
	"bytes"
	"context"
	"image"
	"io"
	"net/http"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/infblueocean/newsriver/internal/fetch"
	"github.com/infblueocean/newsriver/internal/logging"
	"github.com/infblueocean/newsriver/internal/model"
)

// DefaultMaxImageBytes marks images above this size for the
// resize/pad path; smaller originals are served as-is.
const DefaultMaxImageBytes = 1 << 20

// Fetched carries an article together with its downloaded image
// bytes. Oversize images go through the transform path; the rest pass
// through untouched.
type Fetched struct {
	Article  *model.Article
	Data     []byte
	Oversize bool
}

// Fetcher downloads article images.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

func NewFetcher(client *http.Client, maxBytes int64) *Fetcher {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &Fetcher{client: client, maxBytes: maxBytes}
}

// Fetch downloads the article's image. A failed download clears the
// image URL so later stages treat the article as imageless.
func (f *Fetcher) Fetch(ctx context.Context, article *model.Article) Fetched {
	out := Fetched{Article: article}
	if article.ImageURL == "" {
		return out
	}

	data, oversize, err := f.get(ctx, article.ImageURL)
	if err != nil {
		logging.Debug("Image download failed", "url", article.ImageURL, "err", err)
		out.Article = article.Clone()
		out.Article.ImageURL = ""
		return out
	}
	out.Data = data
	out.Oversize = oversize
	return out
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (data []byte, oversize bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", fetch.RandomUserAgent())

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, &httpStatusError{status: resp.StatusCode, url: rawURL}
	}
	if resp.ContentLength > f.maxBytes {
		oversize = true
	}

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > f.maxBytes {
		oversize = true
	}
	return data, oversize, nil
}

type httpStatusError struct {
	status int
	url    string
}

func (e *httpStatusError) Error() string {
	return "fetch image " + e.url + ": status " + http.StatusText(e.status)
}

// CheckSmall clears the image URL when both dimensions are below
// minSize, or when the bytes do not decode as an image at all.
func CheckSmall(f Fetched, minSize int) Fetched {
	if f.Article.ImageURL == "" || len(f.Data) == 0 {
		return f
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(f.Data))
	if err != nil || (cfg.Width < minSize && cfg.Height < minSize) {
		out := f
		out.Article = f.Article.Clone()
		out.Article.ImageURL = ""
		out.Data = nil
		out.Oversize = false
		return out
	}
	return f
}
