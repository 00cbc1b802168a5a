// Package resolve follows article links through their redirect chains
// and assigns each article its canonical URL and content hash.
package resolve

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/infblueocean/newsriver/internal/fetch"
	"github.com/infblueocean/newsriver/internal/logging"
	"github.com/infblueocean/newsriver/internal/model"
)

// ArticleFinder looks up a previously stored article by its URL hash.
// Implemented by the store; a nil finder disables the lookup.
type ArticleFinder interface {
	ArticleByHash(ctx context.Context, urlHash, locale string) (*model.Article, error)
}

// Resolver canonicalizes article links. An article whose link cannot
// be resolved is dropped from the run.
type Resolver struct {
	client *http.Client
	finder ArticleFinder
	locale string
}

func New(client *http.Client, finder ArticleFinder, locale string) *Resolver {
	return &Resolver{client: client, finder: finder, locale: locale}
}

// Result carries one resolved article. Cached is set when the article
// was found in the store under the same hash, in which case Article is
// the stored record and the entry needs no further enrichment.
type Result struct {
	Article *model.Article
	Cached  bool
}

// Resolve follows redirects on the article link, sets URL and URLHash
// from the final destination, and clears the pre-resolution link. When
// a finder is configured and already holds the hash, the stored
// article is returned instead.
func (r *Resolver) Resolve(ctx context.Context, article *model.Article) *Result {
	final, err := r.finalURL(ctx, article.Link)
	if err != nil {
		logging.Debug("Dropping unresolvable article",
			"link", article.Link, "publisher", article.PublisherID, "err", err)
		return nil
	}

	hash := model.HashURL(final)

	if r.finder != nil {
		stored, err := r.finder.ArticleByHash(ctx, hash, r.locale)
		if err != nil {
			logging.Warn("Article lookup failed", "url_hash", hash, "err", err)
		} else if stored != nil {
			return &Result{Article: stored, Cached: true}
		}
	}

	out := article.Clone()
	out.URL = final
	out.URLHash = hash
	out.Link = ""
	return &Result{Article: out}
}

// finalURL issues a GET and reports the URL the request ended up at
// after redirects, in percent-encoded form.
func (r *Resolver) finalURL(ctx context.Context, link string) (string, error) {
	if _, err := url.Parse(link); err != nil {
		return "", fmt.Errorf("parse link: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", fetch.RandomUserAgent())

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("resolve %s: status %d", link, resp.StatusCode)
	}
	return resp.Request.URL.String(), nil
}
