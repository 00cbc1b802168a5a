// Package store provides SQLite persistence for the aggregation
// pipeline and the CRUD API: publishers, feeds, channels, locales,
// and the articles each run produces.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/infblueocean/newsriver/internal/model"
)

// Store handles SQLite persistence. NOT an interface - concrete type.
// All methods are safe for concurrent use via internal mutex.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	ids *IDGenerator
}

// Publisher is a stored content source.
type Publisher struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	SiteURL     string `json:"site_url"`
	FaviconURL  string `json:"favicon_url,omitempty"`
	CoverURL    string `json:"cover_url,omitempty"`
	Category    string `json:"category"`
	ContentType string `json:"content_type"`
	Enabled     bool   `json:"enabled"`
}

// Feed is one endpoint of a publisher.
type Feed struct {
	ID          int64  `json:"id"`
	PublisherID int64  `json:"publisher_id"`
	URL         string `json:"url"`
	Enabled     bool   `json:"enabled"`
}

// Channel is an internal category label.
type Channel struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Locale is a regional edition of the feed.
type Locale struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Open creates a Store at the given database path, creating tables as
// needed. WAL mode is enabled for file-based databases.
func Open(dbPath string, shard uint8) (*Store, error) {
	connStr := dbPath + "?_pragma=foreign_keys(1)"
	if dbPath == ":memory:" {
		// Shared cache so every pooled connection sees one database.
		connStr = "file::memory:?cache=shared&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db, ids: NewIDGenerator(shard)}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS locales (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS publishers (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		site_url TEXT NOT NULL,
		favicon_url TEXT,
		cover_url TEXT,
		category TEXT,
		content_type TEXT NOT NULL DEFAULT 'article',
		enabled INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS feeds (
		id INTEGER PRIMARY KEY,
		publisher_id INTEGER NOT NULL REFERENCES publishers(id) ON DELETE CASCADE,
		url TEXT NOT NULL UNIQUE,
		enabled INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS channels (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS publisher_channels (
		publisher_id INTEGER NOT NULL REFERENCES publishers(id) ON DELETE CASCADE,
		channel_id INTEGER NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
		PRIMARY KEY (publisher_id, channel_id)
	);

	CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		url TEXT NOT NULL,
		url_hash TEXT NOT NULL,
		locale TEXT NOT NULL,
		publisher_id TEXT NOT NULL,
		publisher_name TEXT,
		category TEXT,
		content_type TEXT NOT NULL DEFAULT 'article',
		image_url TEXT,
		padded_image_url TEXT,
		pop_score REAL NOT NULL DEFAULT 1.0,
		score REAL NOT NULL DEFAULT 0,
		publish_time DATETIME NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (url_hash, locale)
	);

	CREATE TABLE IF NOT EXISTS article_channels (
		url_hash TEXT NOT NULL,
		locale TEXT NOT NULL,
		channel_id INTEGER NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
		PRIMARY KEY (url_hash, locale, channel_id)
	);

	CREATE INDEX IF NOT EXISTS idx_articles_publish_time ON articles(publish_time DESC);
	CREATE INDEX IF NOT EXISTS idx_articles_locale ON articles(locale);
	CREATE INDEX IF NOT EXISTS idx_feeds_publisher ON feeds(publisher_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// CreateLocale inserts a locale, returning the existing row when the
// name is already present.
func (s *Store) CreateLocale(ctx context.Context, name string) (Locale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, err := s.localeByName(ctx, name); err == nil {
		return existing, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return Locale{}, err
	}

	loc := Locale{ID: s.ids.Next(), Name: name}
	query, args, err := sq.Insert("locales").Columns("id", "name").
		Values(loc.ID, loc.Name).ToSql()
	if err != nil {
		return Locale{}, err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return Locale{}, fmt.Errorf("insert locale: %w", err)
	}
	return loc, nil
}

func (s *Store) localeByName(ctx context.Context, name string) (Locale, error) {
	query, args, err := sq.Select("id", "name").From("locales").
		Where(sq.Eq{"name": name}).ToSql()
	if err != nil {
		return Locale{}, err
	}
	var loc Locale
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&loc.ID, &loc.Name)
	return loc, err
}

// Locales lists all locales.
func (s *Store) Locales(ctx context.Context) ([]Locale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args, err := sq.Select("id", "name").From("locales").OrderBy("name").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Locale
	for rows.Next() {
		var loc Locale
		if err := rows.Scan(&loc.ID, &loc.Name); err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

// CreatePublisher inserts a publisher and returns it with its ID set.
func (s *Store) CreatePublisher(ctx context.Context, p Publisher) (Publisher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.ids.Next()
	if p.ContentType == "" {
		p.ContentType = model.ContentTypeArticle
	}
	query, args, err := sq.Insert("publishers").
		Columns("id", "name", "site_url", "favicon_url", "cover_url", "category", "content_type", "enabled").
		Values(p.ID, p.Name, p.SiteURL, p.FaviconURL, p.CoverURL, p.Category, p.ContentType, p.Enabled).
		ToSql()
	if err != nil {
		return Publisher{}, err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return Publisher{}, fmt.Errorf("insert publisher: %w", err)
	}
	return p, nil
}

// UpdatePublisher rewrites all mutable publisher fields.
func (s *Store) UpdatePublisher(ctx context.Context, p Publisher) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query, args, err := sq.Update("publishers").
		Set("name", p.Name).
		Set("site_url", p.SiteURL).
		Set("favicon_url", p.FaviconURL).
		Set("cover_url", p.CoverURL).
		Set("category", p.Category).
		Set("content_type", p.ContentType).
		Set("enabled", p.Enabled).
		Where(sq.Eq{"id": p.ID}).ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update publisher: %w", err)
	}
	return requireRow(res)
}

// PublisherByID fetches one publisher. Returns sql.ErrNoRows when absent.
func (s *Store) PublisherByID(ctx context.Context, id int64) (Publisher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args, err := sq.Select("id", "name", "site_url", "favicon_url", "cover_url", "category", "content_type", "enabled").
		From("publishers").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return Publisher{}, err
	}
	var p Publisher
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&p.ID, &p.Name, &p.SiteURL, &p.FaviconURL, &p.CoverURL, &p.Category, &p.ContentType, &p.Enabled)
	return p, err
}

// Publishers lists all publishers.
func (s *Store) Publishers(ctx context.Context) ([]Publisher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args, err := sq.Select("id", "name", "site_url", "favicon_url", "cover_url", "category", "content_type", "enabled").
		From("publishers").OrderBy("name").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Publisher
	for rows.Next() {
		var p Publisher
		if err := rows.Scan(&p.ID, &p.Name, &p.SiteURL, &p.FaviconURL, &p.CoverURL, &p.Category, &p.ContentType, &p.Enabled); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePublisher removes a publisher and, via cascade, its feeds and
// channel links.
func (s *Store) DeletePublisher(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query, args, err := sq.Delete("publishers").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete publisher: %w", err)
	}
	return requireRow(res)
}

// CreateFeed attaches a feed URL to a publisher.
func (s *Store) CreateFeed(ctx context.Context, f Feed) (Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f.ID = s.ids.Next()
	query, args, err := sq.Insert("feeds").
		Columns("id", "publisher_id", "url", "enabled").
		Values(f.ID, f.PublisherID, f.URL, f.Enabled).ToSql()
	if err != nil {
		return Feed{}, err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return Feed{}, fmt.Errorf("insert feed: %w", err)
	}
	return f, nil
}

// FeedsForPublisher lists a publisher's feeds.
func (s *Store) FeedsForPublisher(ctx context.Context, publisherID int64) ([]Feed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args, err := sq.Select("id", "publisher_id", "url", "enabled").
		From("feeds").Where(sq.Eq{"publisher_id": publisherID}).OrderBy("url").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Feed
	for rows.Next() {
		var f Feed
		if err := rows.Scan(&f.ID, &f.PublisherID, &f.URL, &f.Enabled); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteFeed removes one feed.
func (s *Store) DeleteFeed(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query, args, err := sq.Delete("feeds").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete feed: %w", err)
	}
	return requireRow(res)
}

// EnsureChannel inserts a channel name if new and returns its row.
func (s *Store) EnsureChannel(ctx context.Context, name string) (Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureChannelLocked(ctx, name)
}

func (s *Store) ensureChannelLocked(ctx context.Context, name string) (Channel, error) {
	query, args, err := sq.Select("id", "name").From("channels").
		Where(sq.Eq{"name": name}).ToSql()
	if err != nil {
		return Channel{}, err
	}
	var ch Channel
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&ch.ID, &ch.Name)
	if err == nil {
		return ch, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Channel{}, err
	}

	ch = Channel{ID: s.ids.Next(), Name: name}
	query, args, err = sq.Insert("channels").Columns("id", "name").
		Values(ch.ID, ch.Name).ToSql()
	if err != nil {
		return Channel{}, err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return Channel{}, fmt.Errorf("insert channel: %w", err)
	}
	return ch, nil
}

// Channels lists all channels.
func (s *Store) Channels(ctx context.Context) ([]Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args, err := sq.Select("id", "name").From("channels").OrderBy("name").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Channel
	for rows.Next() {
		var ch Channel
		if err := rows.Scan(&ch.ID, &ch.Name); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// UpsertArticle writes one article for a locale, replacing any row
// with the same url_hash.
func (s *Store) UpsertArticle(ctx context.Context, a *model.Article, locale string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query, args, err := sq.Insert("articles").
		Columns("id", "title", "description", "url", "url_hash", "locale",
			"publisher_id", "publisher_name", "category", "content_type",
			"image_url", "padded_image_url", "pop_score", "score", "publish_time").
		Values(s.ids.Next(), a.Title, a.Description, a.URL, a.URLHash, locale,
			a.PublisherID, a.PublisherName, a.Category, a.ContentType,
			a.ImageURL, a.PaddedImageURL, a.PopScore, a.Score, a.PublishTime.UTC()).
		Suffix(`ON CONFLICT (url_hash, locale) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			image_url = excluded.image_url,
			padded_image_url = excluded.padded_image_url,
			pop_score = excluded.pop_score,
			score = excluded.score,
			publish_time = excluded.publish_time`).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert article: %w", err)
	}
	return s.replaceArticleChannels(ctx, a.URLHash, locale, a.ExternalChannels)
}

// replaceArticleChannels rewrites the taxonomy channel rows for one
// article. Callers hold the store lock.
func (s *Store) replaceArticleChannels(ctx context.Context, urlHash, locale string, channels []string) error {
	query, args, err := sq.Delete("article_channels").
		Where(sq.Eq{"url_hash": urlHash, "locale": locale}).ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear article channels: %w", err)
	}

	for _, name := range channels {
		ch, err := s.ensureChannelLocked(ctx, name)
		if err != nil {
			return err
		}
		query, args, err := sq.Insert("article_channels").
			Columns("url_hash", "locale", "channel_id").
			Values(urlHash, locale, ch.ID).
			Suffix("ON CONFLICT DO NOTHING").ToSql()
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert article channel: %w", err)
		}
	}
	return nil
}

// ArticleChannels returns the taxonomy channel names stored for an
// article, sorted by name.
func (s *Store) ArticleChannels(ctx context.Context, urlHash, locale string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args, err := sq.Select("c.name").
		From("article_channels ac").
		Join("channels c ON c.id = ac.channel_id").
		Where(sq.Eq{"ac.url_hash": urlHash, "ac.locale": locale}).
		OrderBy("c.name").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// ArticleByHash returns the stored article for a hash and locale, or
// nil when none exists.
func (s *Store) ArticleByHash(ctx context.Context, urlHash, locale string) (*model.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args, err := articleSelect().
		Where(sq.Eq{"url_hash": urlHash, "locale": locale}).ToSql()
	if err != nil {
		return nil, err
	}
	a, err := scanArticle(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// RecentArticles lists the newest articles for a locale.
func (s *Store) RecentArticles(ctx context.Context, locale string, limit int) ([]*model.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args, err := articleSelect().
		Where(sq.Eq{"locale": locale}).
		OrderBy("publish_time DESC").
		Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// PurgeArticlesOlderThan deletes articles whose publish time is
// before the cutoff and returns the number removed.
func (s *Store) PurgeArticlesOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query, args, err := sq.Delete("articles").
		Where(sq.Lt{"publish_time": cutoff.UTC()}).ToSql()
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge articles: %w", err)
	}
	return res.RowsAffected()
}

func articleSelect() sq.SelectBuilder {
	return sq.Select("title", "description", "url", "url_hash",
		"publisher_id", "publisher_name", "category", "content_type",
		"image_url", "padded_image_url", "pop_score", "score", "publish_time").
		From("articles")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*model.Article, error) {
	var a model.Article
	var publishTime time.Time
	err := row.Scan(&a.Title, &a.Description, &a.URL, &a.URLHash,
		&a.PublisherID, &a.PublisherName, &a.Category, &a.ContentType,
		&a.ImageURL, &a.PaddedImageURL, &a.PopScore, &a.Score, &publishTime)
	if err != nil {
		return nil, err
	}
	a.PublishTime = model.NewStamp(publishTime)
	return &a, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
