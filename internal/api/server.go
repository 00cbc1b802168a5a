// Package api serves the CRUD surface over the relational store:
// publishers, feeds, channels, locales, and read access to stored
// articles. All routes sit behind a bearer token.
package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/infblueocean/newsriver/internal/store"
)

// Server wires the HTTP handlers to the store.
type Server struct {
	store *store.Store
	token string
}

func NewServer(s *store.Store, token string) *Server {
	return &Server{store: s, token: token}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api/v1", s.requireToken)
	{
		api.GET("/publishers", s.listPublishers)
		api.POST("/publishers", s.createPublisher)
		api.GET("/publishers/:id", s.getPublisher)
		api.PUT("/publishers/:id", s.updatePublisher)
		api.DELETE("/publishers/:id", s.deletePublisher)

		api.GET("/publishers/:id/feeds", s.listFeeds)
		api.POST("/publishers/:id/feeds", s.createFeed)
		api.DELETE("/feeds/:id", s.deleteFeed)

		api.GET("/channels", s.listChannels)
		api.POST("/channels", s.createChannel)

		api.GET("/locales", s.listLocales)
		api.POST("/locales", s.createLocale)

		api.GET("/articles", s.listArticles)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func (s *Server) requireToken(c *gin.Context) {
	if c.GetHeader("Authorization") != "Bearer "+s.token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.Next()
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (s *Server) listPublishers(c *gin.Context) {
	publishers, err := s.store.Publishers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, publishers)
}

func (s *Server) createPublisher(c *gin.Context) {
	var p store.Publisher
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := s.store.CreatePublisher(c.Request.Context(), p)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) getPublisher(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	p, err := s.store.PublisherByID(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "publisher not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) updatePublisher(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var p store.Publisher
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p.ID = id
	err := s.store.UpdatePublisher(c.Request.Context(), p)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "publisher not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) deletePublisher(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	err := s.store.DeletePublisher(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "publisher not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listFeeds(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	feeds, err := s.store.FeedsForPublisher(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, feeds)
}

func (s *Server) createFeed(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var f store.Feed
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f.PublisherID = id
	created, err := s.store.CreateFeed(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) deleteFeed(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	err := s.store.DeleteFeed(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "feed not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listChannels(c *gin.Context) {
	channels, err := s.store.Channels(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, channels)
}

func (s *Server) createChannel(c *gin.Context) {
	var body struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ch, err := s.store.EnsureChannel(c.Request.Context(), body.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, ch)
}

func (s *Server) listLocales(c *gin.Context) {
	locales, err := s.store.Locales(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, locales)
}

func (s *Server) createLocale(c *gin.Context) {
	var body struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	loc, err := s.store.CreateLocale(c.Request.Context(), body.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, loc)
}

func (s *Server) listArticles(c *gin.Context) {
	locale := c.DefaultQuery("locale", "en_US")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	articles, err := s.store.RecentArticles(c.Request.Context(), locale, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, articles)
}
