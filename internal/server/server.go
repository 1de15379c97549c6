package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ivlev/mapvideo/internal/engine"
	"github.com/ivlev/mapvideo/internal/regions"
)

// VideoProducer is the engine surface the HTTP layer needs.
type VideoProducer interface {
	ProduceVideo(ctx context.Context, region regions.Region, durationSeconds int, days *int) (engine.Video, error)
}

// Server exposes the video pipeline over HTTP.
type Server struct {
	producer VideoProducer
	docsURL  string
	log      *slog.Logger
}

func New(producer VideoProducer, docsURL string, log *slog.Logger) *Server {
	return &Server{producer: producer, docsURL: docsURL, log: log}
}

// Router wires the routes. Video production can take minutes on a cold
// cache, so handlers run the full request under the request context.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/", s.handleRoot)
	r.GET("/map/:region/video/:duration", s.handleVideo)
	r.GET("/map/:region/video/:duration/:days", s.handleVideo)

	return r
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name": "mapvideo",
		"docs": s.docsURL,
	})
}

func (s *Server) handleVideo(c *gin.Context) {
	region, err := regions.Parse(c.Param("region"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	duration, err := strconv.Atoi(c.Param("duration"))
	if err != nil {
		typeErr := engine.NewTypeError(":duration")
		c.JSON(http.StatusBadRequest, gin.H{"error": typeErr.Error()})
		return
	}

	var days *int
	if raw := c.Param("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			typeErr := engine.NewTypeError(":days")
			c.JSON(http.StatusBadRequest, gin.H{"error": typeErr.Error()})
			return
		}
		days = &n
	}

	video, err := s.producer.ProduceVideo(c.Request.Context(), region, duration, days)
	if err != nil {
		s.writeError(c, region, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

func (s *Server) writeError(c *gin.Context, region regions.Region, err error) {
	var rangeErr *engine.RangeError
	var typeErr *engine.TypeError
	switch {
	case errors.As(err, &rangeErr):
		c.JSON(http.StatusRequestedRangeNotSatisfiable, gin.H{"error": rangeErr.Message})
	case errors.As(err, &typeErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": typeErr.Message})
	default:
		s.log.Error("video production failed", "region", region, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "video production failed"})
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start),
		)
	}
}
