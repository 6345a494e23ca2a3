package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"mail-event-processor/internal/email/usecase"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// StatsProvider exposes processor outcome counters.
type StatsProvider interface {
	Stats() usecase.ProcessorStats
}

// QueueInspector exposes the event loop backlog.
type QueueInspector interface {
	QueueDepth() int
}

type Handler struct {
	stats     StatsProvider
	queue     QueueInspector
	providers []string
	settings  *RuntimeSettings
	opsToken  string
	startedAt time.Time
	log       zerolog.Logger

	mu     sync.Mutex
	server *http.Server
	closed bool
}

// NewHandler builds the ops API. opsToken guards the settings routes; when it
// is empty those routes refuse every request.
func NewHandler(stats StatsProvider, queue QueueInspector, providers []string, settings *RuntimeSettings, opsToken string, log zerolog.Logger) *Handler {
	return &Handler{
		stats:     stats,
		queue:     queue,
		providers: providers,
		settings:  settings,
		opsToken:  opsToken,
		startedAt: time.Now(),
		log:       log.With().Str("component", "ops_api").Logger(),
	}
}

// Router builds the gin engine with middleware and routes.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	// No CORS middleware
	SetupRoutes(r, h)
	return r
}

// Start serves until Shutdown is called. It returns immediately if Shutdown
// already ran.
func (h *Handler) Start(addr string) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	h.server = srv
	h.mu.Unlock()

	h.log.Info().Str("addr", addr).Msg("ops server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	srv := h.server
	h.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Stats returns processing counters
// GET /api/stats
func (h *Handler) Stats(c *gin.Context) {
	stats := h.stats.Stats()
	c.JSON(http.StatusOK, gin.H{
		"completed":      stats.Completed,
		"skipped":        stats.Skipped,
		"failed":         stats.Failed,
		"recent_ids":     stats.RecentIDs,
		"queue_depth":    h.queue.QueueDepth(),
		"ai_providers":   h.providers,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
