package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"solax-flow/internal/collector"
	"solax-flow/internal/inverter"
	"solax-flow/internal/layout"
	"solax-flow/internal/metrics"
	"solax-flow/internal/storage"
)

type Server struct {
	router    *gin.Engine
	server    *http.Server
	collector *collector.Collector
	db        *storage.Database
	boxes     *layout.Registry
	metrics   *metrics.Metrics
	hub       *Hub
	port      int
	webPath   string
	log       zerolog.Logger
}

type ServerConfig struct {
	Port      int
	Collector *collector.Collector
	Database  *storage.Database
	Boxes     *layout.Registry
	Metrics   *metrics.Metrics
	Hub       *Hub
	WebPath   string
	Logger    zerolog.Logger
}

func NewServer(cfg ServerConfig) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	log := cfg.Logger.With().Str("component", "api").Logger()
	router.Use(requestLogger(log))

	s := &Server{
		router:    router,
		collector: cfg.Collector,
		db:        cfg.Database,
		boxes:     cfg.Boxes,
		metrics:   cfg.Metrics,
		hub:       cfg.Hub,
		port:      cfg.Port,
		webPath:   cfg.WebPath,
		log:       log,
	}
	if s.boxes == nil {
		s.boxes = layout.NewRegistry()
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.serveWeb()

	s.router.GET("/health", s.healthHandler)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := s.router.Group("/api/v1")
	{
		api.GET("/status", s.statusHandler)
		api.GET("/surface", s.surfaceHandler)
		api.GET("/layout", s.layoutHandler)
		api.POST("/viewport", s.viewportHandler)
		if s.hub != nil {
			api.GET("/ws", gin.WrapH(s.hub))
		}
	}
}

// serveWeb mounts the dashboard assets when web_path points at a directory.
func (s *Server) serveWeb() {
	if s.webPath == "" {
		return
	}
	if info, err := os.Stat(s.webPath); err != nil || !info.IsDir() {
		s.log.Debug().Str("web_path", s.webPath).Msg("no dashboard assets")
		return
	}
	s.router.Static("/static", s.webPath)
	index := filepath.Join(s.webPath, "index.html")
	if _, err := os.Stat(index); err == nil {
		s.router.StaticFile("/", index)
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info().Int("port", s.port).Msg("API server starting")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) healthHandler(c *gin.Context) {
	snap, _, ok := s.collector.GetLatest()

	resp := gin.H{
		"status":     "healthy",
		"collecting": s.collector.IsCollecting(),
		"has_data":   ok,
		"timestamp":  time.Now(),
	}
	if ok {
		resp["left_online"] = snap.Left.IsOnline()
		resp["right_online"] = snap.Right.IsOnline()
		resp["updated_at"] = snap.Timestamp
	}
	if s.hub != nil {
		resp["ws_clients"] = s.hub.Clients()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) statusHandler(c *gin.Context) {
	snap, visual, ok := s.collector.GetLatest()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  "No data available yet",
			"visual": visual,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"snapshot": snap,
		"visual":   visual,
	})
}

func (s *Server) surfaceHandler(c *gin.Context) {
	kind := c.Query("kind")
	switch kind {
	case "", storage.KindTile, storage.KindWire, storage.KindText, storage.KindRect:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown slot kind %q", kind)})
		return
	}

	if s.db == nil {
		frame := s.collector.Projector().Current().Patch()
		c.JSON(http.StatusOK, storage.SelectSlots(storage.Slots(frame, time.Now()), kind))
		return
	}

	slots, err := s.db.GetSlots(c.Request.Context(), kind)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, slots)
}

func (s *Server) layoutHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sides": s.collector.GetGeometry(),
		"runs":  s.collector.LayoutRuns(),
	})
}

// ViewportSide is the box report of one side, in viewport coordinates.
type ViewportSide struct {
	Side inverter.Side `json:"side"`
	layout.Input
}

type ViewportRequest struct {
	Sides []ViewportSide `json:"sides" binding:"required,min=1"`
}

// viewportHandler records the reported boxes and requests a relayout. Reports
// are accepted even when incomplete; the layout pass skips such a side.
func (s *Server) viewportHandler(c *gin.Context) {
	var req ViewportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, vs := range req.Sides {
		if !vs.Side.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown side %q", vs.Side)})
			return
		}
	}

	for _, vs := range req.Sides {
		s.boxes.Set(vs.Side, vs.Input)
	}
	s.collector.Relayout()

	c.JSON(http.StatusAccepted, gin.H{"accepted": len(req.Sides)})
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
