package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"

	"sjsage522/pricewatch/internal/analytics"
	"sjsage522/pricewatch/logger"
	"sjsage522/pricewatch/services/worker"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Reader answers the catalog queries
type Reader interface {
	ListProducts(ctx context.Context, filter analytics.ProductFilter) ([]analytics.ProductView, error)
	Dashboard(ctx context.Context) (analytics.Dashboard, error)
}

// SweepTrigger starts sweeps and reports the job record
type SweepTrigger interface {
	Start() (worker.SweepStatus, error)
	Status() worker.SweepStatus
}

// Server exposes the dashboard API over HTTP
type Server struct {
	addr   string
	reader Reader
	sweeps SweepTrigger
	router *gin.Engine
}

// NewServer creates a server and registers its routes
func NewServer(addr string, reader Reader, sweeps SweepTrigger) *Server {
	s := &Server{
		addr:   addr,
		reader: reader,
		sweeps: sweeps,
	}
	s.router = s.routes()
	return s
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/products", s.listProducts)
		api.GET("/dashboard", s.dashboard)

		scrape := api.Group("/scrape")
		scrape.POST("/start", s.startSweep)
		scrape.GET("/status", s.sweepStatus)
	}

	return r
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	log := logger.ForServer()

	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown failed")
		}
	}()

	log.Info().Str("address", s.addr).Msg("HTTP server started")

	if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}

	log.Info().Msg("HTTP server stopped")
	return nil
}

func (s *Server) listProducts(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	views, err := s.reader.ListProducts(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err, "Failed to list products")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": views})
}

func (s *Server) dashboard(c *gin.Context) {
	d, err := s.reader.Dashboard(c.Request.Context())
	if err != nil {
		s.fail(c, err, "Failed to build dashboard")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":                  true,
		"kpis":                     d.KPIs,
		"trafficLightDistribution": d.TrafficLightDistribution,
		"top10ByGrossProfit":       d.TopByGrossProfit,
		"needsAction":              d.NeedsAction,
		"marginBands":              d.MarginBands,
		"allProductsWithMetrics":   d.AllProductsWithMetrics,
	})
}

func (s *Server) startSweep(c *gin.Context) {
	status, err := s.sweeps.Start()
	if stderrors.Is(err, worker.ErrSweepRunning) {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error(), "status": status})
		return
	}
	if err != nil {
		s.fail(c, err, "Failed to start sweep")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true, "status": status})
}

func (s *Server) sweepStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "status": s.sweeps.Status()})
}

func (s *Server) fail(c *gin.Context, err error, msg string) {
	logger.ForServer().Error().Err(err).Str("path", c.FullPath()).Msg(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
}

// parseFilter reads search, minMargin and lights from the query string
func parseFilter(c *gin.Context) (analytics.ProductFilter, error) {
	filter := analytics.ProductFilter{Search: strings.TrimSpace(c.Query("search"))}

	if raw := strings.TrimSpace(c.Query("minMargin")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid minMargin %q", raw)
		}
		filter.MinMarginPct = &v
	}

	if raw := strings.TrimSpace(c.Query("lights")); raw != "" {
		known := []analytics.TrafficLight{
			analytics.TrafficLightGreen,
			analytics.TrafficLightYellow,
			analytics.TrafficLightRed,
			analytics.TrafficLightGray,
		}
		for _, part := range strings.Split(raw, ",") {
			light := analytics.TrafficLight(strings.ToLower(strings.TrimSpace(part)))
			if light == "" {
				continue
			}
			if !lo.Contains(known, light) {
				return filter, fmt.Errorf("unknown traffic light %q", part)
			}
			filter.Lights = append(filter.Lights, light)
		}
		filter.Lights = lo.Uniq(filter.Lights)
	}

	return filter, nil
}

// requestLogger logs one line per request
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := logger.ForServer().Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = logger.ForServer().Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("HTTP request")
	}
}
