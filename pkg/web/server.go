// Package web exposes the feedback service over HTTP with gin: submission,
// notifications, ban status, and the JWT-protected admin surface.
package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/logger"
	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var requestCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pancy_http_requests",
	Help: "Number of HTTP requests by route and status",
}, []string{"method", "route", "status"})

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "pancy_http_request_duration_sec",
	Help:    "Duration of HTTP requests",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route"})

// Options configure the server
type Options struct {
	// WebhookURL receives a Discord embed per request; empty disables it
	WebhookURL string
	// AllowedHosts is a regexp on the Host header; empty allows every host
	AllowedHosts string
	// RateLimitPerMinute is the per-IP budget; 0 disables limiting
	RateLimitPerMinute int
}

// Server represents the web server
type Server struct {
	engine           *gin.Engine
	mu               sync.Mutex
	httpServer       *http.Server
	webhookURL       string
	allowedHostRegex *regexp.Regexp
	limiters         *expirable.LRU[string, *rate.Limiter]
	perMinute        int
	client           *http.Client
}

// NewServer creates a new web server
func NewServer(opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:     engine,
		webhookURL: opts.WebhookURL,
		perMinute:  opts.RateLimitPerMinute,
		limiters:   expirable.NewLRU[string, *rate.Limiter](10000, nil, 10*time.Minute),
		client:     &http.Client{Timeout: 5 * time.Second},
	}
	if opts.AllowedHosts != "" {
		s.allowedHostRegex = regexp.MustCompile(opts.AllowedHosts)
	}

	s.engine.Use(s.metricsMiddleware())
	s.engine.Use(s.logsMiddleware())
	s.engine.Use(s.rateLimitMiddleware())

	s.setupErrorHandlers()

	return s
}

// Engine returns the underlying Gin engine
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Group creates a new router group
func (s *Server) Group(path string, handlers ...gin.HandlerFunc) *gin.RouterGroup {
	return s.engine.Group(path, handlers...)
}

func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestCount.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// logsMiddleware logs every request and rejects hosts outside the allow list
func (s *Server) logsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		host := c.Request.Host

		if s.allowedHostRegex == nil || s.allowedHostRegex.MatchString(host) {
			logger.Debug(fmt.Sprintf("[LOG] Nueva solicitud: %s %s", c.Request.Method, c.Request.URL.Path), "WebServer")
			go s.sendLogToWebhook(c.Request.Method, c.Request.URL.Path, c.ClientIP(), false)
			c.Next()
			return
		}

		logger.Warn(fmt.Sprintf("[LOG] Solicitud Sospechosa: %s %s | %s", c.Request.Method, c.Request.URL.Path, c.ClientIP()), "WebServer")
		go s.sendLogToWebhook(c.Request.Method, c.Request.URL.Path, c.ClientIP(), true)
		c.AbortWithStatus(http.StatusForbidden)
	}
}

// sendLogToWebhook sends a request summary to the Discord webhook.
// Headers are left out on purpose: they carry bearer tokens.
func (s *Server) sendLogToWebhook(method, path, ip string, suspicious bool) {
	if s.webhookURL == "" {
		return
	}

	title := fmt.Sprintf("💫 | Nueva solicitud al servidor web de tipo %s", method)
	color := 0x00AE86

	if suspicious {
		title = fmt.Sprintf("💫 | Solicitud Sospechosa Rechazada: %s %s", method, path)
		color = 0xFFA500
	}

	payload := map[string]interface{}{
		"embeds": []interface{}{map[string]interface{}{
			"title":       title,
			"description": fmt.Sprintf("> **Ruta:** `%s`\n> **IP:** `%s`", path, ip),
			"color":       color,
			"timestamp":   time.Now().Format(time.RFC3339),
		}},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPost, s.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()
}

// limiterFor returns the token bucket of one client IP
func (s *Server) limiterFor(ip string) *rate.Limiter {
	if l, ok := s.limiters.Get(ip); ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(float64(s.perMinute)/60), s.perMinute)
	s.limiters.Add(ip, l)
	return l
}

// rateLimitMiddleware applies a per-IP token bucket
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.perMinute <= 0 {
			c.Next()
			return
		}

		if !s.limiterFor(c.ClientIP()).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Demasiadas solicitudes, por favor intente de nuevo más tarde.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// setupErrorHandlers sets up error handling routes
func (s *Server) setupErrorHandlers() {
	s.engine.HandleMethodNotAllowed = true

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Not Found",
			"message": "La ruta solicitada no existe.",
			"status":  404,
		})
	})

	s.engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error":   "Method Not Allowed",
			"message": "El método HTTP no está permitido para esta ruta.",
			"status":  405,
		})
	})
}

// Start serves on port until Shutdown is called
func (s *Server) Start(port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	logger.Info(fmt.Sprintf("🚀 Servidor escuchando en http://localhost:%s", port), "WebServer")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync(port string) {
	go func() {
		if err := s.Start(port); err != nil {
			logger.Error(fmt.Sprintf("Error starting web server: %v", err), "WebServer")
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
