package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"atlas-of-us/backend/internal/agent"
	"atlas-of-us/backend/internal/constants"
	"atlas-of-us/backend/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// GenerateDomainRequest is the body of POST /api/agent/generate-domain
type GenerateDomainRequest struct {
	DomainName  string `json:"domainName" validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// domainGenerator starts pipeline runs
type domainGenerator interface {
	Start(domainName, description string) (<-chan agent.Event, string, error)
	HealthCheck(ctx context.Context) error
}

type handlers struct {
	generator domainGenerator
	validate  *validator.Validate
	keepAlive time.Duration
	log       *zap.Logger
}

func newRouter(generator domainGenerator, collector *metrics.Collector, log *zap.Logger) *gin.Engine {
	h := &handlers{
		generator: generator,
		validate:  validator.New(),
		keepAlive: constants.KeepAliveIntervalSeconds * time.Second,
		log:       log,
	}

	router := gin.New()
	router.Use(otelgin.Middleware(serviceName))
	router.Use(ginLogger(log, collector))
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(collector.Handler()))

	api := router.Group("/api/agent")
	{
		api.GET("/health", h.health)
		api.POST("/generate-domain", h.generateDomain)
	}

	return router
}

// health reports whether the text generator answers
func (h *handlers) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := h.generator.HealthCheck(ctx); err != nil {
		h.log.Warn("LLM health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "llm": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "llm": "ok"})
}

// generateDomain validates the request, starts a run and relays its events
// as server-sent events until the run closes its stream
func (h *handlers) generateDomain(c *gin.Context) {
	var req GenerateDomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	req.DomainName = strings.TrimSpace(req.DomainName)
	req.Description = strings.TrimSpace(req.Description)

	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return
	}

	events, runID, err := h.generator.Start(req.DomainName, req.Description)
	if err != nil {
		if errors.Is(err, agent.ErrTooManyRuns) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many generations in progress, try again later"})
			return
		}
		h.log.Error("Failed to start domain generation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start generation"})
		return
	}

	h.log.Info("Domain generation started",
		zap.String("run_id", runID),
		zap.String("domain", req.DomainName),
	)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Header("X-Run-ID", runID)

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("message", ev)
			return true
		case <-ticker.C:
			_, err := io.WriteString(w, ": ping\n\n")
			return err == nil
		case <-c.Request.Context().Done():
			h.log.Info("Client disconnected, run continues in background", zap.String("run_id", runID))
			return false
		}
	})
}

// validationMessage turns validator errors into one readable line
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fieldName(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s must be %s %s characters", field, boundWord(fe.Tag()), fe.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

func fieldName(structField string) string {
	switch structField {
	case "DomainName":
		return "domainName"
	case "Description":
		return "description"
	}
	return structField
}

func boundWord(tag string) string {
	if tag == "min" {
		return "at least"
	}
	return "at most"
}

// ginLogger is a custom logger middleware for Gin that also feeds the HTTP metrics
func ginLogger(log *zap.Logger, collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		collector.ObserveHTTP(c.Request.Method, route, strconv.Itoa(status), latency)

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
