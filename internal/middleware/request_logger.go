package middleware

import (
	"strings"
	"time"

	"github.com/damoang/campaign-chronicle/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestIDKey is the gin context key holding the request id
const RequestIDKey = "request_id"

// mutationSourceHeader mirrors handler.MutationSourceHeader (middleware must not import handler)
const mutationSourceHeader = "X-Mutation-Source"

// RequestLogger logs every request with its request id, route template and,
// for writes, the campaign and mutation source involved.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()[:8]
		}
		c.Set(RequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		status := c.Writer.Status()
		log := logger.WithRequestID(requestID)

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		default:
			event = log.Info()
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		// campaign scoped routes use :id or :campaignId
		campaignID := c.Param("campaignId")
		if campaignID == "" && strings.HasPrefix(c.FullPath(), "/api/campaigns/:id") {
			campaignID = c.Param("id")
		}
		if campaignID != "" {
			event = event.Str("campaign_id", campaignID)
		}
		if source := c.GetHeader(mutationSourceHeader); source != "" && c.Request.Method != "GET" {
			event = event.Str("mutation_source", source)
		}

		event.
			Str("method", c.Request.Method).
			Str("route", routeLabel(c.FullPath())).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("body_size", c.Writer.Size()).
			Msg("request")
	}
}
