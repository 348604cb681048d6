package main

import (
	"log/slog"
	"time"

	"github.com/TomasB/geoheader/internal/handler/geoip"
	"github.com/TomasB/geoheader/internal/handler/health"
	"github.com/TomasB/geoheader/internal/proxy"
	"github.com/gin-gonic/gin"
)

// routes bundles the handlers mounted on the HTTP router.
type routes struct {
	geo    *geoip.Handler
	health *health.Handler
	// proxy serves unmatched routes when set.
	proxy *proxy.Proxy
}

func newRouter(logger *slog.Logger, r routes) *gin.Engine {
	router := gin.New()
	router.Use(ginLogger(logger))
	router.Use(gin.Recovery())

	router.GET("/health", r.health.Health)
	router.GET("/ready", r.health.Ready)

	router.GET("/geoip", r.geo.Synthetic)
	router.GET("/geoip/json", r.geo.SyntheticJSON)
	router.GET("/geoip/country", r.geo.SyntheticCountry)

	headers := router.Group("/geoip/header")
	{
		headers.GET("", r.geo.SetHeader(), r.geo.EchoHeader(geoip.HeaderGeoIP))
		headers.GET("/country", r.geo.SetCountryHeader(), r.geo.EchoHeader(geoip.HeaderGeoIP))
		headers.GET("/country-xff", r.geo.SetCountryHeaderXFF(), r.geo.EchoHeader(geoip.HeaderGeoIP))
		headers.GET("/country-only", r.geo.SetCountryOnlyHeader(), r.geo.EchoHeader(geoip.HeaderGeoIPCountry))
	}

	api := router.Group("/api/v1")
	{
		api.GET("/lookup/:ip", r.geo.Lookup)
	}

	if r.proxy != nil {
		router.NoRoute(r.geo.SetHeader(), r.geo.SetCountryOnlyHeader(), r.proxy.Handle)
	}
	return router
}

// ginLogger creates a Gin middleware that logs using slog
func ginLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		statusCode := c.Writer.Status()
		attrs := []any{
			"method", method,
			"path", path,
			"status", statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if geo := c.Request.Header.Get(geoip.HeaderGeoIPCountry); geo != "" {
			attrs = append(attrs, "country", geo)
		}

		switch {
		case len(c.Errors) > 0:
			logger.Error("request completed with errors", append(attrs, "errors", c.Errors.String())...)
		case statusCode >= 500:
			logger.Error("request completed", attrs...)
		case statusCode >= 400:
			logger.Warn("request completed", attrs...)
		default:
			logger.Info("request completed", attrs...)
		}
	}
}
