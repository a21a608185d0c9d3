package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/julienbutty/prometrage-sub001/internal/http/middleware"
	"github.com/julienbutty/prometrage-sub001/internal/http/response"
	"github.com/julienbutty/prometrage-sub001/internal/metrics"
)

type RouterConfig struct {
	Environment    string
	AllowedOrigins []string
	Gatherer       prometheus.Gatherer
	Metrics        *metrics.Metrics
	Log            zerolog.Logger
	// Ping reports database health on /health; nil skips the check.
	Ping func(ctx context.Context) error
}

func NewRouter(handler *Handler, authMiddleware, limit gin.HandlerFunc, cfg RouterConfig) *gin.Engine {
	if strings.EqualFold(cfg.Environment, "production") {
		gin.SetMode(gin.ReleaseMode)
	}
	useJSONFieldNames()

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(cfg.Log, cfg.Metrics),
		cors.New(corsConfig(cfg.AllowedOrigins)),
	)

	router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.CodeNotFound, "route not found", nil)
	})

	router.GET("/health", func(c *gin.Context) {
		if cfg.Ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.Ping(ctx); err != nil {
				response.Fail(c, http.StatusServiceUnavailable, response.CodeServer, "database unavailable", nil)
				return
			}
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	handler.Register(router, authMiddleware, limit)
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.PasswordHeader, middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Disposition", "Retry-After", middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// useJSONFieldNames makes binding errors report JSON names instead of Go field names.
func useJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
}
