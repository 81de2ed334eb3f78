package main

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/graphql-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"gorm.io/gorm"

	graphqlapi "clubmedia/internal/microservices/graphql-api"
	"clubmedia/internal/microservices/http-api/handler"
	"clubmedia/internal/microservices/http-api/middleware"
	"clubmedia/internal/txscope"
)

type routerDeps struct {
	Logger      *slog.Logger
	HTTPScope   *txscope.Coordinator[*gorm.DB]
	GraphQL     *graphql.Schema
	GQLScope    *txscope.Coordinator[*gorm.DB]
	Media       *handler.MediaHandler
	Clubs       *handler.ClubHandler
	Metrics     *prometheus.Registry // nil disables /metrics
	CORSOrigins []string
	Ready       func() error
}

func newRouter(d routerDeps) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(d.Logger))

	r.GET("/healthz", func(c *gin.Context) {
		if d.Ready != nil {
			if err := d.Ready(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Metrics, promhttp.HandlerOpts{})))
	}

	// every /api/v1 request runs in one transaction
	api := r.Group("/api/v1", txscope.Middleware(d.HTTPScope, d.Logger))
	d.Media.RegisterRoutes(api.Group("/media"))
	d.Clubs.RegisterRoutes(api.Group("/clubs"))

	// GraphQL opens its own scope from the plugin, not from the HTTP middleware
	gql := graphqlapi.NewHandler(d.GraphQL, d.Logger, txscope.NewGraphQLPlugin(d.GQLScope, d.Logger))
	r.POST("/graphql", gin.WrapH(gql))

	return cors.New(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	}).Handler(r)
}
