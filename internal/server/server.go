// Package server exposes the document lifecycle over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/doklady/internal/artifact"
	"github.com/smallbiznis/doklady/internal/config"
	"github.com/smallbiznis/doklady/internal/document/domain"
	"github.com/smallbiznis/doklady/internal/observability/metrics"
	"github.com/smallbiznis/doklady/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(newEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func newEngine(log *zap.Logger, reg *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log.Named("http")))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return r
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine    *gin.Engine
	cfg       config.Config
	log       *zap.Logger
	documents domain.Service
	artifacts *artifact.Controller
	mailer    email.Provider
	metrics   *metrics.Recorder
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	Log       *zap.Logger
	Documents domain.Service
	Artifacts *artifact.Controller
	Mailer    email.Provider
	Metrics   *metrics.Recorder `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		log:       p.Log.Named("server"),
		documents: p.Documents,
		artifacts: p.Artifacts,
		mailer:    p.Mailer,
		metrics:   p.Metrics,
	}

	s.registerDocumentRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerDocumentRoutes() {
	v1 := s.engine.Group("/v1")

	docs := v1.Group("/documents")
	{
		docs.POST("", s.CreateDocument)
		docs.GET("", s.ListDocuments)
		docs.GET("/:id", s.GetDocumentByID)
		docs.PATCH("/:id", s.UpdateDocument)
		docs.DELETE("/:id", s.DeleteDocument)

		docs.POST("/:id/invoice", s.DeriveInvoice)
		docs.POST("/:id/credit-note", s.DeriveCreditNote)

		docs.GET("/:id/pdf", s.GetDocumentPDF)
		docs.POST("/:id/send", s.SendDocument)
	}
}
