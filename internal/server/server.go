// Package server exposes the pipeline to the ASR/TTS/UI layer. The only
// contract here is the assist endpoint: transcribed text in, answer plus
// ranked products out. Audio never reaches this process.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voiceshop/assistant/config"
	"github.com/voiceshop/assistant/internal/pipeline"
	"github.com/voiceshop/assistant/internal/registry"
	"github.com/voiceshop/assistant/internal/store"
	"github.com/voiceshop/assistant/internal/telemetry"
	"github.com/voiceshop/assistant/internal/toolclient"
	"github.com/voiceshop/assistant/internal/toolset"
	"github.com/voiceshop/assistant/models"
	"github.com/voiceshop/assistant/provider"
)

type assistRequest struct {
	Transcript string `json:"transcript"`
}

type assistResponse struct {
	Transcript string           `json:"transcript"`
	Answer     string           `json:"answer"`
	Products   []models.Product `json:"products"`
	Citations  models.Citations `json:"citations"`
	Degraded   bool             `json:"degraded"`
}

// Run wires the registry, pipeline, and optional stores, then serves HTTP.
func Run(cfg *config.Config) error {
	logger := log.New(os.Stdout, "[SERVER] ", log.LstdFlags)

	reg, err := toolset.Build(cfg, log.New(os.Stdout, "[TOOLS] ", log.LstdFlags))
	if err != nil {
		return err
	}

	tel := telemetry.New(prometheus.DefaultRegisterer)
	orch := buildOrchestrator(cfg, reg, tel)

	if cfg.Storage.Postgres.Enabled() {
		dsn := cfg.Storage.Postgres.DSN()
		if err := store.Migrate("file://migrations", dsn); err != nil {
			return err
		}
		st, err := store.New(context.Background(), dsn)
		if err != nil {
			return err
		}
		defer st.Close()
		orch.AttachTurnStore(st)
		logger.Printf("turn log enabled")
	}

	e := newEcho(logger)
	registerRoutes(e, orch, reg)

	logger.Printf("listening on %s", cfg.Server.Address)
	return e.Start(cfg.Server.Address)
}

// buildOrchestrator assembles the four stages. Rule-based stages are the
// default; configuring an LLM provider swaps the router and answerer for
// their model-backed variants behind the same interfaces.
func buildOrchestrator(cfg *config.Config, reg *registry.Registry, tel *telemetry.Telemetry) *pipeline.Orchestrator {
	logger := log.New(os.Stdout, "[PIPELINE] ", log.LstdFlags)

	ruleRouter := pipeline.NewRuleRouter(cfg.Pipeline)
	planner := pipeline.NewRulePlanner(cfg.Pipeline)
	retriever := pipeline.NewRetriever(toolclient.NewLocal(reg), cfg.Pipeline, logger, tel)

	var router pipeline.Router = ruleRouter
	var answerer pipeline.Answerer = pipeline.NewRuleAnswerer()
	if cfg.LLM.Provider != "" {
		if p, err := provider.NewProvider(cfg.LLM); err != nil {
			logger.Printf("llm provider unavailable, staying rule-based: %v", err)
		} else {
			router = pipeline.NewLLMRouter(p, ruleRouter, logger)
			answerer = pipeline.NewLLMAnswerer(p, logger)
		}
	}

	return pipeline.NewOrchestrator(cfg.Pipeline, logger, tel, router, planner, retriever, answerer)
}

func newEcho(logger *log.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
	}))
	return e
}

func registerRoutes(e *echo.Echo, orch *pipeline.Orchestrator, reg *registry.Registry) {
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/api/tools", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"tools": reg.List()})
	})
	e.POST("/api/assist", assistHandler(orch))
}

func assistHandler(orch *pipeline.Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req assistRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if req.Transcript == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "transcript is required")
		}

		state, err := orch.ProcessQuery(c.Request().Context(), req.Transcript)
		if err != nil {
			// The pipeline only errors on caller mistakes; everything else
			// degrades inside the turn.
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}

		products := state.Answer.Products
		if products == nil {
			products = models.RankedProductList{}
		}
		return c.JSON(http.StatusOK, assistResponse{
			Transcript: req.Transcript,
			Answer:     state.Answer.Text,
			Products:   products,
			Citations:  state.Answer.Citations,
			Degraded:   state.Answer.Degraded,
		})
	}
}
