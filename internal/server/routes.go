package server

import (
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"ai-diet-planner/internal/metrics"
	"ai-diet-planner/internal/planner"
	"ai-diet-planner/internal/shared"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"

	msgGenerateFailed = "Failed to generate meal plan"
	msgInvalidBody    = "invalid request body"
	msgUnauthorized   = "unauthorized"
)

type errorResponse struct {
	Error string `json:"error"`
}

// RegisterRoutes builds the echo router.
func (s *Server) RegisterRoutes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Use(LoggerMiddleware)
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentType, requestIDHeader},
	}))

	e.GET("/", s.statusHandler)
	e.GET("/health", s.healthHandler)

	var guard []echo.MiddlewareFunc
	if s.tokens != nil {
		guard = append(guard, s.bearerAuth)
	}
	e.POST("/generate-meal-plan", s.generateMealPlanHandler, guard...)

	// Unknown paths fall back to the front-end entry point.
	e.GET("/*", echo.NotFoundHandler, middleware.StaticWithConfig(middleware.StaticConfig{
		Root:  s.cfg.StaticDir,
		Index: "index.html",
		HTML5: true,
	}))

	return e
}

// LoggerMiddleware assigns a request id, stores a request-scoped logger on
// the context and logs the request once it completes.
func LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Response().Header().Set(requestIDHeader, requestID)

		logger := log.With().Str("request_id", requestID).Logger()
		c.Set(loggerKey, &logger)

		start := time.Now()
		err := next(c)
		if err != nil {
			// Let the error handler write the response so the status is final.
			c.Error(err)
		}

		logger.Info().
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Int("status", c.Response().Status).
			Dur("latency", time.Since(start)).
			Msg("request")
		return nil
	}
}

// requestLogger returns the logger stored by LoggerMiddleware.
func requestLogger(c echo.Context) *zerolog.Logger {
	if logger, ok := c.Get(loggerKey).(*zerolog.Logger); ok {
		return logger
	}
	return &log.Logger
}

func (s *Server) bearerAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: msgUnauthorized})
		}

		claims, err := s.tokens.Validate(token)
		if err != nil {
			requestLogger(c).Warn().Err(err).Msg("rejected bearer token")
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: msgUnauthorized})
		}
		c.Set("subject", claims.Subject)
		return next(c)
	}
}

func (s *Server) statusHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "Service is up and running"})
}

func (s *Server) healthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, metrics.GetSysHealth(s.cfg.MetricsDBPath))
}

func (s *Server) generateMealPlanHandler(c echo.Context) error {
	logger := requestLogger(c)

	var req planner.MealPlanRequest
	if err := c.Bind(&req); err != nil {
		logger.Warn().Err(err).Msg("could not decode meal plan request")
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msgInvalidBody})
	}

	plan, meta, err := s.planner.GeneratePlan(c.Request().Context(), req)
	s.recordUsage(logger, meta, err)
	if err != nil {
		logger.Error().
			Err(err).
			Str("error_kind", planner.ErrorKind(err)).
			Msg("error generating meal plan")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: msgGenerateFailed})
	}

	for _, d := range plan.Deviations {
		logger.Warn().
			Str("section", d.Section).
			Str("line", d.Line).
			Str("reason", d.Reason).
			Msg("meal plan format deviation")
	}

	logger.Info().
		Int("sections", len(plan.Sections)).
		Int("total_tokens", meta.Usage.TotalTokens).
		Dur("llm_latency", meta.Latency).
		Msg("meal plan generated")

	return c.JSON(http.StatusOK, plan)
}

func (s *Server) recordUsage(logger *zerolog.Logger, meta shared.AgentMeta, genErr error) {
	if s.metrics == nil {
		return
	}
	outcome := metrics.OutcomeOK
	if genErr != nil {
		outcome = planner.ErrorKind(genErr)
	}
	if err := s.metrics.RecordOutcome(meta, outcome); err != nil {
		logger.Warn().Err(err).Msg("failed to record usage metric")
	}
}

// errorHandler renders unhandled errors as {"error": ...}. Server-side
// failures never expose their message.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := http.StatusText(code)

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		code = he.Code
		if m, ok := he.Message.(string); ok && code < http.StatusInternalServerError {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	case errors.Is(err, fs.ErrNotExist):
		code = http.StatusNotFound
		msg = http.StatusText(code)
	}

	if code >= http.StatusInternalServerError {
		requestLogger(c).Error().Err(err).Int("status", code).Msg("unhandled error")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, errorResponse{Error: msg})
	}
	if err != nil {
		requestLogger(c).Error().Err(err).Msg("failed to write error response")
	}
}
