// Package httpapi exposes the translation gateway over HTTP: synchronous
// text translation, asynchronous file-translation jobs, job status polling,
// the language catalog, and admin key management.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"horse.fit/polyglot/internal/db"
	"horse.fit/polyglot/internal/globaltime"
	"horse.fit/polyglot/internal/language"
	"horse.fit/polyglot/internal/pipeline"
	"horse.fit/polyglot/internal/translation"
)

// maxTargetLanguages mirrors the translation client's fan-out bound so the
// HTTP boundary can reject oversized requests before any work starts.
const maxTargetLanguages = translation.MaxTargetLanguages

// KeyStore is the API key CRUD surface. *db.Pool satisfies it.
type KeyStore interface {
	CreateAPIKey(ctx context.Context, key, description, createdBy string) (*db.APIKey, error)
	GetActiveAPIKey(ctx context.Context, key string) (*db.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]db.APIKey, error)
	DeactivateAPIKey(ctx context.Context, key string) error
}

// JobReader serves status polling. *db.Pool satisfies it.
type JobReader interface {
	GetJob(ctx context.Context, jobID string) (*db.TranslationJob, error)
	ListFiles(ctx context.Context, jobID string) ([]db.TranslationFile, error)
}

// Submitter accepts file-translation jobs. *pipeline.Service satisfies it.
type Submitter interface {
	SubmitFileJob(ctx context.Context, in pipeline.SubmitInput) (string, error)
}

// TextTranslator handles the synchronous text endpoints. *translation.Client
// satisfies it.
type TextTranslator interface {
	Translate(ctx context.Context, text, targetLang, sourceLang string) (string, error)
	TranslateMany(ctx context.Context, text string, targetLangs []string, sourceLang string) ([]translation.Result, error)
}

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AdminAccessKey  string
}

type Server struct {
	keys       KeyStore
	jobs       JobReader
	submitter  Submitter
	translator TextTranslator
	catalog    *language.Catalog
	logger     zerolog.Logger
	opts       Options
}

func NewServer(keys KeyStore, jobs JobReader, submitter Submitter, translator TextTranslator, catalog *language.Catalog, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8000
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 60 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &Server{
		keys:       keys,
		jobs:       jobs,
		submitter:  submitter,
		translator: translator,
		catalog:    catalog,
		logger:     logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			AdminAccessKey:  strings.TrimSpace(opts.AdminAccessKey),
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.keys == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.buildEcho()

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("polyglot gateway started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("polyglot gateway stopped")
	return nil
}

// buildEcho wires middleware and routes. Split from Start so handler tests
// can drive the full router without a listener.
func (s *Server) buildEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", apiKeyHeader},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	e.GET("/health", s.handleHealth)

	authed := e.Group("", s.requireKey())
	authed.POST("/translate/text", s.handleTranslateText)
	authed.POST("/translate/multi", s.handleTranslateMulti)
	authed.POST("/translate/file", s.handleTranslateFile)
	authed.POST("/translate/file/multi", s.handleTranslateFileMulti)
	authed.GET("/translation/status/:job_id", s.handleTranslationStatus)
	authed.GET("/languages", s.handleLanguages)
	authed.GET("/languages/flat", s.handleLanguagesFlat)

	admin := e.Group("/admin", s.requireKey(), s.requireAdmin())
	admin.POST("/generate-key", s.handleGenerateKey)
	admin.GET("/list-keys", s.handleListKeys)
	admin.POST("/deactivate-key", s.handleDeactivateKey)

	return e
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	detail := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				detail = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				detail = text
			}
		}
	} else if err != nil && status < http.StatusInternalServerError {
		detail = err.Error()
	}

	if status >= http.StatusInternalServerError {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, detail)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"service": "polyglot",
		"status":  "ok",
		"time":    globaltime.UTC(),
	})
}
