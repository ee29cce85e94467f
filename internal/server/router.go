package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ust-cache/ust-cache/internal/cache"
)

// DocumentSource describes the cache operations exposed over HTTP. It allows
// injecting fake sources during tests.
type DocumentSource interface {
	FetchDecoded(ctx context.Context, url string) (cache.Document, error)
	Entries() []cache.Entry
}

// SerializedSource guards a DocumentSource with a mutex so concurrent HTTP
// requests never overlap inside the cache manager.
type SerializedSource struct {
	mu     sync.Mutex
	source DocumentSource
}

// NewSerializedSource wraps source; wrapping an already serialized source
// returns it unchanged.
func NewSerializedSource(source DocumentSource) *SerializedSource {
	if s, ok := source.(*SerializedSource); ok {
		return s
	}
	return &SerializedSource{source: source}
}

// FetchDecoded makes SerializedSource satisfy DocumentSource.
func (s *SerializedSource) FetchDecoded(ctx context.Context, url string) (cache.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source.FetchDecoded(ctx, url)
}

// Entries makes SerializedSource satisfy DocumentSource.
func (s *SerializedSource) Entries() []cache.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source.Entries()
}

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger     *logrus.Logger
	Source     DocumentSource
	ListenPort int
}

const contextKeyRequestID = "_ustcache_request_id"

// NewApp builds a Fiber application serving decoded documents with
// structured error handling.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Source == nil {
		return nil, errors.New("document source is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	source := NewSerializedSource(opts.Source)

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	app.Get("/documents", func(c fiber.Ctx) error {
		return serveDocument(c, source, opts.Logger)
	})

	return app, nil
}

// requestIDMiddleware 为每个请求生成 ID，写入 Locals 与响应头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

func serveDocument(c fiber.Ctx, source DocumentSource, logger *logrus.Logger) error {
	target := strings.TrimSpace(c.Query("url"))
	if target == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url_required"})
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	doc, err := source.FetchDecoded(ctx, target)
	if err != nil {
		status, code := classifyError(err)
		logger.WithError(err).WithFields(logrus.Fields{
			"action":     "serve_document",
			"url":        target,
			"request_id": RequestID(c),
			"error_code": code,
		}).Warn("document_failed")
		return c.Status(status).JSON(fiber.Map{"error": code, "detail": err.Error()})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(doc.Raw())
}

// classifyError 将缓存错误映射为 HTTP 状态码与稳定的错误码。
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, cache.ErrFetchFailed):
		return fiber.StatusBadGateway, "fetch_failed"
	case errors.Is(err, cache.ErrMetadataMissing):
		return fiber.StatusUnprocessableEntity, "metadata_missing"
	case errors.Is(err, cache.ErrDecompressionFailed):
		return fiber.StatusUnprocessableEntity, "decompression_failed"
	case errors.Is(err, cache.ErrMalformedContent):
		return fiber.StatusUnprocessableEntity, "malformed_content"
	default:
		return fiber.StatusInternalServerError, "internal_error"
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
