package routes

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/ust-cache/ust-cache/internal/cache"
	"github.com/ust-cache/ust-cache/internal/server"
)

// RegisterEntryRoutes 暴露 /-/entries 诊断接口，列出索引条目及其新鲜度。
func RegisterEntryRoutes(app *fiber.App, source server.DocumentSource, now func() time.Time) {
	if app == nil || source == nil {
		return
	}
	if now == nil {
		now = time.Now
	}

	app.Get("/-/entries", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"entries": encodeEntries(source.Entries(), now()),
		})
	})
}

type entryPayload struct {
	URL       string `json:"url"`
	Path      string `json:"path"`
	Timestamp int64  `json:"timestamp"`
	TTL       int64  `json:"ttl"`
	ExpiresAt string `json:"expires_at"`
	Expired   bool   `json:"expired"`
}

func encodeEntries(entries []cache.Entry, now time.Time) []entryPayload {
	result := make([]entryPayload, 0, len(entries))
	for _, entry := range entries {
		result = append(result, entryPayload{
			URL:       entry.URL,
			Path:      entry.Path,
			Timestamp: entry.Timestamp,
			TTL:       entry.TTL,
			ExpiresAt: entry.ExpiresAt().Format(time.RFC3339),
			Expired:   entry.IsExpired(now),
		})
	}
	return result
}
