// Package fetch materializes remote documents on local disk for the cache.
// It understands http, https and file URLs and always writes through a temp
// file in the destination directory so a failed transfer never leaves a
// truncated file behind.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Fetcher 实现 cache.Fetcher。
type Fetcher struct {
	client    *http.Client
	logger    *logrus.Logger
	userAgent string
}

// New 构造 Fetcher；client 为空时使用默认超时的共享客户端。
func New(client *http.Client, logger *logrus.Logger, userAgent string) *Fetcher {
	if client == nil {
		client = NewClient(nil)
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Fetcher{
		client:    client,
		logger:    logger,
		userAgent: userAgent,
	}
}

// Fetch 将 rawURL 的完整内容写入 dest。
func (f *Fetcher) Fetch(ctx context.Context, rawURL, dest string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}

	var body io.ReadCloser
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		body, err = f.openHTTP(ctx, parsed)
	case "file":
		body, err = openFile(parsed)
	default:
		return fmt.Errorf("unsupported url scheme %q", parsed.Scheme)
	}
	if err != nil {
		return err
	}
	defer body.Close()

	written, err := writeAtomic(ctx, dest, body)
	if err != nil {
		return err
	}

	f.logger.WithFields(logrus.Fields{
		"action": "fetch_complete",
		"url":    rawURL,
		"path":   dest,
		"bytes":  written,
	}).Debug("remote content written")
	return nil
}

func (f *Fetcher) openHTTP(ctx context.Context, target *url.URL) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, target.Redacted())
	}
	return resp.Body, nil
}

func openFile(target *url.URL) (io.ReadCloser, error) {
	if target.Host != "" && target.Host != "localhost" {
		return nil, fmt.Errorf("file url with remote host %q is not supported", target.Host)
	}
	path := filepath.FromSlash(target.Path)
	if path == "" {
		return nil, errors.New("file url has empty path")
	}
	return os.Open(path)
}

// writeAtomic 先写同目录临时文件，成功后 rename 到 dest，失败时清理临时文件。
func writeAtomic(ctx context.Context, dest string, body io.Reader) (int64, error) {
	tempFile, err := os.CreateTemp(filepath.Dir(dest), ".fetch-*")
	if err != nil {
		return 0, err
	}
	tempName := tempFile.Name()

	written, err := copyWithContext(ctx, tempFile, body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return written, err
	}

	if err := os.Rename(tempName, dest); err != nil {
		os.Remove(tempName)
		return written, err
	}
	return written, nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
