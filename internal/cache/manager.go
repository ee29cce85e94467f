package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ust-cache/ust-cache/internal/logging"
)

// Fetcher 把 url 对应的完整内容写入 dest，任何传输错误都会让本次调用失败。
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url, dest string) error

// Fetch makes FetcherFunc satisfy Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, url, dest string) error {
	return f(ctx, url, dest)
}

// Options 描述构建 Manager 所需的依赖。
type Options struct {
	Dir     string
	Fetcher Fetcher
	Logger  *logrus.Logger
}

// Manager 负责“查索引 → 判断新鲜度 → 淘汰/回源 → 解码”的全流程。
// 不持有锁，调用方需自行串行化。
type Manager struct {
	dir       string
	indexPath string
	entries   Index
	fetcher   Fetcher
	logger    *logrus.Logger

	now     func() time.Time
	newID   func() string
	persist func(Index, string) error
}

// NewManager 解析缓存目录（不存在则创建）并加载索引。索引损坏时直接失败，
// 不会静默丢弃历史记录。
func NewManager(opts Options) (*Manager, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("%w: cache dir required", ErrCacheDirUnavailable)
	}
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	logger.WithFields(logrus.Fields{"action": "cache_init"}).Info("initializing download cache")

	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %w", ErrCacheDirUnavailable, opts.Dir, err)
	}
	if err := ensureDir(dir, logger); err != nil {
		return nil, err
	}

	m := &Manager{
		dir:       dir,
		indexPath: filepath.Join(dir, IndexFileName),
		fetcher:   opts.Fetcher,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
		persist:   SaveIndex,
	}

	logger.WithFields(logrus.Fields{"action": "index_load", "path": m.indexPath}).Debug("loading cache index")
	entries, err := LoadIndex(m.indexPath)
	if err != nil {
		return nil, err
	}
	m.entries = entries
	return m, nil
}

func ensureDir(dir string, logger *logrus.Logger) error {
	fields := logrus.Fields{"action": "cache_dir", "path": dir}

	info, err := os.Stat(dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return fmt.Errorf("%w: %s exists, but is not a directory", ErrCacheDirUnavailable, dir)
		}
		logger.WithFields(fields).Debug("cache dir exists")
		return nil
	case errors.Is(err, fs.ErrNotExist):
		logger.WithFields(fields).Debug("cache dir does not exist, creating")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %w", ErrCacheDirUnavailable, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %w", ErrCacheDirUnavailable, err)
	}
}

// Dir 返回缓存根目录的绝对路径。
func (m *Manager) Dir() string {
	return m.dir
}

// IndexPath 返回索引文件路径。
func (m *Manager) IndexPath() string {
	return m.indexPath
}

// Lookup 返回内存索引中的条目，不判断是否过期。
func (m *Manager) Lookup(url string) (Entry, bool) {
	entry, ok := m.entries[url]
	return entry, ok
}

// Entries 按 URL 排序返回当前全部条目。
func (m *Manager) Entries() []Entry {
	return m.entries.Sorted()
}

// Save 将内存索引写回磁盘。
func (m *Manager) Save() error {
	m.logger.WithFields(logrus.Fields{
		"action":  "index_save",
		"path":    m.indexPath,
		"entries": len(m.entries),
	}).Debug("saving cache index")
	if err := m.persist(m.entries, m.indexPath); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return nil
}

// FetchDecoded 返回 url 对应内容的解码结果：新鲜命中直接读取缓存文件，
// 未命中或过期时先淘汰旧文件、回源并登记新条目，最后统一解码。
func (m *Manager) FetchDecoded(ctx context.Context, url string) (Document, error) {
	path, err := m.resolve(ctx, url)
	if err != nil {
		return Document{}, err
	}
	return DecodeFile(path)
}

func (m *Manager) resolve(ctx context.Context, url string) (string, error) {
	entry, cached := m.entries[url]
	if cached {
		if !entry.IsExpired(m.now()) {
			m.logger.WithFields(logging.CacheFields("cache_hit", url)).Debug("cached file has not expired")
			return entry.Path, nil
		}
		m.logger.WithFields(logging.CacheFields("cache_expired", url)).Debug("cached file has expired")
		if err := m.evict(entry); err != nil {
			return "", err
		}
	} else {
		m.logger.WithFields(logging.CacheFields("cache_miss", url)).Debug("file is not cached")
	}

	fresh, err := m.download(ctx, url)
	if err != nil {
		if cached {
			// 淘汰已生效，落盘后磁盘索引不再引用已删除的文件。
			if saveErr := m.Save(); saveErr != nil {
				return "", errors.Join(err, saveErr)
			}
		}
		return "", err
	}

	m.entries[url] = fresh
	if err := m.Save(); err != nil {
		return "", err
	}
	return fresh.Path, nil
}

// evict 删除过期文件并同步移除索引条目，此处不落盘。
func (m *Manager) evict(entry Entry) error {
	fields := logging.CacheFields("cache_evict", entry.URL)
	fields["path"] = entry.Path
	m.logger.WithFields(fields).Debug("removing expired cached file")

	if err := os.Remove(entry.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove expired file %s: %w", entry.Path, err)
	}
	delete(m.entries, entry.URL)
	return nil
}

// download 把内容写到新的随机文件名下并读取其 metadata。metadata 缺失时
// 文件保留在磁盘上，索引不做任何修改。
func (m *Manager) download(ctx context.Context, url string) (Entry, error) {
	dest := filepath.Join(m.dir, m.newID())

	fields := logging.CacheFields("download", url)
	fields["path"] = dest
	m.logger.WithFields(fields).Debug("downloading")

	if err := m.fetcher.Fetch(ctx, url, dest); err != nil {
		return Entry{}, fmt.Errorf("%w: %s: %w", ErrFetchFailed, url, err)
	}

	doc, err := DecodeFile(dest)
	if err != nil {
		return Entry{}, err
	}
	meta, err := doc.Metadata()
	if err != nil {
		return Entry{}, fmt.Errorf("%s: %w", url, err)
	}

	return Entry{
		URL:       url,
		Path:      dest,
		Timestamp: meta.Timestamp,
		TTL:       meta.TTL,
	}, nil
}
