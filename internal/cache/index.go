package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// IndexFileName 是缓存目录下索引文件的固定名称。
const IndexFileName = "file_cache.json"

// indexRecord 使用指针字段区分“缺失”与“零值”，保证不会重建出半个条目。
type indexRecord struct {
	URL       *string `json:"url"`
	Path      *string `json:"path"`
	Timestamp *int64  `json:"timestamp"`
	TTL       *int64  `json:"ttl"`
}

// LoadIndex 读取索引文件。文件不存在时返回空索引；内容无法解析或记录
// 不完整时返回 ErrCorruptIndex。
func LoadIndex(path string) (Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Index{}, nil
		}
		return nil, fmt.Errorf("read index %s: %w", path, err)
	}

	var records map[string]indexRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptIndex, path, err)
	}

	idx := make(Index, len(records))
	for key, record := range records {
		entry, err := record.entry(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCorruptIndex, path, err)
		}
		idx[key] = entry
	}
	return idx, nil
}

func (r indexRecord) entry(key string) (Entry, error) {
	switch {
	case r.URL == nil:
		return Entry{}, fmt.Errorf("record %q: missing url", key)
	case r.Path == nil:
		return Entry{}, fmt.Errorf("record %q: missing path", key)
	case r.Timestamp == nil:
		return Entry{}, fmt.Errorf("record %q: missing timestamp", key)
	case r.TTL == nil:
		return Entry{}, fmt.Errorf("record %q: missing ttl", key)
	case *r.URL != key:
		return Entry{}, fmt.Errorf("record %q: url mismatch %q", key, *r.URL)
	case *r.Path == "":
		return Entry{}, fmt.Errorf("record %q: empty path", key)
	}
	return Entry{
		URL:       *r.URL,
		Path:      *r.Path,
		Timestamp: *r.Timestamp,
		TTL:       *r.TTL,
	}, nil
}

// SaveIndex 将索引序列化为按键排序的缩进 JSON，并通过临时文件 + rename
// 覆盖目标文件，失败时清理临时文件。
func SaveIndex(idx Index, path string) error {
	if idx == nil {
		idx = Index{}
	}
	data, err := json.MarshalIndent(idx, "", "    ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	tempFile, err := os.CreateTemp(filepath.Dir(path), ".index-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(data)
	if err == nil {
		err = tempFile.Sync()
	}
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Rename(tempName, path); err != nil {
		os.Remove(tempName)
		return err
	}
	return nil
}
