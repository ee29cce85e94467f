package cache

import "errors"

var (
	// ErrCacheDirUnavailable 表示缓存根目录存在但不是目录，或无法创建。
	ErrCacheDirUnavailable = errors.New("cache dir unavailable")

	// ErrCorruptIndex 表示索引文件无法解析或记录不完整。
	ErrCorruptIndex = errors.New("cache index corrupt")

	// ErrFetchFailed 表示 Fetcher 未能把远端内容写到目标路径。
	ErrFetchFailed = errors.New("fetch failed")

	// ErrMetadataMissing 表示下载内容缺少 metadata.timestamp / metadata.ttl。
	ErrMetadataMissing = errors.New("metadata missing")

	// ErrDecompressionFailed 表示已识别的压缩流解压失败。
	ErrDecompressionFailed = errors.New("decompression failed")

	// ErrMalformedContent 表示内容不是合法 JSON。
	ErrMalformedContent = errors.New("malformed content")
)
