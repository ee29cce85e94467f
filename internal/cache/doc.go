// Package cache keeps remotely fetched JSON documents on local disk, keyed by
// their source URL. A single index file (<dir>/file_cache.json) maps each URL
// to the cached file plus the capture timestamp and TTL taken from the
// document's own "metadata" section. Manager evaluates freshness lazily on
// every lookup, evicts expired files, fetches through an injected Fetcher and
// decodes the result, transparently decompressing bzip2/gzip/zstd payloads
// detected by their magic bytes.
//
// Manager holds no lock; callers that share one instance across goroutines
// must serialize access themselves.
package cache
