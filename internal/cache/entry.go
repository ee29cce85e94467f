package cache

import (
	"sort"
	"time"
)

// Entry 是索引中的一行：URL 对应的本地文件及其新鲜度窗口。
type Entry struct {
	URL       string `json:"url"`
	Path      string `json:"path"`
	Timestamp int64  `json:"timestamp"`
	TTL       int64  `json:"ttl"`
}

// IsExpired 以调用时刻判断条目是否过期，结果从不缓存。
func (e Entry) IsExpired(now time.Time) bool {
	return now.Unix()-e.Timestamp > e.TTL
}

// ExpiresAt 返回条目最后一个仍被视为新鲜的时刻。
func (e Entry) ExpiresAt() time.Time {
	return time.Unix(e.Timestamp+e.TTL, 0).UTC()
}

// Index 以 URL 为键保存全部条目。
type Index map[string]Entry

// Sorted 按 URL 排序返回条目副本，便于诊断输出保持稳定。
func (idx Index) Sorted() []Entry {
	if len(idx) == 0 {
		return nil
	}
	result := make([]Entry, 0, len(idx))
	for _, entry := range idx {
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].URL < result[j].URL
	})
	return result
}
