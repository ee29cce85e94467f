package fetch

import (
	"net"
	"net/http"
	"time"

	"github.com/ust-cache/ust-cache/internal/config"
)

// defaultTimeout 在配置缺失时兜底，与 Cache.FetchTimeout 默认值一致。
const defaultTimeout = 30 * time.Second

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewClient 返回回源用的 http.Client，整体超时取自 Cache.FetchTimeout。
func NewClient(cfg *config.Config) *http.Client {
	timeout := defaultTimeout
	if cfg != nil && cfg.Cache.FetchTimeout.DurationValue() > 0 {
		timeout = cfg.Cache.FetchTimeout.DurationValue()
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: defaultTransport.Clone(),
	}
}
