package main

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleDocument = `{"metadata":{"timestamp":1000,"ttl":60},"value":42}`

func TestParseCLIFlagsPriority(t *testing.T) {
	t.Setenv("UST_CACHE_CONFIG", "/tmp/env.toml")

	opts, err := parseCLIFlags([]string{})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/env.toml" {
		t.Fatalf("应优先使用环境变量，得到 %s", opts.configPath)
	}

	opts, err = parseCLIFlags([]string{"--config", "/tmp/flag.toml", "file:///data/a.json"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/flag.toml" {
		t.Fatalf("flag 应高于环境变量，得到 %s", opts.configPath)
	}
	if len(opts.urls) != 1 || opts.urls[0] != "file:///data/a.json" {
		t.Fatalf("位置参数应解析为 URL，得到 %v", opts.urls)
	}
}

func TestParseCLIFlagsRejectsUnknownFlag(t *testing.T) {
	if _, err := parseCLIFlags([]string{"--bogus"}); err == nil {
		t.Fatalf("未知参数应返回错误")
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "valid.toml"), checkOnly: true})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d", code)
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "invalid.toml"), checkOnly: true})
	if code == 0 {
		t.Fatalf("无效配置应返回非零退出码")
	}
}

func TestRunVersionOutput(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{showVersion: true})
	if code != 0 {
		t.Fatalf("version 模式应成功退出，得到 %d", code)
	}
	if !strings.Contains(stdOutBuffer().String(), "ust-cache") {
		t.Fatalf("version 输出应包含 ust-cache 标识")
	}
}

func TestRunRequiresURL(t *testing.T) {
	useBufferWriters(t)
	configPath := writeCacheConfig(t, t.TempDir())
	if code := run(cliOptions{configPath: configPath}); code != 2 {
		t.Fatalf("缺少 URL 时应返回 2，得到 %d", code)
	}
}

func TestRunFetchesAndListsFileURL(t *testing.T) {
	useBufferWriters(t)
	cacheDir := t.TempDir()
	configPath := writeCacheConfig(t, cacheDir)
	docURL := writeSourceDocument(t, sampleDocument)

	if code := run(cliOptions{configPath: configPath, urls: []string{docURL}}); code != 0 {
		t.Fatalf("获取文档应成功，得到 %d (stderr=%s)", code, stdErrBuffer().String())
	}
	if !strings.Contains(stdOutBuffer().String(), `"value": 42`) {
		t.Fatalf("输出应包含解码后的文档，得到 %s", stdOutBuffer().String())
	}
	if _, err := os.Stat(filepath.Join(cacheDir, "file_cache.json")); err != nil {
		t.Fatalf("应写入索引文件: %v", err)
	}

	stdOutBuffer().Reset()
	if code := run(cliOptions{configPath: configPath, listEntries: true}); code != 0 {
		t.Fatalf("列出条目应成功，得到 %d", code)
	}
	if !strings.Contains(stdOutBuffer().String(), docURL) {
		t.Fatalf("条目列表应包含 %s，得到 %s", docURL, stdOutBuffer().String())
	}
}

func TestRunReportsMetadataMissing(t *testing.T) {
	useBufferWriters(t)
	configPath := writeCacheConfig(t, t.TempDir())
	docURL := writeSourceDocument(t, `{"value":42}`)

	if code := run(cliOptions{configPath: configPath, urls: []string{docURL}}); code != 1 {
		t.Fatalf("缺少 metadata 时应返回 1，得到 %d", code)
	}
	if !strings.Contains(stdErrBuffer().String(), "metadata missing") {
		t.Fatalf("错误输出应说明 metadata 缺失，得到 %s", stdErrBuffer().String())
	}
}

func TestRunFailsWhenCacheDirIsFile(t *testing.T) {
	useBufferWriters(t)
	blocker := filepath.Join(t.TempDir(), "cache")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("写入文件失败: %v", err)
	}
	configPath := writeCacheConfig(t, blocker)

	if code := run(cliOptions{configPath: configPath, listEntries: true}); code != 1 {
		t.Fatalf("缓存目录为文件时应返回 1，得到 %d", code)
	}
	if !bytes.Contains(stdErrBuffer().Bytes(), []byte("cache dir unavailable")) {
		t.Fatalf("错误输出应说明缓存目录不可用，得到 %s", stdErrBuffer().String())
	}
}

func writeCacheConfig(t *testing.T, cacheDir string) string {
	t.Helper()
	return writeConfigFile(t, fmt.Sprintf(`
LogLevel = "error"

[Cache]
Dir = %q
FetchTimeout = "5s"
`, cacheDir))
}

func writeSourceDocument(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入源文档失败: %v", err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
