package config

import (
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/go-homedir"
)

// DefaultCacheDirName 是默认缓存目录在基准目录下的名称。
const DefaultCacheDirName = ".ust_cache"

// environment 汇总决定默认缓存目录的环境变量。
type environment struct {
	SnapUserCommon string `env:"SNAP_USER_COMMON"`
}

// DefaultCacheDir 在 snap 环境下返回 $SNAP_USER_COMMON/.ust_cache，
// 否则返回 <home>/.ust_cache。
func DefaultCacheDir() (string, error) {
	envCfg, err := env.ParseAs[environment]()
	if err != nil {
		return "", fmt.Errorf("读取环境变量失败: %w", err)
	}
	if envCfg.SnapUserCommon != "" {
		return filepath.Join(envCfg.SnapUserCommon, DefaultCacheDirName), nil
	}

	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("无法定位用户目录: %w", err)
	}
	return filepath.Join(home, DefaultCacheDirName), nil
}
