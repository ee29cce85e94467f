package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// CacheFields 提供 action + url 字段，供缓存命中/淘汰/下载日志复用。
func CacheFields(action, url string) logrus.Fields {
	return logrus.Fields{
		"action": action,
		"url":    url,
	}
}
