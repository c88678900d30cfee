package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

// levelCache 按日志名称缓存已解析的级别
// Key: logger name (string), Value: zapcore.Level
var levelCache sync.Map

var (
	levelConfigMu  sync.RWMutex
	levelConfigMap map[string]string // 模块名 -> 级别字符串
	globalLevel    = zapcore.InfoLevel
)

// InitLevelConfig 设置按模块覆盖的日志级别和全局默认级别
// 配置变更后会清空缓存
func InitLevelConfig(levels map[string]string, defaultLevel zapcore.Level) {
	levelConfigMu.Lock()
	defer levelConfigMu.Unlock()
	levelConfigMap = levels
	globalLevel = defaultLevel
	levelCache.Range(func(key, _ any) bool {
		levelCache.Delete(key)
		return true
	})
}

// GetLevelForName 解析以 "." 分隔的日志名称对应的级别
// 优先精确匹配，其次最近的父级 ("core.admission" -> "core")，最后是全局级别
// 匹配区分大小写，结果会被缓存
func GetLevelForName(name string) zapcore.Level {
	if cached, ok := levelCache.Load(name); ok {
		return cached.(zapcore.Level)
	}

	level := computeLevelForName(name)
	levelCache.Store(name, level)
	return level
}

func computeLevelForName(name string) zapcore.Level {
	levelConfigMu.RLock()
	defer levelConfigMu.RUnlock()

	if len(levelConfigMap) == 0 || name == "" {
		return globalLevel
	}

	// 精确匹配；无效的级别值继续向上查找
	if levelStr, ok := levelConfigMap[name]; ok {
		if level, err := ParseLevel(levelStr); err == nil {
			return level
		}
	}

	// 逐级向上匹配父级
	parts := strings.Split(name, ".")
	for i := len(parts) - 1; i > 0; i-- {
		prefix := strings.Join(parts[:i], ".")
		if levelStr, ok := levelConfigMap[prefix]; ok {
			if level, err := ParseLevel(levelStr); err == nil {
				return level
			}
		}
	}

	return globalLevel
}

// ParseLevel 解析日志级别字符串（不区分大小写）
// 支持: debug, info, warn, error, dpanic, panic, fatal
func ParseLevel(levelStr string) (zapcore.Level, error) {
	var level zapcore.Level
	err := level.UnmarshalText([]byte(strings.ToLower(levelStr)))
	return level, err
}
