package logger

import (
	"go.uber.org/zap/zapcore"
)

// levelFilterCore 包装 zapcore.Core，丢弃低于 level 的日志
type levelFilterCore struct {
	zapcore.Core
	level zapcore.Level
}

// Enabled 判断 lvl 是否通过过滤
func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.level && c.Core.Enabled(lvl)
}

// Check 必须覆盖：嵌入类型的 Check() 只会调用它自己的 Enabled()
func (c *levelFilterCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// With 派生的 core 保留同样的过滤级别
func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{Core: c.Core.With(fields), level: c.level}
}

var (
	_ zapcore.Core         = (*levelFilterCore)(nil)
	_ zapcore.LevelEnabler = (*levelFilterCore)(nil)
)
