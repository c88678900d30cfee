package graphql

import (
	"context"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xzzpig/graph-gateway/internal/core/logger"
)

// operationLog describes one finished GraphQL operation.
type operationLog struct {
	RequestID     string
	OperationName string
	Operation     string
	RawQuery      string
	Variables     map[string]any
	Latency       time.Duration
	Errors        gqlerror.List
}

// logOperation writes one line per operation: at error level when the
// response carries errors, at info otherwise. The query and variables are
// only included at debug level.
func logOperation(l *zap.Logger, op operationLog) {
	fields := []zap.Field{
		zap.String("operationName", op.OperationName),
		zap.Duration("latency", op.Latency),
	}
	// 被拒绝或解析失败的请求可能没有这些字段
	if op.RequestID != "" {
		fields = append(fields, zap.String("requestId", op.RequestID))
	}
	if op.Operation != "" {
		fields = append(fields, zap.String("operation", op.Operation))
	}
	// DEBUG 级别：记录原始查询和变量
	if l.Core().Enabled(zapcore.DebugLevel) {
		fields = append(fields, zap.String("rawQuery", op.RawQuery), zap.Any("variables", op.Variables))
	}

	// 有错误时按 error 级别记录
	if len(op.Errors) > 0 {
		msgs := make([]string, len(op.Errors))
		for i, err := range op.Errors {
			msgs[i] = err.Message
		}
		fields = append(fields, zap.Strings("errors", msgs))
		l.Error("GraphQL operation completed with errors", fields...)
		return
	}
	l.Info("GraphQL operation completed", fields...)
}

// LoggingExtension logs operations of a gqlgen server that embeds the
// admission gate.
type LoggingExtension struct {
	Logger *zap.Logger
}

// NewLoggingExtension creates a new logging extension.
func NewLoggingExtension() *LoggingExtension {
	return &LoggingExtension{
		Logger: logger.Named("api.graphql"),
	}
}

// ExtensionName returns the extension name.
func (e *LoggingExtension) ExtensionName() string {
	return "LoggingExtension"
}

// Validate validates the extension configuration.
func (e *LoggingExtension) Validate(_ graphql.ExecutableSchema) error {
	return nil
}

// InterceptResponse logs GraphQL response details.
func (e *LoggingExtension) InterceptResponse(ctx context.Context, next graphql.ResponseHandler) *graphql.Response {
	start := time.Now()
	resp := next(ctx)
	if resp == nil {
		return resp
	}

	op := operationLog{Latency: time.Since(start), Errors: resp.Errors}
	// 安全地获取操作上下文
	if graphql.HasOperationContext(ctx) {
		oc := graphql.GetOperationContext(ctx)
		op.OperationName = oc.OperationName
		op.RawQuery = oc.RawQuery
		op.Variables = oc.Variables
		if oc.Operation != nil {
			op.Operation = string(oc.Operation.Operation)
		}
	}
	logOperation(e.Logger, op)

	return resp
}

var _ graphql.HandlerExtension = &LoggingExtension{}
var _ graphql.ResponseInterceptor = &LoggingExtension{}
