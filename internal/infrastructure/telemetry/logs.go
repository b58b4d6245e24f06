package telemetry

import (
	"go.opentelemetry.io/contrib/bridges/otelzap"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// BridgeLogger returns a logger that also exports entries at or above
// level as OTLP log records. A nil provider means logs export is off.
func BridgeLogger(logger *zap.Logger, provider *sdklog.LoggerProvider, serviceName string, level zapcore.Level) *zap.Logger {
	if provider == nil {
		return logger
	}
	var export zapcore.Core = otelzap.NewCore(serviceName, otelzap.WithLoggerProvider(provider))
	if filtered, err := zapcore.NewIncreaseLevelCore(export, level); err == nil {
		export = filtered
	}
	return logger.WithOptions(zap.WrapCore(func(local zapcore.Core) zapcore.Core {
		return zapcore.NewTee(local, export)
	}))
}
