package logging

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewTestManager returns a manager that writes debug-level JSON lines to w.
// Tests use it to assert on warnings that do not surface as errors.
func NewTestManager(w io.Writer) *Manager {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = ""
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	)
	return &Manager{
		baseZap: zap.New(core),
		level:   zapcore.DebugLevel,
		loggers: make(map[string]*ScopedLogger),
	}
}
