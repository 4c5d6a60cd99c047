package processor

import (
	"fmt"

	"go.uber.org/zap"
)

// Reporter receives human-oriented progress. Implementations must be safe for
// concurrent use when Workers > 1.
type Reporter interface {
	Log(format string, args ...any)
	SetStatus(status string)
	SetProgress(value float64)
}

type nopReporter struct{}

func (nopReporter) Log(string, ...any)  {}
func (nopReporter) SetStatus(string)    {}
func (nopReporter) SetProgress(float64) {}

// LogReporter forwards progress to a zap logger at debug level.
type LogReporter struct {
	Logger *zap.Logger
}

func (r LogReporter) Log(format string, args ...any) {
	r.Logger.Debug(fmt.Sprintf(format, args...))
}

func (r LogReporter) SetStatus(status string) {
	r.Logger.Info(status)
}

func (r LogReporter) SetProgress(value float64) {
	r.Logger.Debug("progress", zap.Float64("value", value))
}
