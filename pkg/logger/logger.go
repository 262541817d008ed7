package logger

import (
	"fmt"
	"log/slog"
)

// Printf adapts an slog.Logger to the Errorf/Warnf/Debugf shape HTTP client
// libraries expect for their trace output.
type Printf struct {
	logger *slog.Logger
}

// NewPrintf wraps an slog.Logger; nil falls back to the default logger.
func NewPrintf(logger *slog.Logger) *Printf {
	if logger == nil {
		logger = slog.Default()
	}
	return &Printf{logger: logger}
}

func (p *Printf) Errorf(format string, v ...interface{}) {
	p.logger.Error(fmt.Sprintf(format, v...))
}

func (p *Printf) Warnf(format string, v ...interface{}) {
	p.logger.Warn(fmt.Sprintf(format, v...))
}

func (p *Printf) Debugf(format string, v ...interface{}) {
	p.logger.Debug(fmt.Sprintf(format, v...))
}
