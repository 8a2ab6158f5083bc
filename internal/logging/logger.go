package logging

import (
	"io"

	"github.com/phuslu/log"
)

// New returns a leveled console logger writing to w. Unknown levels fall back
// to info.
func New(w io.Writer, level string, color bool) *log.Logger {
	lvl := log.ParseLevel(level)
	if lvl < log.TraceLevel || lvl > log.PanicLevel {
		lvl = log.InfoLevel
	}
	return &log.Logger{
		Level:      lvl,
		TimeFormat: "15:04:05",
		Writer: &log.ConsoleWriter{
			Writer:         w,
			ColorOutput:    color,
			QuoteString:    true,
			EndWithMessage: true,
		},
	}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *log.Logger {
	return &log.Logger{
		Level:  log.PanicLevel,
		Writer: &log.IOWriter{Writer: io.Discard},
	}
}
