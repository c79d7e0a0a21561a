package logging

import (
	"io"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

var stdout io.Writer = os.Stdout

// newRotatingWriter returns a size-rotated log file inside config.Director.
func newRotatingWriter(config Config) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(config.Director, config.FileName),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
		LocalTime:  true,
	}
}
