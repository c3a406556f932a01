package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is usable before Init so library packages and tests can log freely.
var Log = logrus.New()

// Init configures Log from LOG_LEVEL (default info) and LOG_FORMAT
// (json, the default, or text).
func Init() {
	Configure(os.Stdout, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

func Configure(out io.Writer, level, format string) {
	Log.SetOutput(out)

	switch strings.ToLower(format) {
	case "text":
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	default:
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	if level == "" {
		level = "info"
	}
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	Log.SetLevel(logLevel)
}

func WithField(key string, value interface{}) *logrus.Entry {
	return Log.WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}

// ForRun tags every entry with the extraction run id.
func ForRun(runID string) *logrus.Entry {
	return Log.WithField("run_id", runID)
}
