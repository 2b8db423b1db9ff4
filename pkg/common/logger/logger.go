package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is usable without Init; Init applies the service configuration
// (JSON format, LOG_LEVEL) on top.
var Log = logrus.New()

func Init() {
	Log.SetOutput(os.Stdout)
	Log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	Log.SetLevel(logLevel)
}

// InitStdio routes logs to stderr so the JSON-RPC stdio transport keeps
// exclusive ownership of stdout.
func InitStdio() {
	Init()
	Log.SetOutput(os.Stderr)
}

func WithField(key string, value interface{}) *logrus.Entry {
	return Log.WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}

func WithComponent(name string) *logrus.Entry {
	return Log.WithField("component", name)
}
