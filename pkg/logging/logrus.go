package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	rotateMaxSizeMB  = 10
	rotateMaxBackups = 3
	rotateMaxAgeDays = 7
)

// Logrus hands out per-component entries that share one logger, so
// every component writes through the same formatter and output lock.
type Logrus struct {
	level  string
	output io.Writer
	base   *logrus.Logger
}

// NewLogrus builds the shared logger. An unknown level falls back to info.
func NewLogrus(level string, output io.Writer) *Logrus {
	base := logrus.New()
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	base.SetLevel(parsed)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	base.SetOutput(output)
	return &Logrus{level: level, output: output, base: base}
}

// NewRotatingLogrus writes to stdout and, when filename is set, to a
// rotated log file as well. The returned closer releases the file.
func NewRotatingLogrus(level, filename string) (*Logrus, io.Closer) {
	if filename == "" {
		return NewLogrus(level, os.Stdout), io.NopCloser(nil)
	}
	file := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    rotateMaxSizeMB,
		MaxBackups: rotateMaxBackups,
		MaxAge:     rotateMaxAgeDays,
		Compress:   true,
	}
	return NewLogrus(level, io.MultiWriter(os.Stdout, file)), file
}

// Get returns an entry tagged with the component name.
func (l *Logrus) Get(context string) *logrus.Entry {
	return l.base.WithFields(logrus.Fields{
		"Context": context,
	})
}
