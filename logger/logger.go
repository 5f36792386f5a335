package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Dir   string
	Level string
	Debug bool
}

// NewLogger builds the process logger. Output goes to stdout and, when Dir is
// set, to a rotating app.log in Dir.
func NewLogger(opts Options) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if opts.Debug {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	if opts.Debug {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	var out io.Writer = os.Stdout
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, os.ModePerm); err != nil {
			return nil, errors.Wrap(err, "failed to create log directory")
		}

		logFile := &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, "app.log"),
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, logFile)
	}
	logger.SetOutput(out)

	return logger, nil
}
