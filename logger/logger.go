package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFileName = "mcp-video.log"

type Options struct {
	Dir    string // empty disables the rotating file
	Level  string
	JSON   bool
	Output io.Writer // console writer, stdout when nil
}

// Setup configures the process-wide logrus logger. It is the only place that
// mutates global logging state and should be called once at startup.
func Setup(opts Options) (io.Closer, error) {
	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid log level %q", opts.Level)
		}
		level = parsed
	}
	logrus.SetLevel(level)

	if opts.JSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	console := opts.Output
	if console == nil {
		console = os.Stdout
	}

	if opts.Dir == "" {
		logrus.SetOutput(console)
		return io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(opts.Dir, os.ModePerm); err != nil {
		return nil, errors.Wrap(err, "creating log directory")
	}

	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, logFileName),
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}

	logrus.SetOutput(io.MultiWriter(console, logFile))
	return logFile, nil
}
