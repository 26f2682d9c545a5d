package blogsync

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOutput returns the writer all loggers share: stderr, plus a rotating
// file when path is set. The returned closer flushes and closes the file.
func LogOutput(path string) (io.Writer, io.Closer) {
	if path == "" {
		return os.Stderr, nopCloser{}
	}
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
	return io.MultiWriter(os.Stderr, file), file
}

// NewLogger returns a logger with a bracketed component prefix, e.g. "[sync] ".
func NewLogger(w io.Writer, component string) *log.Logger {
	return log.New(w, "["+component+"] ", log.LstdFlags)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
