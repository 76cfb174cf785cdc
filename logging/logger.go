// Package logging builds the process logger. The logger is constructed
// once in main and handed down by value; nothing in the tree reaches for
// a package-level instance.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger, optionally teeing JSON lines into
// logFile. The returned closer releases the file sink.
func New(verbose bool, logFile string) (zerolog.Logger, func(), error) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}

	var sink io.Writer = console
	closer := func() {}
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return zerolog.Nop(), closer, err
		}
		sink = zerolog.MultiLevelWriter(console, file)
		closer = func() { file.Close() }
	}

	logger := zerolog.New(sink).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}
