package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Builder assembles a zerolog.Logger from configuration values
type Builder struct {
	writer io.Writer
	level  zerolog.Level
	format string
}

// New creates a Builder writing to w (stderr when nil)
func New(w io.Writer) *Builder {
	if w == nil {
		w = os.Stderr
	}
	return &Builder{
		writer: w,
		level:  zerolog.InfoLevel,
	}
}

// Level sets the minimum level from its textual form, keeping info on parse errors
func (b *Builder) Level(level string) *Builder {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err == nil && parsed != zerolog.NoLevel {
		b.level = parsed
	}
	return b
}

// Format selects "json" or "console" output. Empty picks console for terminals.
func (b *Builder) Format(format string) *Builder {
	b.format = strings.ToLower(strings.TrimSpace(format))
	return b
}

// Make builds the logger
func (b *Builder) Make() zerolog.Logger {
	writer := b.writer
	if b.useConsole() {
		writer = zerolog.ConsoleWriter{Out: b.writer, TimeFormat: time.Kitchen}
	}
	return zerolog.New(writer).Level(b.level).With().Timestamp().Logger()
}

func (b *Builder) useConsole() bool {
	switch b.format {
	case "console":
		return true
	case "json":
		return false
	}
	f, ok := b.writer.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
