package logger

import (
	"io"
	"log/slog"
	"os"
)

// New создаёт JSON-логгер, пишущий в stdout.
func New(level slog.Level) *slog.Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter создаёт JSON-логгер поверх произвольного writer.
func NewWithWriter(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("service", "orderflow"))
}
