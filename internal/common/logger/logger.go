package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New は実行環境に応じたロガーを返します
// LOCALでは人が読みやすいコンソール出力、それ以外はJSON出力です
func New(env string, service string) zerolog.Logger {
	var w io.Writer = os.Stdout
	level := zerolog.InfoLevel
	if strings.EqualFold(env, "LOCAL") {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}
		level = zerolog.DebugLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}
