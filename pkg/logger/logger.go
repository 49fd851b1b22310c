// Package logger — структурированное логирование на базе zerolog.
// JSON в production, цветной вывод при Pretty. Сообщения пишутся на русском.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// log — глобальный логгер процесса.
var log zerolog.Logger

// Config содержит настройки логгера.
type Config struct {
	// Level: debug, info, warn, error. По умолчанию info.
	Level string

	// Pretty включает ConsoleWriter для локальной разработки.
	Pretty bool

	// Service добавляется полем service в каждую запись, если задан.
	Service string

	// Output — куда писать. По умолчанию os.Stdout.
	Output io.Writer
}

func init() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	Init(Config{
		Level:  level,
		Pretty: strings.EqualFold(os.Getenv("LOG_PRETTY"), "true"),
	})
}

// Init настраивает глобальный логгер. Вызывается в main до старта компонентов.
func Init(cfg Config) {
	var output io.Writer = os.Stdout
	if cfg.Output != nil {
		output = cfg.Output
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	level := parseLevel(cfg.Level)

	ctx := zerolog.New(output).Level(level).With().Timestamp().Caller()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	log = ctx.Logger()

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
}

// parseLevel преобразует строку в zerolog.Level, неизвестное значение — info.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug создаёт событие уровня debug.
func Debug() *zerolog.Event { return log.Debug() }

// Info создаёт событие уровня info.
func Info() *zerolog.Event { return log.Info() }

// Warn создаёт событие уровня warn.
func Warn() *zerolog.Event { return log.Warn() }

// Error создаёт событие уровня error.
func Error() *zerolog.Event { return log.Error() }

// Fatal пишет событие и завершает процесс с кодом 1 после Msg().
func Fatal() *zerolog.Event { return log.Fatal() }

// With создаёт дочерний логгер с дополнительными полями.
//
//	refundLog := logger.With().Str("component", "refund").Logger()
func With() zerolog.Context { return log.With() }

// Logger возвращает глобальный логгер.
func Logger() zerolog.Logger { return log }

// SetGlobalLogger подменяет глобальный логгер (используется в тестах).
func SetGlobalLogger(l zerolog.Logger) { log = l }
