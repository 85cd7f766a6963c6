package log_helpers

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

func NamedLogger(logger *zerolog.Logger, name string) *zerolog.Logger {
	log := logger.With().Str("name", name).Logger()
	return &log
}

func LoggerInitZero(environment, level string) *zerolog.Logger {
	output := loggerStdout(environment)

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	log := zerolog.New(output).With().Timestamp().Logger()
	return &log
}

func loggerStdout(environment string) zerolog.ConsoleWriter {
	output := zerolog.NewConsoleWriter()

	if environment != "development" {
		output.TimeFormat = time.RFC3339

		output.FormatLevel = func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
		}
		output.FormatMessage = func(i interface{}) string {
			if i == nil {
				return "no msg"
			}
			return fmt.Sprintf("%s", i)
		}
	}
	return output
}
