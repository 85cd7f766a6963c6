package catlog

import (
	"catalog-services/log_helpers"

	"github.com/rs/zerolog"
)

// L is the process-wide logger, set once by New.
var L *zerolog.Logger

func New(environment, level string) *zerolog.Logger {
	log := log_helpers.LoggerInitZero(environment, level)
	log.Info().Msg("zerolog initialised")
	L = log
	return log
}
