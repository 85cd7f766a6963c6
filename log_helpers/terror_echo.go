package log_helpers

import (
	"errors"

	"github.com/ninja-software/terror/v2"
	"github.com/rs/zerolog"
)

// TerrorEcho logs an error at the level carried by its terror wrapper.
func TerrorEcho(err error, log *zerolog.Logger) {
	lvl := terror.GetLevel(err)
	msg := err.Error()
	var bErr *terror.TError
	if errors.As(err, &bErr) {
		msg = bErr.Message
	}

	switch lvl {
	case terror.ErrLevelPanic:
		// using WithLevel to prevent zerolog from calling `panic()`
		log.WithLevel(zerolog.PanicLevel).Caller(1).Err(err).Msg(msg)
		terror.Echo(err)
	case terror.ErrLevelError:
		log.Error().Caller(1).Err(err).Msg(msg)
		terror.Echo(err)
	case terror.ErrLevelWarn:
		log.Warn().Caller(1).Err(err).Msg(msg)
	default:
		log.Info().Caller(1).Err(err).Msg(msg)
	}
}
