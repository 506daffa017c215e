// Package restylog routes resty's client diagnostics into zerolog.
package restylog

import (
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

type logger struct {
	log zerolog.Logger
}

// New returns a resty.Logger that writes through log. Pass zerolog.Nop() to
// silence a client entirely.
func New(log zerolog.Logger) resty.Logger {
	return &logger{log: log.With().Str("client", "resty").Logger()}
}

func (l *logger) Errorf(format string, v ...interface{}) {
	l.log.Error().Msg(message(format, v))
}

func (l *logger) Warnf(format string, v ...interface{}) {
	l.log.Warn().Msg(message(format, v))
}

func (l *logger) Debugf(format string, v ...interface{}) {
	l.log.Debug().Msg(message(format, v))
}

func message(format string, v []interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, v...))
}
