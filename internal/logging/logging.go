// Package logging builds the logfmt logger shared by the command line tools.
package logging

import (
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// New returns a logfmt logger writing to w with a UTC timestamp and the
// calling component. Debug lines are dropped unless debug is set.
func New(w io.Writer, component string, debug bool) log.Logger {
	logLevel := level.AllowInfo()
	if debug {
		logLevel = level.AllowAll()
	}

	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	if component != "" {
		logger = log.With(logger, "component", component)
	}
	return level.NewFilter(logger, logLevel)
}
