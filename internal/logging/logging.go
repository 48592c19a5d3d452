// Package logging adapts charmbracelet/log to nrf24.Logger, so the daemons
// get structured, leveled output while nrf24 and internal/fhss keep their
// narrow four-method logging interface.
package logging

import (
	"os"

	charmlog "github.com/charmbracelet/log"

	"github.com/rigou/nRF24L01-FHSS/nrf24"
)

// New builds a charmbracelet/log logger writing to stderr at the given
// level ("debug", "info", "warn", "error"; unrecognized values fall back to
// info), wrapped to satisfy nrf24.Logger.
func New(level string) nrf24.Logger {
	l := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		ReportCaller:    false,
	})
	l.SetLevel(parseLevel(level))
	return &adapter{l: l}
}

func parseLevel(level string) charmlog.Level {
	switch level {
	case "debug":
		return charmlog.DebugLevel
	case "warn":
		return charmlog.WarnLevel
	case "error":
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

type adapter struct {
	l *charmlog.Logger
}

func (a *adapter) Debug(msg string) { a.l.Debug(msg) }
func (a *adapter) Info(msg string)  { a.l.Info(msg) }
func (a *adapter) Warn(msg string)  { a.l.Warn(msg) }
func (a *adapter) Error(msg string) { a.l.Error(msg) }

var _ nrf24.Logger = (*adapter)(nil)
