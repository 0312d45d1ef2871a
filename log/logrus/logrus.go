// Package logrus adapts a logrus entry to depcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/depcache"
)

var _ depcache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New wraps l, tagging every line with component=depcache.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "depcache")}
}

func (l Logger) Debug(msg string, f depcache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f depcache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f depcache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f depcache.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f depcache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	return l.E.WithFields(logrus.Fields(f))
}
