package log

import (
	"io"

	"gopkg.in/Sirupsen/logrus.v0"
)

// Level mirrors logrus severity ordering: lower is more severe.
type Level uint8

const (
	PanicLevel Level = Level(logrus.PanicLevel)
	FatalLevel Level = Level(logrus.FatalLevel)
	ErrorLevel Level = Level(logrus.ErrorLevel)
	WarnLevel  Level = Level(logrus.WarnLevel)
	InfoLevel  Level = Level(logrus.InfoLevel)
	DebugLevel Level = Level(logrus.DebugLevel)
)

func (lvl Level) String() string {
	return logrus.Level(lvl).String()
}

// SetOutput redirects all logging output.
func SetOutput(w io.Writer) {
	logrus.SetOutput(w)
}

// Disable silences all logging output.
func Disable() {
	logrus.SetOutput(io.Discard)
}

// EnableDebugLog raises the backend level so that debug entries from enabled
// modules actually reach the output.
func EnableDebugLog() {
	logrus.SetLevel(logrus.DebugLevel)
}
