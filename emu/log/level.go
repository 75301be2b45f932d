package log

import (
	"io"

	"gopkg.in/Sirupsen/logrus.v0"
)

type Level logrus.Level

const (
	PanicLevel = Level(logrus.PanicLevel)
	FatalLevel = Level(logrus.FatalLevel)
	ErrorLevel = Level(logrus.ErrorLevel)
	WarnLevel  = Level(logrus.WarnLevel)
	InfoLevel  = Level(logrus.InfoLevel)
	DebugLevel = Level(logrus.DebugLevel)
)

func init() {
	// Filtering is done per module, so let everything through logrus.
	logrus.SetLevel(logrus.DebugLevel)
}

// SetOutput redirects all logs to w.
func SetOutput(w io.Writer) {
	logrus.SetOutput(w)
}

// Disable turns off all logging, including warnings and errors.
func Disable() {
	modDebugMask = 0
	logrus.SetOutput(io.Discard)
}

// Context is implemented by objects adding fields to every log entry (for
// example the current emulated time).
type Context interface {
	AddLogContext(z *EntryZ)
}

var contexts []Context

// AddContext registers c so that its fields are attached to all entries.
func AddContext(c Context) {
	contexts = append(contexts, c)
}

// RemoveContext unregisters a context previously added with AddContext.
func RemoveContext(c Context) {
	for i := range contexts {
		if contexts[i] == c {
			contexts = append(contexts[:i], contexts[i+1:]...)
			return
		}
	}
}
